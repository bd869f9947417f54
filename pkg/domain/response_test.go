package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_JSON(t *testing.T) {
	t.Run("Callback Frame", func(t *testing.T) {
		data, err := json.Marshal(Callback("on_jump", "5"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"callback","name":"on_jump","param":"5"}`, string(data))
	})

	t.Run("Error Frame", func(t *testing.T) {
		data, err := json.Marshal(Failure("boom"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"error","message":"boom"}`, string(data))
	})

	t.Run("Decodes Known Kinds", func(t *testing.T) {
		var r Response
		require.NoError(t, json.Unmarshal([]byte(`{"kind":"error","message":"boom"}`), &r))
		assert.Equal(t, Failure("boom"), r)
	})

	t.Run("Rejects Unknown Kind", func(t *testing.T) {
		var r Response
		err := json.Unmarshal([]byte(`{"kind":"reboot"}`), &r)
		assert.ErrorIs(t, err, ErrUnknownResponseKind)
	})

	t.Run("Refuses To Encode Unknown Kind", func(t *testing.T) {
		_, err := json.Marshal(Response{Kind: ResponseKind(42)})
		assert.ErrorIs(t, err, ErrUnknownResponseKind)
	})
}

func TestResponseKind_String(t *testing.T) {
	assert.Equal(t, "callback", KindCallback.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown(7)", ResponseKind(7).String())
}
