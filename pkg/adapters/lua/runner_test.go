package lua_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/warden/pkg/adapters/lua"
	"github.com/aretw0/warden/pkg/bus"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunScript(t *testing.T) {
	r := lua.NewRunner()
	defer r.Close()

	require.NoError(t, r.LoadString(`
		last = nil
		function callbacks.on_jump(height)
			last = "jump:" .. height
		end
		function callbacks.explode()
			error("kaboom")
		end
	`))
	ctx := context.Background()

	t.Run("Calls Defined Callback", func(t *testing.T) {
		require.NoError(t, r.RunScript(ctx, "on_jump", "5"))
		require.NoError(t, r.LoadString(`assert(last == "jump:5", "got " .. tostring(last))`))
	})

	t.Run("Missing Callback Is A No-Op", func(t *testing.T) {
		assert.NoError(t, r.RunScript(ctx, "on_nothing", "x"))
	})

	t.Run("Lua Errors Are Returned", func(t *testing.T) {
		err := r.RunScript(ctx, "explode", "")
		assert.ErrorContains(t, err, "kaboom")
	})
}

func TestRunner_Sandbox(t *testing.T) {
	r := lua.NewRunner()
	defer r.Close()

	assert.Error(t, r.LoadString(`os.exit(1)`))
	assert.Error(t, r.LoadString(`io.open("/etc/passwd")`))
}

func TestRunner_Signal(t *testing.T) {
	b := bus.New()
	var got []domain.Signal
	_, err := b.Subscribe(func(_ context.Context, sig domain.Signal) { got = append(got, sig) })
	require.NoError(t, err)

	r := lua.NewRunner(lua.WithPublisher(b))
	defer r.Close()
	require.NoError(t, r.LoadString(`
		function callbacks.on_jump(h)
			warden.signal("audio", "PLAY|jump" .. h)
		end
	`))

	require.NoError(t, r.RunScript(context.Background(), "on_jump", "5"))
	assert.Equal(t, []domain.Signal{{Sender: "lua", ComponentID: "audio", Data: "PLAY|jump5"}}, got)
}

func TestRunner_SignalWithoutPublisher(t *testing.T) {
	r := lua.NewRunner()
	defer r.Close()
	require.NoError(t, r.LoadString(`function callbacks.go() warden.signal("a", "B") end`))

	assert.ErrorContains(t, r.RunScript(context.Background(), "go", ""), "no publisher")
}

func TestRunner_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callbacks.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function callbacks.ping() end`), 0o644))

	r := lua.NewRunner()
	defer r.Close()
	require.NoError(t, r.LoadFile(path))
	assert.NoError(t, r.RunScript(context.Background(), "ping", ""))

	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "missing.lua")))
}

func TestRunner_Closed(t *testing.T) {
	r := lua.NewRunner()
	r.Close()
	r.Close()
	assert.ErrorIs(t, r.RunScript(context.Background(), "x", ""), lua.ErrRunnerClosed)
}
