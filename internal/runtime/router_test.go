package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/queue"
	"github.com/aretw0/warden/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Handle(t *testing.T) {
	tests := []struct {
		name    string
		signal  domain.Signal
		want    []domain.Command
		dropped int
	}{
		{
			name:   "Matching Signal Is Enqueued",
			signal: domain.Signal{Sender: "game", ComponentID: "physics", Data: "JUMP|5"},
			want:   []domain.Command{{Name: "JUMP", Params: "5"}},
		},
		{
			name:   "Only First Separator Splits",
			signal: domain.Signal{ComponentID: "physics", Data: "MOVE|10|20"},
			want:   []domain.Command{{Name: "MOVE", Params: "10|20"}},
		},
		{
			name:   "Other Component Is Ignored",
			signal: domain.Signal{ComponentID: "audio", Data: "JUMP|5"},
		},
		{
			name:   "Empty Name Is Enqueued",
			signal: domain.Signal{ComponentID: "physics", Data: "|5"},
			want:   []domain.Command{{Name: "", Params: "5"}},
		},
		{
			name:    "Oversized Payload Is Dropped",
			signal:  domain.Signal{ComponentID: "physics", Data: "BIG|" + strings.Repeat("x", wire.MaxFrameSize)},
			dropped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outbound := queue.New[domain.Command]()
			dropped := 0
			r := NewRouter("physics", outbound, nil, domain.LifecycleHooks{
				OnDropped: func(context.Context, *domain.SignalEvent) { dropped++ },
			})

			require.NotPanics(t, func() { r.Handle(context.Background(), tt.signal) })

			var got []domain.Command
			if snap := outbound.Snapshot(); len(snap) > 0 {
				got = snap
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dropped, dropped)
		})
	}
}

func TestRouter_ClosedQueue(t *testing.T) {
	outbound := queue.New[domain.Command]()
	outbound.Close()

	var dropErr error
	r := NewRouter("physics", outbound, nil, domain.LifecycleHooks{
		OnDropped: func(_ context.Context, e *domain.SignalEvent) { dropErr = e.Err },
	})

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), domain.Signal{ComponentID: "physics", Data: "JUMP|5"})
	})
	assert.ErrorIs(t, dropErr, queue.ErrClosed)
}

func TestRouter_PanickingHookIsContained(t *testing.T) {
	outbound := queue.New[domain.Command]()
	dropped := 0
	r := NewRouter("physics", outbound, nil, domain.LifecycleHooks{
		OnSignal:  func(context.Context, *domain.SignalEvent) { panic("hook") },
		OnDropped: func(context.Context, *domain.SignalEvent) { dropped++ },
	})

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), domain.Signal{ComponentID: "physics", Data: "JUMP|5"})
	})
	assert.Equal(t, []domain.Command{{Name: "JUMP", Params: "5"}}, outbound.Snapshot())
	assert.Zero(t, dropped, "an enqueued command is not reported as dropped")
}

func TestRouter_PanickingDropHookIsContained(t *testing.T) {
	outbound := queue.New[domain.Command]()
	outbound.Close()
	r := NewRouter("physics", outbound, nil, domain.LifecycleHooks{
		OnDropped: func(context.Context, *domain.SignalEvent) { panic("hook") },
	})

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), domain.Signal{ComponentID: "physics", Data: "JUMP|5"})
	})
}
