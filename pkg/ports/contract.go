package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBusContract runs a suite of tests to verify that a Bus implementation
// adheres to the defined interface contract. newBus must return a fresh bus.
// Delivery may be asynchronous, so assertions poll.
func RunBusContract(t *testing.T, newBus func(t *testing.T) Bus) {
	ctx := context.Background()

	t.Run("Fan Out", func(t *testing.T) {
		bus := newBus(t)
		a, b := &recorder{}, &recorder{}

		subA, err := bus.Subscribe(a.handle)
		require.NoError(t, err)
		defer subA.Close()
		subB, err := bus.Subscribe(b.handle)
		require.NoError(t, err)
		defer subB.Close()
		assert.NotEqual(t, subA.ID(), subB.ID())

		sig := domain.Signal{Sender: "test", ComponentID: "physics", Data: "JUMP|5"}
		require.NoError(t, bus.Publish(ctx, sig))

		require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, sig, a.last())
		assert.Equal(t, sig, b.last())
	})

	t.Run("Close Stops Delivery", func(t *testing.T) {
		bus := newBus(t)
		kept, dropped := &recorder{}, &recorder{}

		subKept, err := bus.Subscribe(kept.handle)
		require.NoError(t, err)
		defer subKept.Close()
		subDropped, err := bus.Subscribe(dropped.handle)
		require.NoError(t, err)

		require.NoError(t, subDropped.Close())
		require.NoError(t, subDropped.Close(), "Close must be idempotent")

		require.NoError(t, bus.Publish(ctx, domain.Signal{ComponentID: "x", Data: "A"}))
		require.Eventually(t, func() bool { return kept.count() == 1 }, 2*time.Second, 10*time.Millisecond)

		// Give a straggling delivery a chance to show up.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, dropped.count())
	})

	t.Run("Panicking Handler Is Isolated", func(t *testing.T) {
		bus := newBus(t)
		healthy := &recorder{}

		bad, err := bus.Subscribe(func(context.Context, domain.Signal) { panic("boom") })
		require.NoError(t, err)
		defer bad.Close()
		good, err := bus.Subscribe(healthy.handle)
		require.NoError(t, err)
		defer good.Close()

		require.NotPanics(t, func() {
			_ = bus.Publish(ctx, domain.Signal{ComponentID: "x", Data: "A"})
		})
		require.Eventually(t, func() bool { return healthy.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	})
}

type recorder struct {
	mu   sync.Mutex
	sigs []domain.Signal
}

func (r *recorder) handle(_ context.Context, sig domain.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sigs)
}

func (r *recorder) last() domain.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sigs) == 0 {
		return domain.Signal{}
	}
	return r.sigs[len(r.sigs)-1]
}
