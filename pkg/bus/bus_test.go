package bus_test

import (
	"context"
	"testing"

	"github.com/aretw0/warden/pkg/bus"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Contract(t *testing.T) {
	ports.RunBusContract(t, func(t *testing.T) ports.Bus {
		b := bus.New()
		t.Cleanup(b.Close)
		return b
	})
}

func TestBus_SubscriptionDisposal(t *testing.T) {
	b := bus.New()

	// Creating and disposing many subscriptions must not accumulate handlers.
	for i := 0; i < 100; i++ {
		sub, err := b.Subscribe(func(context.Context, domain.Signal) {})
		require.NoError(t, err)
		require.NoError(t, sub.Close())
	}
	assert.Equal(t, 0, b.Len())
}

func TestBus_DeliveryOrder(t *testing.T) {
	b := bus.New()
	var order []int
	for i := 0; i < 3; i++ {
		_, err := b.Subscribe(func(context.Context, domain.Signal) { order = append(order, i) })
		require.NoError(t, err)
	}

	require.NoError(t, b.Publish(context.Background(), domain.Signal{ComponentID: "x"}))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_CloseDuringPublish(t *testing.T) {
	b := bus.New()
	var second ports.Subscription
	calls := 0

	_, err := b.Subscribe(func(context.Context, domain.Signal) {
		// The first handler disposes the second one mid-publish.
		_ = second.Close()
	})
	require.NoError(t, err)
	second, err = b.Subscribe(func(context.Context, domain.Signal) { calls++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), domain.Signal{ComponentID: "x"}))
	assert.Equal(t, 0, calls)
}

func TestBus_Closed(t *testing.T) {
	b := bus.New()
	b.Close()

	_, err := b.Subscribe(func(context.Context, domain.Signal) {})
	assert.ErrorIs(t, err, bus.ErrClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), domain.Signal{}), bus.ErrClosed)
}
