// Package bus is the in-process implementation of ports.Bus.
//
// Publish delivers synchronously, in subscription order, on the caller's
// goroutine. A handler that panics is recovered and logged so the remaining
// subscribers still receive the signal.
package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/google/uuid"
)

// ErrClosed is returned by a bus after Close.
var ErrClosed = errors.New("bus closed")

// Bus fans out signals to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report recovered handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ ports.Bus = (*Bus)(nil)

var defaultBus = New()

// Default returns the process-wide bus drivers subscribe to unless told otherwise.
func Default() *Bus {
	return defaultBus
}

// Subscribe registers handler until the returned subscription is closed.
func (b *Bus) Subscribe(handler ports.SignalHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, errors.New("bus: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &subscription{id: uuid.NewString(), handler: handler, bus: b}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Publish delivers sig to every active subscriber.
func (b *Bus) Publish(ctx context.Context, sig domain.Signal) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.cancelled.Load() {
			continue
		}
		b.deliver(ctx, sub, sig)
	}
	return nil
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscriptions and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.cancelled.Store(true)
	}
	b.subs = nil
	b.closed = true
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, sig domain.Signal) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Signal handler panicked",
				"subscription", sub.id,
				"component_id", sig.ComponentID,
				"panic", r,
			)
		}
	}()
	sub.handler(ctx, sig)
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

type subscription struct {
	id        string
	handler   ports.SignalHandler
	bus       *Bus
	cancelled atomic.Bool
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) Close() error {
	if s.cancelled.Swap(true) {
		return nil
	}
	s.bus.remove(s)
	return nil
}
