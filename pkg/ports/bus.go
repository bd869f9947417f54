package ports

import (
	"context"

	"github.com/aretw0/warden/pkg/domain"
)

// SignalHandler receives every signal published on a bus.
// Handlers run on the publisher's goroutine: they must return quickly and
// should not panic (a bus isolates panics, but the signal is lost for that handler).
type SignalHandler func(ctx context.Context, sig domain.Signal)

// Subscription is a disposable registration on a Bus.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Close removes the handler from the bus. It is idempotent.
	Close() error
}

// Publisher emits signals.
type Publisher interface {
	Publish(ctx context.Context, sig domain.Signal) error
}

// Bus fans out signals to all subscribers.
type Bus interface {
	Publisher
	Subscribe(handler SignalHandler) (Subscription, error)
}
