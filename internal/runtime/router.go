package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/queue"
	"github.com/aretw0/warden/pkg/wire"
)

// Router feeds signals addressed to one driver into its outbound queue.
// Handle runs on the publisher's goroutine: it never blocks and never panics.
type Router struct {
	name     string
	outbound *queue.Queue[domain.Command]
	logger   *slog.Logger
	events   emitter
}

// NewRouter creates a router for the driver called name.
func NewRouter(name string, outbound *queue.Queue[domain.Command], logger *slog.Logger, hooks domain.LifecycleHooks) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		name:     name,
		outbound: outbound,
		logger:   logger,
		events:   emitter{driver: name, hooks: hooks},
	}
}

// Handle is a ports.SignalHandler.
func (r *Router) Handle(ctx context.Context, sig domain.Signal) {
	if sig.ComponentID != r.name {
		return
	}
	if !r.enqueue(ctx, sig) {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Signal hook panicked", "driver", r.name, "err", p)
		}
	}()
	r.events.signal(ctx, sig)
}

// enqueue parses sig onto the outbound queue. Failures are logged, reported
// through OnDropped and swallowed.
func (r *Router) enqueue(ctx context.Context, sig domain.Signal) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.drop(ctx, sig, fmt.Errorf("route panic: %v", p))
			ok = false
		}
	}()

	cmd := domain.ParseCommand(sig.Data)
	if err := wire.CheckCommand(cmd); err != nil {
		r.drop(ctx, sig, err)
		return false
	}
	if err := r.outbound.Push(cmd); err != nil {
		r.drop(ctx, sig, fmt.Errorf("enqueue %s: %w", cmd.Name, err))
		return false
	}
	return true
}

func (r *Router) drop(ctx context.Context, sig domain.Signal, err error) {
	r.logger.Error("Dropped signal", "driver", r.name, "sender", sig.Sender, "err", err)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Drop hook panicked", "driver", r.name, "err", p)
		}
	}()
	r.events.dropped(ctx, sig, err)
}
