package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/queue"
)

// ErrorMessage renders the text surfaced for an Error response.
func ErrorMessage(driver, message string) string {
	return fmt.Sprintf("Error in %s component: %s", driver, message)
}

// Dispatcher turns worker responses into host actions.
type Dispatcher struct {
	name     string
	inbound  *queue.Queue[domain.Response]
	scripts  ports.ScriptRunner
	notifier ports.Notifier
	logger   *slog.Logger
	events   emitter
}

// DispatcherConfig holds the dependencies of a Dispatcher.
type DispatcherConfig struct {
	Name     string
	Inbound  *queue.Queue[domain.Response]
	Scripts  ports.ScriptRunner
	Notifier ports.Notifier
	Logger   *slog.Logger
	Hooks    domain.LifecycleHooks
}

// NewDispatcher creates a dispatcher. Nil capabilities fall back to
// logging what would have been done.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		name:     cfg.Name,
		inbound:  cfg.Inbound,
		scripts:  cfg.Scripts,
		notifier: cfg.Notifier,
		logger:   logger,
		events:   emitter{driver: cfg.Name, hooks: cfg.Hooks},
	}
	if d.scripts == nil {
		d.scripts = ports.ScriptFunc(func(_ context.Context, name, param string) error {
			logger.Debug("No script runner for callback", "callback", name, "param", param)
			return nil
		})
	}
	if d.notifier == nil {
		d.notifier = ports.NotifyFunc(func(_ context.Context, text string) error {
			logger.Error(text)
			return nil
		})
	}
	return d
}

// Run dispatches responses until ctx is done or the inbound queue is
// closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		resp, err := d.inbound.Pop(ctx)
		if err != nil {
			return
		}
		err = d.Dispatch(ctx, resp)
		if err != nil {
			// Skipped, the loop keeps going.
			d.logger.Error("Failed to dispatch response", "kind", resp.Kind.String(), "err", err)
		}
		d.events.response(ctx, resp, err)
	}
}

// Dispatch handles a single response. A panicking capability is reported as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, resp domain.Response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	switch resp.Kind {
	case domain.KindCallback:
		if err := d.scripts.RunScript(ctx, resp.Name, resp.Param); err != nil {
			return fmt.Errorf("callback %s: %w", resp.Name, err)
		}
		return nil
	case domain.KindError:
		if err := d.notifier.ShowMessage(ctx, ErrorMessage(d.name, resp.Message)); err != nil {
			return fmt.Errorf("show message: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", domain.ErrUnknownResponseKind, int(resp.Kind))
	}
}
