package runtime

import (
	"context"
	"time"

	"github.com/aretw0/warden/pkg/domain"
)

// emitter stamps and delivers lifecycle events, skipping unset hooks.
type emitter struct {
	driver string
	hooks  domain.LifecycleHooks
}

func (e emitter) base(typ domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: typ, Driver: e.driver}
}

func (e emitter) kickstart(ctx context.Context, inst *instance, err error) {
	if e.hooks.OnKickstart == nil {
		return
	}
	ev := &domain.ProcessEvent{EventBase: e.base(domain.EventKickstart), Err: err}
	if inst != nil {
		ev.InstanceID, ev.PID, ev.Generation = inst.proc.ID(), inst.proc.PID(), inst.generation
	}
	e.hooks.OnKickstart(ctx, ev)
}

func (e emitter) exit(ctx context.Context, inst *instance, err error) {
	if e.hooks.OnExit == nil {
		return
	}
	e.hooks.OnExit(ctx, &domain.ProcessEvent{
		EventBase:  e.base(domain.EventExit),
		InstanceID: inst.proc.ID(),
		PID:        inst.proc.PID(),
		Generation: inst.generation,
		Err:        err,
	})
}

func (e emitter) response(ctx context.Context, resp domain.Response, err error) {
	if e.hooks.OnResponse == nil {
		return
	}
	e.hooks.OnResponse(ctx, &domain.ResponseEvent{EventBase: e.base(domain.EventResponse), Response: resp, Err: err})
}

func (e emitter) signal(ctx context.Context, sig domain.Signal) {
	if e.hooks.OnSignal == nil {
		return
	}
	e.hooks.OnSignal(ctx, &domain.SignalEvent{EventBase: e.base(domain.EventSignal), Signal: sig})
}

func (e emitter) dropped(ctx context.Context, sig domain.Signal, err error) {
	if e.hooks.OnDropped == nil {
		return
	}
	e.hooks.OnDropped(ctx, &domain.SignalEvent{EventBase: e.base(domain.EventDropped), Signal: sig, Err: err})
}
