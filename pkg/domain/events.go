package domain

import (
	"context"
	"time"
)

// EventType defines the category of a driver lifecycle event.
type EventType string

const (
	EventKickstart EventType = "kickstart"
	EventExit      EventType = "exit"
	EventResponse  EventType = "response"
	EventSignal    EventType = "signal"
	EventDropped   EventType = "dropped"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Driver    string    `json:"driver"`
}

// ProcessEvent describes a worker instance being started or exiting.
type ProcessEvent struct {
	EventBase
	InstanceID string `json:"instance_id"`
	PID        int    `json:"pid"`
	// Generation counts worker instances of the driver, starting at 1.
	Generation int    `json:"generation"`
	Err        error  `json:"-"`
}

// ResponseEvent describes a response handled by the dispatch loop.
type ResponseEvent struct {
	EventBase
	Response Response `json:"response"`
	Err      error    `json:"-"`
}

// SignalEvent describes a signal the router enqueued or dropped.
type SignalEvent struct {
	EventBase
	Signal Signal `json:"signal"`
	Err    error  `json:"-"`
}

// LifecycleHooks defines callbacks for driver observability.
// Hooks run on the goroutine that produced the event and must not block.
type LifecycleHooks struct {
	OnKickstart func(context.Context, *ProcessEvent)
	OnExit      func(context.Context, *ProcessEvent)
	OnResponse  func(context.Context, *ResponseEvent)
	OnSignal    func(context.Context, *SignalEvent)
	OnDropped   func(context.Context, *SignalEvent)
}

// CombineHooks returns hooks that call each of hooks in order.
func CombineHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnKickstart = chain(out.OnKickstart, h.OnKickstart)
		out.OnExit = chain(out.OnExit, h.OnExit)
		out.OnResponse = chain(out.OnResponse, h.OnResponse)
		out.OnSignal = chain(out.OnSignal, h.OnSignal)
		out.OnDropped = chain(out.OnDropped, h.OnDropped)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
