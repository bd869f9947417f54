package ports

import (
	"context"
	"time"
)

// NameLease guarantees that at most one supervisor drives a component name.
type NameLease interface {
	// Acquire claims name for ttl. It fails fast if another holder owns it.
	// The returned Lease must be renewed before ttl elapses and released on shutdown.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held claim on a name.
type Lease interface {
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}
