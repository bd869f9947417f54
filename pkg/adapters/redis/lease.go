package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/warden/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLeaseHeld is returned when another holder owns the name.
	ErrLeaseHeld = errors.New("name lease held by another supervisor")
	// ErrLeaseLost is returned when a lease expired or was taken over.
	ErrLeaseLost = errors.New("name lease lost")
)

// DefaultLeasePrefix namespaces lease keys.
const DefaultLeasePrefix = "warden:lease:"

// Scripts compare the stored token so a holder never touches someone else's key.
var (
	renewScript = backend.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	releaseScript = backend.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
)

// Leaser implements ports.NameLease using Redis.
type Leaser struct {
	client *backend.Client
	prefix string
}

// LeaseOption configures a Leaser.
type LeaseOption func(*Leaser)

// WithLeasePrefix sets the key prefix for leases.
func WithLeasePrefix(prefix string) LeaseOption {
	return func(l *Leaser) {
		l.prefix = prefix
	}
}

// NewLeaser creates a new Redis leaser from an existing client.
func NewLeaser(client *backend.Client, opts ...LeaseOption) *Leaser {
	l := &Leaser{
		client: client,
		prefix: DefaultLeasePrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.NameLease = (*Leaser)(nil)

// Acquire claims name for ttl. It does not wait for a current holder.
func (l *Leaser) Acquire(ctx context.Context, name string, ttl time.Duration) (ports.Lease, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lease: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, name)
	}
	return &lease{client: l.client, key: key, token: token, ttl: ttl}, nil
}

type lease struct {
	client *backend.Client
	key    string
	token  string
	ttl    time.Duration
}

func (l *lease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis error renewing lease: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseLost, l.key)
	}
	return nil
}

func (l *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redis error releasing lease: %w", err)
	}
	return nil
}
