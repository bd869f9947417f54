package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel signals travel on.
const DefaultChannel = "warden:signals"

// Option configures a Bridge or a Publisher.
type Option func(*settings)

type settings struct {
	channel string
	logger  *slog.Logger
}

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(s *settings) {
		s.channel = channel
	}
}

// WithLogger sets the logger for malformed messages and delivery errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		channel: DefaultChannel,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Publisher sends signals to the Redis channel.
type Publisher struct {
	client  *backend.Client
	channel string
}

// NewPublisher creates a publisher from an existing client.
func NewPublisher(client *backend.Client, opts ...Option) *Publisher {
	s := newSettings(opts)
	return &Publisher{client: client, channel: s.channel}
}

var _ ports.Publisher = (*Publisher)(nil)

// Publish encodes sig as JSON and publishes it.
func (p *Publisher) Publish(ctx context.Context, sig domain.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis error publishing signal: %w", err)
	}
	return nil
}

// Bridge republishes signals from Redis onto a local bus.
type Bridge struct {
	client *backend.Client
	target ports.Publisher
	settings

	mu     sync.Mutex
	pubsub *backend.PubSub
	done   chan struct{}
}

// NewBridge creates a bridge delivering into target.
func NewBridge(client *backend.Client, target ports.Publisher, opts ...Option) *Bridge {
	return &Bridge{
		client:   client,
		target:   target,
		settings: newSettings(opts),
	}
}

// Start subscribes to the channel and begins forwarding. It returns once
// the subscription is confirmed, so signals published afterwards are not missed.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return fmt.Errorf("bridge already started on %s", b.channel)
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis error subscribing to %s: %w", b.channel, err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go b.forward(context.WithoutCancel(ctx), pubsub.Channel(), b.done)
	b.logger.Info("Signal bridge listening", "channel", b.channel)
	return nil
}

func (b *Bridge) forward(ctx context.Context, messages <-chan *backend.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var sig domain.Signal
		if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
			b.logger.Warn("Skipping malformed signal", "channel", msg.Channel, "err", err)
			continue
		}
		data, err := domain.SanitizeData(sig.Data)
		if err != nil {
			b.logger.Warn("Skipping rejected signal", "component_id", sig.ComponentID, "err", err)
			continue
		}
		sig.Data = data
		if err := b.target.Publish(ctx, sig); err != nil {
			b.logger.Error("Failed to republish signal", "component_id", sig.ComponentID, "err", err)
		}
	}
}

// Close unsubscribes and waits for the forwarding goroutine.
func (b *Bridge) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
