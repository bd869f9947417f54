package warden

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/warden/internal/runtime"
	"github.com/aretw0/warden/pkg/adapters/process"
	"github.com/aretw0/warden/pkg/bus"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/observability"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/wire"
)

// Driver supervises one component.
type Driver struct {
	name      string
	component string

	bus      ports.Bus
	launcher ports.Launcher
	scripts  ports.ScriptRunner
	notifier ports.Notifier
	policy   domain.KeepAlivePolicy
	hooks    []domain.LifecycleHooks
	env      map[string]string
	logger   *slog.Logger

	leaser   ports.NameLease
	leaseTTL time.Duration
	lease    ports.Lease

	channels   *runtime.Channels
	supervisor *runtime.Supervisor
	sub        ports.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Option defines a functional option for configuring a Driver.
type Option func(*Driver)

// WithLogger sets a custom structured logger. It is enriched with the driver name.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithBus subscribes the driver to b instead of bus.Default().
func WithBus(b ports.Bus) Option {
	return func(d *Driver) {
		d.bus = b
	}
}

// WithLauncher replaces the default re-exec process launcher.
func WithLauncher(l ports.Launcher) Option {
	return func(d *Driver) {
		d.launcher = l
	}
}

// WithScriptRunner sets the capability Callback responses are handed to.
func WithScriptRunner(r ports.ScriptRunner) Option {
	return func(d *Driver) {
		d.scripts = r
	}
}

// WithNotifier sets the capability Error responses are shown through.
func WithNotifier(n ports.Notifier) Option {
	return func(d *Driver) {
		d.notifier = n
	}
}

// WithKeepAlive sets the restart policy. The zero policy never restarts.
func WithKeepAlive(policy domain.KeepAlivePolicy) Option {
	return func(d *Driver) {
		d.policy = policy
	}
}

// WithHooks registers observability hooks. It may be given more than once.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Driver) {
		d.hooks = append(d.hooks, hooks)
	}
}

// WithMetrics records the driver's lifecycle into m.
func WithMetrics(m *observability.Metrics) Option {
	return WithHooks(m.Hooks())
}

// WithEnv adds environment variables to every worker.
func WithEnv(env map[string]string) Option {
	return func(d *Driver) {
		d.env = env
	}
}

// WithNameLease claims the driver name through l for the driver's lifetime,
// so a second supervisor of the same name fails to start.
func WithNameLease(l ports.NameLease, ttl time.Duration) Option {
	return func(d *Driver) {
		d.leaser = l
		d.leaseTTL = ttl
	}
}

// New creates a driver for component and launches its first worker.
// name is the routing key: signals whose ComponentID equals name reach it.
func New(name, component string, opts ...Option) (*Driver, error) {
	if name == "" {
		return nil, errors.New("driver name is required")
	}
	if component == "" {
		return nil, fmt.Errorf("%w: empty name", domain.ErrUnknownComponent)
	}

	d := &Driver{name: name, component: component}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("driver", name)
	if d.bus == nil {
		d.bus = bus.Default()
	}
	if d.launcher == nil {
		d.launcher = process.NewLauncher(process.WithLogger(d.logger))
	}
	if d.leaseTTL <= 0 {
		d.leaseTTL = 10 * time.Second
	}
	hooks := domain.CombineHooks(d.hooks...)

	d.ctx, d.cancel = context.WithCancel(context.Background())

	if d.leaser != nil {
		lease, err := d.leaser.Acquire(d.ctx, name, d.leaseTTL)
		if err != nil {
			d.cancel()
			return nil, fmt.Errorf("claim %s: %w", name, err)
		}
		d.lease = lease
	}

	d.channels = runtime.NewChannels()
	d.supervisor = runtime.NewSupervisor(runtime.SupervisorConfig{
		Name:      name,
		Component: component,
		Env:       d.env,
		Launcher:  d.launcher,
		Channels:  d.channels,
		Logger:    d.logger,
		Hooks:     hooks,
	})
	dispatcher := runtime.NewDispatcher(runtime.DispatcherConfig{
		Name:     name,
		Inbound:  d.channels.Inbound,
		Scripts:  d.scripts,
		Notifier: d.notifier,
		Logger:   d.logger,
		Hooks:    hooks,
	})
	router := runtime.NewRouter(name, d.channels.Outbound, d.logger, hooks)

	sub, err := d.bus.Subscribe(router.Handle)
	if err != nil {
		d.abort()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	d.sub = sub

	if err := d.supervisor.Kickstart(d.ctx); err != nil {
		d.abort()
		return nil, err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		dispatcher.Run(d.ctx)
	}()

	if d.policy.Enabled() {
		monitor := runtime.NewMonitor(d.policy, d.supervisor, d.logger)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			monitor.Run(d.ctx)
		}()
	}

	if d.lease != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.renewLease()
		}()
	}

	d.logger.Info("Driver started", "component", component, "keepalive", d.policy.Enabled())
	return d, nil
}

// abort undoes a partially constructed driver.
func (d *Driver) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.Close(ctx)
}

func (d *Driver) renewLease() {
	ticker := time.NewTicker(d.leaseTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.lease.Renew(d.ctx); err != nil && d.ctx.Err() == nil {
				d.logger.Error("Failed to renew name lease", "err", err)
			}
		}
	}
}

// Name returns the routing key of the driver.
func (d *Driver) Name() string { return d.name }

// Component returns the entry point the worker runs.
func (d *Driver) Component() string { return d.component }

// Kickstart replaces the current worker with a fresh one.
func (d *Driver) Kickstart(ctx context.Context) error {
	return d.supervisor.Kickstart(ctx)
}

// Alive reports whether the current worker is running.
func (d *Driver) Alive() bool {
	return d.supervisor.Alive()
}

// State returns the lifecycle state of the driver.
func (d *Driver) State() domain.DriverState {
	return d.supervisor.State()
}

// Status snapshots the driver.
func (d *Driver) Status() domain.DriverStatus {
	return d.supervisor.Status()
}

// Pending returns the commands no worker has taken yet.
func (d *Driver) Pending() []domain.Command {
	return d.channels.Outbound.Snapshot()
}

// Send queues cmd for the worker without going through the bus.
// Commands too large for a single frame are rejected.
func (d *Driver) Send(cmd domain.Command) error {
	if err := wire.CheckCommand(cmd); err != nil {
		return err
	}
	if err := d.channels.Outbound.Push(cmd); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrDriverClosed, d.name)
	}
	return nil
}

// Close shuts the driver down: it drops the bus subscription, stops the
// dispatch and keepalive loops, terminates the worker, closes the channel
// pair and waits for its goroutines. ctx bounds the wait. Close is
// idempotent; later calls return the first result.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		var errs []error

		if d.sub != nil {
			if err := d.sub.Close(); err != nil {
				errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
			}
		}
		d.cancel()
		if d.supervisor != nil {
			if err := d.supervisor.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if d.channels != nil {
			d.channels.Close()
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for %s loops: %w", d.name, ctx.Err()))
		}

		if d.lease != nil {
			if err := d.lease.Release(context.WithoutCancel(ctx)); err != nil {
				errs = append(errs, fmt.Errorf("release lease: %w", err))
			}
		}

		d.closeErr = errors.Join(errs...)
		d.logger.Info("Driver stopped")
	})
	return d.closeErr
}
