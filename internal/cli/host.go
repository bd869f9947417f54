package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/presentation/tui"
	httpadapter "github.com/aretw0/warden/pkg/adapters/http"
	"github.com/aretw0/warden/pkg/adapters/lua"
	redisadapter "github.com/aretw0/warden/pkg/adapters/redis"
	"github.com/aretw0/warden/pkg/bus"
	"github.com/aretw0/warden/pkg/config"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/observability"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/registry"
	backend "github.com/redis/go-redis/v9"
)

// DefaultLeaseTTL is used when the name lease is enabled without a TTL.
const DefaultLeaseTTL = 10 * time.Second

// HostOptions tunes how a Host is assembled.
type HostOptions struct {
	Logger *slog.Logger
	// Out receives messages surfaced by components. Defaults to os.Stdout.
	Out io.Writer
	// Launcher overrides the process launcher (tests run workers in-process).
	Launcher ports.Launcher
	// DisableHTTP skips the control API even when an address is configured.
	DisableHTTP bool
}

// Host owns every driver of a configuration and the services around them.
type Host struct {
	cfg    *config.Config
	opts   HostOptions
	logger *slog.Logger

	bus      *bus.Bus
	registry *registry.Registry
	metrics  *observability.Metrics
	streams  *httpadapter.StreamManager
	scripts  *lua.Runner

	redis  *backend.Client
	bridge *redisadapter.Bridge

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

// NewHost prepares a host for cfg. Nothing runs until Start.
func NewHost(cfg *config.Config, opts HostOptions) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Host{
		cfg:      cfg,
		opts:     opts,
		logger:   opts.Logger,
		bus:      bus.New(bus.WithLogger(opts.Logger)),
		registry: registry.NewRegistry(),
		metrics:  observability.NewMetrics(observability.WithRuntimeCollectors()),
		streams:  httpadapter.NewStreamManager(opts.Logger),
		serveErr: make(chan error, 1),
	}
}

// Registry exposes the running drivers.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Bus is the host's signal bus.
func (h *Host) Bus() *bus.Bus { return h.bus }

// Metrics is the host's collector set.
func (h *Host) Metrics() *observability.Metrics { return h.metrics }

// HTTPAddr returns the bound control API address, or "" when disabled.
func (h *Host) HTTPAddr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Errors reports a control API failure after Start.
func (h *Host) Errors() <-chan error { return h.serveErr }

// Start brings up every service and driver. On error, whatever was started is shut down.
func (h *Host) Start(ctx context.Context) error {
	if err := h.start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(shutdownCtx)
		return err
	}
	return nil
}

func (h *Host) start(ctx context.Context) error {
	if err := h.cfg.CheckComponents(); err != nil {
		return err
	}

	if paths := h.cfg.ScriptPaths(); len(paths) > 0 {
		h.scripts = lua.NewRunner(lua.WithLogger(h.logger), lua.WithPublisher(h.bus))
		for _, p := range paths {
			if err := h.scripts.LoadFile(p); err != nil {
				return err
			}
			h.logger.Debug("Loaded script", "path", p)
		}
	}

	var leaser ports.NameLease
	if h.cfg.Redis.Addr != "" {
		h.redis = backend.NewClient(&backend.Options{Addr: h.cfg.Redis.Addr})
		if err := h.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis error connecting to %s: %w", h.cfg.Redis.Addr, err)
		}

		var bridgeOpts []redisadapter.Option
		bridgeOpts = append(bridgeOpts, redisadapter.WithLogger(h.logger))
		if h.cfg.Redis.Channel != "" {
			bridgeOpts = append(bridgeOpts, redisadapter.WithChannel(h.cfg.Redis.Channel))
		}
		h.bridge = redisadapter.NewBridge(h.redis, h.bus, bridgeOpts...)
		if err := h.bridge.Start(ctx); err != nil {
			return err
		}
		if h.cfg.Redis.Lock {
			leaser = redisadapter.NewLeaser(h.redis)
		}
	}

	notifier := tui.NewNotifier(h.opts.Out)
	hooks := domain.CombineHooks(h.metrics.Hooks(), h.streams.Hooks())

	for _, dc := range h.cfg.Drivers {
		opts := []warden.Option{
			warden.WithLogger(h.logger),
			warden.WithBus(h.bus),
			warden.WithNotifier(notifier),
			warden.WithKeepAlive(dc.KeepAlive),
			warden.WithHooks(hooks),
			warden.WithEnv(dc.Env),
		}
		if h.scripts != nil {
			opts = append(opts, warden.WithScriptRunner(h.scripts))
		}
		if h.opts.Launcher != nil {
			opts = append(opts, warden.WithLauncher(h.opts.Launcher))
		}
		if leaser != nil {
			ttl := h.cfg.Redis.LeaseTTL
			if ttl <= 0 {
				ttl = DefaultLeaseTTL
			}
			opts = append(opts, warden.WithNameLease(leaser, ttl))
		}

		d, err := warden.New(dc.Name, dc.Component, opts...)
		if err != nil {
			return fmt.Errorf("start driver %s: %w", dc.Name, err)
		}
		if err := h.registry.Register(d); err != nil {
			_ = d.Close(ctx)
			return err
		}
	}

	if h.cfg.HTTP.Addr != "" && !h.opts.DisableHTTP {
		if err := h.serveHTTP(); err != nil {
			return err
		}
	}

	h.logger.Info("Host started", "drivers", len(h.cfg.Drivers), "http", h.HTTPAddr())
	return nil
}

func (h *Host) serveHTTP() error {
	ln, err := net.Listen("tcp", h.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.cfg.HTTP.Addr, err)
	}
	h.listener = ln

	handler := httpadapter.NewHandler(h.registry, h.bus,
		httpadapter.WithMetrics(h.metrics.Handler()),
		httpadapter.WithStreams(h.streams),
		httpadapter.WithLogger(h.logger),
	)
	h.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := h.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.serveErr <- err
		}
	}()
	return nil
}

// Shutdown stops the control API, closes all drivers and releases the
// Redis and Lua resources. ctx bounds the whole sequence.
func (h *Host) Shutdown(ctx context.Context) error {
	var errs []error

	if h.httpServer != nil {
		h.streams.Close()
		if err := h.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if h.bridge != nil {
		if err := h.bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.registry.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if h.scripts != nil {
		h.scripts.Close()
	}
	if h.redis != nil {
		if err := h.redis.Close(); err != nil {
			errs = append(errs, err)
		}
		h.redis = nil
	}
	h.bus.Close()
	return errors.Join(errs...)
}
