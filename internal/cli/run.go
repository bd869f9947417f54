package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/presentation/tui"
	"github.com/aretw0/warden/pkg/config"
)

// ShutdownTimeout bounds how long Run waits for drivers to stop.
const ShutdownTimeout = 10 * time.Second

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config *config.Config
	Logger *slog.Logger
	// Out receives the banner and surfaced component messages.
	Out    io.Writer
	Banner bool
}

// Execute starts a host for opts.Config and blocks until ctx is cancelled
// or the control API fails, then shuts everything down.
func Execute(ctx context.Context, opts RunOptions) error {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Banner && opts.Out != nil {
		tui.PrintBanner(opts.Out, strings.TrimSpace(warden.Version))
	}

	host := NewHost(opts.Config, HostOptions{Logger: opts.Logger, Out: opts.Out})
	if err := host.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		opts.Logger.Info("Shutting down", "reason", context.Cause(ctx))
	case err := <-host.Errors():
		runErr = fmt.Errorf("control api: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := host.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
