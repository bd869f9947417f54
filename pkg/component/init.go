package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
)

// Exit codes of a worker process.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUnknown = 2
)

// Init turns the current process into a worker if it was launched as one.
// It returns false in an ordinary process. In a worker it runs the selected
// component and exits, so it never returns true in practice; the result only
// documents intent at the call site.
func Init() bool {
	name := os.Getenv(domain.EnvComponent)
	if name == "" {
		return false
	}
	os.Exit(Main(name))
	return true
}

// Main runs the named component on os.Stdin/os.Stdout and returns an exit code.
func Main(name string) int {
	logger := logging.New(logging.LevelFromEnv()).With(
		"component", name,
		"driver", os.Getenv(domain.EnvDriver),
	)

	entry, err := Lookup(name)
	if err != nil {
		logger.Error("Cannot start worker", "err", err)
		return ExitUnknown
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("Worker started", "pid", os.Getpid())
	err = Serve(ctx, entry, os.Stdin, os.Stdout, logger)
	return exitCode(err, logger)
}

// ExitError asks the worker process to exit with a specific code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("worker exit %d", e.Code)
}

func exitCode(err error, logger *slog.Logger) int {
	var exit *ExitError
	switch {
	case errors.As(err, &exit):
		logger.Warn("Worker exiting", "code", exit.Code)
		return exit.Code
	case err == nil, errors.Is(err, context.Canceled):
		logger.Debug("Worker stopped")
		return ExitOK
	default:
		logger.Error("Worker failed", "err", err)
		return ExitFailure
	}
}
