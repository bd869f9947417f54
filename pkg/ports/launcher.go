package ports

import (
	"context"
	"io"
	"time"
)

// LaunchSpec describes one worker instance to start.
type LaunchSpec struct {
	// Driver is the owning driver name, used for logging and environment.
	Driver string

	// Component is the registered entry point the worker runs.
	Component string

	// Env holds extra environment variables for the worker.
	Env map[string]string
}

// Process is a handle on one running worker instance.
// Handles are replaced, never reused, across restarts.
type Process interface {
	// ID is unique per instance.
	ID() string

	// PID is the operating system process ID, or 0 for in-process workers.
	PID() int

	// Stdin carries command frames into the worker.
	Stdin() io.WriteCloser

	// Stdout carries response frames out of the worker.
	Stdout() io.ReadCloser

	// Alive reports whether the worker has not exited yet.
	Alive() bool

	// Done is closed when the worker exits.
	Done() <-chan struct{}

	// Err returns the exit error once Done is closed.
	Err() error

	// Terminate asks the worker to stop. It does not wait for the exit.
	Terminate() error

	// Kill stops the worker immediately. It does not wait for the exit.
	Kill() error
}

// Launcher starts worker instances.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// ProcessStats is a resource snapshot of a worker.
type ProcessStats struct {
	RSS        uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	SampledAt  time.Time `json:"sampled_at"`
}

// StatsProvider is implemented by processes that can report resource usage.
type StatsProvider interface {
	Stats() (ProcessStats, error)
}
