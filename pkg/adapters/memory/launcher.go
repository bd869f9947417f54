// Package memory runs components in-process, on goroutines joined to the
// owner by io.Pipe. Workers share the owner's address space, so it suits
// tests and embedded setups rather than fault isolation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/warden/pkg/component"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/google/uuid"
)

// ErrKilled is the exit error of a worker stopped with Kill.
var ErrKilled = errors.New("worker killed")

// DefaultGrace is how long Terminate waits before it kills the worker.
const DefaultGrace = 2 * time.Second

// Launcher implements ports.Launcher with in-process workers.
type Launcher struct {
	logger *slog.Logger
	grace  time.Duration
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the logger handed to workers.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithGrace sets the delay between Terminate and the forced kill.
func WithGrace(d time.Duration) Option {
	return func(l *Launcher) {
		l.grace = d
	}
}

// NewLauncher creates an in-process launcher.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		grace:  DefaultGrace,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.Launcher = (*Launcher)(nil)

// Launch starts spec.Component on a new goroutine.
// The worker does not inherit cancellation from ctx; stop it with Terminate or Kill.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	entry, err := component.Lookup(spec.Component)
	if err != nil {
		return nil, err
	}

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	p := &process{
		id:      uuid.NewString(),
		grace:   l.grace,
		cancel:  cancel,
		stdinR:  stdinR,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
		done:    make(chan struct{}),
	}
	logger := l.logger.With("driver", spec.Driver, "component", spec.Component, "instance", p.id)

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker panic: %v", r)
			}
			p.finish(err)
		}()
		err = component.Serve(wctx, entry, stdinR, stdoutW, logger)
	}()

	logger.Debug("Worker launched")
	return p, nil
}

type process struct {
	id     string
	grace  time.Duration
	cancel context.CancelFunc

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	mu     sync.Mutex
	killed bool
	err    error
	done   chan struct{}
}

func (p *process) ID() string { return p.id }
func (p *process) PID() int { return 0 }
func (p *process) Stdin() io.WriteCloser { return p.stdinW }
func (p *process) Stdout() io.ReadCloser { return p.stdoutR }
func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *process) Terminate() error {
	p.cancel()
	go func() {
		select {
		case <-p.done:
		case <-time.After(p.grace):
			_ = p.Kill()
		}
	}()
	return nil
}

func (p *process) Kill() error {
	p.mu.Lock()
	if !p.Alive() {
		p.mu.Unlock()
		return nil
	}
	p.killed = true
	p.mu.Unlock()

	p.cancel()
	p.closePipes()
	return nil
}

func (p *process) finish(err error) {
	p.closePipes()

	p.mu.Lock()
	switch {
	case p.killed:
		p.err = ErrKilled
	case errors.Is(err, context.Canceled):
		p.err = nil
	default:
		p.err = err
	}
	p.mu.Unlock()

	close(p.done)
}

// closePipes unblocks both the worker's frame loops and the owner's pumps.
func (p *process) closePipes() {
	_ = p.stdinR.CloseWithError(io.ErrClosedPipe)
	_ = p.stdoutW.Close()
}
