// Package process launches components as child processes of the current
// executable. The child is the same binary re-executed with WARDEN_COMPONENT
// set; component.Init at the top of main turns it into the worker.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/google/uuid"
)

// DefaultGrace is how long Terminate waits before it kills the worker.
const DefaultGrace = 5 * time.Second

// Launcher implements ports.Launcher by re-executing a binary.
type Launcher struct {
	logger     *slog.Logger
	executable string
	args       []string
	dir        string
	grace      time.Duration
}

// Option configures the launcher.
type Option func(*Launcher)

// WithLogger sets the logger worker stderr is forwarded to.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithExecutable overrides the binary to launch. The default is os.Executable.
func WithExecutable(path string, args ...string) Option {
	return func(l *Launcher) {
		l.executable = path
		l.args = args
	}
}

// WithBaseDir sets the working directory of workers.
func WithBaseDir(dir string) Option {
	return func(l *Launcher) {
		l.dir = dir
	}
}

// WithGrace sets the delay between Terminate and the forced kill.
func WithGrace(d time.Duration) Option {
	return func(l *Launcher) {
		l.grace = d
	}
}

// NewLauncher creates a new process launcher.
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

// Launch starts a worker process running spec.Component.
// The component name is only resolved inside the child; an unknown name
// shows up as an exit with a non-zero status.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	if spec.Component == "" {
		return nil, fmt.Errorf("%w: empty name", domain.ErrUnknownComponent)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exe := l.executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		exe = self
	}

	// Not CommandContext: a worker outlives the Launch call.
	cmd := exec.Command(exe, l.args...)
	cmd.Dir = l.dir
	cmd.Env = append(cmd.Environ(), environment(spec)...)
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// Plain os.Pipe for output: Wait must not close the read ends while the
	// owner is still draining buffered frames.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	// The child holds its own copies now.
	stdoutW.Close()
	stderrW.Close()

	p := &process{
		id:      uuid.NewString(),
		cmd:     cmd,
		grace:   l.grace,
		stdin:   stdin,
		stdout:  stdoutR,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	logger := l.logger.With("driver", spec.Driver, "component", spec.Component, "instance", p.id, "pid", p.PID())

	go forward(stderrR, logger)
	go p.wait(logger)

	logger.Debug("Worker launched")
	return p, nil
}

func environment(spec ports.LaunchSpec) []string {
	env := []string{
		domain.EnvComponent + "=" + spec.Component,
		domain.EnvDriver + "=" + spec.Driver,
	}
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		env = append(env, k+"="+spec.Env[k])
	}
	return env
}

// forward copies worker stderr lines into the owner's log.
func forward(r io.ReadCloser, logger *slog.Logger) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Info(scanner.Text(), "stream", "stderr")
	}
}

type process struct {
	id      string
	cmd     *exec.Cmd
	grace   time.Duration
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	started time.Time

	mu   sync.RWMutex
	err  error
	done chan struct{}
}

func (p *process) ID() string { return p.id }

func (p *process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) Stdin() io.WriteCloser { return p.stdin }

func (p *process) Stdout() io.ReadCloser { return p.stdout }

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
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Terminate asks the worker to stop and kills it if it is still around
// after the grace period.
func (p *process) Terminate() error {
	if !p.Alive() {
		return nil
	}
	if err := terminate(p.cmd.Process); err != nil {
		return p.Kill()
	}
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
	if !p.Alive() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && p.Alive() {
		return fmt.Errorf("kill worker %d: %w", p.PID(), err)
	}
	return nil
}

func (p *process) wait(logger *slog.Logger) {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)

	if err != nil {
		logger.Debug("Worker exited", "err", err, "uptime", time.Since(p.started))
		return
	}
	logger.Debug("Worker exited", "uptime", time.Since(p.started))
}
