package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/queue"
	"github.com/aretw0/warden/pkg/wire"
)

// Supervisor owns the worker process of one driver. At most one worker
// instance is current; Kickstart replaces it.
type Supervisor struct {
	name      string
	component string
	env       map[string]string
	launcher  ports.Launcher
	channels  *Channels
	logger    *slog.Logger
	events    emitter

	// kick serializes Kickstart and Close.
	kick sync.Mutex
	// pump is held by the outbound pump from Peek until the command is acked
	// or known to be untaken, so two instances never hand out the same command.
	pump sync.Mutex

	mu       sync.RWMutex
	current  *instance
	gen      int
	lastExit error
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SupervisorConfig holds the dependencies of a Supervisor.
type SupervisorConfig struct {
	Name      string
	Component string
	Env       map[string]string
	Launcher  ports.Launcher
	Channels  *Channels
	Logger    *slog.Logger
	Hooks     domain.LifecycleHooks
}

// NewSupervisor creates a supervisor with no worker yet.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		name:      cfg.Name,
		component: cfg.Component,
		env:       cfg.Env,
		launcher:  cfg.Launcher,
		channels:  cfg.Channels,
		logger:    logger,
		events:    emitter{driver: cfg.Name, hooks: cfg.Hooks},
		ctx:       ctx,
		cancel:    cancel,
	}
}

type instance struct {
	proc       ports.Process
	generation int
	started    time.Time

	// stop ends this instance's outbound pump.
	stop context.CancelFunc
	// acks carries the worker's acks from the inbound to the outbound pump.
	acks chan struct{}
	// drained is closed once the worker's stdout is exhausted.
	drained chan struct{}
}

// Kickstart tears down the current worker, if any, and launches a new one
// bound to the same channel pair. The old worker is only asked to stop;
// Kickstart does not wait for it.
func (s *Supervisor) Kickstart(ctx context.Context) error {
	s.kick.Lock()
	defer s.kick.Unlock()

	if s.isClosed() {
		return domain.ErrDriverClosed
	}

	if old := s.currentInstance(); old != nil {
		s.retire(old)
	}

	proc, err := s.launcher.Launch(ctx, ports.LaunchSpec{
		Driver:    s.name,
		Component: s.component,
		Env:       s.env,
	})
	if err != nil {
		s.logger.Error("Failed to launch worker", "err", err)
		s.events.kickstart(s.ctx, nil, err)
		return fmt.Errorf("launch %s: %w", s.name, err)
	}

	pumpCtx, stop := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.gen++
	inst := &instance{
		proc:       proc,
		generation: s.gen,
		started:    time.Now(),
		stop:       stop,
		acks:       make(chan struct{}, 1),
		drained:    make(chan struct{}),
	}
	s.current = inst
	s.mu.Unlock()

	s.wg.Add(3)
	go s.pumpOutbound(pumpCtx, inst)
	go s.pumpInbound(inst)
	go s.watch(inst)

	s.logger.Info("Worker started", "instance", proc.ID(), "pid", proc.PID(), "generation", inst.generation)
	s.events.kickstart(s.ctx, inst, nil)
	return nil
}

// retire stops feeding inst and asks it to exit. Failures are not fatal.
func (s *Supervisor) retire(inst *instance) {
	inst.stop()
	// Unblocks a pump stuck writing to a worker that stopped reading.
	_ = inst.proc.Stdin().Close()
	if !inst.proc.Alive() {
		return
	}
	if err := inst.proc.Terminate(); err != nil {
		s.logger.Debug("Failed to terminate worker", "instance", inst.proc.ID(), "err", err)
	}
}

// pumpOutbound moves commands from the outbound queue to the worker's stdin,
// one at a time. A command leaves the queue only once the worker acked it.
func (s *Supervisor) pumpOutbound(ctx context.Context, inst *instance) {
	defer s.wg.Done()
	enc := wire.NewEncoder(inst.proc.Stdin())

	for {
		if !s.deliver(ctx, inst, enc) {
			return
		}
	}
}

func (s *Supervisor) deliver(ctx context.Context, inst *instance, enc *wire.Encoder) bool {
	s.pump.Lock()
	defer s.pump.Unlock()

	cmd, err := s.channels.Outbound.Peek(ctx)
	if err != nil {
		return false
	}
	// A newer instance may have been installed while we waited for the lock.
	if ctx.Err() != nil {
		return false
	}
	if err := enc.WriteCommand(cmd); err != nil {
		s.logger.Debug("Command left queued for next worker", "instance", inst.proc.ID(), "command", cmd.Name, "err", err)
		return false
	}

	// Retiring the instance does not end the wait: only the worker's own
	// output tells whether it took the command.
	select {
	case <-inst.acks:
		s.channels.Outbound.Shift()
		return true
	case <-inst.drained:
	case <-s.ctx.Done():
		return false
	}

	// Every ack written before stdout closed has been seen by now.
	select {
	case <-inst.acks:
		s.channels.Outbound.Shift()
	default:
		s.logger.Debug("Command left queued for next worker", "instance", inst.proc.ID(), "command", cmd.Name)
	}
	return false
}

// pumpInbound moves response frames from the worker's stdout to the inbound
// queue and acks to the outbound pump.
func (s *Supervisor) pumpInbound(inst *instance) {
	defer s.wg.Done()
	defer close(inst.drained)
	dec := wire.NewDecoder(inst.proc.Stdout())

	for {
		frame, err := dec.ReadFrame()
		if err != nil {
			var frameErr *wire.FrameError
			if errors.As(err, &frameErr) {
				s.logger.Warn("Skipping malformed response frame", "instance", inst.proc.ID(), "err", err)
				continue
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("Response stream closed", "instance", inst.proc.ID(), "err", err)
			}
			return
		}
		if frame.Ack {
			select {
			case inst.acks <- struct{}{}:
			default:
				s.logger.Warn("Unexpected ack", "instance", inst.proc.ID())
			}
			continue
		}
		if err := s.channels.Inbound.Push(frame.Response); err != nil {
			if !errors.Is(err, queue.ErrClosed) {
				s.logger.Error("Failed to queue response", "err", err)
			}
			return
		}
	}
}

// watch records the exit of inst.
func (s *Supervisor) watch(inst *instance) {
	defer s.wg.Done()
	<-inst.proc.Done()
	err := inst.proc.Err()

	s.mu.Lock()
	current := s.current == inst
	if current {
		s.lastExit = err
	}
	closed := s.closed
	s.mu.Unlock()

	if current && !closed {
		// Still current means nobody replaced it: a crash.
		s.logger.Warn("Worker exited", "instance", inst.proc.ID(), "pid", inst.proc.PID(), "err", err,
			"uptime", time.Since(inst.started).Round(time.Millisecond))
	} else {
		s.logger.Debug("Retired worker exited", "instance", inst.proc.ID(), "err", err)
	}
	s.events.exit(s.ctx, inst, err)
}

// Close stops the current worker and waits for its goroutines, bounded by ctx.
// A worker still running when ctx expires is killed.
func (s *Supervisor) Close(ctx context.Context) error {
	s.kick.Lock()
	defer s.kick.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	inst := s.current
	s.mu.Unlock()

	s.cancel()
	if inst != nil {
		s.retire(inst)
		select {
		case <-inst.proc.Done():
		case <-ctx.Done():
			_ = inst.proc.Kill()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close %s: %w", s.name, ctx.Err())
	}
}

// Alive reports whether the current worker is running.
func (s *Supervisor) Alive() bool {
	inst := s.currentInstance()
	return inst != nil && inst.proc.Alive()
}

// Pending returns the number of commands no worker has taken yet, including
// one that was written to the current worker but not acked.
func (s *Supervisor) Pending() int {
	return s.channels.Outbound.Len()
}

// State derives the driver state from the current worker.
func (s *Supervisor) State() domain.DriverState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.closed:
		return domain.StateStopped
	case s.current == nil:
		return domain.StateStarting
	case s.current.proc.Alive():
		return domain.StateRunning
	default:
		return domain.StateCrashed
	}
}

// Status snapshots the supervisor.
func (s *Supervisor) Status() domain.DriverStatus {
	st := domain.DriverStatus{
		Name:      s.name,
		Component: s.component,
		State:     s.State(),
		Pending:   s.Pending(),
	}

	s.mu.RLock()
	inst := s.current
	st.Generation = s.gen
	if s.gen > 1 {
		st.Restarts = s.gen - 1
	}
	if s.lastExit != nil {
		st.LastExit = s.lastExit.Error()
	}
	s.mu.RUnlock()

	if inst == nil {
		return st
	}
	st.InstanceID = inst.proc.ID()
	st.PID = inst.proc.PID()
	st.StartedAt = inst.started

	if provider, ok := inst.proc.(ports.StatsProvider); ok && inst.proc.Alive() {
		if stats, err := provider.Stats(); err == nil {
			st.RSS = stats.RSS
			st.CPUPercent = stats.CPUPercent
		}
	}
	return st
}

func (s *Supervisor) currentInstance() *instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Supervisor) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
