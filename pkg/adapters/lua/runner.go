// Package lua runs Callback responses as Lua functions.
//
// Scripts define functions on a global table named callbacks:
//
//	function callbacks.on_jump(height)
//	  warden.log("jumped " .. height)
//	  warden.signal("audio", "PLAY|jump.wav")
//	end
//
// A Callback("on_jump", "5") response calls callbacks.on_jump("5"). A
// callback that is not defined is skipped.
package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	lua "github.com/yuin/gopher-lua"
)

// ErrRunnerClosed is returned after Close.
var ErrRunnerClosed = errors.New("lua runner is closed")

// DefaultTable is the global table callbacks are looked up in.
const DefaultTable = "callbacks"

// Runner implements ports.ScriptRunner on a single Lua state.
// gopher-lua states are not goroutine-safe; calls are serialized.
type Runner struct {
	mu     sync.Mutex
	L      *lua.LState
	table  string
	logger *slog.Logger
	bus    ports.Publisher
	closed bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger behind warden.log and skipped callbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPublisher lets scripts emit signals with warden.signal(component, data).
func WithPublisher(p ports.Publisher) Option {
	return func(r *Runner) {
		r.bus = p
	}
}

// WithTable changes the global table callbacks are looked up in.
func WithTable(name string) Option {
	return func(r *Runner) {
		r.table = name
	}
}

// NewRunner creates a runner with a fresh, restricted Lua state.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		table:  DefaultTable,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	// No io, os, debug or package: callbacks cannot reach the host.
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	L.SetGlobal(r.table, L.NewTable())
	L.SetGlobal("warden", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"log":    r.luaLog,
		"signal": r.luaSignal,
	}))
	r.L = L
	return r
}

var _ ports.ScriptRunner = (*Runner)(nil)

// LoadFile executes a script file, typically to define callbacks.
func (r *Runner) LoadFile(path string) error {
	return r.do(func() error {
		if err := r.L.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	})
}

// LoadString executes a script chunk.
func (r *Runner) LoadString(src string) error {
	return r.do(func() error {
		return r.L.DoString(src)
	})
}

// RunScript calls callbacks.<name>(param).
func (r *Runner) RunScript(ctx context.Context, name, param string) error {
	return r.do(func() error {
		tbl, ok := r.L.GetGlobal(r.table).(*lua.LTable)
		if !ok {
			r.logger.Debug("No callback table", "table", r.table)
			return nil
		}
		fn, ok := r.L.GetField(tbl, name).(*lua.LFunction)
		if !ok {
			r.logger.Debug("Callback not defined", "callback", name)
			return nil
		}

		r.L.SetContext(ctx)
		defer r.L.RemoveContext()

		if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(param)); err != nil {
			return fmt.Errorf("callback %s: %w", name, err)
		}
		return nil
	})
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.L.Close()
	}
}

func (r *Runner) do(fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	return fn()
}

func (r *Runner) luaLog(L *lua.LState) int {
	r.logger.Info(L.CheckString(1), "source", "lua")
	return 0
}

func (r *Runner) luaSignal(L *lua.LState) int {
	component := L.CheckString(1)
	data := L.CheckString(2)
	if r.bus == nil {
		L.RaiseError("warden.signal: no publisher configured")
		return 0
	}
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sig := domain.Signal{Sender: "lua", ComponentID: component, Data: data}
	if err := r.bus.Publish(ctx, sig); err != nil {
		L.RaiseError("warden.signal: %s", err.Error())
	}
	return 0
}
