// Package builtin registers the components shipped with Warden.
//
// Import it for its side effects:
//
//	import _ "github.com/aretw0/warden/pkg/component/builtin"
package builtin

import (
	"context"
	"strconv"
	"strings"

	"github.com/aretw0/warden/pkg/component"
	"github.com/aretw0/warden/pkg/domain"
)

const (
	// Echo answers every command with Callback(command.Name, command.Params).
	Echo = "echo"

	// Faulty behaves like Echo but can be told to misbehave:
	//
	//	ERROR|msg   emits Error(msg)
	//	CRASH|code  stops the worker with exit code (default 3)
	Faulty = "faulty"
)

// CrashExitCode is the default exit code of a Faulty CRASH command.
const CrashExitCode = 3

func init() {
	component.Register(Echo, RunEcho)
	component.Register(Faulty, RunFaulty)
}

// RunEcho is the Echo entry point.
func RunEcho(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
	return loop(ctx, in, out, func(cmd domain.Command) (domain.Response, error) {
		return domain.Callback(cmd.Name, cmd.Params), nil
	})
}

// RunFaulty is the Faulty entry point.
func RunFaulty(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
	return loop(ctx, in, out, func(cmd domain.Command) (domain.Response, error) {
		switch strings.ToUpper(cmd.Name) {
		case "ERROR":
			return domain.Failure(cmd.Params), nil
		case "CRASH":
			code := CrashExitCode
			if n, err := strconv.Atoi(cmd.Params); err == nil {
				code = n
			}
			return domain.Response{}, &component.ExitError{Code: code}
		}
		return domain.Callback(cmd.Name, cmd.Params), nil
	})
}

func loop(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response, handle func(domain.Command) (domain.Response, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			resp, err := handle(cmd)
			if err != nil {
				return err
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
