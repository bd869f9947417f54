package warden_test

import (
	"context"
	"os"
	"testing"

	"github.com/aretw0/warden/pkg/component"
	_ "github.com/aretw0/warden/pkg/component/builtin"
	"github.com/aretw0/warden/pkg/domain"
)

// holdComponent echoes commands, except HOLD: it keeps that one and takes
// nothing more until it is stopped.
const holdComponent = "test-hold"

func TestMain(m *testing.M) {
	component.Register(holdComponent, func(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd, ok := <-in:
				if !ok {
					return nil
				}
				if cmd.Name == "HOLD" {
					<-ctx.Done()
					return ctx.Err()
				}
				out <- domain.Callback(cmd.Name, cmd.Params)
			}
		}
	})
	// Worker processes are this test binary, re-executed.
	component.Init()
	os.Exit(m.Run())
}
