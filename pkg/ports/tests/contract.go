package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LauncherContractTest is a reusable test suite that verifies if an adapter complies with ports.Launcher.
// echoComponent must name a registered entry point that answers every command
// with Callback(command.Name, command.Params).
func LauncherContractTest(t *testing.T, launcher ports.Launcher, echoComponent string) {
	t.Helper()

	// 1. Round trip through a live worker
	t.Run("Launch_RoundTrip", func(t *testing.T) {
		proc, err := launcher.Launch(context.Background(), ports.LaunchSpec{Driver: "contract", Component: echoComponent})
		require.NoError(t, err)
		defer proc.Kill()

		assert.NotEmpty(t, proc.ID())
		assert.True(t, proc.Alive())

		require.NoError(t, wire.NewEncoder(proc.Stdin()).WriteCommand(domain.Command{Name: "PING", Params: "a|b"}))

		got := make(chan domain.Response, 1)
		go func() {
			resp, err := wire.NewDecoder(proc.Stdout()).ReadResponse()
			if err == nil {
				got <- resp
			}
		}()

		select {
		case resp := <-got:
			assert.Equal(t, domain.Callback("PING", "a|b"), resp)
		case <-time.After(10 * time.Second):
			t.Fatal("no response from worker")
		}
	})

	// 2. Terminate ends the worker
	t.Run("Terminate", func(t *testing.T) {
		proc, err := launcher.Launch(context.Background(), ports.LaunchSpec{Driver: "contract", Component: echoComponent})
		require.NoError(t, err)

		require.NoError(t, proc.Terminate())
		select {
		case <-proc.Done():
		case <-time.After(10 * time.Second):
			_ = proc.Kill()
			t.Fatal("worker did not exit after Terminate")
		}
		assert.False(t, proc.Alive())
	})

	// 3. Distinct instances
	t.Run("Instances_Are_Distinct", func(t *testing.T) {
		a, err := launcher.Launch(context.Background(), ports.LaunchSpec{Driver: "a", Component: echoComponent})
		require.NoError(t, err)
		defer a.Kill()
		b, err := launcher.Launch(context.Background(), ports.LaunchSpec{Driver: "b", Component: echoComponent})
		require.NoError(t, err)
		defer b.Kill()

		assert.NotEqual(t, a.ID(), b.ID())
	})

	// 4. Unknown component
	t.Run("Unknown_Component", func(t *testing.T) {
		proc, err := launcher.Launch(context.Background(), ports.LaunchSpec{Driver: "x", Component: "no-such-component"})
		if err != nil {
			return
		}
		// Launchers that only discover the problem inside the worker must still report an exit.
		select {
		case <-proc.Done():
			assert.Error(t, proc.Err())
		case <-time.After(10 * time.Second):
			_ = proc.Kill()
			t.Fatal("worker with unknown component did not exit")
		}
	})
}
