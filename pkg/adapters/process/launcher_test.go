package process_test

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/warden/pkg/adapters/process"
	"github.com/aretw0/warden/pkg/component"
	"github.com/aretw0/warden/pkg/component/builtin"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/ports/tests"
	"github.com/aretw0/warden/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envComponent answers GET|KEY with the worker's value of KEY.
const envComponent = "test-env"

// stubbornComponent acknowledges one command, then ignores cancellation
// and never returns, so only a kill ends it.
const stubbornComponent = "test-stubborn"

func TestMain(m *testing.M) {
	component.Register(envComponent, func(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
		for cmd := range in {
			out <- domain.Callback(cmd.Name, os.Getenv(cmd.Params))
		}
		return nil
	})
	component.Register(stubbornComponent, func(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
		cmd := <-in
		out <- domain.Callback(cmd.Name, "ready")
		select {}
	})
	// The test binary doubles as the worker executable.
	component.Init()
	os.Exit(m.Run())
}

func TestLauncher_Contract(t *testing.T) {
	tests.LauncherContractTest(t, process.NewLauncher(), builtin.Echo)
}

func TestLauncher_Environment(t *testing.T) {
	proc, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{
		Driver:    "physics",
		Component: envComponent,
		Env:       map[string]string{"WARDEN_TEST_FOO": "bar"},
	})
	require.NoError(t, err)
	defer proc.Kill()

	assert.Greater(t, proc.PID(), 0)

	enc := wire.NewEncoder(proc.Stdin())
	dec := wire.NewDecoder(proc.Stdout())

	require.NoError(t, enc.WriteCommand(domain.Command{Name: "GET", Params: "WARDEN_TEST_FOO"}))
	resp, err := dec.ReadResponse()
	require.NoError(t, err)
	assert.Equal(t, domain.Callback("GET", "bar"), resp)

	require.NoError(t, enc.WriteCommand(domain.Command{Name: "GET", Params: domain.EnvDriver}))
	resp, err = dec.ReadResponse()
	require.NoError(t, err)
	assert.Equal(t, domain.Callback("GET", "physics"), resp)
}

func TestLauncher_CrashExitCode(t *testing.T) {
	proc, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{Component: builtin.Faulty})
	require.NoError(t, err)

	require.NoError(t, wire.NewEncoder(proc.Stdin()).WriteCommand(domain.Command{Name: "CRASH"}))
	waitDone(t, proc)

	var exit *exec.ExitError
	require.ErrorAs(t, proc.Err(), &exit)
	assert.Equal(t, builtin.CrashExitCode, exit.ExitCode())
}

func TestLauncher_UnknownComponentExits(t *testing.T) {
	proc, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{Component: "missing"})
	require.NoError(t, err)
	waitDone(t, proc)

	var exit *exec.ExitError
	require.ErrorAs(t, proc.Err(), &exit)
	assert.Equal(t, component.ExitUnknown, exit.ExitCode())
}

func TestLauncher_EmptyComponent(t *testing.T) {
	_, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{})
	assert.ErrorIs(t, err, domain.ErrUnknownComponent)
}

func TestLauncher_Kill(t *testing.T) {
	proc, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{Component: builtin.Echo})
	require.NoError(t, err)

	require.NoError(t, proc.Kill())
	waitDone(t, proc)
	assert.Error(t, proc.Err())
	assert.NoError(t, proc.Kill(), "Kill on a dead worker is a no-op")
}

func TestLauncher_Stats(t *testing.T) {
	proc, err := process.NewLauncher().Launch(context.Background(), ports.LaunchSpec{Component: builtin.Echo})
	require.NoError(t, err)
	defer proc.Kill()

	provider, ok := proc.(ports.StatsProvider)
	require.True(t, ok)

	stats, err := provider.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.RSS, uint64(0))
	assert.False(t, stats.SampledAt.IsZero())
}

func TestLauncher_TerminateEscalatesToKill(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Terminate kills immediately on windows")
	}
	const grace = 500 * time.Millisecond
	proc, err := process.NewLauncher(process.WithGrace(grace)).Launch(context.Background(), ports.LaunchSpec{Component: stubbornComponent})
	require.NoError(t, err)
	defer proc.Kill()

	require.NoError(t, wire.NewEncoder(proc.Stdin()).WriteCommand(domain.Command{Name: "PING"}))
	resp, err := wire.NewDecoder(proc.Stdout()).ReadResponse()
	require.NoError(t, err)
	require.Equal(t, domain.Callback("PING", "ready"), resp)

	start := time.Now()
	require.NoError(t, proc.Terminate())

	time.Sleep(100 * time.Millisecond)
	assert.True(t, proc.Alive(), "Worker ignoring the stop request should survive until the grace period ends")

	waitDone(t, proc)
	assert.GreaterOrEqual(t, time.Since(start), grace)
	assert.Error(t, proc.Err())
}

func waitDone(t *testing.T, proc ports.Process) {
	t.Helper()
	select {
	case <-proc.Done():
	case <-time.After(10 * time.Second):
		_ = proc.Kill()
		t.Fatal("worker did not exit")
	}
}
