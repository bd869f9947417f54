package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/component"
	"github.com/aretw0/warden/pkg/component/builtin"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdComponent echoes commands, except HOLD: it keeps that one and stops
// reading until cancelled.
const holdComponent = "test-hold"

func init() {
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
}

func newTestSupervisor(t *testing.T, name, component string) (*Supervisor, *Channels) {
	t.Helper()
	ch := NewChannels()
	s := NewSupervisor(SupervisorConfig{
		Name:      name,
		Component: component,
		Launcher:  memory.NewLauncher(memory.WithGrace(100 * time.Millisecond)),
		Channels:  ch,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
		ch.Close()
	})
	return s, ch
}

func popResponse(t *testing.T, ch *Channels) domain.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := ch.Inbound.Pop(ctx)
	require.NoError(t, err)
	return resp
}

func TestSupervisor_RoundTrip(t *testing.T) {
	s, ch := newTestSupervisor(t, "physics", builtin.Echo)
	assert.Equal(t, domain.StateStarting, s.State())

	require.NoError(t, s.Kickstart(context.Background()))
	assert.Equal(t, domain.StateRunning, s.State())

	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "JUMP", Params: "5"}))
	assert.Equal(t, domain.Callback("JUMP", "5"), popResponse(t, ch))

	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_KickstartReplacesWorker(t *testing.T) {
	s, _ := newTestSupervisor(t, "physics", builtin.Echo)

	require.NoError(t, s.Kickstart(context.Background()))
	first := s.currentInstance()

	require.NoError(t, s.Kickstart(context.Background()))
	second := s.currentInstance()

	assert.NotEqual(t, first.proc.ID(), second.proc.ID())
	assert.Equal(t, 2, second.generation)

	// Only the new instance is live.
	select {
	case <-first.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replaced worker was not stopped")
	}
	assert.True(t, second.proc.Alive())

	st := s.Status()
	assert.Equal(t, 1, st.Restarts)
	assert.Equal(t, second.proc.ID(), st.InstanceID)
}

func TestSupervisor_ConcurrentKickstart(t *testing.T) {
	s, ch := newTestSupervisor(t, "physics", builtin.Echo)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Kickstart(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Status().Generation)
	assert.True(t, s.Alive())

	// The channel pair still works through whichever instance won.
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "PING"}))
	assert.Equal(t, domain.Callback("PING", ""), popResponse(t, ch))
}

func TestSupervisor_CommandsSurviveCrash(t *testing.T) {
	s, ch := newTestSupervisor(t, "physics", builtin.Faulty)
	require.NoError(t, s.Kickstart(context.Background()))

	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "CRASH"}))
	require.Eventually(t, func() bool { return !s.Alive() }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StateCrashed, s.State())
	assert.Contains(t, s.Status().LastExit, "exit 3")

	// Queued while nobody is listening.
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "A", Params: "1"}))
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "B", Params: "2"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, s.Pending())

	require.NoError(t, s.Kickstart(context.Background()))
	assert.Equal(t, domain.Callback("A", "1"), popResponse(t, ch))
	assert.Equal(t, domain.Callback("B", "2"), popResponse(t, ch))
}

func TestSupervisor_CommandsQueuedBeforeCrash(t *testing.T) {
	s, ch := newTestSupervisor(t, "physics", builtin.Faulty)
	require.NoError(t, s.Kickstart(context.Background()))

	// Queued together, while the worker is still alive.
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "CRASH"}))
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "A", Params: "1"}))
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "B", Params: "2"}))

	require.Eventually(t, func() bool { return !s.Alive() }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.Command{{Name: "A", Params: "1"}, {Name: "B", Params: "2"}}, ch.Outbound.Snapshot())

	require.NoError(t, s.Kickstart(context.Background()))
	assert.Equal(t, domain.Callback("A", "1"), popResponse(t, ch))
	assert.Equal(t, domain.Callback("B", "2"), popResponse(t, ch))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_KickstartLiveWorkerKeepsQueue(t *testing.T) {
	s, ch := newTestSupervisor(t, "physics", holdComponent)
	require.NoError(t, s.Kickstart(context.Background()))

	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "HOLD"}))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 5*time.Second, 5*time.Millisecond, "HOLD is taken")

	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "A", Params: "1"}))
	require.NoError(t, ch.Outbound.Push(domain.Command{Name: "B", Params: "2"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, s.Pending(), "a busy worker takes nothing ahead")
	require.True(t, s.Alive())

	require.NoError(t, s.Kickstart(context.Background()))
	assert.Equal(t, domain.Callback("A", "1"), popResponse(t, ch))
	assert.Equal(t, domain.Callback("B", "2"), popResponse(t, ch))
	assert.Equal(t, 0, ch.Inbound.Len(), "nothing delivered twice")
}

func TestSupervisor_LaunchFailure(t *testing.T) {
	s, _ := newTestSupervisor(t, "ghost", "no-such-component")

	err := s.Kickstart(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnknownComponent)
	assert.Equal(t, domain.StateStarting, s.State())
	assert.False(t, s.Alive())
}

func TestSupervisor_Close(t *testing.T) {
	s, _ := newTestSupervisor(t, "physics", builtin.Echo)
	require.NoError(t, s.Kickstart(context.Background()))
	inst := s.currentInstance()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	assert.False(t, inst.proc.Alive())
	assert.Equal(t, domain.StateStopped, s.State())
	assert.ErrorIs(t, s.Kickstart(context.Background()), domain.ErrDriverClosed)
	assert.NoError(t, s.Close(ctx), "Close is idempotent")
}

func TestSupervisor_Isolation(t *testing.T) {
	a, chA := newTestSupervisor(t, "a", builtin.Echo)
	b, chB := newTestSupervisor(t, "b", builtin.Echo)
	require.NoError(t, a.Kickstart(context.Background()))
	require.NoError(t, b.Kickstart(context.Background()))

	assert.NotSame(t, chA.Outbound, chB.Outbound)
	assert.NotEqual(t, a.currentInstance().proc.ID(), b.currentInstance().proc.ID())

	require.NoError(t, chA.Outbound.Push(domain.Command{Name: "ONLY_A"}))
	assert.Equal(t, domain.Callback("ONLY_A", ""), popResponse(t, chA))
	assert.Equal(t, 0, chB.Inbound.Len())
}

func TestSupervisor_Hooks(t *testing.T) {
	var mu sync.Mutex
	var events []domain.EventType
	record := func(_ context.Context, e *domain.ProcessEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}

	ch := NewChannels()
	s := NewSupervisor(SupervisorConfig{
		Name:      "physics",
		Component: builtin.Echo,
		Launcher:  memory.NewLauncher(),
		Channels:  ch,
		Hooks:     domain.LifecycleHooks{OnKickstart: record, OnExit: record},
	})
	require.NoError(t, s.Kickstart(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventKickstart, domain.EventExit}, events)
}
