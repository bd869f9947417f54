package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/warden/pkg/adapters/memory"
	redisadapter "github.com/aretw0/warden/pkg/adapters/redis"
	_ "github.com/aretw0/warden/pkg/component/builtin"
	"github.com/aretw0/warden/pkg/config"
	"github.com/aretw0/warden/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbacksLua = `
function callbacks.JUMP(height)
  warden.signal("audio", "PLAY|" .. height)
end
`

// syncBuffer is a bytes.Buffer safe for the notifier and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "callbacks.lua"), []byte(callbacksLua), 0o644))
	path := filepath.Join(dir, "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func startHost(t *testing.T, cfg *config.Config, out *syncBuffer) *Host {
	t.Helper()
	host := NewHost(cfg, HostOptions{Out: out, Launcher: memory.NewLauncher()})
	require.NoError(t, host.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = host.Shutdown(ctx)
	})
	return host
}

// recordSignals captures every signal addressed to component on the host bus.
func recordSignals(t *testing.T, host *Host, component string) func() []domain.Signal {
	t.Helper()
	var mu sync.Mutex
	var got []domain.Signal
	_, err := host.Bus().Subscribe(func(_ context.Context, sig domain.Signal) {
		if sig.ComponentID != component {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sig)
	})
	require.NoError(t, err)
	return func() []domain.Signal {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.Signal(nil), got...)
	}
}

func TestHost_EndToEnd(t *testing.T) {
	cfg := writeConfig(t, `
http: {addr: "127.0.0.1:0"}
scripts: [callbacks.lua]
drivers:
  - {name: physics, component: echo}
  - {name: audio, component: faulty}
`)
	out := &syncBuffer{}
	host := startHost(t, cfg, out)
	require.NotEmpty(t, host.HTTPAddr())
	audio := recordSignals(t, host, "audio")

	client := NewClient(host.HTTPAddr())
	ctx := context.Background()

	t.Run("Status Over HTTP", func(t *testing.T) {
		statuses, err := client.Statuses(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, "audio", statuses[0].Name)
		assert.Equal(t, "physics", statuses[1].Name)
		assert.Equal(t, domain.StateRunning, statuses[1].State)
	})

	t.Run("Callback Runs Lua", func(t *testing.T) {
		require.NoError(t, client.Publish(ctx, domain.Signal{ComponentID: "physics", Data: "JUMP|5"}))
		require.Eventually(t, func() bool {
			for _, sig := range audio() {
				if sig.Data == "PLAY|5" && sig.Sender == "lua" {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Error Reaches Notifier", func(t *testing.T) {
		require.NoError(t, client.Publish(ctx, domain.Signal{ComponentID: "audio", Data: "ERROR|speaker blown"}))
		require.Eventually(t, func() bool {
			return bytes.Contains([]byte(out.String()), []byte("Error in audio component: speaker blown"))
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Kickstart Over HTTP", func(t *testing.T) {
		status, err := client.Kickstart(ctx, "physics")
		require.NoError(t, err)
		assert.Equal(t, 2, status.Generation)

		_, err = client.Kickstart(ctx, "ghost")
		assert.ErrorContains(t, err, "404")
	})

	t.Run("Status Table", func(t *testing.T) {
		statuses, err := client.Statuses(ctx)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, RenderStatusTable(&buf, statuses))
		assert.Contains(t, buf.String(), "physics")
		assert.Contains(t, buf.String(), "faulty")
	})
}

func TestHost_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	body := `
redis: {addr: "` + mr.Addr() + `", lock: true, lease_ttl: 5s}
drivers:
  - {name: physics, component: echo}
`
	host := startHost(t, writeConfig(t, body), &syncBuffer{})
	physics := recordSignals(t, host, "physics")
	assert.True(t, mr.Exists(redisadapter.DefaultLeasePrefix+"physics"))

	t.Run("Bridge Forwards Remote Signals", func(t *testing.T) {
		client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
		defer client.Close()

		pub := redisadapter.NewPublisher(client)
		require.NoError(t, pub.Publish(context.Background(), domain.Signal{Sender: "remote", ComponentID: "physics", Data: "JUMP|1"}))
		require.Eventually(t, func() bool { return len(physics()) == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "remote", physics()[0].Sender)
	})

	t.Run("Second Host Cannot Claim Name", func(t *testing.T) {
		second := NewHost(writeConfig(t, body), HostOptions{Launcher: memory.NewLauncher()})
		err := second.Start(context.Background())
		assert.ErrorIs(t, err, redisadapter.ErrLeaseHeld)
	})
}

func TestHost_StartFailures(t *testing.T) {
	t.Run("Unknown Component", func(t *testing.T) {
		cfg := writeConfig(t, "drivers: [{name: a, component: no-such-component}]")
		err := NewHost(cfg, HostOptions{Launcher: memory.NewLauncher()}).Start(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnknownComponent)
	})

	t.Run("Broken Script", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("this is not lua"), 0o644))
		cfg := config.Default()
		cfg.Dir = dir
		cfg.Scripts = []string{"bad.lua"}
		err := NewHost(cfg, HostOptions{}).Start(context.Background())
		assert.ErrorContains(t, err, "bad.lua")
	})

	t.Run("Redis Unreachable", func(t *testing.T) {
		cfg := config.Default()
		cfg.Redis.Addr = "127.0.0.1:1"
		err := NewHost(cfg, HostOptions{}).Start(context.Background())
		assert.ErrorContains(t, err, "redis error")
	})
}

func TestExecute_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() {
		done <- Execute(ctx, RunOptions{Config: cfg, Out: out, Banner: true})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	assert.Contains(t, out.String(), "dev")
}

func TestNewClient(t *testing.T) {
	assert.Equal(t, "http://localhost:8700", NewClient(":8700").BaseURL)
	assert.Equal(t, "http://10.0.0.1:8700", NewClient("10.0.0.1:8700").BaseURL)
	assert.Equal(t, "https://warden.example", NewClient("https://warden.example/").BaseURL)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "-", formatBytes(0))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))
}
