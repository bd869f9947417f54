package runtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/cenkalti/backoff/v5"
)

// Target is what the monitor watches and restarts.
type Target interface {
	Alive() bool
	Pending() int
	Kickstart(ctx context.Context) error
}

// Monitor polls a target's liveness and restarts it according to a policy.
// The poll is level-triggered: a dead worker that matches the policy is
// kickstarted on every poll until it stays up.
type Monitor struct {
	policy domain.KeepAlivePolicy
	target Target
	logger *slog.Logger
	bo     *backoff.ExponentialBackOff
}

// NewMonitor creates a monitor. It does nothing unless policy is enabled.
func NewMonitor(policy domain.KeepAlivePolicy, target Target, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Monitor{policy: policy, target: target, logger: logger}
	if policy.Backoff.Enabled {
		m.bo = newBackOff(policy)
	}
	return m
}

func newBackOff(policy domain.KeepAlivePolicy) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.PollInterval()
	if policy.Backoff.Initial > 0 {
		bo.InitialInterval = policy.Backoff.Initial
	}
	if policy.Backoff.Max > 0 {
		bo.MaxInterval = policy.Backoff.Max
	}
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if !m.policy.Enabled() {
		return
	}
	interval := m.policy.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastRestart, holdUntil time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if m.target.Alive() {
				// A full interval of uptime ends the crash streak.
				if m.bo != nil && now.Sub(lastRestart) >= interval {
					m.bo.Reset()
					holdUntil = time.Time{}
				}
				continue
			}
			if !m.policy.ShouldRestart(false, m.target.Pending() > 0) {
				continue
			}
			if now.Before(holdUntil) {
				m.logger.Debug("Restart held back", "until", holdUntil)
				continue
			}

			m.logger.Info("Restarting dead worker", "pending", m.target.Pending())
			if err := m.target.Kickstart(ctx); err != nil {
				m.logger.Error("Keepalive restart failed", "err", err)
			}
			lastRestart = now
			if m.bo != nil {
				holdUntil = now.Add(m.bo.NextBackOff())
			}
		}
	}
}
