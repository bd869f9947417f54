package domain

import "time"

// DefaultKeepAliveInterval is the poll period of the keepalive monitor.
const DefaultKeepAliveInterval = time.Second

// KeepAlivePolicy decides whether and when a dead worker is restarted.
type KeepAlivePolicy struct {
	// Always restarts a dead worker unconditionally.
	Always bool `json:"always" yaml:"always" mapstructure:"always"`

	// OnOutgoing restarts a dead worker only while commands are waiting for it.
	OnOutgoing bool `json:"on_outgoing" yaml:"on_outgoing" mapstructure:"on_outgoing"`

	// Interval is the liveness poll period. Zero means DefaultKeepAliveInterval.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Backoff optionally stretches the wait between consecutive restarts.
	Backoff BackoffPolicy `json:"backoff" yaml:"backoff" mapstructure:"backoff"`
}

// BackoffPolicy configures exponential restart backoff. Disabled by default,
// in which case a crashing worker is restarted every interval.
type BackoffPolicy struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Initial time.Duration `json:"initial" yaml:"initial" mapstructure:"initial"`
	Max     time.Duration `json:"max" yaml:"max" mapstructure:"max"`
}

// Enabled reports whether a keepalive monitor should run at all.
func (p KeepAlivePolicy) Enabled() bool {
	return p.Always || p.OnOutgoing
}

// PollInterval returns the effective poll period.
func (p KeepAlivePolicy) PollInterval() time.Duration {
	if p.Interval <= 0 {
		return DefaultKeepAliveInterval
	}
	return p.Interval
}

// ShouldRestart evaluates the restart condition for one poll.
// pending reports whether the outbound queue holds undelivered commands.
func (p KeepAlivePolicy) ShouldRestart(alive, pending bool) bool {
	if alive {
		return false
	}
	return p.Always || (p.OnOutgoing && pending)
}
