package domain

import "fmt"

// DriverState is the lifecycle state of a supervised component.
type DriverState int

const (
	// StateStarting is the state before the first worker has been launched.
	StateStarting DriverState = iota
	// StateRunning means the current worker process is alive.
	StateRunning
	// StateCrashed means the current worker process has exited.
	StateCrashed
	// StateStopped is terminal and only reached through Driver.Close.
	StateStopped
)

// String returns a human-readable state name.
func (s DriverState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s DriverState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *DriverState) UnmarshalText(text []byte) error {
	for _, st := range []DriverState{StateStarting, StateRunning, StateCrashed, StateStopped} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown driver state %q", text)
}
