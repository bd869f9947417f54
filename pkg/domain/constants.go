package domain

// CommandSeparator splits a signal payload into command name and params.
// Only the first occurrence is significant.
const CommandSeparator = "|"

// Environment keys understood by worker processes.
const (
	// EnvComponent selects the registered entry point a re-executed binary runs.
	EnvComponent = "WARDEN_COMPONENT"

	// EnvDriver carries the owning driver name into the worker (logging only).
	EnvDriver = "WARDEN_DRIVER"
)
