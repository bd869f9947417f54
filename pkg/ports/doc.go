/*
Package ports defines the driven ports (interfaces) of the Warden supervisor.

These interfaces decouple the driver core from concrete transports, process
launchers and host capabilities, so the same core runs real worker processes in
production and goroutine-backed workers in tests.

# Key Interfaces

  - Bus: Process-wide fan-out of named signals, with disposable subscriptions.
  - Launcher / Process: Spawns and controls one worker instance.
  - ScriptRunner / Notifier: Host capabilities invoked by the dispatch loop.
  - NameLease: Optional guard ensuring one supervisor per component name.
*/
package ports
