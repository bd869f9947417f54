/*
Package domain contains the core domain models of the Warden supervisor.

It defines the messages exchanged between a Driver and its worker process, the
named signals routed into a Driver, and the policy and lifecycle types that
describe a supervised component. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Command: A message travelling owner -> component (name plus opaque params).
  - Response: A tagged variant travelling component -> owner (Callback or Error).
  - Signal: A named event published on the process-wide bus.
  - KeepAlivePolicy: Decides whether a dead worker is restarted.
  - DriverState: The lifecycle of one supervised component.
*/
package domain
