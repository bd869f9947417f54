// Package runtime holds the moving parts of a driver: the supervisor that
// owns the worker process, the dispatch loop for responses, the keepalive
// monitor and the signal router. The root warden package composes them.
package runtime
