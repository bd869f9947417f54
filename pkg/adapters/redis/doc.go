// Package redis connects the local signal bus to Redis.
//
// A Bridge republishes signals from a Redis pub/sub channel onto a local
// ports.Bus, and a Publisher pushes signals into that channel from another
// process. A Leaser claims driver names with SET NX PX so only one
// supervisor drives a component at a time.
package redis
