// Package sctp
// Author: momentics <momentics@gmail.com>
//
// Multi-homed acceptor, stream-aware socket and association lifecycle built
// on api.SocketOps and api.Reactor.
//
// Accept completions run on the reactor goroutine. Each Association runs its
// own blocking receive goroutine and invokes the MessageHandler synchronously
// from it, so messages of one association reach the handler in delivery
// order while distinct associations are not ordered relative to each other.
//
// Close does not interrupt a receive that is already blocked in the kernel.
// The loop observes termination once that call returns.
package sctp
