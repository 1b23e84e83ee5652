// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract completion-dispatch reactor the acceptor is built on.
// The reactor has no notion of streams or payload identifiers; it only knows
// descriptors that become readable and completions to run.

package api

// Reactor is a single-threaded cooperative completion dispatcher.
type Reactor interface {
	// Post schedules fn to run on the reactor goroutine.
	Post(fn func()) error

	// WaitReadable arms a one-shot readiness watch on h. fn runs on the
	// reactor goroutine once h is readable, or with a non-nil error when the
	// descriptor reports a hang-up or error condition.
	WaitReadable(h Handle, fn func(err error)) error

	// Forget cancels a pending readiness watch. It is a no-op when none is armed.
	Forget(h Handle)
}
