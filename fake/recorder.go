// File: fake/recorder.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-sctp/api"
)

// Operation names recorded by Ops and Reactor.
const (
	OpOpen         = "open"
	OpReuseAddr    = "reuseaddr"
	OpBind         = "bind"
	OpListen       = "listen"
	OpAccept       = "accept"
	OpConnect      = "connect"
	OpBindAddress  = "bindx-add"
	OpUnbindAddr   = "bindx-rem"
	OpLocalAddrs   = "local-addrs"
	OpRemoteAddrs  = "remote-addrs"
	OpPeerAddress  = "peer-addr"
	OpSend         = "send"
	OpReceive      = "recv"
	OpNoDelay      = "nodelay"
	OpDelayedAck   = "delayed-ack"
	OpEvents       = "events"
	OpPeerParams   = "paddr-params"
	OpShutdown     = "shutdown"
	OpClose        = "close"
	OpArm          = "arm"
	OpForget       = "forget"
	OpOwnerHandoff = "owner"
)

// Call is one recorded operation.
type Call struct {
	Op     string
	Handle api.Handle
	Arg    any
}

// Recorder is a concurrency-safe ordered call log.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record appends a call.
func (r *Recorder) Record(op string, h api.Handle, arg any) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Handle: h, Arg: arg})
	r.mu.Unlock()
}

// Calls returns a snapshot of the log.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Ops returns the recorded operation names, optionally limited to handle h.
func (r *Recorder) Ops(h ...api.Handle) []string {
	var out []string
	for _, c := range r.Calls() {
		if len(h) > 0 && c.Handle != h[0] {
			continue
		}
		out = append(out, c.Op)
	}
	return out
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Index returns the position of the n-th (zero based) occurrence of op, or -1.
func (r *Recorder) Index(op string, n int) int {
	for i, c := range r.Calls() {
		if c.Op != op {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
