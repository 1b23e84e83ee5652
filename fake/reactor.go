// File: fake/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Manually driven api.Reactor.

package fake

import (
	"sync"

	"github.com/momentics/hioload-sctp/api"
)

// Reactor queues completions and readiness watches until the test fires
// them. Arm and Forget are recorded into the shared Recorder.
type Reactor struct {
	rec *Recorder

	mu      sync.Mutex
	posted  []func()
	waiters map[api.Handle]func(error)
}

// NewReactor returns a fake reactor writing into rec.
func NewReactor(rec *Recorder) *Reactor {
	if rec == nil {
		rec = NewRecorder()
	}
	return &Reactor{rec: rec, waiters: make(map[api.Handle]func(error))}
}

func (r *Reactor) Post(fn func()) error {
	r.mu.Lock()
	r.posted = append(r.posted, fn)
	r.mu.Unlock()
	return nil
}

func (r *Reactor) WaitReadable(h api.Handle, fn func(err error)) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	r.mu.Lock()
	if _, ok := r.waiters[h]; ok {
		r.mu.Unlock()
		return api.ErrInvalidState
	}
	r.waiters[h] = fn
	r.mu.Unlock()
	r.rec.Record(OpArm, h, nil)
	return nil
}

func (r *Reactor) Forget(h api.Handle) {
	r.mu.Lock()
	delete(r.waiters, h)
	r.mu.Unlock()
	r.rec.Record(OpForget, h, nil)
}

// Armed reports whether a readiness watch is pending on h.
func (r *Reactor) Armed(h api.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.waiters[h]
	return ok
}

// Fire completes the watch on h with err, running the callback on the
// caller's goroutine. It reports false when nothing was armed.
func (r *Reactor) Fire(h api.Handle, err error) bool {
	r.mu.Lock()
	fn, ok := r.waiters[h]
	delete(r.waiters, h)
	r.mu.Unlock()
	if !ok {
		return false
	}
	fn(err)
	return true
}

// RunPosted runs queued completions, including ones posted while running.
func (r *Reactor) RunPosted() int {
	n := 0
	for {
		r.mu.Lock()
		if len(r.posted) == 0 {
			r.mu.Unlock()
			return n
		}
		fn := r.posted[0]
		r.posted = r.posted[1:]
		r.mu.Unlock()
		fn()
		n++
	}
}

var _ api.Reactor = (*Reactor)(nil)
