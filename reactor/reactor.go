// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral completion loop.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/affinity"
	"github.com/momentics/hioload-sctp/api"
)

var (
	ErrAlreadyRunning = errors.New("reactor: already running")
	ErrStopped        = errors.New("reactor: stopped")
	ErrHangup         = errors.New("reactor: descriptor hang-up")
)

const defaultMaxEvents = 128

// readyEvent is one readiness report from the poller.
type readyEvent struct {
	fd    int
	fault bool
}

// poller is the platform readiness backend.
type poller interface {
	arm(fd int) error
	disarm(fd int) error
	wait(events []readyEvent) (int, error)
	wake() error
	close() error
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered callback panics.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.log = l
		}
	}
}

// WithMaxEvents bounds how many readiness events one poll returns.
func WithMaxEvents(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.maxEvents = n
		}
	}
}

// WithCPU pins the goroutine running Run to one logical CPU. A failed pin
// is logged and the loop runs unpinned.
func WithCPU(cpu int) Option {
	return func(lp *Loop) { lp.cpu = cpu }
}

// Loop is the reactor. It implements api.Reactor.
type Loop struct {
	mu        sync.Mutex
	pending   *queue.Queue // of func()
	watches   map[api.Handle]func(error)
	poll      poller
	log       *zap.Logger
	maxEvents int
	cpu       int

	running atomic.Bool
	stopped atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

var _ api.Reactor = (*Loop)(nil)

// New initializes a reactor. It does not start dispatching until Run.
func New(opts ...Option) (*Loop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	l := &Loop{
		pending:   queue.New(),
		watches:   make(map[api.Handle]func(error)),
		poll:      p,
		log:       zap.NewNop(),
		maxEvents: defaultMaxEvents,
		cpu:       -1,
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Run dispatches completions on the calling goroutine until Stop is called
// or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	release := context.AfterFunc(ctx, l.Stop)
	defer release()

	if l.cpu >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.SetAffinity(l.cpu); err != nil {
			l.log.Warn("reactor cpu pin failed", zap.Int("cpu", l.cpu), zap.Error(err))
		}
	}

	events := make([]readyEvent, l.maxEvents)
	for !l.stopped.Load() {
		n, err := l.poll.wait(events)
		if err != nil {
			return fmt.Errorf("reactor wait: %w", err)
		}
		for i := 0; i < n; i++ {
			l.ready(events[i])
		}
		l.drain()
	}
	return nil
}

// Stop asks Run to return after the current iteration. It never blocks and
// may be called from a callback.
func (l *Loop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		_ = l.poll.wake()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close releases the poller. Call after Run has returned. Later calls
// are no-ops.
func (l *Loop) Close() error {
	l.Stop()
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.poll.close()
}

// Post schedules fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	if l.stopped.Load() {
		return ErrStopped
	}
	l.mu.Lock()
	l.pending.Add(fn)
	l.mu.Unlock()
	return l.poll.wake()
}

// WaitReadable arms a one-shot readiness watch on h.
func (l *Loop) WaitReadable(h api.Handle, fn func(error)) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if l.stopped.Load() {
		return ErrStopped
	}
	l.mu.Lock()
	if _, busy := l.watches[h]; busy {
		l.mu.Unlock()
		return api.ErrInvalidState.WithContext("handle", int(h))
	}
	l.watches[h] = fn
	l.mu.Unlock()

	if err := l.poll.arm(int(h)); err != nil {
		l.mu.Lock()
		delete(l.watches, h)
		l.mu.Unlock()
		return fmt.Errorf("reactor arm %d: %w", h, err)
	}
	return nil
}

// Forget cancels a pending readiness watch on h.
func (l *Loop) Forget(h api.Handle) {
	l.mu.Lock()
	_, armed := l.watches[h]
	delete(l.watches, h)
	l.mu.Unlock()
	if armed {
		_ = l.poll.disarm(int(h))
	}
}

// Pending returns the number of queued completions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Length()
}

func (l *Loop) ready(ev readyEvent) {
	h := api.Handle(ev.fd)
	l.mu.Lock()
	fn, ok := l.watches[h]
	delete(l.watches, h)
	if ok {
		var err error
		if ev.fault {
			err = ErrHangup
		}
		l.pending.Add(func() { fn(err) })
	}
	l.mu.Unlock()
}

// drain runs the completions queued at entry; later posts wait for the next
// iteration so readiness polling is never starved.
func (l *Loop) drain() {
	l.mu.Lock()
	n := l.pending.Length()
	l.mu.Unlock()
	for i := 0; i < n; i++ {
		l.mu.Lock()
		fn := l.pending.Remove().(func())
		l.mu.Unlock()
		l.safeRun(fn)
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("reactor callback panic", zap.Any("panic", r))
		}
	}()
	fn()
}
