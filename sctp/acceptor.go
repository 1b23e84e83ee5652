// File: sctp/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi-homed listening socket driven by reactor readiness.

package sctp

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/api"
)

// AcceptedSocket is an accepted association handle not yet owned by an
// Association. It is produced only by Acceptor.
type AcceptedSocket struct {
	ops  api.SocketOps
	h    api.Handle
	peer netip.AddrPort
}

// Handle returns the native handle of the accepted association.
func (a *AcceptedSocket) Handle() api.Handle { return a.h }

// Peer returns the remote address reported by accept.
func (a *AcceptedSocket) Peer() netip.AddrPort { return a.peer }

// Close releases the handle when the socket is rejected before an
// Association takes it over.
func (a *AcceptedSocket) Close() error {
	if !a.h.Valid() {
		return nil
	}
	h := a.h
	a.h = api.InvalidHandle
	return a.ops.Close(h)
}

// AcceptFunc receives one accept completion on the reactor goroutine.
type AcceptFunc func(sock *AcceptedSocket, err error)

// AcceptorOption customizes an Acceptor.
type AcceptorOption func(*Acceptor)

// WithAcceptorLogger sets the acceptor logger.
func WithAcceptorLogger(l *zap.Logger) AcceptorOption {
	return func(a *Acceptor) {
		if l != nil {
			a.log = l
		}
	}
}

// Acceptor is the Unbound → Bound → Listening → Closed listening socket.
type Acceptor struct {
	ops     api.SocketOps
	reactor api.Reactor
	log     *zap.Logger

	mu      sync.Mutex
	state   api.AcceptorState
	h       api.Handle
	pending bool
}

// NewAcceptor returns an unbound acceptor.
func NewAcceptor(ops api.SocketOps, r api.Reactor, opts ...AcceptorOption) *Acceptor {
	a := &Acceptor{
		ops:     ops,
		reactor: r,
		log:     zap.NewNop(),
		h:       api.InvalidHandle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Acceptor) State() api.AcceptorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Handle returns the listening handle, or api.InvalidHandle.
func (a *Acceptor) Handle() api.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.h
}

func familyOf(addr netip.AddrPort) int {
	if addr.Addr().Is4() || addr.Addr().Is4In6() {
		return syscall.AF_INET
	}
	return syscall.AF_INET6
}

func invalidState(op string, s api.AcceptorState) error {
	return api.ErrInvalidState.WithContext("op", op).WithContext("state", s.String())
}

// Bind opens the socket and binds the primary address.
func (a *Acceptor) Bind(addr netip.AddrPort, reuseAddr bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != api.AcceptorUnbound {
		return invalidState("bind", a.state)
	}
	if !addr.IsValid() {
		return api.ErrInvalidArgument.WithContext("addr", addr.String())
	}
	h, err := a.ops.Open(familyOf(addr))
	if err != nil {
		return err
	}
	if reuseAddr {
		if err := a.ops.SetReuseAddr(h, true); err != nil {
			_ = a.ops.Close(h)
			return err
		}
	}
	if err := a.ops.Bind(h, addr); err != nil {
		_ = a.ops.Close(h)
		return err
	}
	a.h = h
	a.state = api.AcceptorBound
	a.log.Debug("acceptor bound", zap.Stringer("addr", addr))
	return nil
}

// Listen marks the bound socket passive.
func (a *Acceptor) Listen(backlog int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != api.AcceptorBound {
		return invalidState("listen", a.state)
	}
	if err := a.ops.Listen(a.h, backlog); err != nil {
		return err
	}
	a.state = api.AcceptorListening
	return nil
}

func (a *Acceptor) addressable(op string) error {
	if a.state != api.AcceptorBound && a.state != api.AcceptorListening {
		return invalidState(op, a.state)
	}
	return nil
}

// BindAddress adds a local address to the listening set.
func (a *Acceptor) BindAddress(addr netip.AddrPort) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.addressable("bind address"); err != nil {
		return err
	}
	return a.ops.BindAddress(a.h, addr)
}

// UnbindAddress removes a local address from the listening set.
func (a *Acceptor) UnbindAddress(addr netip.AddrPort) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.addressable("unbind address"); err != nil {
		return err
	}
	return a.ops.UnbindAddress(a.h, addr)
}

// LocalEndpoints lists the addresses the acceptor is bound to.
func (a *Acceptor) LocalEndpoints() (api.EndpointSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.addressable("local endpoints"); err != nil {
		return nil, err
	}
	return a.ops.LocalAddresses(a.h)
}

// AcceptNext arms one asynchronous accept. fn runs once on the reactor
// goroutine. The acceptor never re-arms itself after fn; call AcceptNext
// again to take the next association.
func (a *Acceptor) AcceptNext(fn AcceptFunc) error {
	if fn == nil {
		return api.ErrInvalidArgument.WithContext("fn", "nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != api.AcceptorListening {
		return invalidState("accept", a.state)
	}
	if a.pending {
		return api.ErrInvalidState.WithContext("op", "accept").WithContext("reason", "accept pending")
	}
	if err := a.arm(fn); err != nil {
		return err
	}
	a.pending = true
	return nil
}

// arm must be called with mu held.
func (a *Acceptor) arm(fn AcceptFunc) error {
	h := a.h
	return a.reactor.WaitReadable(h, func(err error) { a.onReadable(fn, err) })
}

func (a *Acceptor) onReadable(fn AcceptFunc, werr error) {
	sock, rearmed, err := a.tryAccept(fn, werr)
	if !rearmed {
		fn(sock, err)
	}
}

// tryAccept performs the accept. rearmed is true when the wake-up was
// spurious and the same accept is waiting again.
func (a *Acceptor) tryAccept(fn AcceptFunc, werr error) (*AcceptedSocket, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != api.AcceptorListening {
		a.pending = false
		return nil, false, api.ErrCanceled.WithContext("op", "accept")
	}
	if werr != nil {
		a.pending = false
		return nil, false, fmt.Errorf("sctp accept: %w", werr)
	}
	h, peer, err := a.ops.Accept(a.h)
	if errors.Is(err, api.ErrWouldBlock) {
		if err := a.arm(fn); err != nil {
			a.pending = false
			return nil, false, err
		}
		return nil, true, nil
	}
	a.pending = false
	if err != nil {
		return nil, false, err
	}
	return &AcceptedSocket{ops: a.ops, h: h, peer: peer}, false, nil
}

// Close cancels any pending accept and releases the listening handle.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == api.AcceptorClosed {
		return nil
	}
	a.state = api.AcceptorClosed
	a.pending = false
	if !a.h.Valid() {
		return nil
	}
	h := a.h
	a.h = api.InvalidHandle
	a.reactor.Forget(h)
	if err := a.ops.Close(h); err != nil {
		return fmt.Errorf("sctp acceptor close: %w", err)
	}
	return nil
}
