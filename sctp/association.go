// File: sctp/association.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Association lifecycle: Created → Receiving → Closing → Closed.

package sctp

import (
	"errors"
	"net/netip"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/api"
)

// Association owns one accepted or dialed socket and runs its receive loop.
//
// Send, Close and the receive loop share nothing but atomic flags; callers
// issuing Send and Close from several goroutines must serialize them.
type Association struct {
	id      uuid.UUID
	sock    *Socket
	peer    netip.AddrPort
	handler MessageHandler
	cfg     assocConfig
	log     *zap.Logger

	state     atomic.Int32
	receiving atomic.Bool
	closed    chan struct{} // closed by finish once state is Closed
	done      chan struct{}
}

// NewAssociation takes ownership of an accepted socket. A nil handler
// discards messages.
func NewAssociation(as *AcceptedSocket, handler MessageHandler, opts ...Option) *Association {
	a := newAssociation(as.ops, as.h, as.peer, handler, opts)
	as.h = api.InvalidHandle
	return a
}

func newAssociation(ops api.SocketOps, h api.Handle, peer netip.AddrPort, handler MessageHandler, opts []Option) *Association {
	cfg := defaultAssocConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if handler == nil {
		handler = discard
	}
	a := &Association{
		id:      uuid.New(),
		sock:    newSocket(ops, h),
		peer:    peer,
		handler: handler,
		cfg:     cfg,
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.log = cfg.log.With(zap.String("assoc_id", a.id.String()), zap.Stringer("peer", peer))
	if !h.Valid() {
		a.state.Store(int32(api.AssocClosed))
		close(a.closed)
		close(a.done)
	}
	return a
}

// ID returns the association identifier used in logs.
func (a *Association) ID() uuid.UUID { return a.id }

// State returns the current lifecycle state.
func (a *Association) State() api.AssociationState {
	return api.AssociationState(a.state.Load())
}

// Receiving reports whether the receive loop is running.
func (a *Association) Receiving() bool { return a.receiving.Load() }

// Done is closed after the association reaches Closed, the close handler
// has returned and the receive loop, if started, has exited. A close handler
// must not wait on Done.
func (a *Association) Done() <-chan struct{} { return a.done }

// Socket exposes the stream-aware socket.
func (a *Association) Socket() *Socket { return a.sock }

// Peer returns the primary peer address captured at accept or dial time.
func (a *Association) Peer() netip.AddrPort { return a.peer }

// PeerAddress queries the kernel for the established primary peer address.
func (a *Association) PeerAddress() (netip.AddrPort, error) {
	return a.sock.RemoteEndpoint()
}

// LocalEndpoints lists the local addresses of the association.
func (a *Association) LocalEndpoints() (api.EndpointSet, error) {
	return a.sock.LocalEndpoints()
}

// RemoteEndpoints lists the peer addresses of the association.
func (a *Association) RemoteEndpoints() (api.EndpointSet, error) {
	return a.sock.RemoteEndpoints()
}

// ApplyTuning applies per-association transport parameters.
func (a *Association) ApplyTuning(t api.PeerTuning) error {
	return a.sock.ApplyTuning(t)
}

// Send transmits data on the primary path. Once the socket is closed Send
// does nothing and returns nil, so success does not imply transmission.
func (a *Association) Send(data []byte, stream uint16, ppid uint32) error {
	return a.SendTo(data, netip.AddrPort{}, stream, ppid)
}

// SendTo transmits data to a specific peer address of the association.
func (a *Association) SendTo(data []byte, dest netip.AddrPort, stream uint16, ppid uint32) error {
	_, err := a.sock.SendTo(data, dest, stream, ppid)
	return err
}

// StartReceiving moves Created to Receiving and starts the receive loop.
func (a *Association) StartReceiving() error {
	if !a.state.CompareAndSwap(int32(api.AssocCreated), int32(api.AssocReceiving)) {
		return api.ErrInvalidState.WithContext("op", "start receiving").WithContext("state", a.State().String())
	}
	a.receiving.Store(true)
	go a.receiveLoop()
	return nil
}

// Close shuts the association down. Only the first call has an effect.
func (a *Association) Close() error {
	for {
		s := a.state.Load()
		if s == int32(api.AssocClosing) || s == int32(api.AssocClosed) {
			return nil
		}
		if a.state.CompareAndSwap(s, int32(api.AssocClosing)) {
			wasReceiving := s == int32(api.AssocReceiving)
			err := a.finish("local close", !wasReceiving)
			return err
		}
	}
}

// finish performs the Closing → Closed transition. closeDone is false while
// a receive loop still owns the done channel.
func (a *Association) finish(reason string, closeDone bool) error {
	err := a.sock.Close()
	a.state.Store(int32(api.AssocClosed))
	a.log.Info("association closed", zap.String("reason", reason))
	if a.cfg.onClose != nil {
		a.cfg.onClose(a)
	}
	close(a.closed)
	if closeDone {
		close(a.done)
	}
	return err
}

// terminate handles peer-induced termination from the receive loop.
func (a *Association) terminate(reason string) {
	if !a.state.CompareAndSwap(int32(api.AssocReceiving), int32(api.AssocClosing)) {
		return
	}
	if err := a.finish(reason, false); err != nil {
		a.log.Warn("close after termination", zap.Error(err))
	}
}

func (a *Association) receiveLoop() {
	// Every exit path leads to finish, either here via terminate or in a
	// concurrent Close; done waits for it.
	defer func() {
		<-a.closed
		close(a.done)
	}()
	defer a.receiving.Store(false)

	pooled := a.cfg.bufs.GetBuffer()
	defer a.cfg.bufs.PutBuffer(pooled)
	buf := *pooled

	var partial []byte
	for a.State() == api.AssocReceiving {
		r, err := a.sock.Receive(buf)
		if err != nil {
			if errors.Is(err, api.ErrCanceled) {
				a.terminate("canceled")
				return
			}
			a.log.Warn("receive failed", zap.Error(err))
			runtime.Gosched()
			continue
		}
		if r.Flags != api.TermNone {
			if !r.Notification && r.N > 0 && r.EndOfRecord {
				a.dispatch(append(partial, buf[:r.N]...), r)
			}
			a.terminate(r.Flags.String())
			return
		}
		if r.Notification {
			a.log.Debug("association notification", zap.Int("len", r.N))
			runtime.Gosched()
			continue
		}

		var data []byte
		switch {
		case !r.EndOfRecord:
			partial = append(partial, buf[:r.N]...)
			runtime.Gosched()
			continue
		case partial != nil:
			data = append(partial, buf[:r.N]...)
			partial = nil
		default:
			data = append([]byte(nil), buf[:r.N]...)
		}

		a.dispatch(data, r)
		runtime.Gosched()
	}
}

// dispatch hands one reassembled message to the handler unless it is shorter
// than the configured minimum.
func (a *Association) dispatch(data []byte, r api.Received) {
	if len(data) < a.cfg.minSize {
		a.log.Debug("short message skipped",
			zap.Int("len", len(data)),
			zap.Uint16("stream", r.Stream))
		return
	}
	a.handler.HandleMessage(a, api.Message{
		Data:   data,
		Stream: r.Stream,
		PPID:   r.PPID,
		Flags:  r.Flags,
		From:   r.From,
	})
}
