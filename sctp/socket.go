// File: sctp/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sctp

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-sctp/api"
)

// disabledSack turns the delayed-SACK algorithm off: acknowledge every packet.
var disabledSack = api.SackInfo{Delay: time.Millisecond, Frequency: 1}

// Socket wraps one association handle with stream-aware send and receive and
// endpoint enumeration. It performs no locking beyond its atomic open flag.
type Socket struct {
	ops  api.SocketOps
	h    api.Handle
	open atomic.Bool
}

func newSocket(ops api.SocketOps, h api.Handle) *Socket {
	s := &Socket{ops: ops, h: h}
	s.open.Store(h.Valid())
	return s
}

// IsOpen reports whether the handle has not been closed.
func (s *Socket) IsOpen() bool { return s.open.Load() }

// Handle returns the native handle, or api.InvalidHandle once closed.
func (s *Socket) Handle() api.Handle {
	if !s.open.Load() {
		return api.InvalidHandle
	}
	return s.h
}

// LocalEndpoints lists the local addresses of the association.
func (s *Socket) LocalEndpoints() (api.EndpointSet, error) {
	return s.ops.LocalAddresses(s.Handle())
}

// RemoteEndpoints lists the peer addresses of the association.
func (s *Socket) RemoteEndpoints() (api.EndpointSet, error) {
	return s.ops.RemoteAddresses(s.Handle())
}

// RemoteEndpoint returns the peer primary address.
func (s *Socket) RemoteEndpoint() (netip.AddrPort, error) {
	if !s.open.Load() {
		return netip.AddrPort{}, api.ErrNotConnected
	}
	return s.ops.PeerAddress(s.h)
}

// SendTo transmits data on stream with ppid. An invalid dest uses the
// primary path. On a closed socket it sends nothing and returns 0, nil.
func (s *Socket) SendTo(data []byte, dest netip.AddrPort, stream uint16, ppid uint32) (int, error) {
	if !s.open.Load() {
		return 0, nil
	}
	return s.ops.SendMessage(s.h, data, dest, stream, ppid, 0)
}

// Receive blocks for one message fragment, notification or termination.
//
// The open check and the recvmsg call are not atomic. A Close racing with
// Receive may release the descriptor first, and the kernel can hand the same
// number to a new socket, so Receive and Close must not run concurrently
// unless the caller accepts that window. The association receive loop relies
// on the shutdown issued by Close waking the pending call before the
// descriptor is released.
func (s *Socket) Receive(buf []byte) (api.Received, error) {
	if !s.open.Load() {
		return api.Received{}, api.ErrCanceled
	}
	return s.ops.ReceiveMessage(s.h, buf)
}

// ApplyTuning sets no-delay, delayed-ack, event subscription and peer
// address parameters, in that order, stopping at the first failure.
func (s *Socket) ApplyTuning(t api.PeerTuning) error {
	if !s.open.Load() {
		return api.ErrInvalidHandle
	}
	if err := s.ops.SetNoDelay(s.h, t.NoDelay); err != nil {
		return fmt.Errorf("tuning nodelay: %w", err)
	}
	if t.DisableDelayedAck {
		if err := s.ops.SetDelayedAck(s.h, disabledSack); err != nil {
			return fmt.Errorf("tuning delayed ack: %w", err)
		}
	}
	// DataIO is always on: stream and ppid arrive through SCTP_SNDRCV.
	ev := api.EventSubscription{DataIO: true, Association: t.SubscribeAssocEvents}
	if err := s.ops.SubscribeEvents(s.h, ev); err != nil {
		return fmt.Errorf("tuning events: %w", err)
	}
	p := api.PeerAddrParams{
		HeartbeatInterval:  t.HeartbeatInterval,
		PathMaxRetransmits: t.MaxPathRetransmits,
		Flags:              api.HeartbeatEnable,
	}
	if t.HeartbeatInterval <= 0 {
		p.HeartbeatInterval = 0
		p.Flags = api.HeartbeatDisable
	}
	if err := s.ops.SetPeerAddrParams(s.h, p); err != nil {
		return fmt.Errorf("tuning peer params: %w", err)
	}
	return nil
}

// Shutdown closes one or both directions without releasing the handle.
func (s *Socket) Shutdown(how api.ShutdownHow) error {
	return s.ops.Shutdown(s.Handle(), how)
}

// Close shuts both directions down and releases the handle. Only the first
// call has any effect.
func (s *Socket) Close() error {
	if !s.open.CompareAndSwap(true, false) {
		return nil
	}
	// The peer may already be gone; a failed shutdown does not block release.
	_ = s.ops.Shutdown(s.h, api.ShutdownBoth)
	if err := s.ops.Close(s.h); err != nil {
		return fmt.Errorf("sctp close: %w", err)
	}
	return nil
}
