// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the transport operations contract: thin, error-returning wrappers
// around native multi-homed, multi-stream SCTP primitives. Implementations
// carry no policy; they translate.

package api

import "net/netip"

// SocketOps is the SCTP transport operations adapter.
//
// Every method that takes a Handle must fail with ErrInvalidHandle, without
// touching the OS, when the handle is not Valid.
type SocketOps interface {
	// Open creates a one-to-one style SCTP socket for the given address family.
	Open(family int) (Handle, error)

	// SetReuseAddr toggles SO_REUSEADDR.
	SetReuseAddr(h Handle, on bool) error

	// Bind binds the primary local address.
	Bind(h Handle, addr netip.AddrPort) error

	// Listen marks the socket passive. The listening socket is non-blocking.
	Listen(h Handle, backlog int) error

	// Accept takes one pending association. It returns ErrWouldBlock when none
	// is queued. The returned handle is blocking.
	Accept(h Handle) (Handle, netip.AddrPort, error)

	// Connect establishes an association to addr.
	Connect(h Handle, addr netip.AddrPort) error

	// BindAddress adds a local address to an open socket's address set.
	BindAddress(h Handle, addr netip.AddrPort) error

	// UnbindAddress removes a local address from the socket's address set.
	UnbindAddress(h Handle, addr netip.AddrPort) error

	// LocalAddresses returns the kernel's current local address list.
	LocalAddresses(h Handle) (EndpointSet, error)

	// RemoteAddresses returns the kernel's current peer address list.
	RemoteAddresses(h Handle) (EndpointSet, error)

	// PeerAddress returns the primary remote address, or ErrNotConnected.
	PeerAddress(h Handle) (netip.AddrPort, error)

	// SendMessage transmits one message with DefaultTimeToLive. An invalid
	// dest sends to the association's primary path.
	SendMessage(h Handle, data []byte, dest netip.AddrPort, stream uint16, ppid uint32, flags uint32) (int, error)

	// ReceiveMessage blocks until one message, EOF or abort arrives.
	// Termination is reported through Received.Flags, not as an error.
	ReceiveMessage(h Handle, buf []byte) (Received, error)

	// SetNoDelay toggles SCTP_NODELAY.
	SetNoDelay(h Handle, on bool) error

	// SetDelayedAck configures SCTP_DELAYED_SACK.
	SetDelayedAck(h Handle, info SackInfo) error

	// SubscribeEvents configures SCTP_EVENTS.
	SubscribeEvents(h Handle, ev EventSubscription) error

	// SetPeerAddrParams configures SCTP_PEER_ADDR_PARAMS.
	SetPeerAddrParams(h Handle, p PeerAddrParams) error

	// Shutdown shuts down one or both directions.
	Shutdown(h Handle, how ShutdownHow) error

	// Close releases the descriptor.
	Close(h Handle) error
}
