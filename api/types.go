// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import (
	"net/netip"
	"time"
)

// Handle is a native socket descriptor.
type Handle int

// InvalidHandle marks a socket that is not open.
const InvalidHandle Handle = -1

// Valid reports whether h refers to an open descriptor.
func (h Handle) Valid() bool { return h >= 0 }

// DefaultTimeToLive bounds how long the transport keeps retrying an outbound
// message before it may silently drop it.
const DefaultTimeToLive = 100 * time.Millisecond

// TermFlag distinguishes data from the two association termination signals.
type TermFlag uint8

const (
	TermNone TermFlag = iota
	TermEOF
	TermAbort
)

func (f TermFlag) String() string {
	switch f {
	case TermEOF:
		return "eof"
	case TermAbort:
		return "abort"
	default:
		return "none"
	}
}

// Message is one received SCTP user message. Flags is TermNone except on a
// final message that arrived together with the peer's EOF or abort; the
// association terminates right after dispatching it. From is the peer
// address the kernel reported, which may differ from the primary path on a
// multi-homed association; it is the zero value when unknown.
type Message struct {
	Data   []byte
	Stream uint16
	PPID   uint32
	Flags  TermFlag
	From   netip.AddrPort
}

// Header returns the application header carried in the first bytes of Data.
func (m Message) Header() (Header, error) {
	return ParseHeader(m.Data)
}

// Received is the result of a single ReceiveMessage call.
type Received struct {
	N            int            // bytes written into the caller's buffer
	Stream       uint16         // stream number from SCTP_SNDRCV
	PPID         uint32         // payload protocol identifier, host order
	Flags        TermFlag       // EOF/Abort translate here, never into data
	Notification bool           // buffer holds an SCTP event, not user data
	EndOfRecord  bool           // MSG_EOR: last fragment of a user message
	From         netip.AddrPort // source address reported by recvmsg
}

// EndpointSet is the ordered list of local or remote addresses of one
// socket. It is fetched on demand and never cached.
type EndpointSet []netip.AddrPort

// Contains reports whether addr is part of the set.
func (s EndpointSet) Contains(addr netip.AddrPort) bool {
	for _, a := range s {
		if a == addr {
			return true
		}
	}
	return false
}

// Addrs returns the IP part of every endpoint.
func (s EndpointSet) Addrs() []netip.Addr {
	out := make([]netip.Addr, len(s))
	for i, a := range s {
		out[i] = a.Addr()
	}
	return out
}

// PeerTuning holds per-association transport parameters applied once at
// accept time.
type PeerTuning struct {
	NoDelay              bool
	DisableDelayedAck    bool
	SubscribeAssocEvents bool
	HeartbeatInterval    time.Duration
	MaxPathRetransmits   uint16
}

// DefaultPeerTuning returns the fixed accept-time tuning: Nagle off,
// delayed SACK off, association events on, 2s heartbeat, 3 path retries.
func DefaultPeerTuning() PeerTuning {
	return PeerTuning{
		NoDelay:              true,
		DisableDelayedAck:    true,
		SubscribeAssocEvents: true,
		HeartbeatInterval:    2000 * time.Millisecond,
		MaxPathRetransmits:   3,
	}
}

// SackInfo mirrors struct sctp_sack_info. Frequency 1 disables the
// delayed-SACK algorithm.
type SackInfo struct {
	Delay     time.Duration
	Frequency uint32
}

// EventSubscription mirrors struct sctp_event_subscribe.
type EventSubscription struct {
	DataIO          bool
	Association     bool
	Address         bool
	SendFailure     bool
	PeerError       bool
	Shutdown        bool
	PartialDelivery bool
	AdaptationLayer bool
	Authentication  bool
	SenderDry       bool
}

// PeerAddrFlags mirrors the spp_flags bits of struct sctp_paddrparams.
type PeerAddrFlags uint32

const (
	HeartbeatEnable  PeerAddrFlags = 1 << 0
	HeartbeatDisable PeerAddrFlags = 1 << 1
)

// PeerAddrParams mirrors struct sctp_paddrparams. A zero Address applies
// the parameters to every peer address of the association.
type PeerAddrParams struct {
	Address            netip.AddrPort
	HeartbeatInterval  time.Duration
	PathMaxRetransmits uint16
	Flags              PeerAddrFlags
}

// ShutdownHow selects which direction Shutdown closes.
type ShutdownHow int

const (
	ShutdownRead ShutdownHow = iota
	ShutdownWrite
	ShutdownBoth
)

// AssociationState is the lifecycle state of one association.
type AssociationState int32

const (
	AssocCreated AssociationState = iota
	AssocReceiving
	AssocClosing
	AssocClosed
)

func (s AssociationState) String() string {
	switch s {
	case AssocCreated:
		return "created"
	case AssocReceiving:
		return "receiving"
	case AssocClosing:
		return "closing"
	case AssocClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AcceptorState is the lifecycle state of a listening socket.
type AcceptorState int

const (
	AcceptorUnbound AcceptorState = iota
	AcceptorBound
	AcceptorListening
	AcceptorClosed
)

func (s AcceptorState) String() string {
	switch s {
	case AcceptorUnbound:
		return "unbound"
	case AcceptorBound:
		return "bound"
	case AcceptorListening:
		return "listening"
	case AcceptorClosed:
		return "closed"
	default:
		return "unknown"
	}
}
