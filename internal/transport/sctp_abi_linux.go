//go:build linux
// +build linux

// File: internal/transport/sctp_abi_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux SCTP kernel ABI: option numbers, notification codes and explicit
// encoders for the structures of <linux/sctp.h>. Structures are built field by
// field from the named api types; nothing is copied as raw memory.

package transport

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-sctp/api"
	"golang.org/x/sys/unix"
)

const solSCTP = unix.IPPROTO_SCTP

// Socket options.
const (
	sctpNoDelay         = 3
	sctpPeerAddrParams  = 9
	sctpEvents          = 11
	sctpDelayedSack     = 16
	sctpSockoptBindxAdd = 100
	sctpSockoptBindxRem = 101
	sctpGetPeerAddrs    = 108
	sctpGetLocalAddrs   = 109
)

// Ancillary data types.
const sctpCmsgSndrcv = 1

// sinfo_flags.
const (
	sctpFlagUnordered = 0x1
	sctpFlagAbort     = 0x4
	sctpFlagEOF       = unix.MSG_FIN
)

// msgNotification is set in recvmsg flags when the buffer carries an event.
const msgNotification = 0x8000

// Notification types and association change states.
const (
	sctpAssocChange     = 0x8001
	sctpPeerAddrChange  = 0x8002
	sctpShutdownEvent   = 0x8005
	sctpCommUp          = 0
	sctpCommLost        = 1
	sctpRestart         = 2
	sctpShutdownComp    = 3
	sctpCantStartAssoc  = 4
	notificationHdrSize = 8
)

// Structure sizes.
const (
	sndrcvInfoSize     = 32
	sackInfoSize       = 12
	eventSubscribeSize = 10
	sockaddrInSize     = 16
	sockaddrIn6Size    = 28
	sockaddrStorage    = 128
	getaddrsHdrSize    = 8
	// offsetof(spp_ipv6_flowlabel) rounded up to 4; accepted by all kernels
	// that know SCTP_PEER_ADDR_PARAMS.
	paddrParamsSize = 152
)

var native = binary.NativeEndian

// encodeSockaddr writes addr as struct sockaddr_in or sockaddr_in6.
func encodeSockaddr(addr netip.AddrPort) ([]byte, error) {
	ip := addr.Addr()
	switch {
	case ip.Is4() || ip.Is4In6():
		b := make([]byte, sockaddrInSize)
		native.PutUint16(b[0:], unix.AF_INET)
		binary.BigEndian.PutUint16(b[2:], addr.Port())
		a4 := ip.Unmap().As4()
		copy(b[4:8], a4[:])
		return b, nil
	case ip.Is6():
		b := make([]byte, sockaddrIn6Size)
		native.PutUint16(b[0:], unix.AF_INET6)
		binary.BigEndian.PutUint16(b[2:], addr.Port())
		a16 := ip.As16()
		copy(b[8:24], a16[:])
		return b, nil
	default:
		return nil, api.ErrInvalidArgument.WithContext("addr", addr.String())
	}
}

// decodeSockaddrs parses count packed sockaddrs from b.
func decodeSockaddrs(b []byte, count int) (api.EndpointSet, error) {
	out := make(api.EndpointSet, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if len(b)-off < 2 {
			return nil, fmt.Errorf("sctp addrs: truncated entry %d", i)
		}
		switch native.Uint16(b[off:]) {
		case unix.AF_INET:
			if len(b)-off < sockaddrInSize {
				return nil, fmt.Errorf("sctp addrs: truncated sockaddr_in %d", i)
			}
			port := binary.BigEndian.Uint16(b[off+2:])
			ip := netip.AddrFrom4([4]byte(b[off+4 : off+8]))
			out = append(out, netip.AddrPortFrom(ip, port))
			off += sockaddrInSize
		case unix.AF_INET6:
			if len(b)-off < sockaddrIn6Size {
				return nil, fmt.Errorf("sctp addrs: truncated sockaddr_in6 %d", i)
			}
			port := binary.BigEndian.Uint16(b[off+2:])
			ip := netip.AddrFrom16([16]byte(b[off+8 : off+24]))
			out = append(out, netip.AddrPortFrom(ip, port))
			off += sockaddrIn6Size
		default:
			return nil, fmt.Errorf("sctp addrs: unknown family %d", native.Uint16(b[off:]))
		}
	}
	return out, nil
}

// toSockaddr converts addr into the x/sys representation.
func toSockaddr(addr netip.AddrPort) (unix.Sockaddr, error) {
	ip := addr.Addr()
	switch {
	case ip.Is4() || ip.Is4In6():
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.Unmap().As4()}, nil
	case ip.Is6():
		return &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}, nil
	default:
		return nil, api.ErrInvalidArgument.WithContext("addr", addr.String())
	}
}

// fromSockaddr converts a kernel-reported sockaddr into an AddrPort.
func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr), uint16(v.Port))
	default:
		return netip.AddrPort{}
	}
}

// sndrcvInfo is struct sctp_sndrcvinfo.
type sndrcvInfo struct {
	Stream     uint16
	SSN        uint16
	Flags      uint16
	PPID       uint32 // host order; the wire field is network order
	Context    uint32
	TimeToLive uint32
	TSN        uint32
	CumTSN     uint32
	AssocID    int32
}

func (s sndrcvInfo) encode() []byte {
	b := make([]byte, sndrcvInfoSize)
	native.PutUint16(b[0:], s.Stream)
	native.PutUint16(b[2:], s.SSN)
	native.PutUint16(b[4:], s.Flags)
	binary.BigEndian.PutUint32(b[8:], s.PPID)
	native.PutUint32(b[12:], s.Context)
	native.PutUint32(b[16:], s.TimeToLive)
	native.PutUint32(b[20:], s.TSN)
	native.PutUint32(b[24:], s.CumTSN)
	native.PutUint32(b[28:], uint32(s.AssocID))
	return b
}

func decodeSndrcvInfo(b []byte) (sndrcvInfo, bool) {
	if len(b) < sndrcvInfoSize {
		return sndrcvInfo{}, false
	}
	return sndrcvInfo{
		Stream:     native.Uint16(b[0:]),
		SSN:        native.Uint16(b[2:]),
		Flags:      native.Uint16(b[4:]),
		PPID:       binary.BigEndian.Uint32(b[8:]),
		Context:    native.Uint32(b[12:]),
		TimeToLive: native.Uint32(b[16:]),
		TSN:        native.Uint32(b[20:]),
		CumTSN:     native.Uint32(b[24:]),
		AssocID:    int32(native.Uint32(b[28:])),
	}, true
}

// encodeSackInfo builds struct sctp_sack_info.
func encodeSackInfo(info api.SackInfo) []byte {
	b := make([]byte, sackInfoSize)
	native.PutUint32(b[4:], uint32(info.Delay.Milliseconds()))
	native.PutUint32(b[8:], info.Frequency)
	return b
}

// encodeEventSubscribe builds struct sctp_event_subscribe, one byte per event.
func encodeEventSubscribe(ev api.EventSubscription) []byte {
	flags := [eventSubscribeSize]bool{
		ev.DataIO,
		ev.Association,
		ev.Address,
		ev.SendFailure,
		ev.PeerError,
		ev.Shutdown,
		ev.PartialDelivery,
		ev.AdaptationLayer,
		ev.Authentication,
		ev.SenderDry,
	}
	b := make([]byte, eventSubscribeSize)
	for i, on := range flags {
		if on {
			b[i] = 1
		}
	}
	return b
}

// encodePeerAddrParams builds the packed struct sctp_paddrparams:
//
//	0   spp_assoc_id
//	4   spp_address (sockaddr_storage)
//	132 spp_hbinterval
//	136 spp_pathmaxrxt
//	138 spp_pathmtu
//	142 spp_sackdelay
//	146 spp_flags
func encodePeerAddrParams(p api.PeerAddrParams) ([]byte, error) {
	b := make([]byte, paddrParamsSize)
	if p.Address.IsValid() {
		sa, err := encodeSockaddr(p.Address)
		if err != nil {
			return nil, err
		}
		copy(b[4:4+sockaddrStorage], sa)
	}
	native.PutUint32(b[132:], uint32(p.HeartbeatInterval.Milliseconds()))
	native.PutUint16(b[136:], p.PathMaxRetransmits)
	native.PutUint32(b[146:], uint32(p.Flags))
	return b, nil
}

// notification is the generic header of an SCTP event.
type notification struct {
	Type  uint16
	Flags uint16
	Len   uint32
	// State is sac_state for SCTP_ASSOC_CHANGE, zero otherwise.
	State uint16
}

func decodeNotification(b []byte) (notification, bool) {
	if len(b) < notificationHdrSize {
		return notification{}, false
	}
	n := notification{
		Type:  native.Uint16(b[0:]),
		Flags: native.Uint16(b[2:]),
		Len:   native.Uint32(b[4:]),
	}
	if n.Type == sctpAssocChange && len(b) >= notificationHdrSize+2 {
		n.State = native.Uint16(b[8:])
	}
	return n, true
}

// termination maps an event onto the association termination signals.
func (n notification) termination() api.TermFlag {
	switch n.Type {
	case sctpAssocChange:
		switch n.State {
		case sctpCommLost, sctpCantStartAssoc:
			return api.TermAbort
		case sctpShutdownComp:
			return api.TermEOF
		}
	case sctpShutdownEvent:
		return api.TermEOF
	}
	return api.TermNone
}
