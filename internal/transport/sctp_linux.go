//go:build linux
// +build linux

// File: internal/transport/sctp_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux SCTP transport operations over golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"unsafe"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/pool"
	"golang.org/x/sys/unix"
)

// addrListSize fits well over a hundred IPv6 endpoints.
const addrListSize = 4096

// maxAddrListSize caps the retry after ENOMEM from the kernel.
const maxAddrListSize = 64 * 1024

type linuxOps struct {
	addrBufs *pool.BytePool
}

func newOps() api.SocketOps {
	return &linuxOps{addrBufs: pool.NewBytePool(addrListSize)}
}

// Open creates a blocking one-to-one SCTP socket.
func (o *linuxOps) Open(family int) (api.Handle, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_SCTP)
	if err != nil {
		if errors.Is(err, unix.EPROTONOSUPPORT) || errors.Is(err, unix.ESOCKTNOSUPPORT) || errors.Is(err, unix.EAFNOSUPPORT) {
			return api.InvalidHandle, api.ErrNotSupported.WithContext("errno", err.Error())
		}
		return api.InvalidHandle, fmt.Errorf("sctp socket: %w", err)
	}
	return api.Handle(fd), nil
}

func (o *linuxOps) SetReuseAddr(h api.Handle, on bool) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(on)); err != nil {
		return fmt.Errorf("sctp reuseaddr: %w", err)
	}
	return nil
}

func (o *linuxOps) Bind(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	sa, err := toSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(int(h), sa); err != nil {
		return fmt.Errorf("sctp bind %s: %w", addr, err)
	}
	return nil
}

func (o *linuxOps) Listen(h api.Handle, backlog int) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.SetNonblock(int(h), true); err != nil {
		return fmt.Errorf("sctp nonblock: %w", err)
	}
	if err := unix.Listen(int(h), backlog); err != nil {
		return fmt.Errorf("sctp listen: %w", err)
	}
	return nil
}

func (o *linuxOps) Accept(h api.Handle) (api.Handle, netip.AddrPort, error) {
	if !h.Valid() {
		return api.InvalidHandle, netip.AddrPort{}, api.ErrInvalidHandle
	}
	// accepted sockets stay blocking: the receive loop parks in recvmsg
	nfd, sa, err := unix.Accept4(int(h), unix.SOCK_CLOEXEC)
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			return api.InvalidHandle, netip.AddrPort{}, api.ErrWouldBlock
		}
		return api.InvalidHandle, netip.AddrPort{}, fmt.Errorf("sctp accept: %w", err)
	}
	return api.Handle(nfd), fromSockaddr(sa), nil
}

func (o *linuxOps) Connect(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	sa, err := toSockaddr(addr)
	if err != nil {
		return err
	}
	for {
		err = unix.Connect(int(h), sa)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("sctp connect %s: %w", addr, err)
	}
	return nil
}

func (o *linuxOps) BindAddress(h api.Handle, addr netip.AddrPort) error {
	return o.bindx(h, addr, sctpSockoptBindxAdd, "bindx add")
}

func (o *linuxOps) UnbindAddress(h api.Handle, addr netip.AddrPort) error {
	return o.bindx(h, addr, sctpSockoptBindxRem, "bindx rem")
}

func (o *linuxOps) bindx(h api.Handle, addr netip.AddrPort, opt int, op string) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	sa, err := encodeSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptString(int(h), solSCTP, opt, string(sa)); err != nil {
		return fmt.Errorf("sctp %s %s: %w", op, addr, err)
	}
	return nil
}

func (o *linuxOps) LocalAddresses(h api.Handle) (api.EndpointSet, error) {
	return o.addrs(h, sctpGetLocalAddrs, "getladdrs")
}

func (o *linuxOps) RemoteAddresses(h api.Handle) (api.EndpointSet, error) {
	return o.addrs(h, sctpGetPeerAddrs, "getpaddrs")
}

// addrs reads the kernel address list into a pooled buffer and copies it
// out; the buffer goes back to the pool on every path.
func (o *linuxOps) addrs(h api.Handle, opt int, op string) (api.EndpointSet, error) {
	if !h.Valid() {
		return nil, api.ErrInvalidHandle
	}
	var out api.EndpointSet
	err := o.addrBufs.With(func(buf []byte) error {
		var err error
		out, err = readAddrs(h, opt, buf)
		if errors.Is(err, unix.ENOMEM) {
			out, err = readAddrs(h, opt, make([]byte, maxAddrListSize))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sctp %s: %w", op, err)
	}
	return out, nil
}

func readAddrs(h api.Handle, opt int, buf []byte) (api.EndpointSet, error) {
	// struct sctp_getaddrs { assoc_id; addr_num; addrs[] }; assoc 0 on one-to-one
	clear(buf[:getaddrsHdrSize])
	n, err := getsockopt(int(h), solSCTP, opt, buf)
	if err != nil {
		return nil, err
	}
	if n < getaddrsHdrSize {
		return nil, fmt.Errorf("short getaddrs reply: %d bytes", n)
	}
	count := int(native.Uint32(buf[4:]))
	return decodeSockaddrs(buf[getaddrsHdrSize:n], count)
}

func (o *linuxOps) PeerAddress(h api.Handle) (netip.AddrPort, error) {
	if !h.Valid() {
		return netip.AddrPort{}, api.ErrInvalidHandle
	}
	sa, err := unix.Getpeername(int(h))
	if err != nil {
		if errors.Is(err, unix.ENOTCONN) {
			return netip.AddrPort{}, api.ErrNotConnected
		}
		return netip.AddrPort{}, fmt.Errorf("sctp getpeername: %w", err)
	}
	addr := fromSockaddr(sa)
	if !addr.IsValid() {
		return netip.AddrPort{}, api.ErrNotConnected
	}
	return addr, nil
}

func (o *linuxOps) SendMessage(h api.Handle, data []byte, dest netip.AddrPort, stream uint16, ppid uint32, flags uint32) (int, error) {
	if !h.Valid() {
		return 0, api.ErrInvalidHandle
	}
	var to unix.Sockaddr
	if dest.IsValid() {
		sa, err := toSockaddr(dest)
		if err != nil {
			return 0, err
		}
		to = sa
	}
	info := sndrcvInfo{
		Stream:     stream,
		Flags:      uint16(flags),
		PPID:       ppid,
		TimeToLive: uint32(api.DefaultTimeToLive.Milliseconds()),
	}
	oob := sndrcvCmsg(info)
	for {
		n, err := unix.SendmsgN(int(h), data, oob, to, unix.MSG_NOSIGNAL)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("sctp sendmsg: %w", err)
		}
		return n, nil
	}
}

func (o *linuxOps) ReceiveMessage(h api.Handle, buf []byte) (api.Received, error) {
	if !h.Valid() {
		return api.Received{}, api.ErrInvalidHandle
	}
	oob := make([]byte, unix.CmsgSpace(sndrcvInfoSize))
	var (
		n, oobn, rflags int
		from            unix.Sockaddr
		err             error
	)
	for {
		n, oobn, rflags, from, err = unix.Recvmsg(int(h), buf, oob, 0)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, unix.ECONNRESET):
			return api.Received{Flags: api.TermAbort}, nil
		case errors.Is(err, unix.ENOTCONN):
			return api.Received{Flags: api.TermEOF}, nil
		case errors.Is(err, unix.ECANCELED), errors.Is(err, unix.EBADF), errors.Is(err, unix.ESHUTDOWN):
			return api.Received{}, api.ErrCanceled.WithContext("errno", err.Error())
		}
		return api.Received{}, fmt.Errorf("sctp recvmsg: %w", err)
	}

	rcv := api.Received{
		N:           n,
		EndOfRecord: rflags&unix.MSG_EOR != 0,
	}
	if from != nil {
		rcv.From = fromSockaddr(from)
	}

	if rflags&msgNotification != 0 {
		rcv.Notification = true
		if ev, ok := decodeNotification(buf[:n]); ok {
			rcv.Flags = ev.termination()
		}
		return rcv, nil
	}
	if n == 0 {
		rcv.Flags = api.TermEOF
		return rcv, nil
	}

	if info, ok := parseSndrcv(oob[:oobn]); ok {
		rcv.Stream = info.Stream
		rcv.PPID = info.PPID
		switch {
		case info.Flags&sctpFlagAbort != 0:
			rcv.Flags = api.TermAbort
		case info.Flags&sctpFlagEOF != 0:
			rcv.Flags = api.TermEOF
		}
	}
	return rcv, nil
}

func (o *linuxOps) SetNoDelay(h api.Handle, on bool) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.SetsockoptInt(int(h), solSCTP, sctpNoDelay, boolToInt(on)); err != nil {
		return fmt.Errorf("sctp nodelay: %w", err)
	}
	return nil
}

func (o *linuxOps) SetDelayedAck(h api.Handle, info api.SackInfo) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.SetsockoptString(int(h), solSCTP, sctpDelayedSack, string(encodeSackInfo(info))); err != nil {
		return fmt.Errorf("sctp delayed sack: %w", err)
	}
	return nil
}

func (o *linuxOps) SubscribeEvents(h api.Handle, ev api.EventSubscription) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.SetsockoptString(int(h), solSCTP, sctpEvents, string(encodeEventSubscribe(ev))); err != nil {
		return fmt.Errorf("sctp events: %w", err)
	}
	return nil
}

func (o *linuxOps) SetPeerAddrParams(h api.Handle, p api.PeerAddrParams) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	b, err := encodePeerAddrParams(p)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptString(int(h), solSCTP, sctpPeerAddrParams, string(b)); err != nil {
		return fmt.Errorf("sctp peer addr params: %w", err)
	}
	return nil
}

func (o *linuxOps) Shutdown(h api.Handle, how api.ShutdownHow) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	var mode int
	switch how {
	case api.ShutdownRead:
		mode = unix.SHUT_RD
	case api.ShutdownWrite:
		mode = unix.SHUT_WR
	default:
		mode = unix.SHUT_RDWR
	}
	if err := unix.Shutdown(int(h), mode); err != nil {
		return fmt.Errorf("sctp shutdown: %w", err)
	}
	return nil
}

func (o *linuxOps) Close(h api.Handle) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := unix.Close(int(h)); err != nil {
		return fmt.Errorf("sctp close: %w", err)
	}
	return nil
}

// sndrcvCmsg wraps info in a SOL_SCTP/SCTP_SNDRCV control message.
func sndrcvCmsg(info sndrcvInfo) []byte {
	oob := make([]byte, unix.CmsgSpace(sndrcvInfoSize))
	hdr := (*unix.Cmsghdr)(unsafe.Pointer(&oob[0]))
	hdr.Level = solSCTP
	hdr.Type = sctpCmsgSndrcv
	hdr.SetLen(unix.CmsgLen(sndrcvInfoSize))
	copy(oob[unix.CmsgLen(0):], info.encode())
	return oob
}

func parseSndrcv(oob []byte) (sndrcvInfo, bool) {
	if len(oob) == 0 {
		return sndrcvInfo{}, false
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return sndrcvInfo{}, false
	}
	for _, m := range msgs {
		if m.Header.Level == solSCTP && m.Header.Type == sctpCmsgSndrcv {
			return decodeSndrcvInfo(m.Data)
		}
	}
	return sndrcvInfo{}, false
}

// getsockopt is the raw buffer form x/sys does not export.
func getsockopt(fd, level, opt int, buf []byte) (int, error) {
	l := uint32(len(buf))
	_, _, e := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd), uintptr(level), uintptr(opt),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&l)), 0)
	if e != 0 {
		return 0, e
	}
	return int(l), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
