//go:build !linux
// +build !linux

// File: internal/transport/sctp_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without kernel SCTP.

package transport

import (
	"net/netip"

	"github.com/momentics/hioload-sctp/api"
)

type stubOps struct{}

func newOps() api.SocketOps { return stubOps{} }

func (stubOps) Open(int) (api.Handle, error) {
	return api.InvalidHandle, api.ErrNotSupported
}

func (stubOps) SetReuseAddr(api.Handle, bool) error {
	return api.ErrNotSupported
}

func (stubOps) Bind(api.Handle, netip.AddrPort) error {
	return api.ErrNotSupported
}

func (stubOps) Listen(api.Handle, int) error {
	return api.ErrNotSupported
}

func (stubOps) Accept(api.Handle) (api.Handle, netip.AddrPort, error) {
	return api.InvalidHandle, netip.AddrPort{}, api.ErrNotSupported
}

func (stubOps) Connect(api.Handle, netip.AddrPort) error {
	return api.ErrNotSupported
}

func (stubOps) BindAddress(api.Handle, netip.AddrPort) error {
	return api.ErrNotSupported
}

func (stubOps) UnbindAddress(api.Handle, netip.AddrPort) error {
	return api.ErrNotSupported
}

func (stubOps) LocalAddresses(api.Handle) (api.EndpointSet, error) {
	return nil, api.ErrNotSupported
}

func (stubOps) RemoteAddresses(api.Handle) (api.EndpointSet, error) {
	return nil, api.ErrNotSupported
}

func (stubOps) PeerAddress(api.Handle) (netip.AddrPort, error) {
	return netip.AddrPort{}, api.ErrNotSupported
}

func (stubOps) SendMessage(api.Handle, []byte, netip.AddrPort, uint16, uint32, uint32) (int, error) {
	return 0, api.ErrNotSupported
}

func (stubOps) ReceiveMessage(api.Handle, []byte) (api.Received, error) {
	return api.Received{}, api.ErrNotSupported
}

func (stubOps) SetNoDelay(api.Handle, bool) error {
	return api.ErrNotSupported
}

func (stubOps) SetDelayedAck(api.Handle, api.SackInfo) error {
	return api.ErrNotSupported
}

func (stubOps) SubscribeEvents(api.Handle, api.EventSubscription) error {
	return api.ErrNotSupported
}

func (stubOps) SetPeerAddrParams(api.Handle, api.PeerAddrParams) error {
	return api.ErrNotSupported
}

func (stubOps) Shutdown(api.Handle, api.ShutdownHow) error {
	return api.ErrNotSupported
}

func (stubOps) Close(api.Handle) error {
	return api.ErrNotSupported
}
