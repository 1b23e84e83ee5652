// File: sctp/dial.go
// Author: momentics <momentics@gmail.com>

package sctp

import (
	"net/netip"

	"github.com/momentics/hioload-sctp/api"
)

var dialEvents = api.EventSubscription{DataIO: true, Association: true}

// Dial opens an association to addr. Extra local addresses, when given,
// are added to the socket before connecting. Data I/O and association
// events are subscribed after connecting so received messages carry their
// stream and ppid. The returned association is Created; call StartReceiving
// to run its receive loop.
func Dial(ops api.SocketOps, addr netip.AddrPort, handler MessageHandler, local []netip.AddrPort, opts ...Option) (*Association, error) {
	if !addr.IsValid() {
		return nil, api.ErrInvalidArgument.WithContext("addr", addr.String())
	}
	h, err := ops.Open(familyOf(addr))
	if err != nil {
		return nil, err
	}
	for i, l := range local {
		if i == 0 {
			err = ops.Bind(h, l)
		} else {
			err = ops.BindAddress(h, l)
		}
		if err != nil {
			_ = ops.Close(h)
			return nil, err
		}
	}
	if err := ops.Connect(h, addr); err != nil {
		_ = ops.Close(h)
		return nil, err
	}
	if err := ops.SubscribeEvents(h, dialEvents); err != nil {
		_ = ops.Close(h)
		return nil, err
	}
	return newAssociation(ops, h, addr, handler, opts), nil
}
