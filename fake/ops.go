// File: fake/ops.go
// Author: momentics <momentics@gmail.com>
//
// Scriptable SocketOps spy.

package fake

import (
	"net/netip"
	"sync"

	"github.com/momentics/hioload-sctp/api"
)

// Delivery is one scripted ReceiveMessage result.
type Delivery struct {
	Data []byte
	Info api.Received
	Err  error
}

// Sent is one captured SendMessage call.
type Sent struct {
	Handle api.Handle
	Data   []byte
	Dest   netip.AddrPort
	Stream uint16
	PPID   uint32
	Flags  uint32
}

type acceptResult struct {
	h    api.Handle
	peer netip.AddrPort
	err  error
}

// Ops implements api.SocketOps in memory. Calls on an invalid handle fail
// with api.ErrInvalidHandle and are not recorded.
type Ops struct {
	rec *Recorder

	mu       sync.Mutex
	next     api.Handle
	accepts  []acceptResult
	inboxes  map[api.Handle]chan Delivery
	shut     map[api.Handle]chan struct{}
	sent     []Sent
	failures map[string]error
	local    map[api.Handle]api.EndpointSet
	remote   map[api.Handle]api.EndpointSet
	peers    map[api.Handle]netip.AddrPort
}

// NewOps returns a spy writing into rec. A nil rec gets a private recorder.
func NewOps(rec *Recorder) *Ops {
	if rec == nil {
		rec = NewRecorder()
	}
	return &Ops{
		rec:      rec,
		next:     10,
		inboxes:  make(map[api.Handle]chan Delivery),
		shut:     make(map[api.Handle]chan struct{}),
		failures: make(map[string]error),
		local:    make(map[api.Handle]api.EndpointSet),
		remote:   make(map[api.Handle]api.EndpointSet),
		peers:    make(map[api.Handle]netip.AddrPort),
	}
}

// Recorder returns the shared call log.
func (o *Ops) Recorder() *Recorder { return o.rec }

// SetNextHandle sets the handle returned by the next Open.
func (o *Ops) SetNextHandle(h api.Handle) {
	o.mu.Lock()
	o.next = h
	o.mu.Unlock()
}

// FailOn makes every later call of op return err. A nil err clears it.
func (o *Ops) FailOn(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.failures, op)
		return
	}
	o.failures[op] = err
}

// QueueAccept scripts one successful Accept result.
func (o *Ops) QueueAccept(h api.Handle, peer netip.AddrPort) {
	o.mu.Lock()
	o.accepts = append(o.accepts, acceptResult{h: h, peer: peer})
	o.peers[h] = peer
	o.mu.Unlock()
}

// QueueAcceptError scripts one failing Accept result.
func (o *Ops) QueueAcceptError(err error) {
	o.mu.Lock()
	o.accepts = append(o.accepts, acceptResult{h: api.InvalidHandle, err: err})
	o.mu.Unlock()
}

// SetEndpoints fixes what LocalAddresses and RemoteAddresses report for h.
func (o *Ops) SetEndpoints(h api.Handle, local, remote api.EndpointSet) {
	o.mu.Lock()
	o.local[h] = local
	o.remote[h] = remote
	o.mu.Unlock()
}

// Deliver scripts the next ReceiveMessage result for h.
func (o *Ops) Deliver(h api.Handle, d Delivery) {
	o.inbox(h) <- d
}

// DeliverData scripts one complete user message.
func (o *Ops) DeliverData(h api.Handle, stream uint16, ppid uint32, data []byte) {
	o.Deliver(h, Delivery{Data: data, Info: api.Received{Stream: stream, PPID: ppid, EndOfRecord: true}})
}

// DeliverEOF scripts a peer-initiated shutdown.
func (o *Ops) DeliverEOF(h api.Handle) {
	o.Deliver(h, Delivery{Info: api.Received{Flags: api.TermEOF}})
}

// DeliverAbort scripts an association abort.
func (o *Ops) DeliverAbort(h api.Handle) {
	o.Deliver(h, Delivery{Info: api.Received{Flags: api.TermAbort}})
}

// DeliverError scripts a receive failure.
func (o *Ops) DeliverError(h api.Handle, err error) {
	o.Deliver(h, Delivery{Err: err})
}

// Sent returns a snapshot of captured sends.
func (o *Ops) Sent() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Sent, len(o.sent))
	copy(out, o.sent)
	return out
}

func (o *Ops) inbox(h api.Handle) chan Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.inboxes[h]
	if !ok {
		ch = make(chan Delivery, 64)
		o.inboxes[h] = ch
	}
	return ch
}

func (o *Ops) shutdownCh(h api.Handle) chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.shut[h]
	if !ok {
		ch = make(chan struct{})
		o.shut[h] = ch
	}
	return ch
}

// call records op and returns its scripted failure.
func (o *Ops) call(op string, h api.Handle, arg any) error {
	o.rec.Record(op, h, arg)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures[op]
}

func (o *Ops) Open(family int) (api.Handle, error) {
	o.mu.Lock()
	h := o.next
	o.next++
	o.mu.Unlock()
	if err := o.call(OpOpen, h, family); err != nil {
		return api.InvalidHandle, err
	}
	return h, nil
}

func (o *Ops) SetReuseAddr(h api.Handle, on bool) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpReuseAddr, h, on)
}

func (o *Ops) Bind(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := o.call(OpBind, h, addr); err != nil {
		return err
	}
	o.mu.Lock()
	o.local[h] = append(o.local[h], addr)
	o.mu.Unlock()
	return nil
}

func (o *Ops) Listen(h api.Handle, backlog int) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpListen, h, backlog)
}

func (o *Ops) Accept(h api.Handle) (api.Handle, netip.AddrPort, error) {
	if !h.Valid() {
		return api.InvalidHandle, netip.AddrPort{}, api.ErrInvalidHandle
	}
	if err := o.call(OpAccept, h, nil); err != nil {
		return api.InvalidHandle, netip.AddrPort{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.accepts) == 0 {
		return api.InvalidHandle, netip.AddrPort{}, api.ErrWouldBlock
	}
	r := o.accepts[0]
	o.accepts = o.accepts[1:]
	return r.h, r.peer, r.err
}

func (o *Ops) Connect(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := o.call(OpConnect, h, addr); err != nil {
		return err
	}
	o.mu.Lock()
	o.peers[h] = addr
	o.mu.Unlock()
	return nil
}

func (o *Ops) BindAddress(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := o.call(OpBindAddress, h, addr); err != nil {
		return err
	}
	o.mu.Lock()
	o.local[h] = append(o.local[h], addr)
	o.mu.Unlock()
	return nil
}

func (o *Ops) UnbindAddress(h api.Handle, addr netip.AddrPort) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := o.call(OpUnbindAddr, h, addr); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.local[h][:0]
	for _, a := range o.local[h] {
		if a != addr {
			kept = append(kept, a)
		}
	}
	o.local[h] = kept
	return nil
}

func (o *Ops) LocalAddresses(h api.Handle) (api.EndpointSet, error) {
	if !h.Valid() {
		return nil, api.ErrInvalidHandle
	}
	if err := o.call(OpLocalAddrs, h, nil); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return append(api.EndpointSet(nil), o.local[h]...), nil
}

func (o *Ops) RemoteAddresses(h api.Handle) (api.EndpointSet, error) {
	if !h.Valid() {
		return nil, api.ErrInvalidHandle
	}
	if err := o.call(OpRemoteAddrs, h, nil); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return append(api.EndpointSet(nil), o.remote[h]...), nil
}

func (o *Ops) PeerAddress(h api.Handle) (netip.AddrPort, error) {
	if !h.Valid() {
		return netip.AddrPort{}, api.ErrInvalidHandle
	}
	if err := o.call(OpPeerAddress, h, nil); err != nil {
		return netip.AddrPort{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	peer, ok := o.peers[h]
	if !ok {
		return netip.AddrPort{}, api.ErrNotConnected
	}
	return peer, nil
}

func (o *Ops) SendMessage(h api.Handle, data []byte, dest netip.AddrPort, stream uint16, ppid uint32, flags uint32) (int, error) {
	if !h.Valid() {
		return 0, api.ErrInvalidHandle
	}
	if err := o.call(OpSend, h, stream); err != nil {
		return 0, err
	}
	o.mu.Lock()
	o.sent = append(o.sent, Sent{
		Handle: h,
		Data:   append([]byte(nil), data...),
		Dest:   dest,
		Stream: stream,
		PPID:   ppid,
		Flags:  flags,
	})
	o.mu.Unlock()
	return len(data), nil
}

// ReceiveMessage blocks until a delivery is scripted for h or h is shut
// down for reading, which reports api.ErrCanceled.
func (o *Ops) ReceiveMessage(h api.Handle, buf []byte) (api.Received, error) {
	if !h.Valid() {
		return api.Received{}, api.ErrInvalidHandle
	}
	if err := o.call(OpReceive, h, nil); err != nil {
		return api.Received{}, err
	}
	select {
	case d := <-o.inbox(h):
		if d.Err != nil {
			return api.Received{}, d.Err
		}
		info := d.Info
		info.N = copy(buf, d.Data)
		return info, nil
	case <-o.shutdownCh(h):
		return api.Received{}, api.ErrCanceled
	}
}

func (o *Ops) SetNoDelay(h api.Handle, on bool) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpNoDelay, h, on)
}

func (o *Ops) SetDelayedAck(h api.Handle, info api.SackInfo) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpDelayedAck, h, info)
}

func (o *Ops) SubscribeEvents(h api.Handle, ev api.EventSubscription) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpEvents, h, ev)
}

func (o *Ops) SetPeerAddrParams(h api.Handle, p api.PeerAddrParams) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpPeerParams, h, p)
}

func (o *Ops) Shutdown(h api.Handle, how api.ShutdownHow) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	if err := o.call(OpShutdown, h, how); err != nil {
		return err
	}
	if how == api.ShutdownRead || how == api.ShutdownBoth {
		ch := o.shutdownCh(h)
		o.mu.Lock()
		select {
		case <-ch:
		default:
			close(ch)
		}
		o.mu.Unlock()
	}
	return nil
}

func (o *Ops) Close(h api.Handle) error {
	if !h.Valid() {
		return api.ErrInvalidHandle
	}
	return o.call(OpClose, h, nil)
}

var _ api.SocketOps = (*Ops)(nil)
