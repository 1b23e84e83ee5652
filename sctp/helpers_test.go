package sctp_test

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/fake"
	"github.com/momentics/hioload-sctp/sctp"
)

var (
	listenAddr = netip.MustParseAddrPort("0.0.0.0:54321")
	peerAddr   = netip.MustParseAddrPort("192.0.2.10:40000")
	peerAddr2  = netip.MustParseAddrPort("198.51.100.10:40000")
)

func listening(t *testing.T) (*sctp.Acceptor, *fake.Ops, *fake.Reactor) {
	t.Helper()
	rec := fake.NewRecorder()
	ops := fake.NewOps(rec)
	r := fake.NewReactor(rec)
	acc := sctp.NewAcceptor(ops, r)
	require.NoError(t, acc.Bind(listenAddr, true))
	require.NoError(t, acc.Listen(16))
	return acc, ops, r
}

// accept drives one accept completion through the fake reactor.
func accept(t *testing.T, acc *sctp.Acceptor, ops *fake.Ops, r *fake.Reactor, h api.Handle) *sctp.AcceptedSocket {
	t.Helper()
	ops.QueueAccept(h, peerAddr)
	var got *sctp.AcceptedSocket
	require.NoError(t, acc.AcceptNext(func(s *sctp.AcceptedSocket, err error) {
		require.NoError(t, err)
		got = s
	}))
	require.True(t, r.Fire(acc.Handle(), nil))
	require.NotNil(t, got)
	return got
}

type collector struct {
	mu   sync.Mutex
	msgs []api.Message
	ch   chan api.Message
}

func newCollector() *collector { return &collector{ch: make(chan api.Message, 64)} }

func (c *collector) HandleMessage(_ *sctp.Association, m api.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
	c.ch <- m
}

func (c *collector) next(t *testing.T) api.Message {
	t.Helper()
	select {
	case m := <-c.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
		return api.Message{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func waitDone(t *testing.T, a *sctp.Association) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("association did not finish")
	}
}
