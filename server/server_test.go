// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/control"
	"github.com/momentics/hioload-sctp/fake"
	"github.com/momentics/hioload-sctp/sctp"
	"github.com/momentics/hioload-sctp/server"
)

var peer = netip.MustParseAddrPort("192.0.2.1:5000")

type harness struct {
	rec  *fake.Recorder
	ops  *fake.Ops
	r    *fake.Reactor
	srv  *server.Server
	msgs chan api.Message
	own  chan *sctp.Association
}

func newHarness(t *testing.T, cfg *server.Config, opts ...server.ServerOption) *harness {
	t.Helper()
	h := &harness{
		rec:  fake.NewRecorder(),
		msgs: make(chan api.Message, 16),
		own:  make(chan *sctp.Association, 16),
	}
	h.ops = fake.NewOps(h.rec)
	h.r = fake.NewReactor(h.rec)
	handler := sctp.HandlerFunc(func(_ *sctp.Association, m api.Message) { h.msgs <- m })
	opts = append([]server.ServerOption{
		server.WithAssociationHandler(func(a *sctp.Association) {
			h.rec.Record(fake.OpOwnerHandoff, api.InvalidHandle, a.ID())
			h.own <- a
		}),
	}, opts...)
	srv, err := server.New(h.r, h.ops, cfg, handler, opts...)
	require.NoError(t, err)
	h.srv = srv
	require.NoError(t, srv.Start())
	return h
}

func (h *harness) listenHandle() api.Handle { return h.srv.Acceptor().Handle() }

func (h *harness) owned(t *testing.T) *sctp.Association {
	t.Helper()
	select {
	case a := <-h.own:
		t.Cleanup(func() { _ = a.Close() })
		return a
	case <-time.After(time.Second):
		t.Fatal("association not handed over")
		return nil
	}
}

func TestStartSequence(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ExtraAddresses = []netip.Addr{netip.MustParseAddr("10.0.0.2")}
	h := newHarness(t, cfg)

	assert.Equal(t, []string{
		fake.OpOpen, fake.OpReuseAddr, fake.OpBind, fake.OpBindAddress, fake.OpListen, fake.OpArm,
	}, h.rec.Ops())
	calls := h.rec.Calls()
	assert.Equal(t, netip.MustParseAddrPort("0.0.0.0:54321"), calls[2].Arg)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.2:54321"), calls[3].Arg)
	assert.Equal(t, 128, calls[4].Arg)
	assert.True(t, h.r.Armed(h.listenHandle()))
	assert.ErrorIs(t, h.srv.Start(), server.ErrAlreadyRunning)
}

func TestTuneBeforeRearmBeforeReceive(t *testing.T) {
	h := newHarness(t, nil)
	h.ops.QueueAccept(42, peer)
	require.True(t, h.r.Fire(h.listenHandle(), nil))
	a := h.owned(t)
	require.Eventually(t, func() bool { return h.rec.Index(fake.OpReceive, 0) >= 0 }, time.Second, 5*time.Millisecond)

	idx := func(op string, n int) int {
		i := h.rec.Index(op, n)
		require.GreaterOrEqual(t, i, 0, op)
		return i
	}
	accepted := idx(fake.OpAccept, 0)
	tuning := []int{idx(fake.OpNoDelay, 0), idx(fake.OpDelayedAck, 0), idx(fake.OpEvents, 0), idx(fake.OpPeerParams, 0)}
	rearm := idx(fake.OpArm, 1)
	owner := idx(fake.OpOwnerHandoff, 0)
	recv := idx(fake.OpReceive, 0)

	assert.Less(t, accepted, tuning[0])
	assert.IsIncreasing(t, tuning)
	assert.Less(t, tuning[3], rearm)
	assert.Less(t, rearm, owner)
	assert.Less(t, owner, recv)
	assert.True(t, h.r.Armed(h.listenHandle()))
	assert.Equal(t, api.AssocReceiving, a.State())
	assert.Equal(t, int64(1), h.srv.Metrics().Counter(server.MetricAccepted))
}

func TestEndToEndPing(t *testing.T) {
	h := newHarness(t, nil)
	h.ops.QueueAccept(42, peer)
	require.True(t, h.r.Fire(h.listenHandle(), nil))
	a := h.owned(t)

	h.ops.DeliverData(42, 1, 7, []byte("PING"))
	select {
	case m := <-h.msgs:
		assert.Equal(t, api.Message{Data: []byte("PING"), Stream: 1, PPID: 7}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	require.NoError(t, a.Send([]byte("PONG"), 1, 7))
	require.Len(t, h.ops.Sent(), 1)
}

func TestPeerEOFNotifiesOwnerOnce(t *testing.T) {
	var closes atomic.Int32
	h := newHarness(t, nil, server.WithCloseHandler(func(*sctp.Association) { closes.Add(1) }))
	h.ops.QueueAccept(42, peer)
	require.True(t, h.r.Fire(h.listenHandle(), nil))
	a := h.owned(t)

	h.ops.DeliverEOF(42)
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("association did not close")
	}
	assert.Equal(t, api.AssocClosed, a.State())
	assert.Equal(t, int32(1), closes.Load())
	assert.Zero(t, h.srv.Metrics().Counter(server.MetricActiveAssocs))
}

func TestAcceptErrorStopsAccepting(t *testing.T) {
	h := newHarness(t, nil)
	h.ops.QueueAcceptError(errors.New("emfile"))
	require.True(t, h.r.Fire(h.listenHandle(), nil))

	assert.False(t, h.r.Armed(h.listenHandle()))
	assert.Equal(t, 1, h.rec.Count(fake.OpArm))
	assert.Equal(t, int64(1), h.srv.Metrics().Counter(server.MetricAcceptErrors))

	require.NoError(t, h.srv.StartAccept())
	h.ops.QueueAccept(43, peer)
	require.True(t, h.r.Fire(h.listenHandle(), nil))
	h.owned(t)
}

func TestAcceptErrorLoggedWithCode(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := newHarness(t, nil, server.WithLogger(zap.New(core)))
	h.ops.QueueAcceptError(api.ErrNotSupported)
	require.True(t, h.r.Fire(h.listenHandle(), nil))

	entries := logs.FilterMessage("accept failed; accepting stopped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "not supported", entries[0].ContextMap()["code"])
}

func TestTuningFailureClosesAndRearms(t *testing.T) {
	h := newHarness(t, nil)
	h.ops.FailOn(fake.OpEvents, errors.New("enoprotoopt"))
	h.ops.QueueAccept(42, peer)
	require.True(t, h.r.Fire(h.listenHandle(), nil))

	assert.True(t, h.r.Armed(h.listenHandle()))
	assert.Len(t, h.own, 0)
	assert.Equal(t, 1, h.rec.Count(fake.OpClose))
	assert.Zero(t, h.rec.Count(fake.OpReceive))
	assert.Equal(t, int64(1), h.srv.Metrics().Counter(server.MetricTuningFailures))
	assert.Zero(t, h.srv.Metrics().Counter(server.MetricActiveAssocs))
}

func TestStopLeavesAssociationsOpen(t *testing.T) {
	h := newHarness(t, nil)
	listen := h.listenHandle()
	h.ops.QueueAccept(42, peer)
	require.True(t, h.r.Fire(listen, nil))
	a := h.owned(t)

	require.NoError(t, h.srv.Stop())
	assert.Equal(t, api.AcceptorClosed, h.srv.Acceptor().State())
	assert.False(t, h.r.Armed(listen))
	for _, op := range h.rec.Ops(42) {
		assert.NotEqual(t, fake.OpShutdown, op)
		assert.NotEqual(t, fake.OpClose, op)
	}

	assert.Equal(t, api.AssocReceiving, a.State())
	h.ops.DeliverData(42, 2, 0, []byte("STILL"))
	select {
	case m := <-h.msgs:
		assert.Equal(t, "STILL", string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("association stopped with the acceptor")
	}
}

func TestProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	h := newHarness(t, nil, server.WithProbes(dp))
	state := dp.DumpState()
	assert.Equal(t, "listening", state["sctp.acceptor"])
	assert.Equal(t, api.EndpointSet{h.srv.Addr()}, state["sctp.endpoints"])
}

func TestConfigValidate(t *testing.T) {
	cfg := server.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, netip.MustParseAddrPort("0.0.0.0:54321"), cfg.ListenAddr())

	bad := *cfg
	bad.Backlog = 0
	assert.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)

	bad = *cfg
	bad.ExtraAddresses = []netip.Addr{netip.MustParseAddr("2001:db8::1")}
	assert.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)

	_, err := server.New(fake.NewReactor(nil), fake.NewOps(nil), &bad, nil)
	assert.Error(t, err)
}
