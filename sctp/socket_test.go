package sctp_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/fake"
	"github.com/momentics/hioload-sctp/sctp"
)

func TestApplyTuningOrderAndValues(t *testing.T) {
	acc, ops, r := listening(t)
	a := sctp.NewAssociation(accept(t, acc, ops, r, 42), nil)
	ops.Recorder().Reset()

	require.NoError(t, a.ApplyTuning(api.DefaultPeerTuning()))

	calls := ops.Recorder().Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{fake.OpNoDelay, fake.OpDelayedAck, fake.OpEvents, fake.OpPeerParams}, ops.Recorder().Ops())
	assert.Equal(t, true, calls[0].Arg)
	assert.Equal(t, api.SackInfo{Delay: time.Millisecond, Frequency: 1}, calls[1].Arg)
	assert.Equal(t, api.EventSubscription{DataIO: true, Association: true}, calls[2].Arg)
	assert.Equal(t, api.PeerAddrParams{
		HeartbeatInterval:  2000 * time.Millisecond,
		PathMaxRetransmits: 3,
		Flags:              api.HeartbeatEnable,
	}, calls[3].Arg)
	for _, c := range calls {
		assert.Equal(t, api.Handle(42), c.Handle)
	}
}

func TestApplyTuningStopsAtFirstFailure(t *testing.T) {
	acc, ops, r := listening(t)
	a := sctp.NewAssociation(accept(t, acc, ops, r, 42), nil)
	boom := errors.New("boom")
	ops.FailOn(fake.OpDelayedAck, boom)
	ops.Recorder().Reset()

	err := a.ApplyTuning(api.DefaultPeerTuning())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{fake.OpNoDelay, fake.OpDelayedAck}, ops.Recorder().Ops())
}

func TestApplyTuningWithoutHeartbeat(t *testing.T) {
	acc, ops, r := listening(t)
	a := sctp.NewAssociation(accept(t, acc, ops, r, 42), nil)
	ops.Recorder().Reset()

	tuning := api.DefaultPeerTuning()
	tuning.HeartbeatInterval = 0
	tuning.DisableDelayedAck = false
	require.NoError(t, a.ApplyTuning(tuning))

	calls := ops.Recorder().Calls()
	require.Len(t, calls, 3)
	p := calls[2].Arg.(api.PeerAddrParams)
	assert.Equal(t, api.HeartbeatDisable, p.Flags)
}

func TestSocketClosedOperations(t *testing.T) {
	acc, ops, r := listening(t)
	a := sctp.NewAssociation(accept(t, acc, ops, r, 42), nil)
	s := a.Socket()
	require.True(t, s.IsOpen())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	ops.Recorder().Reset()

	assert.False(t, s.IsOpen())
	assert.Equal(t, api.InvalidHandle, s.Handle())

	n, err := s.SendTo([]byte("PING"), peerAddr, 1, 7)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.LocalEndpoints()
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = s.RemoteEndpoint()
	assert.ErrorIs(t, err, api.ErrNotConnected)
	_, err = s.Receive(make([]byte, 8))
	assert.ErrorIs(t, err, api.ErrCanceled)
	assert.ErrorIs(t, s.ApplyTuning(api.DefaultPeerTuning()), api.ErrInvalidHandle)

	assert.Empty(t, ops.Recorder().Calls())
}

func TestSocketEndpoints(t *testing.T) {
	acc, ops, r := listening(t)
	a := sctp.NewAssociation(accept(t, acc, ops, r, 42), nil)
	local := api.EndpointSet{listenAddr}
	remote := api.EndpointSet{peerAddr, peerAddr2}
	ops.SetEndpoints(42, local, remote)

	got, err := a.LocalEndpoints()
	require.NoError(t, err)
	assert.Equal(t, local, got)

	got, err = a.RemoteEndpoints()
	require.NoError(t, err)
	assert.Equal(t, remote, got)
	assert.True(t, got.Contains(peerAddr2))

	peer, err := a.PeerAddress()
	require.NoError(t, err)
	assert.Equal(t, peerAddr, peer)
	assert.Equal(t, peerAddr, a.Peer())
}
