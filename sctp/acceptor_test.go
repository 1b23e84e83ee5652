package sctp_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/fake"
	"github.com/momentics/hioload-sctp/sctp"
)

func TestAcceptorLifecycle(t *testing.T) {
	rec := fake.NewRecorder()
	ops := fake.NewOps(rec)
	acc := sctp.NewAcceptor(ops, fake.NewReactor(rec))

	assert.Equal(t, api.AcceptorUnbound, acc.State())
	assert.ErrorIs(t, acc.Listen(8), api.ErrInvalidState)

	require.NoError(t, acc.Bind(listenAddr, true))
	assert.Equal(t, api.AcceptorBound, acc.State())
	assert.ErrorIs(t, acc.Bind(listenAddr, true), api.ErrInvalidState)

	require.NoError(t, acc.Listen(8))
	assert.Equal(t, api.AcceptorListening, acc.State())
	assert.Equal(t, []string{fake.OpOpen, fake.OpReuseAddr, fake.OpBind, fake.OpListen}, rec.Ops())

	require.NoError(t, acc.Close())
	require.NoError(t, acc.Close())
	assert.Equal(t, api.AcceptorClosed, acc.State())
	assert.Equal(t, 1, rec.Count(fake.OpClose))
}

func TestAcceptorBindFailureReleasesHandle(t *testing.T) {
	ops := fake.NewOps(nil)
	ops.FailOn(fake.OpBind, errors.New("eaddrinuse"))
	acc := sctp.NewAcceptor(ops, fake.NewReactor(ops.Recorder()))

	require.Error(t, acc.Bind(listenAddr, false))
	assert.Equal(t, api.AcceptorUnbound, acc.State())
	assert.Equal(t, []string{fake.OpOpen, fake.OpBind, fake.OpClose}, ops.Recorder().Ops())
}

func TestAddressChangesRequireOpenAcceptor(t *testing.T) {
	extra := netip.MustParseAddrPort("10.0.0.2:54321")

	rec := fake.NewRecorder()
	acc := sctp.NewAcceptor(fake.NewOps(rec), fake.NewReactor(rec))
	assert.ErrorIs(t, acc.BindAddress(extra), api.ErrInvalidState)
	assert.ErrorIs(t, acc.UnbindAddress(extra), api.ErrInvalidState)
	_, err := acc.LocalEndpoints()
	assert.ErrorIs(t, err, api.ErrInvalidState)
	assert.Empty(t, rec.Calls())

	acc, ops, _ := listening(t)
	require.NoError(t, acc.BindAddress(extra))
	eps, err := acc.LocalEndpoints()
	require.NoError(t, err)
	assert.Equal(t, api.EndpointSet{listenAddr, extra}, eps)
	require.NoError(t, acc.UnbindAddress(extra))

	require.NoError(t, acc.Close())
	ops.Recorder().Reset()
	assert.ErrorIs(t, acc.BindAddress(extra), api.ErrInvalidState)
	assert.ErrorIs(t, acc.UnbindAddress(extra), api.ErrInvalidState)
	assert.Empty(t, ops.Recorder().Calls())
}

func TestAcceptNextRequiresListening(t *testing.T) {
	rec := fake.NewRecorder()
	acc := sctp.NewAcceptor(fake.NewOps(rec), fake.NewReactor(rec))
	err := acc.AcceptNext(func(*sctp.AcceptedSocket, error) {})
	assert.ErrorIs(t, err, api.ErrInvalidState)
}

func TestAcceptNextSingleOutstanding(t *testing.T) {
	acc, _, r := listening(t)
	require.NoError(t, acc.AcceptNext(func(*sctp.AcceptedSocket, error) {}))
	assert.ErrorIs(t, acc.AcceptNext(func(*sctp.AcceptedSocket, error) {}), api.ErrInvalidState)
	assert.True(t, r.Armed(acc.Handle()))
}

func TestSpuriousWakeupRearms(t *testing.T) {
	acc, ops, r := listening(t)
	calls := 0
	require.NoError(t, acc.AcceptNext(func(*sctp.AcceptedSocket, error) { calls++ }))

	require.True(t, r.Fire(acc.Handle(), nil))
	assert.Zero(t, calls)
	assert.True(t, r.Armed(acc.Handle()))

	ops.QueueAccept(50, peerAddr)
	require.True(t, r.Fire(acc.Handle(), nil))
	assert.Equal(t, 1, calls)
	assert.False(t, r.Armed(acc.Handle()))
}

func TestAcceptErrorIsNotRearmed(t *testing.T) {
	acc, ops, r := listening(t)
	boom := errors.New("emfile")
	ops.QueueAcceptError(boom)

	var got error
	require.NoError(t, acc.AcceptNext(func(s *sctp.AcceptedSocket, err error) {
		assert.Nil(t, s)
		got = err
	}))
	require.True(t, r.Fire(acc.Handle(), nil))
	assert.ErrorIs(t, got, boom)
	assert.False(t, r.Armed(acc.Handle()))

	// an external AcceptNext restarts accepting
	ops.QueueAccept(51, peerAddr)
	var sock *sctp.AcceptedSocket
	require.NoError(t, acc.AcceptNext(func(s *sctp.AcceptedSocket, err error) { sock = s }))
	require.True(t, r.Fire(acc.Handle(), nil))
	require.NotNil(t, sock)
	assert.Equal(t, api.Handle(51), sock.Handle())
	assert.Equal(t, peerAddr, sock.Peer())
}

func TestReadinessFaultReported(t *testing.T) {
	acc, ops, r := listening(t)
	var got error
	require.NoError(t, acc.AcceptNext(func(_ *sctp.AcceptedSocket, err error) { got = err }))
	ops.Recorder().Reset()
	hup := errors.New("hangup")
	require.True(t, r.Fire(acc.Handle(), hup))
	assert.ErrorIs(t, got, hup)
	assert.Zero(t, ops.Recorder().Count(fake.OpAccept))
}

func TestCloseCancelsPendingAccept(t *testing.T) {
	acc, ops, r := listening(t)
	h := acc.Handle()
	require.NoError(t, acc.AcceptNext(func(*sctp.AcceptedSocket, error) {}))
	ops.Recorder().Reset()

	require.NoError(t, acc.Close())
	assert.Equal(t, []string{fake.OpForget, fake.OpClose}, ops.Recorder().Ops())
	assert.False(t, r.Armed(h))
	assert.Equal(t, api.InvalidHandle, acc.Handle())
}

func TestAcceptedSocketClose(t *testing.T) {
	acc, ops, r := listening(t)
	s := accept(t, acc, ops, r, 60)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ops.Recorder().Count(fake.OpClose))
}
