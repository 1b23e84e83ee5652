//go:build linux
// +build linux

// File: facade/runtime_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/facade"
	"github.com/momentics/hioload-sctp/fake"
	"github.com/momentics/hioload-sctp/sctp"
	"github.com/momentics/hioload-sctp/server"
)

// The listening handle is the read end of a pipe so the real epoll loop can
// watch it while accepts come from the scripted ops.
func TestRuntimeAcceptsThroughReactor(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ops := fake.NewOps(nil)
	ops.SetNextHandle(api.Handle(fds[0]))

	owned := make(chan *sctp.Association, 1)
	msgs := make(chan api.Message, 1)
	handler := sctp.HandlerFunc(func(_ *sctp.Association, m api.Message) { msgs <- m })
	rt, err := facade.New(nil, handler,
		facade.WithSocketOps(ops),
		facade.WithServerOptions(server.WithAssociationHandler(func(a *sctp.Association) { owned <- a })),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))
	assert.ErrorIs(t, rt.Start(ctx), server.ErrAlreadyRunning)

	ops.QueueAccept(1000, netip.MustParseAddrPort("192.0.2.7:9000"))
	_, err = unix.Write(fds[1], []byte{1})
	require.NoError(t, err)

	var a *sctp.Association
	select {
	case a = <-owned:
	case <-time.After(2 * time.Second):
		t.Fatal("no association accepted")
	}
	// drain so the re-armed watch stops reporting readiness
	_, _ = unix.Read(fds[0], make([]byte, 8))
	ops.DeliverData(1000, 5, 11, []byte("PING"))
	select {
	case m := <-msgs:
		assert.Equal(t, api.Message{Data: []byte("PING"), Stream: 5, PPID: 11}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}

	state := rt.Probes().DumpState()
	assert.Equal(t, "listening", state["sctp.acceptor"])

	require.NoError(t, rt.Stop())
	assert.Equal(t, api.AssocReceiving, a.State())
	require.NoError(t, a.Close())
	<-a.Done()
}
