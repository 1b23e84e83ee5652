//go:build linux
// +build linux

package reactor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-sctp/api"
)

func pipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestWaitReadableFiresOnce(t *testing.T) {
	l, _ := startLoop(t)
	r, w := pipe(t)

	fired := make(chan error, 4)
	require.NoError(t, l.WaitReadable(api.Handle(r), func(err error) { fired <- err }))
	// a second watch on the same handle is refused while armed
	assert.ErrorIs(t, l.WaitReadable(api.Handle(r), func(error) {}), api.ErrInvalidState)

	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)

	select {
	case err := <-fired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("readiness callback not dispatched")
	}

	// one-shot: further data does not re-fire until re-armed
	_, err = unix.Write(w, []byte{2})
	require.NoError(t, err)
	select {
	case <-fired:
		t.Fatal("watch fired without re-arm")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, l.WaitReadable(api.Handle(r), func(err error) { fired <- err }))
	select {
	case err := <-fired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("re-armed watch did not fire")
	}
}

func TestForgetCancelsWatch(t *testing.T) {
	l, _ := startLoop(t)
	r, w := pipe(t)

	fired := make(chan struct{}, 1)
	require.NoError(t, l.WaitReadable(api.Handle(r), func(error) { fired <- struct{}{} }))
	l.Forget(api.Handle(r))

	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)
	select {
	case <-fired:
		t.Fatal("forgotten watch fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWaitReadableRejectsInvalidHandle(t *testing.T) {
	l, _ := startLoop(t)
	assert.ErrorIs(t, l.WaitReadable(api.InvalidHandle, func(error) {}), api.ErrInvalidHandle)
}
