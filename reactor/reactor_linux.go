//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness backend with an eventfd wake-up channel.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd int
	efd  int

	mu         sync.Mutex
	registered map[int]bool
	raw        []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &ev); err != nil {
		unix.Close(efd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &epollPoller{epfd: epfd, efd: efd, registered: make(map[int]bool)}, nil
}

// arm enables a one-shot read watch. A descriptor that fired stays in the
// interest list disabled, so re-arming is a MOD; a close behind our back
// drops it from epoll, so ENOENT falls back to ADD.
func (p *epollPoller) arm(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLONESHOT, Fd: int32(fd)}
	p.mu.Lock()
	defer p.mu.Unlock()
	op := unix.EPOLL_CTL_ADD
	if p.registered[fd] {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(p.epfd, op, fd, &ev)
	switch {
	case op == unix.EPOLL_CTL_MOD && errors.Is(err, unix.ENOENT):
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	case op == unix.EPOLL_CTL_ADD && errors.Is(err, unix.EEXIST):
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return err
	}
	p.registered[fd] = true
	return nil
}

func (p *epollPoller) disarm(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registered[fd] {
		return nil
	}
	delete(p.registered, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks until a watched descriptor or the wake-up eventfd fires.
func (p *epollPoller) wait(events []readyEvent) (int, error) {
	if len(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(p.epfd, p.raw[:len(events)], -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, normal
		}
		return 0, err
	}
	out := 0
	for i := 0; i < n; i++ {
		ev := p.raw[i]
		fd := int(ev.Fd)
		if fd == p.efd {
			var buf [8]byte
			_, _ = unix.Read(p.efd, buf[:])
			continue
		}
		events[out] = readyEvent{
			fd:    fd,
			fault: ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && ev.Events&unix.EPOLLIN == 0,
		}
		out++
	}
	return out, nil
}

func (p *epollPoller) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.efd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		return nil // counter saturated, a wake-up is already pending
	}
	return err
}

func (p *epollPoller) close() error {
	err := unix.Close(p.efd)
	if cerr := unix.Close(p.epfd); err == nil {
		err = cerr
	}
	return err
}
