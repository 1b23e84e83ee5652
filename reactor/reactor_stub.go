//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub backend for platforms without epoll. Posted completions still run;
// readiness watches are not supported.

package reactor

import "github.com/momentics/hioload-sctp/api"

type chanPoller struct {
	wakeCh chan struct{}
}

func newPoller() (poller, error) {
	return &chanPoller{wakeCh: make(chan struct{}, 1)}, nil
}

func (p *chanPoller) arm(int) error    { return api.ErrNotSupported }
func (p *chanPoller) disarm(int) error { return nil }

func (p *chanPoller) wait([]readyEvent) (int, error) {
	<-p.wakeCh
	return 0, nil
}

func (p *chanPoller) wake() error {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func (p *chanPoller) close() error { return nil }
