// File: facade/runtime.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime aggregates the reactor loop and the SCTP server behind one
// Start/Stop lifecycle. The reactor runs on a background goroutine
// supervised by an errgroup.

package facade

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/control"
	"github.com/momentics/hioload-sctp/internal/transport"
	"github.com/momentics/hioload-sctp/reactor"
	"github.com/momentics/hioload-sctp/sctp"
	"github.com/momentics/hioload-sctp/server"
)

// Option customizes a Runtime.
type Option func(*options)

type options struct {
	log        *zap.Logger
	ops        api.SocketOps
	maxEvents  int
	cpu        int
	serverOpts []server.ServerOption
}

// WithLogger sets the logger for the reactor, server and associations.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithSocketOps replaces the platform SCTP transport.
func WithSocketOps(ops api.SocketOps) Option {
	return func(o *options) { o.ops = ops }
}

// WithMaxEvents bounds readiness events taken per reactor wait.
func WithMaxEvents(n int) Option {
	return func(o *options) { o.maxEvents = n }
}

// WithReactorCPU pins the reactor goroutine to one logical CPU.
func WithReactorCPU(cpu int) Option {
	return func(o *options) { o.cpu = cpu }
}

// WithServerOptions forwards options to the server.
func WithServerOptions(opts ...server.ServerOption) Option {
	return func(o *options) { o.serverOpts = append(o.serverOpts, opts...) }
}

// Runtime owns the reactor and the server.
type Runtime struct {
	loop    *reactor.Loop
	srv     *server.Server
	log     *zap.Logger
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New builds the reactor, the transport and the server. Nothing runs until
// Start.
func New(cfg *server.Config, handler sctp.MessageHandler, opts ...Option) (*Runtime, error) {
	o := options{log: zap.NewNop(), cpu: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.ops == nil {
		o.ops = transport.New()
	}

	loopOpts := []reactor.Option{reactor.WithLogger(o.log.Named("reactor"))}
	if o.maxEvents > 0 {
		loopOpts = append(loopOpts, reactor.WithMaxEvents(o.maxEvents))
	}
	if o.cpu >= 0 {
		loopOpts = append(loopOpts, reactor.WithCPU(o.cpu))
	}
	loop, err := reactor.New(loopOpts...)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		loop:    loop,
		log:     o.log,
		metrics: control.NewMetricsRegistry(),
		probes:  control.NewDebugProbes(),
	}
	srvOpts := append([]server.ServerOption{
		server.WithLogger(o.log.Named("server")),
		server.WithMetrics(rt.metrics),
		server.WithProbes(rt.probes),
	}, o.serverOpts...)
	rt.srv, err = server.New(loop, o.ops, cfg, handler, srvOpts...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}
	rt.probes.RegisterProbe("reactor.pending", func() any { return loop.Pending() })
	return rt, nil
}

// Start runs the reactor in the background and starts the server. The
// runtime stops when ctx is canceled or Stop is called.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return server.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.loop.Run(gctx) })

	if err := rt.srv.Start(); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	rt.started = true
	rt.cancel = cancel
	rt.group = g
	return nil
}

// Wait blocks until the reactor goroutine exits.
func (rt *Runtime) Wait() error {
	rt.mu.Lock()
	g := rt.group
	rt.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop closes the acceptor, stops the reactor and waits for it. Accepted
// associations stay with their owners.
func (rt *Runtime) Stop() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.started {
		return rt.loop.Close()
	}
	rt.started = false
	srvErr := rt.srv.Stop()
	rt.loop.Stop()
	rt.cancel()
	runErr := rt.group.Wait()
	return errors.Join(srvErr, runErr, rt.loop.Close())
}

// Server returns the SCTP server.
func (rt *Runtime) Server() *server.Server { return rt.srv }

// Metrics returns the shared metrics registry.
func (rt *Runtime) Metrics() *control.MetricsRegistry { return rt.metrics }

// Probes returns the debug probe registry.
func (rt *Runtime) Probes() *control.DebugProbes { return rt.probes }
