// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accept loop: accept, tune, re-arm, hand over, start receiving.

package server

import (
	"errors"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/control"
	"github.com/momentics/hioload-sctp/pool"
	"github.com/momentics/hioload-sctp/sctp"
)

// ErrAlreadyRunning is returned by Server.Start and facade.Runtime.Start when
// called a second time.
var ErrAlreadyRunning = errors.New("server already running")

// Server owns one Acceptor and configures every association it accepts.
type Server struct {
	cfg      Config
	handler  sctp.MessageHandler
	acceptor *sctp.Acceptor
	recvBufs *pool.BytePool
	log      *zap.Logger
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	onAssoc  func(*sctp.Association)
	onClose  func(*sctp.Association)

	mu      sync.Mutex
	started bool
}

// New builds a server on the given reactor and transport. handler receives
// every message of every association.
func New(r api.Reactor, ops api.SocketOps, cfg *Config, handler sctp.MessageHandler, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      *cfg,
		handler:  handler,
		recvBufs: pool.NewBytePool(cfg.ReceiveBufferSize),
		log:      zap.NewNop(),
		metrics:  control.NewMetricsRegistry(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg.ExtraAddresses = append([]netip.Addr(nil), cfg.ExtraAddresses...)
	s.acceptor = sctp.NewAcceptor(ops, r, sctp.WithAcceptorLogger(s.log.Named("acceptor")))
	if s.probes != nil {
		s.probes.RegisterProbe("sctp.acceptor", func() any { return s.acceptor.State().String() })
		s.probes.RegisterProbe("sctp.endpoints", func() any {
			eps, err := s.acceptor.LocalEndpoints()
			if err != nil {
				return err.Error()
			}
			return eps
		})
	}
	return s, nil
}

// Start binds the primary and extra addresses, listens and arms the first
// accept.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRunning
	}
	if err := s.listen(); err != nil {
		s.metrics.Add(MetricStartupFailures, 1)
		_ = s.acceptor.Close()
		return err
	}
	s.started = true
	s.metrics.Set(MetricAcceptorState, s.acceptor.State().String())
	s.log.Info("sctp server listening",
		zap.Stringer("addr", s.cfg.ListenAddr()),
		zap.Int("extra_addrs", len(s.cfg.ExtraAddresses)))
	return s.StartAccept()
}

func (s *Server) listen() error {
	if err := s.acceptor.Bind(s.cfg.ListenAddr(), s.cfg.ReuseAddr); err != nil {
		return err
	}
	for _, a := range s.cfg.ExtraAddresses {
		if err := s.acceptor.BindAddress(netip.AddrPortFrom(a, s.cfg.Port)); err != nil {
			return err
		}
	}
	return s.acceptor.Listen(s.cfg.Backlog)
}

// StartAccept arms the next accept. After an accept error the server does
// not re-arm by itself; call StartAccept to resume accepting.
func (s *Server) StartAccept() error {
	return s.acceptor.AcceptNext(s.onAccept)
}

func (s *Server) onAccept(sock *sctp.AcceptedSocket, err error) {
	if err != nil {
		if errors.Is(err, api.ErrCanceled) {
			s.log.Debug("accept canceled")
			return
		}
		s.metrics.Add(MetricAcceptErrors, 1)
		s.log.Error("accept failed; accepting stopped",
			zap.Stringer("code", api.CodeOf(err)), zap.Error(err))
		return
	}

	a := sctp.NewAssociation(sock, s.handler,
		sctp.WithLogger(s.log),
		sctp.WithCloseHandler(s.associationClosed),
		sctp.WithReceiveBufferPool(s.recvBufs),
		sctp.WithMinMessageSize(s.cfg.MinMessageSize),
	)
	s.metrics.Add(MetricAccepted, 1)
	s.metrics.Add(MetricActiveAssocs, 1)

	if err := a.ApplyTuning(s.cfg.Tuning); err != nil {
		s.metrics.Add(MetricTuningFailures, 1)
		s.log.Warn("association tuning failed",
			zap.String("assoc_id", a.ID().String()),
			zap.Stringer("peer", a.Peer()),
			zap.Error(err))
		_ = a.Close()
		s.rearm()
		return
	}
	s.rearm()

	if s.onAssoc != nil {
		s.onAssoc(a)
	}
	if err := a.StartReceiving(); err != nil {
		// the owner may already have closed it
		s.log.Debug("association not started",
			zap.String("assoc_id", a.ID().String()),
			zap.Error(err))
	}
}

func (s *Server) rearm() {
	if err := s.StartAccept(); err != nil {
		if errors.Is(err, api.ErrInvalidState) && s.acceptor.State() == api.AcceptorClosed {
			return
		}
		s.metrics.Add(MetricRearmFailures, 1)
		s.log.Error("accept re-arm failed", zap.Error(err))
	}
}

func (s *Server) associationClosed(a *sctp.Association) {
	s.metrics.Add(MetricActiveAssocs, -1)
	if s.onClose != nil {
		s.onClose(a)
	}
}

// Stop closes the acceptor. Accepted associations are not touched.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.acceptor.Close()
	s.metrics.Set(MetricAcceptorState, s.acceptor.State().String())
	s.started = false
	return err
}

// Addr returns the primary listening endpoint.
func (s *Server) Addr() netip.AddrPort { return s.cfg.ListenAddr() }

// LocalEndpoints lists every address the acceptor is bound to.
func (s *Server) LocalEndpoints() (api.EndpointSet, error) {
	return s.acceptor.LocalEndpoints()
}

// Acceptor exposes the listening socket.
func (s *Server) Acceptor() *sctp.Acceptor { return s.acceptor }

// Metrics returns the server's metrics registry.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }
