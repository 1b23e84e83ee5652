// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/control"
	"github.com/momentics/hioload-sctp/sctp"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the logger shared with the acceptor and associations.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records server counters into m.
func WithMetrics(m *control.MetricsRegistry) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProbes registers server state probes into dp.
func WithProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) { s.probes = dp }
}

// WithAssociationHandler hands every tuned association to fn before its
// receive loop starts. fn runs on the reactor goroutine and takes over
// responsibility for closing the association.
func WithAssociationHandler(fn func(*sctp.Association)) ServerOption {
	return func(s *Server) { s.onAssoc = fn }
}

// WithCloseHandler is called once for every association reaching Closed.
func WithCloseHandler(fn func(*sctp.Association)) ServerOption {
	return func(s *Server) { s.onClose = fn }
}
