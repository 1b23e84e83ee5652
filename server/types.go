// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/sctp"
)

// DefaultPort is the well-known listening port.
const DefaultPort = 54321

// Metric keys maintained by the server.
const (
	MetricAccepted        = "sctp.accepted"
	MetricAcceptErrors    = "sctp.accept_errors"
	MetricTuningFailures  = "sctp.tuning_failures"
	MetricActiveAssocs    = "sctp.associations_active"
	MetricAcceptorState   = "sctp.acceptor_state"
	MetricRearmFailures   = "sctp.rearm_failures"
	MetricStartupFailures = "sctp.start_failures"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Address           netip.Addr     // primary bind address, wildcard by default
	Port              uint16         // listening port shared by every bound address
	ExtraAddresses    []netip.Addr   // added with BindAddress after the primary bind
	ReuseAddr         bool           // SO_REUSEADDR on the listening socket
	Backlog           int            // listen backlog
	ReceiveBufferSize int            // per-association receive buffer
	MinMessageSize    int            // shorter messages are skipped
	Tuning            api.PeerTuning // applied to every accepted association
}

// DefaultConfig returns the fixed listening and tuning defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           netip.IPv4Unspecified(),
		Port:              DefaultPort,
		ReuseAddr:         true,
		Backlog:           128,
		ReceiveBufferSize: sctp.DefaultReceiveBufferSize,
		MinMessageSize:    api.HeaderSize,
		Tuning:            api.DefaultPeerTuning(),
	}
}

// Validate reports the first inconsistent field.
func (c *Config) Validate() error {
	if !c.Address.IsValid() {
		return api.ErrInvalidArgument.WithContext("field", "Address")
	}
	for _, a := range c.ExtraAddresses {
		if !a.IsValid() {
			return api.ErrInvalidArgument.WithContext("field", "ExtraAddresses")
		}
		if a.Is4() != c.Address.Is4() && !c.Address.Is6() {
			return api.ErrInvalidArgument.WithContext("field", "ExtraAddresses").
				WithContext("reason", fmt.Sprintf("%s does not match family of %s", a, c.Address))
		}
	}
	if c.Backlog <= 0 {
		return api.ErrInvalidArgument.WithContext("field", "Backlog")
	}
	if c.ReceiveBufferSize <= 0 {
		return api.ErrInvalidArgument.WithContext("field", "ReceiveBufferSize")
	}
	if c.MinMessageSize < 0 {
		return api.ErrInvalidArgument.WithContext("field", "MinMessageSize")
	}
	return nil
}

// ListenAddr returns the primary bind endpoint.
func (c *Config) ListenAddr() netip.AddrPort {
	return netip.AddrPortFrom(c.Address, c.Port)
}
