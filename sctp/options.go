// File: sctp/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sctp

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/pool"
)

// DefaultReceiveBufferSize is the per-association receive buffer.
const DefaultReceiveBufferSize = 64 * 1024

var defaultRecvPool = pool.NewBytePool(DefaultReceiveBufferSize)

// Option customizes an Association.
type Option func(*assocConfig)

type assocConfig struct {
	log     *zap.Logger
	onClose func(*Association)
	bufs    *pool.BytePool
	minSize int
}

func defaultAssocConfig() assocConfig {
	return assocConfig{
		log:     zap.NewNop(),
		bufs:    defaultRecvPool,
		minSize: api.HeaderSize,
	}
}

// WithLogger sets the association logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *assocConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCloseHandler registers fn to run exactly once when the association
// reaches Closed, whether by peer EOF, abort or local Close.
func WithCloseHandler(fn func(*Association)) Option {
	return func(c *assocConfig) { c.onClose = fn }
}

// WithReceiveBufferSize sets the fixed receive buffer size.
func WithReceiveBufferSize(n int) Option {
	return func(c *assocConfig) {
		if n > 0 && n != c.bufs.Size() {
			c.bufs = pool.NewBytePool(n)
		}
	}
}

// WithReceiveBufferPool takes receive buffers from p, shared with other
// associations. The buffer is held for the lifetime of the receive loop.
func WithReceiveBufferPool(p *pool.BytePool) Option {
	return func(c *assocConfig) {
		if p != nil {
			c.bufs = p
		}
	}
}

// WithMinMessageSize sets the shortest message dispatched to the handler.
// Shorter messages are logged and skipped.
func WithMinMessageSize(n int) Option {
	return func(c *assocConfig) {
		if n >= 0 {
			c.minSize = n
		}
	}
}
