// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent factory for the SCTP SocketOps implementation.

package transport

import "github.com/momentics/hioload-sctp/api"

// New returns the SocketOps implementation for the host platform. On
// platforms without kernel SCTP every operation fails with
// api.ErrNotSupported.
func New() api.SocketOps {
	return newOps()
}
