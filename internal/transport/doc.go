// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SCTP transport operations adapter for hioload-sctp.
// Thin, error-returning wrappers around the native multi-homed, multi-stream
// primitives (bindx, getladdrs/getpaddrs, sendmsg/recvmsg with SCTP_SNDRCV
// ancillary data, SCTP socket options), strictly separated by build tags.
// The adapter carries no policy: EOF and abort are translated into
// api.Received flags and every other outcome into an error value.

package transport
