// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable memory for the SCTP adaptation layer.
// Provides a generic sync.Pool wrapper and a fixed-size byte buffer pool with
// scoped acquisition, used for kernel address lists and receive buffers.
// See objpool.go and bytepool.go for implementation details.
package pool
