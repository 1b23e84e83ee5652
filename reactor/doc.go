// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-goroutine cooperative completion loop the
// SCTP acceptor is built on: a FIFO of posted completions plus one-shot
// readiness watches on descriptors, backed by epoll on Linux.
//
// The loop is an explicit context object. Create it once with New, run it on a
// background goroutine with Run, stop it with Stop and release it with Close.
package reactor
