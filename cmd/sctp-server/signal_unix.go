//go:build !windows

// File: cmd/sctp-server/signal_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyDump delivers SIGUSR1 to c; each one logs probes and metrics.
func notifyDump(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGUSR1)
}
