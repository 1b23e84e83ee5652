//go:build windows

// File: cmd/sctp-server/signal_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import "os"

// notifyDump is a no-op: there is no user signal for state dumps on Windows.
func notifyDump(chan<- os.Signal) {}
