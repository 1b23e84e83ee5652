// Package control
// Author: momentics <momentics@gmail.com>
//
// Ambient runtime control: logger construction, counters and debug probes
// shared by the server and the runtime.
package control
