// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording and scriptable stand-ins for api.SocketOps and api.Reactor.
// A shared Recorder captures the order of adapter and reactor calls so
// tests can assert tuning, re-arm and receive ordering.
package fake
