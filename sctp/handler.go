// File: sctp/handler.go
// Author: momentics <momentics@gmail.com>

package sctp

import "github.com/momentics/hioload-sctp/api"

// MessageHandler consumes messages of one association. It is called on the
// association's receive goroutine; a slow handler stalls that association
// only.
type MessageHandler interface {
	HandleMessage(a *Association, m api.Message)
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(a *Association, m api.Message)

func (f HandlerFunc) HandleMessage(a *Association, m api.Message) { f(a, m) }

var discard = HandlerFunc(func(*Association, api.Message) {})
