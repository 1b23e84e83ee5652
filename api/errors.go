// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-sctp.
// Every adapter operation reports failures through these values; nothing
// panics across the transport boundary.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeInvalidHandle
	ErrCodeInvalidState
	ErrCodeNotSupported
	ErrCodeWouldBlock
	ErrCodeCanceled
	ErrCodeNotConnected
	ErrCodeShortMessage
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeInvalidHandle:
		return "invalid handle"
	case ErrCodeInvalidState:
		return "invalid state"
	case ErrCodeNotSupported:
		return "not supported"
	case ErrCodeWouldBlock:
		return "would block"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeNotConnected:
		return "not connected"
	case ErrCodeShortMessage:
		return "short message"
	default:
		return "internal"
	}
}

// Common errors used across the library. Compare with errors.Is; errors built
// by NewError with the same code match these sentinels.
var (
	ErrInvalidArgument = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrInvalidHandle   = NewError(ErrCodeInvalidHandle, "socket is not open")
	ErrInvalidState    = NewError(ErrCodeInvalidState, "operation not valid in current state")
	ErrNotSupported    = NewError(ErrCodeNotSupported, "sctp not supported on this platform")
	ErrWouldBlock      = NewError(ErrCodeWouldBlock, "operation would block")
	ErrCanceled        = NewError(ErrCodeCanceled, "operation canceled")
	ErrNotConnected    = NewError(ErrCodeNotConnected, "socket has no remote endpoint")
	ErrShortMessage    = NewError(ErrCodeShortMessage, "message shorter than application header")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target carries the same error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of the error with an additional context entry.
// Sentinels are never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err does
// not carry one. A nil error yields ErrCodeOK.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
