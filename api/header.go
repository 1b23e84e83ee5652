// File: api/header.go
// Author: momentics <momentics@gmail.com>
//
// Minimal application header carried at the front of every payload.

package api

// HeaderSize is the number of leading payload bytes forming the header.
const HeaderSize = 4

// Header is the minimal application header: version, reserved, message
// class and message type, one byte each. Everything after it belongs to the
// application.
type Header struct {
	Version  byte
	Reserved byte
	Class    byte
	Type     byte
}

// ParseHeader decodes the header from the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortMessage.WithContext("len", len(b))
	}
	return Header{Version: b[0], Reserved: b[1], Class: b[2], Type: b[3]}, nil
}

// AppendTo appends the encoded header to b.
func (h Header) AppendTo(b []byte) []byte {
	return append(b, h.Version, h.Reserved, h.Class, h.Type)
}
