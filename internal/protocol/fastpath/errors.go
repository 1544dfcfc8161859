package fastpath

import "errors"

var (
	// ErrUnexpectedX224 is returned when a PDU claims the X224 (slow-path)
	// action byte where this protocol's Receive only ever expects fast-path
	// framing; the slow path is handled by internal/transport instead.
	ErrUnexpectedX224 = errors.New("fastpath: unexpected x224 action")
)
