package activestage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownChannel is returned when a Send-Data-Indication names a
	// channel id that was never announced during MCS channel-join. Every
	// channel the server can address on must have been joined first; one
	// that wasn't means the connection sequence and the active stage have
	// disagreed about the session's channel layout.
	ErrUnknownChannel = errors.New("activestage: unknown channel id")

	// ErrServerError is returned when the server reports a non-None
	// ServerSetErrorInfo code on the global channel, signalling the session
	// is ending for a reason the server attributes to itself or the client.
	ErrServerError = errors.New("activestage: server reported an error info code")
)

// channelError wraps ErrUnknownChannel with the offending channel id.
func channelError(id uint16) error {
	return fmt.Errorf("%w: %d", ErrUnknownChannel, id)
}
