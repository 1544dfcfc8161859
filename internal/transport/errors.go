// Package transport implements the layered decode/encode stack the active
// stage runs every PDU through: outer TPKT/fast-path framing, the T.125 MCS
// Send-Data envelope, and, for the global I/O channel, the Share-Control and
// Share-Data headers underneath it. Each layer reads from and writes to an
// in-memory buffer handed down by the layer above it rather than the
// network connection directly, so a single read of one framed PDU can be
// decoded end to end before the next read is attempted.
package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNullLengthFastPath is returned by ReadFrame when a fast-path
	// header's length field evaluates to zero. The packet carries no body;
	// callers log it and move on to the next frame.
	ErrNullLengthFastPath = errors.New("transport: null-length fast-path packet")

	// ErrUnexpectedPdu is returned when a PDU's framing decodes cleanly but
	// its semantic type is not one the caller is prepared to handle on this
	// channel.
	ErrUnexpectedPdu = errors.New("transport: unexpected pdu")

	// ErrInvalidResponse is returned when a decoded field contradicts what
	// the transport stack expects, such as a Send-Data-Indication arriving
	// on a channel id nothing asked for.
	ErrInvalidResponse = errors.New("transport: invalid response")

	// ErrStaticChannelNotConnected is returned when a Send-Data-Indication
	// carries no payload at all.
	ErrStaticChannelNotConnected = errors.New("transport: static channel not connected")
)

// UnexpectedDisconnectionError reports that the server tore down the MCS
// domain with a Disconnect-Provider-Ultimatum instead of sending the PDU
// the caller was decoding for.
type UnexpectedDisconnectionError struct {
	Reason string
}

func (e *UnexpectedDisconnectionError) Error() string {
	return fmt.Sprintf("transport: unexpected disconnection: %s", e.Reason)
}

// UnexpectedChannelError reports a Send-Data-Indication addressed to a
// channel id the active stage recognizes by name but has no handler
// wired up for.
type UnexpectedChannelError struct {
	ChannelID uint16
}

func (e *UnexpectedChannelError) Error() string {
	return fmt.Sprintf("transport: unexpected channel %d", e.ChannelID)
}
