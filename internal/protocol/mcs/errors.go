package mcs

import "errors"

var (
	// ErrChannelNotFound is returned when a caller asks for a channel ID
	// that was never joined during this session.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrUnknownConnectApplication is returned when a Connect-sequence PDU
	// carries an application tag this client doesn't know how to parse.
	ErrUnknownConnectApplication = errors.New("unknown connect application")
	// ErrUnknownDomainApplication is returned when a domain PDU carries an
	// application tag this client doesn't expect to receive.
	ErrUnknownDomainApplication = errors.New("unknown domain application")
	// ErrUnknownChannel is returned by JoinChannels when the server answers
	// a Channel-Join-Request with something other than a Channel-Join-Confirm.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrDisconnectUltimatum is returned when the server tears down the
	// MCS domain with a Disconnect-Provider-Ultimatum.
	ErrDisconnectUltimatum = errors.New("disconnect ultimatum")
)
