package pdu

import "errors"

var (
	// ErrInvalidCorrelationID is returned by SetCorrelationID when the ID is not
	// 16 bytes long, starts with 0x00 or 0xF4, or contains a 0x0D byte.
	ErrInvalidCorrelationID = errors.New("invalid correlationId")
	// ErrDeactivateAll indicates the server sent a Deactivate All PDU (MS-RDPBCGR 2.2.3.1).
	ErrDeactivateAll = errors.New("deactivate all")
	// ErrDeactiateAll is ErrDeactivateAll under its original spelling, kept
	// for callers that still reference it under that name.
	ErrDeactiateAll = ErrDeactivateAll
)
