package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"
)

// ShareDataPDU is one decoded TS_SHAREDATAHEADER record: its PDUType2
// selector plus the bytes that followed the header.
type ShareDataPDU struct {
	Type2 pdu.Type2
	Body  []byte
}

// GlobalChannelTransport decodes the TS_SHARECONTROLHEADER/TS_SHAREDATAHEADER
// envelope carried on the global (I/O) channel. It remembers the share id
// the server last used so an encoded reply can echo it back, and flags
// once whether the server's advertised PDU source looked wrong, matching
// MS-RDPBCGR's expectation that replies from the server always claim the
// well-known server channel id.
type GlobalChannelTransport struct {
	GlobalChannelID uint16
	shareID         uint32
	badPDUSource    bool
}

// Decode unwraps one Share-Data PDU from the bytes a Send-Data-Indication
// carried on channelID. It returns ErrInvalidResponse if channelID isn't
// the global channel, and ErrUnexpectedPdu if the control header names
// anything other than a data PDU (Demand Active, Confirm Active, and
// Deactivate All only occur during the connection sequence this client has
// already completed by the time the active stage is running).
func (g *GlobalChannelTransport) Decode(channelID uint16, body []byte) (ShareDataPDU, error) {
	if channelID != g.GlobalChannelID {
		return ShareDataPDU{}, fmt.Errorf("%w: data on channel %d, expected global channel %d", ErrInvalidResponse, channelID, g.GlobalChannelID)
	}

	var header pdu.ShareDataHeader
	wire := bytes.NewReader(body)
	if err := header.Deserialize(wire); err != nil {
		if errors.Is(err, pdu.ErrDeactivateAll) {
			return ShareDataPDU{}, fmt.Errorf("%w: deactivate all", ErrUnexpectedPdu)
		}
		return ShareDataPDU{}, fmt.Errorf("transport: share data header: %w", err)
	}

	if header.ShareControlHeader.PDUSource != pdu.ServerChannelID {
		g.badPDUSource = true
	}
	g.shareID = header.ShareID

	rest, err := io.ReadAll(wire)
	if err != nil {
		return ShareDataPDU{}, err
	}

	return ShareDataPDU{Type2: header.PDUType2, Body: rest}, nil
}

// BadPDUSource reports whether the last decoded Share-Data PDU claimed a
// source other than the well-known server channel id, so the caller can
// log it once rather than on every PDU.
func (g *GlobalChannelTransport) BadPDUSource() bool {
	return g.badPDUSource
}

// Encode wraps payload, tagged with pduType2, in a Share-Data header and
// the Share-Control header underneath it, addressed from pduSource (this
// client's own MCS user id) and carrying the share id last captured by
// Decode. Stream priority is fixed at Low and no compression is applied,
// matching what a client ever needs to send back on the global channel.
func (g *GlobalChannelTransport) Encode(pduSource uint16, pduType2 pdu.Type2, payload []byte) []byte {
	header := pdu.ShareDataHeader{
		ShareControlHeader: pdu.ShareControlHeader{
			PDUType:   pdu.TypeData,
			PDUSource: pduSource,
		},
		ShareID:            g.shareID,
		StreamID:           0x01, // STREAM_LOW
		UncompressedLength: uint16(4 + len(payload)), // #nosec G115 -- PDUs never approach uint16 overflow
		PDUType2:           pduType2,
	}
	header.ShareControlHeader.TotalLength = uint16(18 + len(payload)) // #nosec G115

	buf := new(bytes.Buffer)
	buf.Write(header.Serialize())
	buf.Write(payload)
	return buf.Bytes()
}
