package fastpath

import (
	"bytes"
	"io"
)

// InputEventPDU is a client-to-server fast-path input event PDU
// (MS-RDPBCGR 2.2.8.1.2): a single input event batched under one
// fpInputHeader, the same framing shape fast-path output updates use.
type InputEventPDU struct {
	action    uint8
	numEvents uint8
	flags     uint8
	eventData []byte
}

// NewInputEventPDU wraps a single already-serialized input event.
func NewInputEventPDU(eventData []byte) *InputEventPDU {
	return &InputEventPDU{
		numEvents: 1,
		eventData: eventData,
	}
}

// SerializeLength writes the fast-path self-inclusive length field: a
// single byte (value+1) when value is at most 0x7f, otherwise a two-byte
// big-endian form (value+2) with the high bit of the first byte set.
func (pdu *InputEventPDU) SerializeLength(value int, w io.Writer) error {
	if value > 0x7f {
		v := uint16(value+2) | 0x8000
		_, err := w.Write([]byte{byte(v >> 8), byte(v)})
		return err
	}
	_, err := w.Write([]byte{byte(value + 1)})
	return err
}

func (pdu *InputEventPDU) Serialize() []byte {
	buf := new(bytes.Buffer)

	header := (pdu.action & 0x3) | ((pdu.numEvents & 0xf) << 2) | ((pdu.flags & 0x3) << 6)
	buf.WriteByte(header)

	_ = pdu.SerializeLength(1+len(pdu.eventData), buf)
	buf.Write(pdu.eventData)

	return buf.Bytes()
}

// Send writes a single fast-path input event PDU to the connection.
func (p *Protocol) Send(pdu *InputEventPDU) error {
	_, err := p.conn.Write(pdu.Serialize())
	return err
}
