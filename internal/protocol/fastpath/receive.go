package fastpath

import (
	"encoding/binary"
	"fmt"
	"io"
)

// UpdatePDUAction is the two-bit action code in the outer fast-path
// output header (MS-RDPBCGR 2.2.9.1.2.1).
type UpdatePDUAction uint8

const (
	UpdatePDUActionFastPath UpdatePDUAction = 0x0
	UpdatePDUActionX224     UpdatePDUAction = 0x3
)

// UpdatePDUFlag is the two-bit flag field in the outer fast-path output
// header, carried in bits 6-7.
type UpdatePDUFlag uint8

const (
	UpdatePDUFlagSecureChecksum UpdatePDUFlag = 0x1
	UpdatePDUFlagEncrypted      UpdatePDUFlag = 0x2
)

// maxFastPathPacket bounds the outer fast-path length field; anything
// beyond it cannot be a legitimate update PDU.
const maxFastPathPacket = 0x4000

// UpdatePDU is the outer fast-path server output PDU: one header byte,
// a variable length field, and the raw payload, which itself contains one
// or more Update records. Deserialize reads the length field as the number
// of payload bytes that follow it; the header and length bytes are not
// counted.
type UpdatePDU struct {
	Action UpdatePDUAction
	Flags  UpdatePDUFlag
	Data   []byte
}

func (pdu *UpdatePDU) Deserialize(wire io.Reader) error {
	var header [1]byte
	if _, err := io.ReadFull(wire, header[:]); err != nil {
		return err
	}

	pdu.Action = UpdatePDUAction(header[0] & 0x3)
	pdu.Flags = UpdatePDUFlag((header[0] >> 6) & 0x3)

	if pdu.Action == UpdatePDUActionX224 {
		return ErrUnexpectedX224
	}
	if pdu.Flags&UpdatePDUFlagEncrypted != 0 {
		return fmt.Errorf("fastpath: encryption not supported")
	}
	if pdu.Flags&UpdatePDUFlagSecureChecksum != 0 {
		return fmt.Errorf("fastpath: secure checksum not supported")
	}

	var lenByte [1]byte
	if _, err := io.ReadFull(wire, lenByte[:]); err != nil {
		return err
	}

	length := int(lenByte[0])
	if lenByte[0]&0x80 != 0 {
		var second [1]byte
		if _, err := io.ReadFull(wire, second[:]); err != nil {
			return err
		}
		length = (int(lenByte[0]&0x7f) << 8) | int(second[0])
	}

	if length > maxFastPathPacket {
		return fmt.Errorf("fastpath: too big packet: %d", length)
	}

	if cap(pdu.Data) >= length {
		pdu.Data = pdu.Data[:length]
	} else {
		pdu.Data = make([]byte, length)
	}
	if length > 0 {
		if _, err := io.ReadFull(wire, pdu.Data); err != nil {
			return err
		}
	}

	return nil
}

// Receive reads one fast-path update PDU off the connection, reusing
// the Protocol's scratch buffer across calls.
func (p *Protocol) Receive() (*UpdatePDU, error) {
	pdu := &UpdatePDU{Data: p.updatePDUData[:0]}
	if err := pdu.Deserialize(p.conn); err != nil {
		return nil, err
	}
	p.updatePDUData = pdu.Data
	return pdu, nil
}

// UpdateCode identifies the kind of payload carried by an Update record
// (MS-RDPBCGR 2.2.9.1.2.1.1, fpUpdateHeader low nibble).
type UpdateCode uint8

const (
	UpdateCodeOrders       UpdateCode = 0x0
	UpdateCodeBitmap       UpdateCode = 0x1
	UpdateCodePalette      UpdateCode = 0x2
	UpdateCodeSynchronize  UpdateCode = 0x3
	UpdateCodeSurfCMDs     UpdateCode = 0x4
	UpdateCodePTRNull      UpdateCode = 0x5
	UpdateCodePTRDefault   UpdateCode = 0x6
	UpdateCodePTRPosition  UpdateCode = 0x8
	UpdateCodeColor        UpdateCode = 0x9
	UpdateCodeCached       UpdateCode = 0xa
	UpdateCodePointer      UpdateCode = 0xb
	UpdateCodeLargePointer UpdateCode = 0xc
)

// Fragment is the two-bit fragmentation sequence code.
type Fragment uint8

const (
	FragmentSingle Fragment = 0x0
	FragmentLast   Fragment = 0x1
	FragmentFirst  Fragment = 0x2
	FragmentNext   Fragment = 0x3
)

// Compression is the two-bit compression flag.
type Compression uint8

const (
	CompressionUsed Compression = 0x2
)

// Update is one fpUpdateHeader-prefixed record inside an UpdatePDU's
// payload. A single UpdatePDU may carry several of these back to back.
type Update struct {
	UpdateCode    UpdateCode
	fragmentation Fragment
	compression   Compression
	size          uint16
	Data          []byte
}

func (u *Update) Deserialize(wire io.Reader) error {
	var header [1]byte
	if _, err := io.ReadFull(wire, header[:]); err != nil {
		return err
	}

	u.UpdateCode = UpdateCode(header[0] & 0x0f)
	u.fragmentation = Fragment((header[0] >> 4) & 0x3)
	u.compression = Compression((header[0] >> 6) & 0x3)

	if u.compression != 0 {
		var compressionFlags [1]byte
		if _, err := io.ReadFull(wire, compressionFlags[:]); err != nil {
			return err
		}
	}

	var sizeBuf [2]byte
	if _, err := io.ReadFull(wire, sizeBuf[:]); err != nil {
		return err
	}
	u.size = binary.LittleEndian.Uint16(sizeBuf[:])

	if u.size > 0 {
		u.Data = make([]byte, u.size)
		if _, err := io.ReadFull(wire, u.Data); err != nil {
			return err
		}
	} else {
		u.Data = nil
	}

	return nil
}
