package fastpath

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readUint16 reads one little-endian uint16 field, surfacing io.EOF
// directly when the reader is exhausted rather than io.ErrUnexpectedEOF
// from a larger combined read.
func readUint16(wire io.Reader, out *uint16) error {
	return binary.Read(wire, binary.LittleEndian, out)
}

// PaletteEntry is one TS_PALETTE_ENTRY (MS-RDPBCGR 2.2.9.1.1.3.1.2.1):
// three bytes, no per-entry padding.
type PaletteEntry struct {
	Red, Green, Blue uint8
}

func (p *PaletteEntry) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &p.Red); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &p.Green); err != nil {
		return err
	}
	return binary.Read(wire, binary.LittleEndian, &p.Blue)
}

// paletteUpdateData is TS_UPDATE_PALETTE (MS-RDPBCGR 2.2.9.1.1.3.1.1).
type paletteUpdateData struct {
	PaletteEntries []PaletteEntry
}

func (d *paletteUpdateData) Deserialize(wire io.Reader) error {
	var updateType, padding, numberColors uint16
	if err := readUint16(wire, &updateType); err != nil {
		return err
	}
	if err := readUint16(wire, &padding); err != nil {
		return err
	}
	if err := readUint16(wire, &numberColors); err != nil {
		return err
	}

	d.PaletteEntries = make([]PaletteEntry, 0, numberColors)
	for i := uint16(0); i < numberColors; i++ {
		var entry PaletteEntry
		if err := entry.Deserialize(wire); err != nil {
			return err
		}
		d.PaletteEntries = append(d.PaletteEntries, entry)
	}
	return nil
}

// CompressedDataHeader is TS_CD_HEADER (MS-RDPBCGR 2.2.9.1.1.3.1.2.3),
// prefixed to a compressed bitmap data stream unless NO_BITMAP_COMPRESSION_HDR
// is set on the owning BitmapData.
type CompressedDataHeader struct {
	CbCompFirstRowSize uint16
	CbCompMainBodySize uint16
	CbScanWidth        uint16
	CbUncompressedSize uint16
}

func (h *CompressedDataHeader) Deserialize(wire io.Reader) error {
	for _, f := range []*uint16{&h.CbCompFirstRowSize, &h.CbCompMainBodySize, &h.CbScanWidth, &h.CbUncompressedSize} {
		if err := readUint16(wire, f); err != nil {
			return err
		}
	}
	return nil
}

// BitmapDataFlag is the TS_BITMAP_DATA Flags field.
type BitmapDataFlag uint16

const (
	BitmapDataFlagCompression BitmapDataFlag = 0x0001
	BitmapDataFlagNoHDR       BitmapDataFlag = 0x0400
)

// BitmapData is TS_BITMAP_DATA (MS-RDPBCGR 2.2.9.1.1.3.1.2).
type BitmapData struct {
	DestLeft, DestTop, DestRight, DestBottom uint16
	Width, Height                            uint16
	BitsPerPixel                             uint16
	Flags                                    BitmapDataFlag
	BitmapLength                             uint16
	CompressedHeader                         *CompressedDataHeader
	BitmapDataStream                         []byte
}

func (d *BitmapData) Deserialize(wire io.Reader) error {
	fields := []*uint16{
		&d.DestLeft, &d.DestTop, &d.DestRight, &d.DestBottom,
		&d.Width, &d.Height, &d.BitsPerPixel,
	}
	for _, f := range fields {
		if err := readUint16(wire, f); err != nil {
			return err
		}
	}

	var flags uint16
	if err := readUint16(wire, &flags); err != nil {
		return err
	}
	d.Flags = BitmapDataFlag(flags)

	if err := readUint16(wire, &d.BitmapLength); err != nil {
		return err
	}

	length := int(d.BitmapLength)
	if d.Flags&BitmapDataFlagCompression != 0 && d.Flags&BitmapDataFlagNoHDR == 0 {
		var hdr CompressedDataHeader
		if err := hdr.Deserialize(wire); err != nil {
			return err
		}
		d.CompressedHeader = &hdr
		length -= 8
		if length < 0 {
			return fmt.Errorf("fastpath: bitmap length shorter than compressed header")
		}
	}

	d.BitmapDataStream = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(wire, d.BitmapDataStream); err != nil {
			return err
		}
	}
	return nil
}

// bitmapUpdateData is TS_UPDATE_BITMAP_DATA (MS-RDPBCGR 2.2.9.1.1.3.1.1).
type bitmapUpdateData struct {
	Rectangles []BitmapData
}

func (d *bitmapUpdateData) Deserialize(wire io.Reader) error {
	var updateType, numberRectangles uint16
	if err := readUint16(wire, &updateType); err != nil {
		return err
	}
	if err := readUint16(wire, &numberRectangles); err != nil {
		return err
	}

	d.Rectangles = make([]BitmapData, 0, numberRectangles)
	for i := uint16(0); i < numberRectangles; i++ {
		var rect BitmapData
		if err := rect.Deserialize(wire); err != nil {
			return err
		}
		d.Rectangles = append(d.Rectangles, rect)
	}
	return nil
}

// pointerPositionUpdateData is TS_POINTER_POSITION_ATTRIBUTE
// (MS-RDPBCGR 2.2.9.1.1.4.2).
type pointerPositionUpdateData struct {
	xPos, yPos uint16
}

func (d *pointerPositionUpdateData) Deserialize(wire io.Reader) error {
	if err := readUint16(wire, &d.xPos); err != nil {
		return err
	}
	return readUint16(wire, &d.yPos)
}

// colorPointerUpdateData is TS_COLORPOINTERATTRIBUTE
// (MS-RDPBCGR 2.2.9.1.1.4.4): the XOR mask precedes the AND mask on the
// wire even though lengthAndMask is declared first, followed by one
// padding byte.
type colorPointerUpdateData struct {
	cacheIndex                  uint16
	xPos, yPos                  uint16
	width, height               uint16
	lengthAndMask, lengthXorMask uint16
	xorMaskData, andMaskData    []byte
}

func (d *colorPointerUpdateData) Deserialize(wire io.Reader) error {
	fields := []*uint16{
		&d.cacheIndex, &d.xPos, &d.yPos, &d.width, &d.height,
		&d.lengthAndMask, &d.lengthXorMask,
	}
	for _, f := range fields {
		if err := readUint16(wire, f); err != nil {
			return err
		}
	}

	if d.lengthXorMask > 0 {
		d.xorMaskData = make([]byte, d.lengthXorMask)
		if _, err := io.ReadFull(wire, d.xorMaskData); err != nil {
			return err
		}
	}
	if d.lengthAndMask > 0 {
		d.andMaskData = make([]byte, d.lengthAndMask)
		if _, err := io.ReadFull(wire, d.andMaskData); err != nil {
			return err
		}
	}

	var pad uint8
	return binary.Read(wire, binary.LittleEndian, &pad)
}
