package rfx

import (
	"encoding/binary"
)

// DecodeTile decodes a single RFX tile from compressed data, allocating its
// own scratch buffers. Prefer DecodeTileWithBuffers on the active-stage hot
// path, where a DecodingContext reuses its buffers across tiles and frames.
// data: raw tile data starting with CBT_TILE block header
// quantY, quantCb, quantCr: quantization values for each component
// entropyMode: the session-negotiated RLGR1/RLGR3 algorithm, shared by all
// three components (TS_RFX_CONTEXT carries one entropy mode for the whole
// channel, not one per plane)
func DecodeTile(data []byte, quantY, quantCb, quantCr *SubbandQuant, entropyMode uint8) (*Tile, error) {
	yCoeff := make([]int16, TilePixels)
	cbCoeff := make([]int16, TilePixels)
	crCoeff := make([]int16, TilePixels)
	dwtTemp := make([]int16, TilePixels)
	pixels := make([]byte, TileRGBASize)

	xIdx, yIdx, err := DecodeTileWithBuffers(data, quantY, quantCb, quantCr, entropyMode, yCoeff, cbCoeff, crCoeff, dwtTemp, pixels)
	if err != nil {
		return nil, err
	}

	return &Tile{
		X:      xIdx,
		Y:      yIdx,
		Pixels: pixels,
	}, nil
}

// DecodeTileWithBuffers decodes a tile using caller-owned scratch buffers so
// the hot path never allocates. yCoeff/cbCoeff/crCoeff/dwtTemp must each have
// length TilePixels; pixels must have length TileRGBASize.
func DecodeTileWithBuffers(
	data []byte,
	quantY, quantCb, quantCr *SubbandQuant,
	entropyMode uint8,
	yCoeff, cbCoeff, crCoeff, dwtTemp []int16,
	pixels []byte,
) (xIdx, yIdx uint16, err error) {
	if len(data) < 19 {
		return 0, 0, ErrInvalidTileData
	}

	offset := 0

	// Parse block header
	blockType := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if blockType != CBT_TILE {
		return 0, 0, ErrInvalidBlockType
	}

	blockLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if int(blockLen) > len(data) {
		return 0, 0, ErrInvalidBlockLength
	}

	// Skip quant indices; the caller (sequence engine) already resolved them
	// against the TS_RFX_TILESET quant table before dispatching here.
	offset += 3

	xIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	cbLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	crLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	if offset+yLen+cbLen+crLen > len(data) {
		return 0, 0, ErrInvalidTileData
	}

	// RLGR decode. All three components share the session's single
	// negotiated entropy algorithm (TS_RFX_CONTEXT.entropyMode); RFX does
	// not assign one coder to Y and another to Cb/Cr.
	mode := int(entropyMode)
	if err := RLGRDecode(data[offset:offset+yLen], mode, yCoeff); err != nil {
		return 0, 0, err
	}
	offset += yLen

	if err := RLGRDecode(data[offset:offset+cbLen], mode, cbCoeff); err != nil {
		return 0, 0, err
	}
	offset += cbLen

	if err := RLGRDecode(data[offset:offset+crLen], mode, crCoeff); err != nil {
		return 0, 0, err
	}

	// Differential decode LL3 subband (DC coefficients)
	DifferentialDecode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(crCoeff[OffsetLL3:], SizeL3)

	// Dequantize
	Dequantize(yCoeff, quantY)
	Dequantize(cbCoeff, quantCb)
	Dequantize(crCoeff, quantCr)

	// Inverse DWT
	yPixels := InverseDWT2D(yCoeff, dwtTemp)
	cbPixels := InverseDWT2D(cbCoeff, dwtTemp)
	crPixels := InverseDWT2D(crCoeff, dwtTemp)

	// Color convert to the pipeline's internal BGRA working order
	YCbCrToBGRA(yPixels, cbPixels, crPixels, pixels)

	return xIdx, yIdx, nil
}
