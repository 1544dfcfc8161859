package rfx

import (
	"encoding/binary"
	"fmt"

	"github.com/nolan-ca/rdp-activestage/internal/region"
)

// SequenceState tracks which half of an RFX message stream the engine
// expects next. A server sends the three header PDUs (Context, Channels,
// CodecVersions, in any order) exactly once per connection unless
// OperatingModeImage is negotiated, in which case every frame repeats them.
type SequenceState int

const (
	StateHeaderMessages SequenceState = iota
	StateDataMessages
)

// Framebuffer receives decoded, pixel-format-converted tile blits clipped to
// the rectangles a server actually announced as damaged. Implementations own
// their own synchronization; BeginFrame is called once per Decode, ahead of
// the BlitTile calls for that frame's tiles, so an implementation can reset
// any per-frame state it accumulates (e.g. a damage region).
type Framebuffer interface {
	BeginFrame()
	BlitTile(pixelsBGRA []byte, dst region.Rect, clip *region.Region)
}

// DecodingContext drives the RFX message sequence for one RFX-coded virtual
// channel across its whole lifetime. It is not safe for concurrent use —
// the active-stage loop owns exactly one per channel and calls Decode
// serially, one surface command at a time.
type DecodingContext struct {
	state    SequenceState
	context  ContextPdu
	channels []Channel

	// Reusable tile-decode scratch space, allocated once and never resized;
	// reallocating here would defeat the point of avoiding per-tile garbage
	// on the hot path.
	tileOutput  [TileRGBASize]byte
	yCoeff      [TilePixels]int16
	cbCoeff     [TilePixels]int16
	crCoeff     [TilePixels]int16
	dwtTemp     [TilePixels]int16
}

// NewDecodingContext creates a sequence engine starting in HeaderMessages
// state, matching the wire state immediately after the RFX channel is
// announced in the Client Bitmap Codecs Capability Set.
func NewDecodingContext() *DecodingContext {
	return &DecodingContext{state: StateHeaderMessages}
}

// Decode consumes one complete RFX message (everything from a surface
// command's codec payload) and applies it to fb, clipped to destination's
// origin on the channel's virtual surface. It returns the frame index the
// server assigned and the bounding box of everything actually blitted.
func (dc *DecodingContext) Decode(fb Framebuffer, destLeft, destTop uint16, input []byte) (uint32, region.Rect, error) {
	offset := 0
	for {
		switch dc.state {
		case StateHeaderMessages:
			n, err := dc.processHeaders(input[offset:])
			if err != nil {
				return 0, region.Rect{}, err
			}
			offset += n
		case StateDataMessages:
			return dc.processDataMessages(fb, destLeft, destTop, input[offset:])
		}
	}
}

func nextBlock(data []byte) (blockType uint16, block []byte, err error) {
	if len(data) < 6 {
		return 0, nil, fmt.Errorf("%w: short block header", ErrInvalidBlockLength)
	}
	blockType = binary.LittleEndian.Uint16(data[0:])
	blockLen := int(binary.LittleEndian.Uint32(data[2:]))
	if blockLen < 6 || blockLen > len(data) {
		return 0, nil, fmt.Errorf("%w: block length %d", ErrInvalidBlockLength, blockLen)
	}
	return blockType, data[:blockLen], nil
}

// processHeaders reads the mandatory SYNC PDU followed by exactly three
// header PDUs in any order (MS-RDPRFX allows CodecVersions, Channels, and
// Context to appear in any sequence). CONTEXT and CHANNELS are mandatory; an
// empty channel list is a protocol error distinct from a missing header.
func (dc *DecodingContext) processHeaders(input []byte) (int, error) {
	consumed := 0

	blockType, block, err := nextBlock(input)
	if err != nil {
		return 0, err
	}
	if blockType != WBT_SYNC {
		return 0, fmt.Errorf("%w: expected WBT_SYNC, got %#04x", ErrInvalidBlockType, blockType)
	}
	consumed += len(block)

	var haveContext, haveChannels bool
	var context ContextPdu
	var channels []Channel

	for i := 0; i < 3; i++ {
		blockType, block, err = nextBlock(input[consumed:])
		if err != nil {
			return 0, err
		}
		switch blockType {
		case WBT_CONTEXT:
			context, err = parseContext(block)
			if err != nil {
				return 0, err
			}
			haveContext = true
		case WBT_CHANNELS:
			channels, err = parseChannels(block)
			if err != nil {
				return 0, err
			}
			haveChannels = true
		case WBT_CODEC_VERSIONS:
			// Informational only; no fields the decoder needs.
		default:
			return 0, fmt.Errorf("%w: unexpected header block %#04x", ErrInvalidBlockType, blockType)
		}
		consumed += len(block)
	}

	if !haveContext || !haveChannels {
		return 0, ErrMandatoryHeaderAbsent
	}
	if len(channels) == 0 {
		return 0, ErrNoRfxChannelsAnnounced
	}

	dc.context = context
	dc.channels = channels
	dc.state = StateDataMessages

	return consumed, nil
}

// processDataMessages reads the FrameBegin/Region/TileSet/FrameEnd tuple that
// makes up one frame, decodes every tile in it, and blits each into fb
// clipped to the announced damage rectangles.
func (dc *DecodingContext) processDataMessages(fb Framebuffer, destLeft, destTop uint16, input []byte) (uint32, region.Rect, error) {
	if len(dc.channels) == 0 {
		return 0, region.Rect{}, ErrNoRfxChannelsAnnounced
	}
	channel := dc.channels[0]

	consumed := 0

	blockType, block, err := nextBlock(input)
	if err != nil {
		return 0, region.Rect{}, err
	}
	if blockType != WBT_FRAME_BEGIN {
		return 0, region.Rect{}, fmt.Errorf("%w: expected WBT_FRAME_BEGIN, got %#04x", ErrInvalidBlockType, blockType)
	}
	frameIdx, err := parseFrameBegin(block)
	if err != nil {
		return 0, region.Rect{}, err
	}
	consumed += len(block)

	blockType, block, err = nextBlock(input[consumed:])
	if err != nil {
		return 0, region.Rect{}, err
	}
	if blockType != WBT_REGION {
		return 0, region.Rect{}, fmt.Errorf("%w: expected WBT_REGION, got %#04x", ErrInvalidBlockType, blockType)
	}
	rects, err := parseRegion(block)
	if err != nil {
		return 0, region.Rect{}, err
	}
	consumed += len(block)

	blockType, block, err = nextBlock(input[consumed:])
	if err != nil {
		return 0, region.Rect{}, err
	}
	if blockType != WBT_TILESET {
		return 0, region.Rect{}, fmt.Errorf("%w: expected WBT_TILESET, got %#04x", ErrInvalidBlockType, blockType)
	}
	tiles, quantTables, err := parseTileSet(block)
	if err != nil {
		return 0, region.Rect{}, err
	}
	consumed += len(block)

	blockType, block, err = nextBlock(input[consumed:])
	if err != nil {
		return 0, region.Rect{}, err
	}
	if blockType != WBT_FRAME_END {
		return 0, region.Rect{}, fmt.Errorf("%w: expected WBT_FRAME_END, got %#04x", ErrInvalidBlockType, blockType)
	}

	// An empty REGION PDU means "the whole channel surface changed".
	if len(rects) == 0 {
		rects = []RegionRect{{X: 0, Y: 0, Width: channel.Width, Height: channel.Height}}
	}

	clip := region.New()
	for _, r := range rects {
		clip.UnionRectangle(region.Rect{
			Left:   minU16(destLeft+r.X, channel.Width),
			Top:    minU16(destTop+r.Y, channel.Height),
			Right:  minU16(destLeft+r.X+r.Width, channel.Width),
			Bottom: minU16(destTop+r.Y+r.Height, channel.Height),
		})
	}

	fb.BeginFrame()

	for _, t := range tiles {
		if !validQuantIndex(t.quantIdxY, quantTables) || !validQuantIndex(t.quantIdxCb, quantTables) || !validQuantIndex(t.quantIdxCr, quantTables) {
			return 0, region.Rect{}, ErrInvalidQuantValues
		}

		xIdx, yIdx, err := DecodeTileWithBuffers(
			t.data,
			quantTables[t.quantIdxY], quantTables[t.quantIdxCb], quantTables[t.quantIdxCr],
			dc.context.EntropyMode,
			dc.yCoeff[:], dc.cbCoeff[:], dc.crCoeff[:], dc.dwtTemp[:],
			dc.tileOutput[:],
		)
		if err != nil {
			return 0, region.Rect{}, err
		}

		tileRect := region.Rect{
			Left:   destLeft + xIdx*TileSize,
			Top:    destTop + yIdx*TileSize,
			Right:  destLeft + xIdx*TileSize + TileSize,
			Bottom: destTop + yIdx*TileSize + TileSize,
		}
		fb.BlitTile(dc.tileOutput[:], tileRect, clip)
	}

	if dc.context.Flags&OperatingModeImage != 0 {
		dc.state = StateHeaderMessages
	}

	return frameIdx, clip.BoundingBox(), nil
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func parseContext(block []byte) (ContextPdu, error) {
	if len(block) < 9 {
		return ContextPdu{}, fmt.Errorf("%w: CONTEXT block too short", ErrInvalidBlockLength)
	}
	// block[6] = ctxId; properties occupies the two bytes right after it
	// (block[7:9]). No tileSize field is read: tiles are fixed at 64.
	properties := binary.LittleEndian.Uint16(block[7:9])

	entropy := uint8(RLGR1)
	if properties&0x0010 != 0 {
		entropy = RLGR3
	}

	return ContextPdu{
		Flags:       OperatingMode(properties & OperatingModeImage),
		EntropyMode: entropy,
	}, nil
}

func parseChannels(block []byte) ([]Channel, error) {
	if len(block) < 7 {
		return nil, fmt.Errorf("%w: CHANNELS block too short", ErrInvalidBlockLength)
	}
	numChannels := block[6]
	offset := 7
	channels := make([]Channel, 0, numChannels)
	for i := uint8(0); i < numChannels; i++ {
		if offset+5 > len(block) {
			return nil, fmt.Errorf("%w: CHANNELS block truncated", ErrInvalidBlockLength)
		}
		channels = append(channels, Channel{
			ID:     block[offset],
			Width:  binary.LittleEndian.Uint16(block[offset+1:]),
			Height: binary.LittleEndian.Uint16(block[offset+3:]),
		})
		offset += 5
	}
	return channels, nil
}

func parseFrameBegin(block []byte) (uint32, error) {
	if len(block) < 14 {
		return 0, fmt.Errorf("%w: FRAME_BEGIN block too short", ErrInvalidBlockLength)
	}
	return binary.LittleEndian.Uint32(block[6:]), nil
}

func parseRegion(block []byte) ([]RegionRect, error) {
	if len(block) < 9 {
		return nil, fmt.Errorf("%w: REGION block too short", ErrInvalidBlockLength)
	}

	offset := 7 // skip block header (6) + regionFlags (1)
	numRects := binary.LittleEndian.Uint16(block[offset:])
	offset += 2

	rects := make([]RegionRect, 0, numRects)
	for i := uint16(0); i < numRects; i++ {
		if offset+8 > len(block) {
			return nil, fmt.Errorf("%w: REGION block truncated", ErrInvalidBlockLength)
		}
		rects = append(rects, RegionRect{
			X:      binary.LittleEndian.Uint16(block[offset:]),
			Y:      binary.LittleEndian.Uint16(block[offset+2:]),
			Width:  binary.LittleEndian.Uint16(block[offset+4:]),
			Height: binary.LittleEndian.Uint16(block[offset+6:]),
		})
		offset += 8
	}
	return rects, nil
}

// tileEntry is one CBT_TILE block's raw bytes plus its resolved quant
// indices, prior to validating them against the tileset's quant table.
type tileEntry struct {
	data                            []byte
	quantIdxY, quantIdxCb, quantIdxCr uint8
}

func parseTileSet(block []byte) ([]tileEntry, []*SubbandQuant, error) {
	if len(block) < 19 {
		return nil, nil, fmt.Errorf("%w: TILESET block too short", ErrInvalidBlockLength)
	}

	offset := 6
	offset += 2 // subtype
	offset += 2 // idx
	offset += 2 // flags
	numQuant := block[offset]
	offset++
	offset++ // tileSize (fixed at 64)
	numTiles := binary.LittleEndian.Uint16(block[offset:])
	offset += 2
	offset += 4 // tileDataSize

	quantTables := make([]*SubbandQuant, numQuant)
	for i := uint8(0); i < numQuant; i++ {
		if offset+5 > len(block) {
			return nil, nil, fmt.Errorf("%w: TILESET quant table truncated", ErrInvalidBlockLength)
		}
		quant, err := ParseQuantValues(block[offset:])
		if err != nil {
			return nil, nil, err
		}
		quantTables[i] = quant
		offset += 5
	}

	tiles := make([]tileEntry, 0, numTiles)
	for i := uint16(0); i < numTiles; i++ {
		if offset+6 > len(block) {
			return nil, nil, fmt.Errorf("%w: TILESET tile list truncated", ErrInvalidBlockLength)
		}
		tileBlockType := binary.LittleEndian.Uint16(block[offset:])
		if tileBlockType != CBT_TILE {
			return nil, nil, fmt.Errorf("%w: expected CBT_TILE, got %#04x", ErrInvalidBlockType, tileBlockType)
		}
		tileBlockLen := int(binary.LittleEndian.Uint32(block[offset+2:]))
		if tileBlockLen < 9 || offset+tileBlockLen > len(block) {
			return nil, nil, fmt.Errorf("%w: tile block length %d", ErrInvalidBlockLength, tileBlockLen)
		}

		tiles = append(tiles, tileEntry{
			data:       block[offset : offset+tileBlockLen],
			quantIdxY:  block[offset+6],
			quantIdxCb: block[offset+7],
			quantIdxCr: block[offset+8],
		})
		offset += tileBlockLen
	}

	return tiles, quantTables, nil
}
