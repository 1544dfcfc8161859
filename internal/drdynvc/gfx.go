package drdynvc

import (
	"encoding/binary"
	"fmt"
)

// Graphics Pipeline PDU command IDs this client cares about (MS-RDPEGFX
// 2.2.2). Everything else is forwarded to the observer unparsed.
const (
	gfxCmdIDWireToSurface1     = 0x0001
	gfxCmdIDSolidFill          = 0x0004
	gfxCmdIDSurfaceToCache     = 0x0005
	gfxCmdIDCacheToSurface     = 0x0006
	gfxCmdIDSurfaceToSurface   = 0x0007
	gfxCmdIDCacheImportReply   = 0x0009
	gfxCmdIDCreateSurface      = 0x000A
	gfxCmdIDDeleteSurface      = 0x000B
	gfxCmdIDStartFrame         = 0x000C
	gfxCmdIDEndFrame           = 0x000D
	gfxCmdIDResetGraphics      = 0x000E
	gfxCmdIDFrameAcknowledge   = 0x000F
	gfxCmdIDMapSurfaceToOutput = 0x0010
	gfxCmdIDCacheImportOffer   = 0x0011
	gfxCmdIDCapsAdvertise      = 0x0013
	gfxCmdIDCapsConfirm        = 0x0014
	gfxCmdIDMapSurfaceToWindow = 0x0017
)

const gfxPDUHeaderSize = 8 // cmdId(2) + flags(2) + pduLength(4)

// QueueDepth values for the client's FrameAcknowledge PDU (MS-RDPEGFX
// 2.2.2.2). Suspend tells the server to stop sending frames until it hears
// back, which this client never does since it always keeps up.
const gfxQueueDepthSuspend = 0xFFFFFFFF

// ServerPDU is one parsed Graphics Pipeline PDU handed to the observer for
// everything this handler doesn't intercept itself.
type ServerPDU struct {
	CmdID   uint16
	Payload []byte
}

// GFXObserver receives every Graphics Pipeline PDU not consumed internally
// by EndFrame handling, so a renderer can apply surface/cache/frame updates.
type GFXObserver interface {
	ObserveGFX(pdu ServerPDU)
}

// GFXHandler implements Handler for the Graphics Pipeline dynamic channel
// (MS-RDPEGFX): it ZGFX-decompresses every complete DVC message, walks the
// resulting PDU stream, and answers each EndFrame with a FrameAcknowledge
// rather than exposing frame bookkeeping to the observer.
type GFXHandler struct {
	decompressor   *ZGFXDecompressor
	framesDecoded  uint32
	observer       GFXObserver
}

// NewGFXHandler builds a Graphics Pipeline handler. observer may be nil if
// nothing needs to consume decoded PDUs beyond frame acknowledgement.
func NewGFXHandler(observer GFXObserver) *GFXHandler {
	return &GFXHandler{
		decompressor: NewZGFXDecompressor(),
		observer:     observer,
	}
}

// HandleData implements Handler. It returns a non-nil response only when at
// least one EndFrame PDU was seen, carrying one FrameAcknowledge per frame.
func (h *GFXHandler) HandleData(complete []byte) ([]byte, error) {
	decompressed, err := h.decompressor.Decompress(complete)
	if err != nil {
		return nil, fmt.Errorf("gfx: zgfx decompress: %w", err)
	}

	var response []byte
	buf := decompressed
	for len(buf) > 0 {
		pdu, rest, err := parseGFXPDU(buf)
		if err != nil {
			return response, fmt.Errorf("gfx: parse pdu: %w", err)
		}
		buf = rest

		if pdu.CmdID == gfxCmdIDEndFrame {
			frameID, err := parseEndFrame(pdu.Payload)
			if err != nil {
				return response, fmt.Errorf("gfx: parse end frame: %w", err)
			}
			h.framesDecoded++
			response = append(response, encodeFrameAcknowledge(frameID, h.framesDecoded)...)
			continue
		}

		if h.observer != nil {
			h.observer.ObserveGFX(pdu)
		}
	}

	return response, nil
}

func parseGFXPDU(buf []byte) (ServerPDU, []byte, error) {
	if len(buf) < gfxPDUHeaderSize {
		return ServerPDU{}, nil, fmt.Errorf("pdu header truncated")
	}
	cmdID := binary.LittleEndian.Uint16(buf[0:2])
	pduLength := binary.LittleEndian.Uint32(buf[4:8])
	if pduLength < gfxPDUHeaderSize || int(pduLength) > len(buf) {
		return ServerPDU{}, nil, fmt.Errorf("pdu length %d out of range (have %d)", pduLength, len(buf))
	}
	payload := buf[gfxPDUHeaderSize:pduLength]
	return ServerPDU{CmdID: cmdID, Payload: payload}, buf[pduLength:], nil
}

func parseEndFrame(payload []byte) (frameID uint32, err error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("end frame pdu truncated")
	}
	return binary.LittleEndian.Uint32(payload[0:4]), nil
}

// encodeFrameAcknowledge builds a RDPGFX_CMDID_FRAMEACKNOWLEDGE PDU
// (MS-RDPEGFX 2.2.2.2): header, then queueDepth/frameId/totalFramesDecoded.
func encodeFrameAcknowledge(frameID, totalFramesDecoded uint32) []byte {
	const payloadSize = 12
	buf := make([]byte, gfxPDUHeaderSize+payloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], gfxCmdIDFrameAcknowledge)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[8:12], gfxQueueDepthSuspend)
	binary.LittleEndian.PutUint32(buf[12:16], frameID)
	binary.LittleEndian.PutUint32(buf[16:20], totalFramesDecoded)
	return buf
}

// GFX capability versions and flags (MS-RDPEGFX 2.2.3).
const (
	gfxCapsVersion8   = 0x00080004
	gfxCapsVersion8_1 = 0x00080104
	gfxCapsVersion10  = 0x000A0002
	gfxCapsVersion10_6 = 0x000A0600

	gfxCapsFlagAVC420Enabled  = 0x00000001
	gfxCapsFlagSmallCache     = 0x00000002
	gfxCapsFlagAVCThinClient  = 0x00000001
)

// createCapabilitiesAdvertise builds the CapsAdvertise PDU sent once, right
// after the Graphics Pipeline channel is created, to tell the server which
// capability sets (and therefore which codecs) this client supports.
func createCapabilitiesAdvertise() []byte {
	type capSet struct {
		version uint32
		flags   uint32
	}
	sets := []capSet{
		{gfxCapsVersion8, 0},
		{gfxCapsVersion8_1, gfxCapsFlagAVC420Enabled},
		{gfxCapsVersion10, 0},
		{gfxCapsVersion10_6, gfxCapsFlagSmallCache | gfxCapsFlagAVCThinClient},
	}

	const capsSetHeaderSize = 8 // version(4) + capsDataLength(4)
	const capsSetDataSize = 4   // flags(4)
	payloadSize := 2 + len(sets)*(capsSetHeaderSize+capsSetDataSize)

	buf := make([]byte, gfxPDUHeaderSize+payloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], gfxCmdIDCapsAdvertise)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)))

	offset := gfxPDUHeaderSize
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(sets)))
	offset += 2
	for _, s := range sets {
		binary.LittleEndian.PutUint32(buf[offset:], s.version)
		binary.LittleEndian.PutUint32(buf[offset+4:], capsSetDataSize)
		binary.LittleEndian.PutUint32(buf[offset+8:], s.flags)
		offset += capsSetHeaderSize + capsSetDataSize
	}

	return buf
}
