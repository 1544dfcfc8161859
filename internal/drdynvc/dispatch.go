package drdynvc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Well-known dynamic channel names this module has a handler for (MS-RDPEGFX
// 1.3.2.1, MS-RDPEDISP 1.3.2.1).
const (
	GraphicsPipelineChannelName = "Microsoft::Windows::RDS::Graphics"
	DisplayControlChannelName   = "Microsoft::Windows::RDS::DisplayControl"
)

// Handler processes one fully-reassembled DVC message for a single channel
// and optionally returns a payload to send back on the same channel (e.g. a
// GFX FrameAcknowledge piggy-backed on the next outbound Data PDU).
type Handler interface {
	HandleData(complete []byte) ([]byte, error)
}

// HandlerFactory builds a Handler for a channel the server just asked to
// create. Returning (nil, false) tells the dispatcher to deny the request
// with CreateResultNoListener — no DynamicChannel is registered.
type HandlerFactory func() (Handler, bool)

// DynamicChannel is one created (not yet closed) dynamic virtual channel:
// its fragment reassembler plus the domain handler bound to its name.
type DynamicChannel struct {
	ID      uint32
	Name    string
	handler Handler
	reasm   CompleteData
}

func (dc *DynamicChannel) processDataFirst(totalSize int, data []byte) ([]byte, error) {
	complete := dc.reasm.ProcessDataFirst(totalSize, data)
	if complete == nil {
		return nil, nil
	}
	return dc.handler.HandleData(complete)
}

func (dc *DynamicChannel) processData(data []byte) ([]byte, error) {
	complete := dc.reasm.ProcessData(data)
	if complete == nil {
		return nil, nil
	}
	return dc.handler.HandleData(complete)
}

// Dispatcher owns every dynamic channel created over one DRDYNVC static
// channel for the lifetime of a session: it answers Capabilities/Create/
// Close requests and routes Data/DataFirst PDUs to the channel's handler.
type Dispatcher struct {
	factories       map[string]HandlerFactory
	channels        map[uint32]*DynamicChannel
	channelIDByName map[string]uint32
}

// NewDispatcher creates a dispatcher with no registered channel handlers;
// call Register for every channel name the active stage is prepared to
// service before feeding it PDUs.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		factories:       make(map[string]HandlerFactory),
		channels:        make(map[uint32]*DynamicChannel),
		channelIDByName: make(map[string]uint32),
	}
}

// Register binds a handler factory to a channel name. A CreateRequest for
// any other name is answered with CreateResultNoListener and no channel is
// created, matching MS-RDPEDYC's behavior for an unrecognized channel.
func (d *Dispatcher) Register(name string, factory HandlerFactory) {
	d.factories[name] = factory
}

// Channel looks up an active channel by the name it was created with, for
// sending unsolicited client-to-server data on it.
func (d *Dispatcher) Channel(name string) (*DynamicChannel, bool) {
	id, ok := d.channelIDByName[name]
	if !ok {
		return nil, false
	}
	ch, ok := d.channels[id]
	return ch, ok
}

// Dispatch decodes one DRDYNVC command from the static channel payload and
// returns zero or more PDUs to send back on the same channel.
func (d *Dispatcher) Dispatch(data []byte) ([][]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("drdynvc: PDU too short")
	}
	var hdr Header
	hdr.Deserialize(data[0])
	rest := data[1:]

	switch hdr.Cmd {
	case CmdCapability:
		return d.handleCapability(rest)
	case CmdCreate:
		return d.handleCreate(rest, hdr.CbChID)
	case CmdClose:
		return d.handleClose(rest, hdr.CbChID)
	case CmdDataFirst:
		return d.handleDataFirst(rest, hdr.CbChID, hdr.Sp)
	case CmdData:
		return d.handleData(rest, hdr.CbChID)
	default:
		return nil, fmt.Errorf("drdynvc: unsupported command %#02x", hdr.Cmd)
	}
}

func (d *Dispatcher) handleCapability(rest []byte) ([][]byte, error) {
	if len(rest) < 3 {
		return nil, fmt.Errorf("drdynvc: CAPS PDU too short")
	}
	// rest[0] is padding; rest[1:3] the version. This module only ever
	// advertises V1 support regardless of what the server offers.
	resp := CapsPDU{Version: CapsVersion1}
	return [][]byte{resp.Serialize()}, nil
}

func (d *Dispatcher) handleCreate(rest []byte, cbChID uint8) ([][]byte, error) {
	channelID, rest, err := ReadChannelID(rest, cbChID)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: create request channel id: %w", err)
	}
	name, err := readCString(rest)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: create request channel name: %w", err)
	}

	result := uint32(CreateResultOK)
	var responses [][]byte

	factory, registered := d.factories[name]
	if !registered {
		result = CreateResultNoListener
	} else {
		handler, ok := factory()
		if !ok {
			result = CreateResultNoListener
		} else {
			d.channels[channelID] = &DynamicChannel{ID: channelID, Name: name, handler: handler}
			d.channelIDByName[name] = channelID
		}
	}

	responses = append(responses, encodeCreateResponse(channelID, result))

	if result == CreateResultOK && name == GraphicsPipelineChannelName {
		responses = append(responses, encodeData(channelID, createCapabilitiesAdvertise()))
	}

	return responses, nil
}

func (d *Dispatcher) handleClose(rest []byte, cbChID uint8) ([][]byte, error) {
	channelID, _, err := ReadChannelID(rest, cbChID)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: close request channel id: %w", err)
	}
	delete(d.channels, channelID)
	for name, id := range d.channelIDByName {
		if id == channelID {
			delete(d.channelIDByName, name)
		}
	}
	return [][]byte{encodeClose(channelID)}, nil
}

func (d *Dispatcher) handleDataFirst(rest []byte, cbChID uint8, lenSize uint8) ([][]byte, error) {
	channelID, rest, err := ReadChannelID(rest, cbChID)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: data-first channel id: %w", err)
	}
	totalSize, payload, err := readLength(rest, lenSize)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: data-first total length: %w", err)
	}

	channel, ok := d.channels[channelID]
	if !ok {
		// Server sent data for a channel we never created or already
		// closed — log-worthy, but not fatal to the session.
		return nil, nil
	}

	response, err := channel.processDataFirst(totalSize, payload)
	if err != nil || response == nil {
		return nil, err
	}
	return [][]byte{encodeData(channelID, response)}, nil
}

func (d *Dispatcher) handleData(rest []byte, cbChID uint8) ([][]byte, error) {
	channelID, payload, err := ReadChannelID(rest, cbChID)
	if err != nil {
		return nil, fmt.Errorf("drdynvc: data channel id: %w", err)
	}

	channel, ok := d.channels[channelID]
	if !ok {
		return nil, nil
	}

	response, err := channel.processData(payload)
	if err != nil || response == nil {
		return nil, err
	}
	return [][]byte{encodeData(channelID, response)}, nil
}

// readLength reads the DYNVC_DATA_FIRST total-length field, whose width is
// given by the header's Sp field using the same 0/1/2 -> 1/2/4 byte encoding
// as the channel ID field.
func readLength(data []byte, lenSize uint8) (int, []byte, error) {
	size := 1
	switch lenSize {
	case 0:
		size = 1
	case 1:
		size = 2
	case 2:
		size = 4
	}
	if len(data) < size {
		return 0, nil, fmt.Errorf("not enough data for length field")
	}

	var length uint32
	switch lenSize {
	case 0:
		length = uint32(data[0])
	case 1:
		length = uint32(binary.LittleEndian.Uint16(data[:2]))
	case 2:
		length = binary.LittleEndian.Uint32(data[:4])
	}

	return int(length), data[size:], nil
}

func readCString(data []byte) (string, error) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", fmt.Errorf("unterminated channel name")
	}
	return string(data[:idx]), nil
}

func cbChIDFor(channelID uint32) uint8 {
	switch {
	case channelID <= 0xFF:
		return 0
	case channelID <= 0xFFFF:
		return 1
	default:
		return 2
	}
}

func writeChannelID(buf *bytes.Buffer, channelID uint32, cbChID uint8) {
	switch cbChID {
	case 0:
		buf.WriteByte(byte(channelID))
	case 1:
		_ = binary.Write(buf, binary.LittleEndian, uint16(channelID))
	default:
		_ = binary.Write(buf, binary.LittleEndian, channelID)
	}
}

func encodeCreateResponse(channelID uint32, result uint32) []byte {
	cbChID := cbChIDFor(channelID)
	buf := new(bytes.Buffer)
	header := Header{CbChID: cbChID, Sp: 0, Cmd: CmdCreate}
	buf.WriteByte(header.Serialize())
	writeChannelID(buf, channelID, cbChID)
	_ = binary.Write(buf, binary.LittleEndian, result)
	return buf.Bytes()
}

func encodeClose(channelID uint32) []byte {
	cbChID := cbChIDFor(channelID)
	buf := new(bytes.Buffer)
	header := Header{CbChID: cbChID, Sp: 0, Cmd: CmdClose}
	buf.WriteByte(header.Serialize())
	writeChannelID(buf, channelID, cbChID)
	return buf.Bytes()
}

func encodeData(channelID uint32, payload []byte) []byte {
	cbChID := cbChIDFor(channelID)
	buf := new(bytes.Buffer)
	header := Header{CbChID: cbChID, Sp: 0, Cmd: CmdData}
	buf.WriteByte(header.Serialize())
	writeChannelID(buf, channelID, cbChID)
	buf.Write(payload)
	return buf.Bytes()
}
