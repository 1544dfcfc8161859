package mcs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/encoding"
)

// DomainPDUApplication is the T.125 DomainMCSPDU choice index. Every domain
// PDU's first byte on the wire is this value shifted left 2 bits, with the
// low 2 bits carrying per-PDU optional-field flags this client doesn't need
// to produce itself.
type DomainPDUApplication uint8

const (
	plumbDomainIndication DomainPDUApplication = iota
	erectDomainRequest
	mergeChannelsRequest
	mergeChannelsConfirm
	purgeChannelsIndication
	mergeTokensRequest
	mergeTokensConfirm
	purgeTokensIndication
	disconnectProviderUltimatum
	rejectMCSPDUUltimatum
	attachUserRequest
	attachUserConfirm
	detachUserRequest
	detachUserIndication
	channelJoinRequest
	channelJoinConfirm
	channelLeaveRequest
	channelConveneRequest
	channelConveneConfirm
	channelDisbandRequest
	channelDisbandIndication
	channelAdmitRequest
	channelAdmitIndication
	channelExpelRequest
	channelExpelIndication
	SendDataRequest
	SendDataIndication
	uniformSendDataRequest
	uniformSendDataIndication
)

type ClientAttachUserRequest struct{}

func (r *ClientAttachUserRequest) Serialize() []byte {
	return nil
}

type ServerAttachUserConfirm struct {
	Result    uint8
	Initiator uint16
}

func (s *ServerAttachUserConfirm) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &s.Result); err != nil {
		return err
	}

	var err error
	s.Initiator, err = encoding.PerReadInteger16(1001, wire)
	return err
}

type ClientChannelJoinRequest struct {
	Initiator uint16
	ChannelId uint16
}

func (r *ClientChannelJoinRequest) Serialize() []byte {
	buf := new(bytes.Buffer)

	encoding.PerWriteInteger16(r.Initiator, 1001, buf)
	encoding.PerWriteInteger16(r.ChannelId, 0, buf)

	return buf.Bytes()
}

type ServerChannelJoinConfirm struct {
	Result    uint8
	Initiator uint16
	Requested uint16
	ChannelId uint16
}

func (s *ServerChannelJoinConfirm) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &s.Result); err != nil {
		return err
	}

	var err error
	if s.Initiator, err = encoding.PerReadInteger16(1001, wire); err != nil {
		return err
	}
	if s.Requested, err = encoding.PerReadInteger16(0, wire); err != nil {
		return err
	}

	// channelId is an OPTIONAL field: the server omits it when the
	// requested channel and the joined channel are the same.
	s.ChannelId, err = encoding.PerReadInteger16(0, wire)
	if err != nil {
		if err == io.EOF {
			s.ChannelId = 0
			return nil
		}
		return err
	}

	return nil
}

// DomainPDU is the envelope for every T.125 domain message this client
// sends or receives once the domain is connected: erect-domain, attach-user,
// channel-join, send-data, and the disconnect ultimatum.
type DomainPDU struct {
	Application DomainPDUApplication

	ClientErectDomainRequest *ClientErectDomainRequest
	ClientAttachUserRequest  *ClientAttachUserRequest
	ServerAttachUserConfirm  *ServerAttachUserConfirm
	ClientChannelJoinRequest *ClientChannelJoinRequest
	ServerChannelJoinConfirm *ServerChannelJoinConfirm
	ClientSendDataRequest    *ClientSendDataRequest
	ServerSendDataIndication *ServerSendDataIndication
}

func (pdu *DomainPDU) Serialize() []byte {
	buf := new(bytes.Buffer)
	encoding.PerWriteChoice(uint8(pdu.Application)<<2, buf)

	switch pdu.Application {
	case erectDomainRequest:
		buf.Write(pdu.ClientErectDomainRequest.Serialize())
	case attachUserRequest:
		buf.Write(pdu.ClientAttachUserRequest.Serialize())
	case channelJoinRequest:
		buf.Write(pdu.ClientChannelJoinRequest.Serialize())
	case SendDataRequest:
		buf.Write(pdu.ClientSendDataRequest.Serialize())
	}

	return buf.Bytes()
}

func (pdu *DomainPDU) Deserialize(wire io.Reader) error {
	choice, err := encoding.PerReadChoice(wire)
	if err != nil {
		return err
	}
	pdu.Application = DomainPDUApplication(choice >> 2)

	switch pdu.Application {
	case attachUserConfirm:
		var confirm ServerAttachUserConfirm
		if err := confirm.Deserialize(wire); err != nil {
			return err
		}
		pdu.ServerAttachUserConfirm = &confirm
	case channelJoinConfirm:
		var confirm ServerChannelJoinConfirm
		if err := confirm.Deserialize(wire); err != nil {
			return err
		}
		pdu.ServerChannelJoinConfirm = &confirm
	case SendDataIndication:
		var ind ServerSendDataIndication
		if err := ind.Deserialize(wire); err != nil {
			return err
		}
		pdu.ServerSendDataIndication = &ind
	case SendDataRequest:
		var req ClientSendDataRequest
		if err := req.Deserialize(wire); err != nil {
			return err
		}
		pdu.ClientSendDataRequest = &req
	case disconnectProviderUltimatum:
		return ErrDisconnectUltimatum
	default:
		return ErrUnknownDomainApplication
	}

	return nil
}

// AttachUser sends an Attach-User-Request and returns the user ID the
// server assigned, used as the initiator on every later MCS PDU this
// client sends.
func (p *Protocol) AttachUser() (uint16, error) {
	req := DomainPDU{
		Application:             attachUserRequest,
		ClientAttachUserRequest: &ClientAttachUserRequest{},
	}

	if err := p.x224Conn.Send(req.Serialize()); err != nil {
		return 0, fmt.Errorf("client MCS attach user request: %w", err)
	}

	wire, err := p.x224Conn.Receive()
	if err != nil {
		return 0, err
	}

	var resp DomainPDU
	if err := resp.Deserialize(wire); err != nil {
		return 0, err
	}
	if resp.Application != attachUserConfirm || resp.ServerAttachUserConfirm == nil {
		return 0, ErrUnknownDomainApplication
	}
	if resp.ServerAttachUserConfirm.Result != RTSuccessful {
		return 0, fmt.Errorf("mcs: attach user result %d", resp.ServerAttachUserConfirm.Result)
	}

	return resp.ServerAttachUserConfirm.Initiator, nil
}

// JoinChannels joins every channel in channelIDMap (name -> channel ID,
// static channels plus the user channel) one Channel-Join-Request at a
// time, as MS-RDPBCGR requires.
func (p *Protocol) JoinChannels(userID uint16, channelIDMap map[string]uint16) error {
	for name, channelID := range channelIDMap {
		req := DomainPDU{
			Application: channelJoinRequest,
			ClientChannelJoinRequest: &ClientChannelJoinRequest{
				Initiator: userID,
				ChannelId: channelID,
			},
		}

		if err := p.x224Conn.Send(req.Serialize()); err != nil {
			return fmt.Errorf("client MCS channel join request for %s: %w", name, err)
		}

		wire, err := p.x224Conn.Receive()
		if err != nil {
			return fmt.Errorf("client MCS channel join confirm for %s: %w", name, err)
		}

		var resp DomainPDU
		if err := resp.Deserialize(wire); err != nil {
			return fmt.Errorf("client MCS channel join confirm for %s: %w", name, err)
		}
		if resp.Application != channelJoinConfirm || resp.ServerChannelJoinConfirm == nil {
			return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		}
		if resp.ServerChannelJoinConfirm.Result != RTSuccessful {
			return fmt.Errorf("mcs: channel %s join result %d", name, resp.ServerChannelJoinConfirm.Result)
		}
	}

	return nil
}

// Disconnect sends a Disconnect-Provider-Ultimatum, ending the MCS domain.
func (p *Protocol) Disconnect() error {
	if err := p.x224Conn.Send([]byte{0x21, 0x80}); err != nil {
		return fmt.Errorf("client MCS disconnect provider ultimatum: %w", err)
	}
	return nil
}
