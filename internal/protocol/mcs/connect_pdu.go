package mcs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/encoding"
)

// ConnectPDUApplication is the GCC application tag used before the domain
// is erected: connect-initial carries the client's GCC Conference Create
// Request, connect-response carries the server's GCC Conference Create
// Response.
type ConnectPDUApplication uint8

const (
	connectInitial    ConnectPDUApplication = 101
	connectResponse   ConnectPDUApplication = 102
	connectAdditional ConnectPDUApplication = 103
	connectResult     ConnectPDUApplication = 104
)

// ClientConnectInitial is the MCS Connect-Initial PDU. Every field but
// userData (the GCC blob above it) is fixed to the bounds MS-RDPBCGR
// expects every RDP server to accept.
type ClientConnectInitial struct {
	calledDomainSelector  []byte
	callingDomainSelector []byte
	upwardFlag            bool
	targetParameters      domainParameters
	minimumParameters     domainParameters
	maximumParameters     domainParameters
	userData              []byte
}

func NewClientMCSConnectInitial(userData []byte) *ClientConnectInitial {
	return &ClientConnectInitial{
		calledDomainSelector:  []byte{0x01},
		callingDomainSelector: []byte{0x01},
		upwardFlag:            true,
		targetParameters: domainParameters{
			maxChannelIds: 34, maxUserIds: 2, maxTokenIds: 0, numPriorities: 1,
			minThroughput: 0, maxHeight: 1, maxMCSPDUsize: 65535, protocolVersion: 2,
		},
		minimumParameters: domainParameters{
			maxChannelIds: 1, maxUserIds: 1, maxTokenIds: 1, numPriorities: 1,
			minThroughput: 0, maxHeight: 1, maxMCSPDUsize: 1056, protocolVersion: 2,
		},
		maximumParameters: domainParameters{
			maxChannelIds: 65535, maxUserIds: 65535, maxTokenIds: 65535, numPriorities: 1,
			minThroughput: 0, maxHeight: 1, maxMCSPDUsize: 65535, protocolVersion: 2,
		},
		userData: userData,
	}
}

func (pdu *ClientConnectInitial) Serialize() []byte {
	buf := new(bytes.Buffer)

	encoding.BerWriteOctetString(pdu.calledDomainSelector, buf)
	encoding.BerWriteOctetString(pdu.callingDomainSelector, buf)
	encoding.BerWriteBoolean(pdu.upwardFlag, buf)
	encoding.BerWriteSequence(pdu.targetParameters.Serialize(), buf)
	encoding.BerWriteSequence(pdu.minimumParameters.Serialize(), buf)
	encoding.BerWriteSequence(pdu.maximumParameters.Serialize(), buf)
	encoding.BerWriteOctetString(pdu.userData, buf)

	return buf.Bytes()
}

// ServerConnectResponse is the MCS Connect-Response PDU. The GCC Conference
// Create Response that follows the domain parameters is left unparsed on
// the wire reader for the connection sequence's GCC layer to pick up.
type ServerConnectResponse struct {
	Result          uint8
	CalledConnectId int
	Parameters      domainParameters
}

func (pdu *ServerConnectResponse) Deserialize(wire io.Reader) error {
	var err error

	pdu.Result, err = encoding.BerReadEnumerated(wire)
	if err != nil {
		return err
	}

	pdu.CalledConnectId, err = encoding.BerReadInteger(wire)
	if err != nil {
		return err
	}

	isSequence, err := encoding.BerReadUniversalTag(encoding.TagSequence, true, wire)
	if err != nil {
		return err
	}
	if !isSequence {
		return errors.New("mcs: connect response: expected domain parameters sequence")
	}

	if _, err = encoding.BerReadLength(wire); err != nil {
		return err
	}

	return pdu.Parameters.Deserialize(wire)
}

type ConnectPDU struct {
	Application ConnectPDUApplication

	ClientConnectInitial  *ClientConnectInitial
	ServerConnectResponse *ServerConnectResponse
}

func (pdu *ConnectPDU) Serialize() []byte {
	buf := new(bytes.Buffer)

	var body []byte
	if pdu.ClientConnectInitial != nil {
		body = pdu.ClientConnectInitial.Serialize()
	}

	encoding.BerWriteApplicationTag(uint8(pdu.Application), len(body), buf)
	buf.Write(body)

	return buf.Bytes()
}

func (pdu *ConnectPDU) Deserialize(wire io.Reader) error {
	tag, err := encoding.BerReadApplicationTag(wire)
	if err != nil {
		return err
	}

	if _, err = encoding.BerReadLength(wire); err != nil {
		return err
	}

	if tag != uint8(connectResponse) {
		return ErrUnknownConnectApplication
	}
	pdu.Application = connectResponse

	var resp ServerConnectResponse
	if err := resp.Deserialize(wire); err != nil {
		return err
	}
	pdu.ServerConnectResponse = &resp

	return nil
}

// Connect sends the MCS Connect-Initial carrying userData (the GCC
// Conference Create Request) and returns the server's reply stream
// positioned after the domain parameters, for the GCC layer to continue
// reading the Conference Create Response from.
func (p *Protocol) Connect(userData []byte) (io.Reader, error) {
	req := ConnectPDU{
		Application:          connectInitial,
		ClientConnectInitial: NewClientMCSConnectInitial(userData),
	}

	if err := p.x224Conn.Send(req.Serialize()); err != nil {
		return nil, fmt.Errorf("client MCS connect initial: %w", err)
	}

	wire, err := p.x224Conn.Receive()
	if err != nil {
		return nil, err
	}

	var resp ConnectPDU
	if err := resp.Deserialize(wire); err != nil {
		return nil, err
	}
	if resp.ServerConnectResponse.Result != RTSuccessful {
		return nil, fmt.Errorf("mcs: connect response result %d", resp.ServerConnectResponse.Result)
	}

	return wire, nil
}
