package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/mcs"
)

// ChannelIdentificators names the MCS initiator (the sender's user id) and
// the channel a Send-Data PDU travelled on. Every reply on that channel
// reuses this same pair, so the transport stack keeps it around rather than
// asking each layer above to thread it through.
type ChannelIdentificators struct {
	InitiatorID uint16
	ChannelID   uint16
}

// SendDataContext is the MCS layer of the active-stage transport stack. It
// unwraps one Send-Data-Indication from an X224 frame's body, exposing the
// channel it carried and the bytes that followed it, and remembers that
// channel pair so a later Encode call can address its reply back to it.
type SendDataContext struct {
	channelIDs ChannelIdentificators
}

// Decode unwraps a Send-Data-Indication from body, the payload of one
// X224-framed PDU, returning the channel it arrived on and the bytes that
// followed the MCS header. A Disconnect-Provider-Ultimatum decodes to
// *UnexpectedDisconnectionError instead of channel identifiers.
func (c *SendDataContext) Decode(body []byte) (ChannelIdentificators, []byte, error) {
	var domainPDU mcs.DomainPDU
	wire := bytes.NewReader(body)

	if err := domainPDU.Deserialize(wire); err != nil {
		if errors.Is(err, mcs.ErrDisconnectUltimatum) {
			return ChannelIdentificators{}, nil, &UnexpectedDisconnectionError{
				Reason: "server sent disconnect provider ultimatum",
			}
		}
		return ChannelIdentificators{}, nil, fmt.Errorf("transport: mcs decode: %w", err)
	}

	if domainPDU.Application != mcs.SendDataIndication || domainPDU.ServerSendDataIndication == nil {
		return ChannelIdentificators{}, nil, fmt.Errorf("%w: application %d, wanted send data indication", ErrUnexpectedPdu, domainPDU.Application)
	}

	c.channelIDs = ChannelIdentificators{
		InitiatorID: domainPDU.ServerSendDataIndication.Initiator,
		ChannelID:   domainPDU.ServerSendDataIndication.ChannelId,
	}

	rest, err := io.ReadAll(wire)
	if err != nil {
		return ChannelIdentificators{}, nil, err
	}
	if len(rest) == 0 {
		return ChannelIdentificators{}, nil, ErrStaticChannelNotConnected
	}

	return c.channelIDs, rest, nil
}

// SetChannelIDs overrides the remembered channel pair. The DVC transport
// uses this to address a reply at the drdynvc channel after data arrived on
// it, independent of whatever channel was last decoded on the global
// channel's half of the stack.
func (c *SendDataContext) SetChannelIDs(ids ChannelIdentificators) {
	c.channelIDs = ids
}

// ChannelIDs returns the channel pair a later Encode call would address its
// reply to.
func (c *SendDataContext) ChannelIDs() ChannelIdentificators {
	return c.channelIDs
}

// Encode wraps payload in a Client Send-Data-Request addressed to the last
// decoded (or explicitly set) channel pair, ready for the X224 framer.
func (c *SendDataContext) Encode(payload []byte) []byte {
	domainPDU := mcs.DomainPDU{
		Application: mcs.SendDataRequest,
		ClientSendDataRequest: &mcs.ClientSendDataRequest{
			Initiator: c.channelIDs.InitiatorID,
			ChannelId: c.channelIDs.ChannelID,
			Data:      payload,
		},
	}
	return domainPDU.Serialize()
}
