package activestage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nolan-ca/rdp-activestage/internal/drdynvc"
	"github.com/nolan-ca/rdp-activestage/internal/logging"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"
	"github.com/nolan-ca/rdp-activestage/internal/transport"
)

// X224Processor handles every slow-path (X224/MCS/Share-Control) frame the
// active stage reads. It owns the channel layout the connection sequence
// negotiated, the dynamic-channel dispatcher sitting on top of DRDYNVC, and
// dispatches Share-Data PDUs arriving on the global channel.
type X224Processor struct {
	sendData transport.SendDataContext
	global   transport.GlobalChannelTransport
	dvc      transport.DVCTransport

	// staticChannels maps every joined static channel's id to its name, so
	// a channel id outside the global/DRDYNVC pair can be reported as a
	// recognized-but-unhandled channel rather than an outright unknown one.
	staticChannels map[uint16]string

	drdynvcChannelID uint16
	userID           uint16

	logger *logging.Logger
}

// NewX224Processor builds a processor for one session's negotiated channel
// layout. staticChannels maps every joined static channel's id to its name
// (including the global and DRDYNVC channels).
func NewX224Processor(dispatcher *drdynvc.Dispatcher, staticChannels map[uint16]string, globalChannelID, drdynvcChannelID, userID uint16, logger *logging.Logger) *X224Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &X224Processor{
		global:           transport.GlobalChannelTransport{GlobalChannelID: globalChannelID},
		dvc:              transport.DVCTransport{Dispatcher: dispatcher},
		staticChannels:   staticChannels,
		drdynvcChannelID: drdynvcChannelID,
		userID:           userID,
		logger:           logger,
	}
}

// Process decodes one X224-framed PDU's MCS envelope and dispatches it by
// channel id, appending any reply PDUs it produces to output. A
// Disconnect-Provider-Ultimatum surfaces as *transport.UnexpectedDisconnectionError;
// a channel id that was joined but isn't the global channel or DRDYNVC
// surfaces as *transport.UnexpectedChannelError. Both are meant for the
// caller to treat as a clean shutdown rather than a fatal error.
func (p *X224Processor) Process(body []byte, output *bytes.Buffer) error {
	channelIDs, payload, err := p.sendData.Decode(body)
	if err != nil {
		return err
	}

	switch {
	case channelIDs.ChannelID == p.drdynvcChannelID:
		return p.processDVC(payload, channelIDs, output)
	case channelIDs.ChannelID == p.global.GlobalChannelID:
		return p.processShareData(payload)
	default:
		if _, known := p.staticChannels[channelIDs.ChannelID]; known {
			return &transport.UnexpectedChannelError{ChannelID: channelIDs.ChannelID}
		}
		return channelError(channelIDs.ChannelID)
	}
}

func (p *X224Processor) processDVC(payload []byte, channelIDs transport.ChannelIdentificators, output *bytes.Buffer) error {
	replies, err := p.dvc.Decode(payload)
	if err != nil {
		return fmt.Errorf("activestage: dvc dispatch: %w", err)
	}

	p.sendData.SetChannelIDs(channelIDs)
	for _, reply := range replies {
		if err := transport.WriteX224Frame(output, p.sendData.Encode(reply)); err != nil {
			return err
		}
	}
	return nil
}

func (p *X224Processor) processShareData(payload []byte) error {
	sharePDU, err := p.global.Decode(p.global.GlobalChannelID, payload)
	if err != nil {
		if errors.Is(err, transport.ErrUnexpectedPdu) {
			return err
		}
		return fmt.Errorf("activestage: share data: %w", err)
	}

	if p.global.BadPDUSource() {
		p.logger.Warn("activestage: share-data pdu source did not match the well-known server channel id")
	}

	switch {
	case sharePDU.Type2.IsSaveSessionInfo():
		p.logger.Info("activestage: server sent save session info")
		return nil
	case sharePDU.Type2.IsErrorInfo():
		var info pdu.ErrorInfoPDUData
		if err := info.Deserialize(bytes.NewReader(sharePDU.Body)); err != nil {
			return fmt.Errorf("activestage: error info: %w", err)
		}
		if info.IsNone() {
			p.logger.Debug("activestage: server set error info: none")
			return nil
		}
		p.logger.Warn("activestage: server set error info: %s", info.String())
		return fmt.Errorf("%w: %s", ErrServerError, info.String())
	default:
		p.logger.Debug("activestage: ignoring share-data pdu type %d on global channel", sharePDU.Type2)
		return nil
	}
}
