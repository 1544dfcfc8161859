package connseq

import (
	"context"
	"fmt"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"
	"github.com/nolan-ca/rdp-activestage/internal/rdp"
)

// RDPClientSequence adapts the package's full connection-sequence client
// (TCP dial, TLS upgrade, NLA/CredSSP, licensing, capability exchange) to
// the ConnectionSequence interface. It performs no protocol work itself;
// it only drives rdp.Client.Connect and reshapes what comes out of it.
type RDPClientSequence struct{}

var _ ConnectionSequence = RDPClientSequence{}

// Connect dials addr, runs the connection sequence and returns the joined
// channels, desktop size and identifiers the active stage needs.
//
// Cancellation is cooperative only, matching the active stage's own
// cancellation model: rdp.Client.Connect has no internal cancellation
// points, so ctx is only checked before dialing starts.
func (s RDPClientSequence) Connect(ctx context.Context, addr string, cfg InputConfig) (ConnectionSequenceResult, error) {
	_, result, err := s.ConnectClient(ctx, addr, cfg)
	return result, err
}

// ConnectClient is the same sequence as Connect, but also returns the
// underlying *rdp.Client: callers that need to drive the active stage loop
// need the client's own io.ReadWriter (and collaborator accessors like
// RemoteFXCodecID), which the narrower ConnectionSequence interface
// deliberately does not expose.
func (RDPClientSequence) ConnectClient(ctx context.Context, addr string, cfg InputConfig) (*rdp.Client, ConnectionSequenceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ConnectionSequenceResult{}, err
	}

	username := cfg.Credentials.Username
	if cfg.Credentials.Domain != "" {
		username = cfg.Credentials.Domain + "\\" + username
	}

	client, err := rdp.NewClient(addr, username, cfg.Credentials.Password, int(cfg.Width), int(cfg.Height), 32)
	if err != nil {
		return nil, ConnectionSequenceResult{}, fmt.Errorf("connseq: dial: %w", err)
	}

	client.SetUseNLA(cfg.SecurityProtocol == pdu.NegotiationProtocolHybrid || cfg.SecurityProtocol == pdu.NegotiationProtocolHybridEx)

	if cfg.GraphicsConfig != nil {
		client.EnableDynamicVirtualChannels()
	}

	if err := client.Connect(); err != nil {
		return nil, ConnectionSequenceResult{}, fmt.Errorf("connseq: connect: %w", err)
	}

	return client, ResultFromClient(client), nil
}

// ResultFromClient reshapes an already-connected client's state into a
// ConnectionSequenceResult, without performing any protocol work of its
// own.
func ResultFromClient(c *rdp.Client) ConnectionSequenceResult {
	width, height := c.DesktopSize()
	channels := c.JoinedChannels()

	result := ConnectionSequenceResult{
		DesktopSize:          DesktopSize{Width: width, Height: height},
		JoinedStaticChannels: channels,
		InitiatorID:          c.UserID(),
	}
	if id, ok := channels["global"]; ok {
		result.GlobalChannelID = id
	}
	return result
}
