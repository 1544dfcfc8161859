// Package connseq defines the data handed from a completed RDP connection
// sequence (negotiation, TLS, NLA/CredSSP, licensing, capability exchange)
// to the active stage. It deliberately does not perform any of that
// handshake itself: TLS and NLA are treated as external collaborators.
package connseq

import "github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"

// DesktopSize is the negotiated screen size in pixels.
type DesktopSize struct {
	Width  uint16
	Height uint16
}

// ConnectionSequenceResult is everything the active stage needs once the
// connection sequence has finished: the joined static channels, the
// negotiated desktop geometry, and the identifiers the active stage's
// Send-Data-Context and X224Processor need to address outbound traffic.
type ConnectionSequenceResult struct {
	DesktopSize          DesktopSize
	JoinedStaticChannels map[string]uint16
	GlobalChannelID      uint16
	InitiatorID          uint16
}

// GraphicsConfig carries the capability bits negotiated for the graphics
// pipeline dynamic virtual channel. A nil *GraphicsConfig on InputConfig
// means the graphics pipeline is not requested.
type GraphicsConfig struct {
	AVC444       bool
	H264         bool
	ThinClient   bool
	SmallCache   bool
	Capabilities uint32
}

// Credentials are the identity handed to the (external) NLA/CredSSP
// collaborator; the active stage never inspects them.
type Credentials struct {
	Domain   string
	Username string
	Password string
}

// InputConfig is the client-side configuration that drives the connection
// sequence. Only the fields the active stage or its collaborators
// (X224Processor, FastPathProcessor) read back are given semantics here;
// the rest pass through to the connection sequence unexamined.
type InputConfig struct {
	Credentials      Credentials
	SecurityProtocol pdu.NegotiationProtocol

	KeyboardType                uint32
	KeyboardSubType             uint32
	KeyboardFunctionalKeysCount uint32
	IMEFileName                 string
	DigProductID                string

	Width  uint16
	Height uint16

	GlobalChannelName string
	UserChannelName   string

	GraphicsConfig *GraphicsConfig
}
