// Package rdp implements a Remote Desktop Protocol client supporting RDP 5+
// with NLA authentication, bitmap updates, and virtual channels.
package rdp

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nolan-ca/rdp-activestage/internal/protocol/fastpath"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/mcs"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/tpkt"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/x224"
)

// Client represents an RDP client connection to a remote desktop server.
type Client struct {
	mu sync.RWMutex

	conn       net.Conn
	buffReader *bufio.Reader
	tpktLayer  *tpkt.Protocol
	x224Layer  *x224.Protocol
	mcsLayer   mcs.MCSLayer
	fastPath   *fastpath.Protocol

	domain   string
	username string
	password string

	desktopWidth, desktopHeight uint16
	colorDepth                  int

	serverCapabilitySets []pdu.CapabilitySet

	selectedProtocol       pdu.NegotiationProtocol
	serverNegotiationFlags pdu.NegotiationResponseFlag
	channels               []string
	channelIDMap           map[string]uint16
	skipChannelJoin        bool
	shareID                uint32
	userID                 uint16

	// TLS configuration
	skipTLSValidation bool
	tlsServerName     string

	// NLA configuration
	useNLA bool

}

const (
	tcpConnectionTimeout = 5 * time.Second
	readBufferSize       = 64 * 1024
)

// NewClient creates a new RDP client and establishes a TCP connection to the server.
func NewClient(
	hostname, username, password string,
	desktopWidth, desktopHeight int,
	colorDepth int,
) (*Client, error) {
	// Add default RDP port if not specified
	if !strings.Contains(hostname, ":") {
		hostname = hostname + ":3389"
	}

	c := Client{
		domain:   "",
		username: username,
		password: password,

		desktopWidth:  uint16(desktopWidth),
		desktopHeight: uint16(desktopHeight),
		colorDepth:    colorDepth,

		selectedProtocol: pdu.NegotiationProtocolSSL,
		// Default TLS configuration - can be overridden with SetTLSConfig
		skipTLSValidation: false,
		tlsServerName:     "",
	}

	var err error

	c.conn, err = net.DialTimeout("tcp", hostname, tcpConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("tcp connect: %w", err)
	}

	c.buffReader = bufio.NewReaderSize(c.conn, readBufferSize)

	c.tpktLayer = tpkt.New(&c)
	c.x224Layer = x224.New(c.tpktLayer)
	c.mcsLayer = mcs.New(c.x224Layer)
	c.fastPath = fastpath.New(&c)

	return &c, nil
}

// SetTLSConfig allows setting TLS configuration for the RDP client
func (c *Client) SetTLSConfig(skipValidation bool, serverName string) {
	c.skipTLSValidation = skipValidation
	c.tlsServerName = serverName
}

// SetUseNLA enables or disables Network Level Authentication
func (c *Client) SetUseNLA(useNLA bool) {
	c.useNLA = useNLA
	if useNLA {
		c.selectedProtocol = pdu.NegotiationProtocolHybrid
	} else {
		c.selectedProtocol = pdu.NegotiationProtocolSSL
	}
}

// EnableDynamicVirtualChannels requests the "drdynvc" static channel during
// the connection sequence. The graphics pipeline and display-control dynamic
// channels both ride on top of it, so anything the active stage plans to
// negotiate over drdynvc must call this before Connect.
func (c *Client) EnableDynamicVirtualChannels() {
	for _, ch := range c.channels {
		if ch == "drdynvc" {
			return
		}
	}
	c.channels = append(c.channels, "drdynvc")
}

// Known codec GUIDs (stored in wire format per MS-RDPBCGR)
// GUID Data1 is 32-bit LE, Data2 is 16-bit LE, Data3 is 16-bit LE, Data4 is 8 bytes BE
var (
	// NSCodec: CA8D1BB9-000F-154F-589F-AE2D1A87E2D6
	guidNSCodec = [16]byte{0xB9, 0x1B, 0x8D, 0xCA, 0x0F, 0x00, 0x4F, 0x15, 0x58, 0x9F, 0xAE, 0x2D, 0x1A, 0x87, 0xE2, 0xD6}
	// RemoteFX: 76772F12-BD72-4463-AFB3-B73C9C6F7886
	guidRemoteFX = [16]byte{0x12, 0x2F, 0x77, 0x76, 0x72, 0xBD, 0x63, 0x44, 0xAF, 0xB3, 0xB7, 0x3C, 0x9C, 0x6F, 0x78, 0x86}
	// RemoteFX Image: 2744CCD4-9D8A-4E74-803C-0ECBEAA19C54
	guidImageRemoteFX = [16]byte{0xD4, 0xCC, 0x44, 0x27, 0x8A, 0x9D, 0x74, 0x4E, 0x80, 0x3C, 0x0E, 0xCB, 0xEA, 0xA1, 0x9C, 0x54}
	// ClearCodec: A6971CE3-8D58-425B-AC18-E09B7D42C7D5
	guidClearCodec = [16]byte{0xE3, 0x1C, 0x97, 0xA6, 0x58, 0x8D, 0x5B, 0x42, 0xAC, 0x18, 0xE0, 0x9B, 0x7D, 0x42, 0xC7, 0xD5}
	// Ignore: 9C4351A6-3535-42AE-910C-CDFCE5760B58
	guidIgnore = [16]byte{0xA6, 0x51, 0x43, 0x9C, 0x35, 0x35, 0xAE, 0x42, 0x91, 0x0C, 0xCD, 0xFC, 0xE5, 0x76, 0x0B, 0x58}
	// RemoteFX Progressive: E329E05D-9B18-4F9D-8EC3-4E4DD1EB3DC1
	guidRemoteFXProgressive = [16]byte{0x5D, 0xE0, 0x29, 0xE3, 0x18, 0x9B, 0x9D, 0x4F, 0x8E, 0xC3, 0x4E, 0x4D, 0xD1, 0xEB, 0x3D, 0xC1}
)

func codecGUIDToName(guid [16]byte) string {
	switch guid {
	case guidNSCodec:
		return "NSCodec"
	case guidRemoteFX:
		return "RemoteFX"
	case guidImageRemoteFX:
		return "RemoteFX-Image"
	case guidClearCodec:
		return "ClearCodec"
	case guidIgnore:
		return "Ignore"
	case guidRemoteFXProgressive:
		return "RemoteFX-Progressive"
	default:
		return fmt.Sprintf("Unknown(%x)", guid[:4])
	}
}

// ServerCapabilityInfo contains a summary of server capabilities for logging
type ServerCapabilityInfo struct {
	BitmapCodecs      []string
	SurfaceCommands   bool
	ColorDepth        int
	DesktopSize       string
	GeneralFlags      uint16
	OrderFlags        uint32
	MultifragmentSize uint32
	LargePointer      bool
	FrameAcknowledge  bool
	// Connection info
	UseNLA   bool
	Channels []string
}

// Update represents an RDP screen update that can be sent to a client.
// This provides a public interface without exposing internal protocol details.
type Update struct {
	Data []byte
}

// GetServerCapabilities returns a summary of the server's capabilities
func (c *Client) GetServerCapabilities() *ServerCapabilityInfo {
	info := &ServerCapabilityInfo{
		BitmapCodecs: []string{},
		UseNLA:       c.useNLA,
		Channels:     c.channels,
	}

	for _, capSet := range c.serverCapabilitySets {
		switch capSet.CapabilitySetType {
		case pdu.CapabilitySetTypeBitmap:
			if capSet.BitmapCapabilitySet != nil {
				info.ColorDepth = int(capSet.BitmapCapabilitySet.PreferredBitsPerPixel)
				info.DesktopSize = fmt.Sprintf("%dx%d", 
					capSet.BitmapCapabilitySet.DesktopWidth, 
					capSet.BitmapCapabilitySet.DesktopHeight)
			}
		case pdu.CapabilitySetTypeGeneral:
			if capSet.GeneralCapabilitySet != nil {
				info.GeneralFlags = capSet.GeneralCapabilitySet.ExtraFlags
			}
		case pdu.CapabilitySetTypeOrder:
			if capSet.OrderCapabilitySet != nil {
				info.OrderFlags = uint32(capSet.OrderCapabilitySet.OrderFlags)
			}
		case pdu.CapabilitySetTypeSurfaceCommands:
			info.SurfaceCommands = true
		case pdu.CapabilitySetTypeBitmapCodecs:
			if capSet.BitmapCodecsCapabilitySet != nil {
				for _, codec := range capSet.BitmapCodecsCapabilitySet.BitmapCodecArray {
					info.BitmapCodecs = append(info.BitmapCodecs, codecGUIDToName(codec.CodecGUID))
				}
			}
		case pdu.CapabilitySetTypeMultifragmentUpdate:
			if capSet.MultifragmentUpdateCapabilitySet != nil {
				info.MultifragmentSize = capSet.MultifragmentUpdateCapabilitySet.MaxRequestSize
			}
		case pdu.CapabilitySetTypeLargePointer:
			info.LargePointer = true
		case pdu.CapabilitySetTypeFrameAcknowledge:
			info.FrameAcknowledge = true
		}
	}

	return info
}

// RemoteFXCodecID returns the codec id the server assigned to RemoteFX in
// its Bitmap Codecs capability set, if the server advertised one.
func (c *Client) RemoteFXCodecID() (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, capSet := range c.serverCapabilitySets {
		if capSet.CapabilitySetType != pdu.CapabilitySetTypeBitmapCodecs || capSet.BitmapCodecsCapabilitySet == nil {
			continue
		}
		for _, codec := range capSet.BitmapCodecsCapabilitySet.BitmapCodecArray {
			if codec.CodecGUID == guidRemoteFX {
				return codec.CodecID, true
			}
		}
	}
	return 0, false
}

// JoinedChannels returns the server-assigned channel IDs keyed by channel
// name, including the "global" and "user" pseudo-channels, as populated
// during the channel join confirm sequence.
func (c *Client) JoinedChannels() map[string]uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	joined := make(map[string]uint16, len(c.channelIDMap))
	for name, id := range c.channelIDMap {
		joined[name] = id
	}
	return joined
}

// UserID returns the MCS user channel ID assigned to this connection.
func (c *Client) UserID() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// DesktopSize returns the negotiated desktop width and height in pixels.
func (c *Client) DesktopSize() (uint16, uint16) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desktopWidth, c.desktopHeight
}

