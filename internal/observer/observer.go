// Package observer bridges decoded Graphics Pipeline PDUs out of the active
// stage to an external renderer over a WebSocket connection, the same
// delivery mechanism the browser-facing client uses for framebuffer
// updates, just formalized as a typed observer instead of ad hoc relaying.
package observer

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nolan-ca/rdp-activestage/internal/drdynvc"
	"github.com/nolan-ca/rdp-activestage/internal/logging"
)

// WebSocketObserver implements drdynvc.GFXObserver, forwarding every
// decoded Graphics Pipeline PDU it receives as one binary WebSocket
// message: a 2-byte little-endian CmdID followed by the raw payload.
//
// ObserveGFX is called synchronously from the dynamic channel dispatch
// path, so writes are serialized behind a mutex rather than buffered —
// a slow or wedged renderer backpressures the active stage's read loop,
// which matches the active stage's own "no per-operation timeouts" model.
type WebSocketObserver struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *logging.Logger
}

var _ drdynvc.GFXObserver = (*WebSocketObserver)(nil)

// NewWebSocketObserver wraps an already-upgraded WebSocket connection.
// logger may be nil, in which case the package default logger is used.
func NewWebSocketObserver(conn *websocket.Conn, logger *logging.Logger) *WebSocketObserver {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebSocketObserver{conn: conn, logger: logger}
}

// ObserveGFX implements drdynvc.GFXObserver.
func (o *WebSocketObserver) ObserveGFX(pdu drdynvc.ServerPDU) {
	o.mu.Lock()
	defer o.mu.Unlock()

	frame := make([]byte, 2+len(pdu.Payload))
	frame[0] = byte(pdu.CmdID)
	frame[1] = byte(pdu.CmdID >> 8)
	copy(frame[2:], pdu.Payload)

	if err := o.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		o.logger.Warn("observer: write gfx pdu (cmd %#x): %v", pdu.CmdID, err)
	}
}

// Close closes the underlying WebSocket connection.
func (o *WebSocketObserver) Close() error {
	return o.conn.Close()
}
