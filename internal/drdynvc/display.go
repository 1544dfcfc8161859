package drdynvc

// DisplayObserver receives raw Display Control PDUs (MS-RDPEDISP) this
// client doesn't interpret itself — monitor layout and caps messages are
// the server's concern to send and the active stage's concern to act on,
// not this channel's.
type DisplayObserver interface {
	ObserveDisplayControl(payload []byte)
}

// DisplayHandler implements Handler for the Display Control dynamic
// channel. Unlike the Graphics Pipeline it has no fragment-level framing of
// its own to unwrap and nothing to acknowledge, so it's a pure passthrough.
type DisplayHandler struct {
	observer DisplayObserver
}

// NewDisplayHandler builds a Display Control handler. observer may be nil
// to silently discard every message on the channel.
func NewDisplayHandler(observer DisplayObserver) *DisplayHandler {
	return &DisplayHandler{observer: observer}
}

// HandleData implements Handler. Display Control never produces a
// client-to-server response off the back of a received message.
func (h *DisplayHandler) HandleData(complete []byte) ([]byte, error) {
	if h.observer != nil {
		h.observer.ObserveDisplayControl(complete)
	}
	return nil, nil
}
