package transport

import "github.com/nolan-ca/rdp-activestage/internal/drdynvc"

// DVCTransport bridges the Send-Data-Context layer directly to the dynamic
// virtual channel dispatcher: for the DRDYNVC static channel, the
// Share-Control/Share-Data layers never apply, since DVC framing (MS-RDPEGFX
// 1.3.2, MS-RDPEDISP 1.3.2) sits straight on top of Send-Data-Context's
// decoded payload instead.
type DVCTransport struct {
	Dispatcher *drdynvc.Dispatcher
}

// Decode hands the bytes a Send-Data-Indication carried on the DRDYNVC
// channel to the dispatcher, returning every reply PDU it produced (a
// CapabilitiesResponse, a CreateResponse, a piggy-backed data reply, or
// none at all if the message was fragmented and not yet complete).
func (d *DVCTransport) Decode(data []byte) ([][]byte, error) {
	return d.Dispatcher.Dispatch(data)
}
