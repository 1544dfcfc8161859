package connseq

import "context"

// ConnectionSequence is the narrow collaborator the active stage depends on
// to obtain a ConnectionSequenceResult. TLS upgrade, NLA/CredSSP, licensing
// and capability exchange all happen inside an implementation's Connect;
// none of that is this package's concern.
type ConnectionSequence interface {
	// Connect performs the connection sequence against addr using cfg and
	// returns the joined channels, desktop size and identifiers the active
	// stage needs to address outbound traffic.
	Connect(ctx context.Context, addr string, cfg InputConfig) (ConnectionSequenceResult, error)
}
