// Package browserhal implements the browser host: each user module runs in
// its own sandboxed worker thread, communicating with the supervisor over
// a shared-memory mailbox (internal/wire.Mailbox) carried across one of
// two transports, selected the same way the teacher's wing daemon selects
// a connection mode for its own worker links.
package browserhal

import "context"

// Link is a duplex byte-message transport between the supervisor and one
// browser worker's mailbox bridge. A worker normally lives in the same
// page as the supervisor's WASM runtime and would use postMessage/SAB
// directly; Link exists so a worker hosted on a remote edge (relay mode)
// or connected peer-to-peer looks identical to the scheduler.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// ConnectionMode mirrors the teacher's wing.yaml connection_mode setting:
// how a worker link is established.
type ConnectionMode string

const (
	ModeRelay    ConnectionMode = "relay"
	ModeP2P      ConnectionMode = "p2p"
	ModeP2POnly  ConnectionMode = "p2p_only"
	ModeDirect   ConnectionMode = "direct"
)

// ParseConnectionMode defaults to relay, the safest choice when a config
// value is missing or unrecognized.
func ParseConnectionMode(s string) ConnectionMode {
	switch ConnectionMode(s) {
	case ModeP2P, ModeP2POnly, ModeDirect:
		return ConnectionMode(s)
	default:
		return ModeRelay
	}
}
