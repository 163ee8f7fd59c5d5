package browserhal

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCLink carries mailbox frames over a WebRTC data channel, used for
// ModeP2P / ModeP2POnly once ICE negotiation (brokered over the relay
// signaling channel, not modeled here) has produced a connected peer
// connection and data channel.
type WebRTCLink struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	mu    sync.Mutex
	inbox chan []byte
}

// NewWebRTCLink wraps an already-negotiated peer connection and data
// channel. Signaling (offer/answer/ICE candidate exchange) happens over
// the relay's WSLink before this type is constructed; once the data
// channel opens, traffic moves entirely peer-to-peer.
func NewWebRTCLink(pc *webrtc.PeerConnection, dc *webrtc.DataChannel) *WebRTCLink {
	l := &WebRTCLink{pc: pc, dc: dc, inbox: make(chan []byte, 64)}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.inbox <- msg.Data
	})
	return l
}

// NewICEServers converts the kernel config's STUN/TURN entries into the
// pion WebRTC configuration shape.
func NewICEServers(urls []string, username, credential string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls, Username: username, Credential: credential}}
}

func (l *WebRTCLink) Send(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.dc.Send(frame); err != nil {
		return fmt.Errorf("browserhal: webrtc send: %w", err)
	}
	return nil
}

func (l *WebRTCLink) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-l.inbox:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *WebRTCLink) Close() error {
	if err := l.dc.Close(); err != nil {
		return err
	}
	return l.pc.Close()
}
