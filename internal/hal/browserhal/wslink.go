package browserhal

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// WSLink carries mailbox frames over a WebSocket, the ModeRelay transport.
// Nothing in this package falls back to it when a WebRTC link cannot be
// set up; the code that constructs a Link picks its type.
type WSLink struct {
	conn *websocket.Conn
}

// DialWSLink opens a relay connection to a worker-bridge endpoint.
func DialWSLink(ctx context.Context, url string) (*WSLink, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("browserhal: dial relay %s: %w", url, err)
	}
	return &WSLink{conn: conn}, nil
}

func (l *WSLink) Send(ctx context.Context, frame []byte) error {
	return l.conn.Write(ctx, websocket.MessageBinary, frame)
}

func (l *WSLink) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := l.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("browserhal: relay read: %w", err)
	}
	return data, nil
}

func (l *WSLink) Close() error {
	return l.conn.Close(websocket.StatusNormalClosure, "kernel shutdown")
}
