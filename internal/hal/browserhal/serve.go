package browserhal

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/coder/websocket"

	"github.com/zeroos-kernel/zeroos/internal/logger"
	"github.com/zeroos-kernel/zeroos/internal/wire"
)

// ListenAndServeWorkers accepts incoming WebSocket connections from
// browser-hosted worker bridges and attaches each one once it sends its
// handshake frame, the server-side half of the relay transport DialWSLink
// dials from a worker bridge connecting outward through a NAT. Grounded on
// the teacher's cmd/wtd/main.go listener: same net.Listen-then-http.Serve
// shape, wired into Supervisor.Serve as one more sibling goroutine.
func (b *Browser) ListenAndServeWorkers(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/worker", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn("browserhal: websocket accept failed", "err", err)
			return
		}
		go b.acceptWorker(ctx, &WSLink{conn: conn})
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("browserhal: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		srv.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// acceptWorker reads a fresh connection's first frame, whose Sender carries
// the pid the supervisor already assigned via RegisterProcess/spawnProcess,
// and attaches it as that pid's link. A connection whose first read fails
// or whose first frame does not decode is closed. The first read has no
// deadline of its own; it ends when ctx is cancelled.
func (b *Browser) acceptWorker(ctx context.Context, link Link) {
	raw, err := link.Recv(ctx)
	if err != nil {
		logger.Warn("browserhal: handshake recv failed", "err", err)
		link.Close()
		return
	}
	f, err := wire.Decode(raw)
	if err != nil {
		logger.Warn("browserhal: malformed handshake frame", "err", err)
		link.Close()
		return
	}
	b.Attach(f.Sender, link, wire.NewMailbox(wire.MinMailboxPayload))
}
