package wire

import (
	"bytes"
	"testing"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Sender:  3,
		Tag:     0x100,
		Payload: []byte{0xAB, 0xCD},
		Caps:    []kernel.TransferredCap{{Kind: kernel.ObjectKindEndpoint, ID: 7, Perms: kernel.PermWrite}},
	}
	buf := Encode(f)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sender != f.Sender || got.Tag != f.Tag || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, f)
	}
	if len(got.Caps) != 1 || got.Caps[0] != f.Caps[0] {
		t.Fatalf("capability trailer mismatch: got %+v want %+v", got.Caps, f.Caps)
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding a frame shorter than the header")
	}
}

func TestMailboxRoundTrip(t *testing.T) {
	mb := NewMailbox(0)
	if mb.Status() != MailboxIdle {
		t.Fatalf("expected a fresh mailbox to start Idle")
	}

	payload := bytes.Repeat([]byte{0x42}, MinMailboxPayload)
	if err := mb.WriteRequest(0x40, [3]uint32{1, 2, 3}, payload); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if mb.Status() != MailboxPending {
		t.Fatalf("expected Pending after WriteRequest")
	}

	num, args, got := mb.ReadRequest()
	if num != 0x40 || args != [3]uint32{1, 2, 3} || !bytes.Equal(got, payload) {
		t.Fatalf("ReadRequest mismatch")
	}

	if err := mb.WriteResult(1, 0, []byte("ok")); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if mb.Status() != MailboxReady {
		t.Fatalf("expected Ready after WriteResult")
	}

	lo, hi, reply := mb.ReadResult()
	if lo != 1 || hi != 0 || string(reply) != "ok" {
		t.Fatalf("ReadResult mismatch: lo=%d hi=%d reply=%q", lo, hi, reply)
	}
	if mb.Status() != MailboxIdle {
		t.Fatalf("expected Idle after ReadResult")
	}
}
