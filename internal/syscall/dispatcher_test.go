package syscall

import (
	"testing"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

type fakeGateway struct {
	commits []Commit
}

func (g *fakeGateway) Append(c Commit) error {
	g.commits = append(g.commits, c)
	return nil
}

type fakeClock struct{}

func (fakeClock) NowNanos() int64    { return 1000 }
func (fakeClock) WallClockMs() int64 { return 2000 }

type fakeSink struct {
	debugged []string
}

func (s *fakeSink) Debug(_ kernel.PID, text string) { s.debugged = append(s.debugged, text) }
func (s *fakeSink) ConsoleWrite(kernel.PID, []byte) {}

func newTestDispatcher() (*Dispatcher, *kernel.State, *fakeGateway) {
	state := kernel.New()
	now := time.Now()
	state.AddProcess(kernel.PIDSupervisor, "supervisor", now)
	state.AddProcess(kernel.PIDInit, "init", now)
	gw := &fakeGateway{}
	return NewDispatcher(state, gw, fakeClock{}, &fakeSink{}), state, gw
}

func TestNoAmbientAuthority(t *testing.T) {
	disp, state, _ := newTestDispatcher()
	now := time.Now()
	freshPID := state.AllocPID()
	state.AddProcess(freshPID, "fresh", now)

	allowed := []Num{GetTime, WallClockMs, Debug}
	for _, n := range allowed {
		res, err := disp.Dispatch(Request{Caller: freshPID, Num: n})
		if err != nil {
			t.Fatalf("%s: unexpected transport error: %v", n, err)
		}
		if !res.OK() {
			t.Fatalf("%s: expected success for a capability-less process, got err %s", n, res.Err())
		}
	}

	res, _ := disp.Dispatch(Request{Caller: freshPID, Num: RegisterProcess, Name: "x"})
	if res.OK() || res.Err() != kernel.ErrPermissionDenied {
		t.Fatalf("expected PermissionDenied for non-init RegisterProcess, got %+v", res)
	}

	exitRes, err := disp.Dispatch(Request{Caller: freshPID, Num: Exit})
	if err != nil || !exitRes.OK() {
		t.Fatalf("Exit should always succeed for a capability-less process, got %+v err=%v", exitRes, err)
	}
}

func TestCapabilityGrantSendReceiveRoundTrip(t *testing.T) {
	disp, state, _ := newTestDispatcher()
	now := time.Now()

	pid2 := state.AllocPID()
	state.AddProcess(pid2, "two", now)
	pid3 := state.AllocPID()
	state.AddProcess(pid3, "three", now)

	// init creates an endpoint owned by pid2.
	created, err := disp.Dispatch(Request{Caller: kernel.PIDInit, Num: CreateEndpointFor, Target: pid2})
	if err != nil || !created.OK() {
		t.Fatalf("CreateEndpointFor failed: %+v err=%v", created, err)
	}

	// init grants write-only access to pid3.
	granted, err := disp.Dispatch(Request{
		Caller: kernel.PIDInit, Num: CapGrant,
		Slot: created.Slot, Target: pid3, Perms: kernel.PermWrite,
	})
	if err != nil || !granted.OK() {
		t.Fatalf("CapGrant failed: %+v err=%v", granted, err)
	}

	// pid3 sends to the endpoint via its granted slot.
	sendRes, err := disp.Dispatch(Request{
		Caller: pid3, Num: Send, Slot: granted.Slot, Tag: 0x100, Payload: []byte{0xAB, 0xCD},
	})
	if err != nil || !sendRes.OK() {
		t.Fatalf("Send failed: %+v err=%v", sendRes, err)
	}

	// pid2 receives on the endpoint-owning slot from CreateEndpointFor's
	// caller-slot result — but that slot belongs to init, not pid2. pid2
	// never got a slot automatically, so grant one to itself via init too.
	pid2Slot, err := disp.Dispatch(Request{
		Caller: kernel.PIDInit, Num: CapGrant, Slot: created.Slot, Target: pid2, Perms: kernel.PermAll,
	})
	if err != nil || !pid2Slot.OK() {
		t.Fatalf("CapGrant to owner failed: %+v err=%v", pid2Slot, err)
	}

	recvRes, err := disp.Dispatch(Request{Caller: pid2, Num: Receive, Slot: pid2Slot.Slot})
	if err != nil || !recvRes.OK() || recvRes.Msg == nil {
		t.Fatalf("Receive failed: %+v err=%v", recvRes, err)
	}
	if recvRes.Msg.Sender != pid3 || recvRes.Msg.Tag != 0x100 {
		t.Fatalf("unexpected message: %+v", recvRes.Msg)
	}
	if len(recvRes.Msg.Payload) != 2 || recvRes.Msg.Payload[0] != 0xAB || recvRes.Msg.Payload[1] != 0xCD {
		t.Fatalf("unexpected payload: %+v", recvRes.Msg.Payload)
	}
}

func TestCapGrantDowngradesPermissions(t *testing.T) {
	disp, state, _ := newTestDispatcher()
	now := time.Now()
	pid3 := state.AllocPID()
	state.AddProcess(pid3, "three", now)
	pid4 := state.AllocPID()
	state.AddProcess(pid4, "four", now)

	created, _ := disp.Dispatch(Request{Caller: kernel.PIDInit, Num: CreateEndpointFor, Target: pid3})
	grantTo3, _ := disp.Dispatch(Request{
		Caller: kernel.PIDInit, Num: CapGrant, Slot: created.Slot, Target: pid3, Perms: kernel.PermWrite,
	})

	// pid3 grants pid4 requesting PermAll, but only holds PermWrite.
	grantTo4, err := disp.Dispatch(Request{
		Caller: pid3, Num: CapGrant, Slot: grantTo3.Slot, Target: pid4, Perms: kernel.PermAll,
	})
	if err != nil || !grantTo4.OK() {
		t.Fatalf("CapGrant from pid3 failed: %+v err=%v", grantTo4, err)
	}

	recv, _ := disp.Dispatch(Request{Caller: pid4, Num: Receive, Slot: grantTo4.Slot})
	if recv.OK() || recv.Err() != kernel.ErrPermissionDenied {
		t.Fatalf("expected PermissionDenied: pid4 only holds write, got %+v", recv)
	}
}

// TestExpiredCapabilityFailsClosed guards against a capability staying
// usable forever past its ExpiresAt — the dispatcher must treat an
// expired slot as empty at every lookup site, not just honor whatever
// Perms it was granted with.
func TestExpiredCapabilityFailsClosed(t *testing.T) {
	disp, state, _ := newTestDispatcher()
	now := time.Now()
	pid2 := state.AllocPID()
	state.AddProcess(pid2, "two", now)

	created, err := disp.Dispatch(Request{Caller: kernel.PIDInit, Num: CreateEndpointFor, Target: pid2})
	if err != nil || !created.OK() {
		t.Fatalf("CreateEndpointFor failed: %+v err=%v", created, err)
	}

	cs, ok := state.CapSpace(kernel.PIDInit)
	if !ok {
		t.Fatalf("init has no capability space")
	}
	c, ok := cs.Get(created.Slot)
	if !ok {
		t.Fatalf("init has no capability at slot %d", created.Slot)
	}
	c.ExpiresAt = now.Add(-time.Minute).UnixNano()
	cs.InsertAt(created.Slot, c)

	grant, _ := disp.Dispatch(Request{
		Caller: kernel.PIDInit, Num: CapGrant, Slot: created.Slot, Target: pid2, Perms: kernel.PermAll,
	})
	if grant.OK() || grant.Err() != kernel.ErrNoSuchObject {
		t.Fatalf("expected ErrNoSuchObject granting an expired capability, got %+v", grant)
	}

	send, _ := disp.Dispatch(Request{Caller: kernel.PIDInit, Num: Send, Slot: created.Slot, Tag: 1, Payload: []byte{0x01}})
	if send.OK() || send.Err() != kernel.ErrNoSuchObject {
		t.Fatalf("expected ErrNoSuchObject sending via an expired capability, got %+v", send)
	}
}

func TestMutatingSyscallsCommitWithRequest(t *testing.T) {
	disp, state, gw := newTestDispatcher()
	now := time.Now()
	pid2 := state.AllocPID()
	state.AddProcess(pid2, "two", now)

	disp.Dispatch(Request{Caller: kernel.PIDInit, Num: CreateEndpointFor, Target: pid2})
	disp.Dispatch(Request{Caller: pid2, Num: Exit, ExitCode: 0})

	if len(gw.commits) != 2 {
		t.Fatalf("expected 2 mutating commits, got %d", len(gw.commits))
	}
	for i, c := range gw.commits {
		if c.Request.Caller == 0 && i == 0 {
			t.Fatalf("expected commit to carry its originating request")
		}
	}
}
