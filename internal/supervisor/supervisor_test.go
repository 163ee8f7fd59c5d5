package supervisor

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/hal"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/syscall"
)

type fakeGateway struct{ commits []syscall.Commit }

func (g *fakeGateway) Append(c syscall.Commit) error {
	g.commits = append(g.commits, c)
	return nil
}

type fakeClock struct{}

func (fakeClock) NowNanos() int64   { return 1 }
func (fakeClock) WallClockMs() int64 { return 1 }

// fakeHAL implements hal.HAL[kernel.PID] with one queued descriptor and
// records the completion it's given.
type fakeHAL struct {
	queued     []hal.PendingSyscall
	completed  map[kernel.PID]int64
	takeResult map[hal.RequestID]kernel.PID
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{completed: make(map[kernel.PID]int64), takeResult: make(map[hal.RequestID]kernel.PID)}
}

func (h *fakeHAL) SpawnProcess(pid kernel.PID, name string, binary []byte) (kernel.PID, error) {
	return pid, nil
}
func (h *fakeHAL) KillProcess(kernel.PID) error                { return nil }
func (h *fakeHAL) SendToProcess(kernel.PID, []byte) error      { return nil }
func (h *fakeHAL) IsAlive(kernel.PID) bool                     { return true }
func (h *fakeHAL) ProcessMemory(kernel.PID) uint64             { return 0 }
func (h *fakeHAL) NowNanos() int64                             { return 1 }
func (h *fakeHAL) WallClockMs() int64                          { return 1 }
func (h *fakeHAL) RandomBytes([]byte) error                    { return nil }
func (h *fakeHAL) PollSyscalls(ctx context.Context) ([]hal.PendingSyscall, error) {
	out := h.queued
	h.queued = nil
	return out, nil
}
func (h *fakeHAL) ReadSyscallData(kernel.PID) ([]byte, error)  { return nil, nil }
func (h *fakeHAL) WriteSyscallData(kernel.PID, []byte) error   { return nil }
func (h *fakeHAL) CompleteSyscall(pid kernel.PID, code int64) error {
	h.completed[pid] = code
	return nil
}
func (h *fakeHAL) StartStorageOp(context.Context, kernel.PID, hal.StorageOp) (hal.RequestID, error) {
	return 0, nil
}
func (h *fakeHAL) StartNetworkFetch(context.Context, kernel.PID, hal.NetworkFetch) (hal.RequestID, error) {
	return 0, nil
}
func (h *fakeHAL) TakeRequestPID(id hal.RequestID) (kernel.PID, bool) {
	pid, ok := h.takeResult[id]
	return pid, ok
}

func debugDescriptor(text string) []byte {
	buf := make([]byte, descriptorHeaderSize+len(text))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(syscall.Debug))
	copy(buf[descriptorHeaderSize:], text)
	return buf
}

func newTestSupervisor() (*Supervisor[kernel.PID], *fakeHAL, *fakeGateway) {
	state := kernel.New()
	state.AddProcess(kernel.PIDSupervisor, "supervisor", time.Now())
	state.AddProcess(kernel.PIDInit, "init", time.Now())
	pid := state.AllocPID()
	state.AddProcess(pid, "worker", time.Now())

	gw := &fakeGateway{}
	d := syscall.NewDispatcher(state, gw, fakeClock{}, NewConsoleSink())
	h := newFakeHAL()
	h.queued = []hal.PendingSyscall{{PID: pid, Data: debugDescriptor("hello from worker")}}

	return &Supervisor[kernel.PID]{HAL: h, Dispatcher: d, State: state}, h, gw
}

func TestTickDispatchesPendingSyscallAndCompletes(t *testing.T) {
	sup, h, _ := newTestSupervisor()
	pid := kernel.PID(2)

	if err := sup.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if code, ok := h.completed[pid]; !ok || code != 0 {
		t.Fatalf("expected completion code 0 for pid %d, got %v (ok=%v)", pid, code, ok)
	}
}

type recordingRouter struct {
	target  kernel.PID
	tag     uint32
	payload []byte
}

func (r *recordingRouter) RouteFromSupervisor(target kernel.PID, tag uint32, payload []byte) error {
	r.target, r.tag, r.payload = target, tag, payload
	return nil
}

func TestDeliverAsyncRoutesThroughInit(t *testing.T) {
	sup, h, _ := newTestSupervisor()
	router := &recordingRouter{}
	sup.Init = router

	h.takeResult[42] = kernel.PID(2)
	err := sup.DeliverAsync(hal.AsyncResult{RequestID: 42, OK: true, Data: []byte("payload")}, 7)
	if err != nil {
		t.Fatalf("deliver async: %v", err)
	}
	if router.target != kernel.PID(2) || router.tag != 7 || string(router.payload) != "payload" {
		t.Fatalf("router got %+v", router)
	}
}

func TestDeliverAsyncUnknownRequestErrors(t *testing.T) {
	sup, _, _ := newTestSupervisor()
	sup.Init = &recordingRouter{}
	if err := sup.DeliverAsync(hal.AsyncResult{RequestID: 999}, 0); err == nil {
		t.Fatal("expected error for unknown request id")
	}
}
