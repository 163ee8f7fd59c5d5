package browserhal

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/hal"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/wire"
)

// WaitDeadline is the per-call deadline on a worker's mailbox wait,
// recommended by spec §5 so a slow supervisor never deadlocks a worker.
const WaitDeadline = 10 * time.Millisecond

// Worker is one browser-sandboxed module instance: its mailbox bridge and
// the link carrying it, either to a local worker bridge or across a relay
// / P2P connection.
type Worker struct {
	PID kernel.PID
	Mailbox *wire.Mailbox
	Link    Link
}

var _ hal.HAL[*Worker] = (*Browser)(nil)

// Browser implements hal.HAL[*Worker]: the supervisor's view of every
// live browser-sandboxed process.
type Browser struct {
	mu      sync.Mutex
	workers map[kernel.PID]*Worker

	storage *hal.RequestTracker
	network *hal.RequestTracker
}

func New() *Browser {
	return &Browser{
		workers: make(map[kernel.PID]*Worker),
		storage: hal.NewRequestTracker(hal.MaxOutstandingStorage),
		network: hal.NewRequestTracker(hal.MaxOutstandingNetwork),
	}
}

func (b *Browser) SpawnProcess(pid kernel.PID, name string, binary []byte) (*Worker, error) {
	return nil, fmt.Errorf("browserhal: SpawnProcess requires a live worker Link; use Attach once the browser side connects")
}

// Attach registers an already-connected worker's link and mailbox,
// called once the browser side completes its handshake.
func (b *Browser) Attach(pid kernel.PID, link Link, mb *wire.Mailbox) *Worker {
	w := &Worker{PID: pid, Mailbox: mb, Link: link}
	b.mu.Lock()
	b.workers[pid] = w
	b.mu.Unlock()
	return w
}

func (b *Browser) KillProcess(h *Worker) error {
	b.mu.Lock()
	delete(b.workers, h.PID)
	b.mu.Unlock()
	return h.Link.Close()
}

func (b *Browser) SendToProcess(h *Worker, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), WaitDeadline)
	defer cancel()
	return h.Link.Send(ctx, data)
}

func (b *Browser) IsAlive(h *Worker) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.workers[h.PID]
	return ok
}

// ProcessMemory has no host-reported figure on the browser path (the
// sandbox process is opaque to the supervisor) and always returns 0.
func (b *Browser) ProcessMemory(h *Worker) uint64 { return 0 }

func (b *Browser) NowNanos() int64    { return time.Now().UnixNano() }
func (b *Browser) WallClockMs() int64 { return time.Now().UnixMilli() }

func (b *Browser) RandomBytes(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

// PollSyscalls scans every worker's mailbox for Pending, per spec §4.I(a)
// ("browser: scans worker mailboxes for Pending"). Every attached worker
// is scanned; the state of its Link is not checked here, and no worker is
// terminated here.
func (b *Browser) PollSyscalls(ctx context.Context) ([]hal.PendingSyscall, error) {
	b.mu.Lock()
	workers := make([]*Worker, 0, len(b.workers))
	for _, w := range b.workers {
		workers = append(workers, w)
	}
	b.mu.Unlock()

	var out []hal.PendingSyscall
	for _, w := range workers {
		if w.Mailbox.Status() != wire.MailboxPending {
			continue
		}
		num, args, payload := w.Mailbox.ReadRequest()
		desc := encodeDescriptor(num, args, payload)
		out = append(out, hal.PendingSyscall{PID: w.PID, Data: desc})
	}
	return out, nil
}

func (b *Browser) ReadSyscallData(pid kernel.PID) ([]byte, error) {
	w, ok := b.worker(pid)
	if !ok {
		return nil, fmt.Errorf("browserhal: no worker for pid %d", pid)
	}
	_, _, payload := w.Mailbox.ReadRequest()
	return payload, nil
}

func (b *Browser) WriteSyscallData(pid kernel.PID, data []byte) error {
	w, ok := b.worker(pid)
	if !ok {
		return fmt.Errorf("browserhal: no worker for pid %d", pid)
	}
	return w.Mailbox.WriteResult(0, 0, data)
}

// CompleteSyscall writes the result word and publishes Ready, waking the
// worker's mailbox wait.
func (b *Browser) CompleteSyscall(pid kernel.PID, resultCode int64) error {
	w, ok := b.worker(pid)
	if !ok {
		return fmt.Errorf("browserhal: no worker for pid %d", pid)
	}
	lo := uint32(resultCode)
	hi := uint32(resultCode >> 32)
	return w.Mailbox.WriteResult(lo, hi, nil)
}

func (b *Browser) StartStorageOp(ctx context.Context, pid kernel.PID, op hal.StorageOp) (hal.RequestID, error) {
	id, kerr := b.storage.Start(pid)
	if kerr != nil {
		return 0, kerr
	}
	return id, nil
}

func (b *Browser) StartNetworkFetch(ctx context.Context, pid kernel.PID, req hal.NetworkFetch) (hal.RequestID, error) {
	id, kerr := b.network.Start(pid)
	if kerr != nil {
		return 0, kerr
	}
	return id, nil
}

func (b *Browser) TakeRequestPID(id hal.RequestID) (kernel.PID, bool) {
	if pid, ok := b.storage.Take(id); ok {
		return pid, true
	}
	return b.network.Take(id)
}

func (b *Browser) worker(pid kernel.PID) (*Worker, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.workers[pid]
	return w, ok
}

// encodeDescriptor packs a mailbox request into the opaque descriptor
// format hal.PendingSyscall carries; the native host's descriptors come
// straight from interp.Module traps, so both hosts hand the supervisor the
// same shape regardless of origin.
func encodeDescriptor(num uint32, args [3]uint32, payload []byte) []byte {
	buf := make([]byte, 16+len(payload))
	putU32(buf[0:4], num)
	putU32(buf[4:8], args[0])
	putU32(buf[8:12], args[1])
	putU32(buf[12:16], args[2])
	copy(buf[16:], payload)
	return buf
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
