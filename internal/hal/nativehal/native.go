// Package nativehal implements the native x86_64 host: user modules run
// in-process, cooperatively scheduled by internal/interp, on the
// supervisor's own thread (spec §4.H).
package nativehal

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zeroos-kernel/zeroos/internal/hal"
	"github.com/zeroos-kernel/zeroos/internal/interp"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

// ModuleLoader resolves a binary name to a runnable interp.Module, e.g.
// the embedded-binary registry in binaries.go.
type ModuleLoader interface {
	Load(name string) (interp.Module, error)
}

var _ hal.HAL[kernel.PID] = (*Native)(nil)

// Native implements hal.HAL[kernel.PID]: on this host a process handle is
// just its PID, since there is no separate OS-level handle to track.
type Native struct {
	loader ModuleLoader
	quota  interp.Quota

	mu        sync.Mutex
	instances map[kernel.PID]*interp.Instance
	memUsage  map[kernel.PID]uint64

	storage *hal.RequestTracker
	network *hal.RequestTracker
}

func New(loader ModuleLoader, quota interp.Quota) *Native {
	return &Native{
		loader:    loader,
		quota:     quota,
		instances: make(map[kernel.PID]*interp.Instance),
		memUsage:  make(map[kernel.PID]uint64),
		storage:   hal.NewRequestTracker(hal.MaxOutstandingStorage),
		network:   hal.NewRequestTracker(hal.MaxOutstandingNetwork),
	}
}

func (n *Native) SpawnProcess(pid kernel.PID, name string, binary []byte) (kernel.PID, error) {
	mod, err := n.loader.Load(name)
	if err != nil {
		return 0, fmt.Errorf("nativehal: load %q: %w", name, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.instances[pid] = interp.NewInstance(pid, mod, n.quota)
	return pid, nil
}

func (n *Native) KillProcess(h kernel.PID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.instances, h)
	delete(n.memUsage, h)
	return nil
}

// SendToProcess has no native-host meaning beyond bookkeeping: modules
// receive data exclusively through Receive syscalls against their own
// endpoints, never a direct host push.
func (n *Native) SendToProcess(h kernel.PID, data []byte) error { return nil }

func (n *Native) IsAlive(h kernel.PID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.instances[h]
	return ok
}

func (n *Native) ProcessMemory(h kernel.PID) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.memUsage[h]
}

func (n *Native) NowNanos() int64    { return monotonicNanos() }
func (n *Native) WallClockMs() int64 { return wallClockMs() }

func (n *Native) RandomBytes(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

// PollSyscalls drives one scheduling tick for every not-yet-suspended
// instance (RunReady) and folds the result into the same
// []hal.PendingSyscall shape the browser host reports from its mailbox
// poll, so the supervisor's Tick loop stays host-agnostic. A module that
// terminates (fuel exhaustion or normal exit) is surfaced as a synthetic
// Exit syscall rather than torn down directly here — the dispatcher is
// the only place allowed to transition a process to Zombie, per §4.E.
func (n *Native) PollSyscalls(ctx context.Context) ([]hal.PendingSyscall, error) {
	pending, terminated, err := n.RunReady()
	if err != nil {
		return pending, err
	}
	for _, pid := range terminated {
		pending = append(pending, hal.PendingSyscall{PID: pid, Data: exitDescriptor(0)})
	}
	return pending, nil
}

// exitDescriptor encodes a synthetic Exit syscall descriptor matching the
// supervisor's 16-byte header convention (Num, a0=exit code, a1, a2
// unused) — see internal/supervisor/decode.go.
func exitDescriptor(code int32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(ksys.Exit))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(code))
	return buf
}

// RunReady runs one scheduling tick for every not-yet-suspended instance,
// implementing the "native: runs ready modules until they suspend" half
// of spec §4.I(a). Returns the syscall descriptors the tick produced and
// the PIDs that must be torn down (fuel exhaustion or normal exit).
func (n *Native) RunReady() (pending []hal.PendingSyscall, terminated []kernel.PID, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for pid, inst := range n.instances {
		if inst.Suspended() {
			continue
		}
		res, tickErr := inst.Tick()
		if tickErr != nil {
			return pending, terminated, fmt.Errorf("nativehal: pid %d: %w", pid, tickErr)
		}
		switch {
		case res.Trap == interp.TrapSyscall:
			pending = append(pending, hal.PendingSyscall{PID: pid, Data: res.Descriptor})
		case res.Terminate:
			terminated = append(terminated, pid)
			delete(n.instances, pid)
			delete(n.memUsage, pid)
		}
	}
	return pending, terminated, nil
}

func (n *Native) ReadSyscallData(pid kernel.PID) ([]byte, error) {
	return nil, fmt.Errorf("nativehal: syscall data is carried in PendingSyscall.Data, not read separately")
}

func (n *Native) WriteSyscallData(pid kernel.PID, data []byte) error {
	return fmt.Errorf("nativehal: result data is delivered via CompleteSyscall")
}

// CompleteSyscall resumes the instance with the dispatched result,
// implementing §4.H steps 3-4. A missing instance is not an error here:
// the synthetic Exit syscall PollSyscalls raises for a just-terminated
// instance (see exitDescriptor) has already removed it from n.instances
// by the time the dispatcher's result comes back.
func (n *Native) CompleteSyscall(pid kernel.PID, resultCode int64) error {
	n.mu.Lock()
	inst, ok := n.instances[pid]
	n.mu.Unlock()
	if !ok {
		return nil
	}
	res, err := inst.Supply(resultCode)
	if err != nil {
		return err
	}
	// A module can terminate the instant it's resumed — its entry
	// function simply returns, or Resume itself traps fuel-exhausted —
	// without ever issuing a further syscall. That termination would
	// otherwise go unnoticed until a stuck, already-exited instance got
	// ticked again on the next RunReady pass.
	if res.Terminate {
		n.mu.Lock()
		delete(n.instances, pid)
		delete(n.memUsage, pid)
		n.mu.Unlock()
	}
	return nil
}

func (n *Native) StartStorageOp(ctx context.Context, pid kernel.PID, op hal.StorageOp) (hal.RequestID, error) {
	id, kerr := n.storage.Start(pid)
	if kerr != nil {
		return 0, kerr
	}
	return id, nil
}

func (n *Native) StartNetworkFetch(ctx context.Context, pid kernel.PID, req hal.NetworkFetch) (hal.RequestID, error) {
	id, kerr := n.network.Start(pid)
	if kerr != nil {
		return 0, kerr
	}
	return id, nil
}

func (n *Native) TakeRequestPID(id hal.RequestID) (kernel.PID, bool) {
	if pid, ok := n.storage.Take(id); ok {
		return pid, true
	}
	return n.network.Take(id)
}
