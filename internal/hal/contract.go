// Package hal defines Component G: the boundary contract a host (native
// x86_64 in-process interpreter, or browser sandboxed worker) implements so
// the supervisor can drive any host identically. Nothing in this package
// knows which host it's talking to.
package hal

import (
	"context"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

// ProcessHandle is an opaque, host-owned reference to a running module
// instance. The HAL interface is generic over it the same way the
// original kernel core's HAL trait carries an associated ProcessHandle
// type — Go has no associated types, so a type parameter plays the same
// role.
type ProcessHandle any

// PendingSyscall is one syscall a module has issued and is now blocked on,
// as reported by HAL.PollSyscalls.
type PendingSyscall struct {
	PID  kernel.PID
	Data []byte
}

// RequestID addresses one outstanding async storage or network operation.
type RequestID uint64

// Default bounds on outstanding async requests per category, per spec
// §4.G. Once a category is full, StartStorageOp or StartNetworkFetch
// returns ErrResourceExhausted.
const (
	MaxOutstandingStorage = 1000
	MaxOutstandingNetwork = 100
)

// HAL is the contract the supervisor drives every scheduling tick. H is
// the host's concrete ProcessHandle type.
type HAL[H ProcessHandle] interface {
	SpawnProcess(pid kernel.PID, name string, binary []byte) (H, error)
	KillProcess(h H) error
	SendToProcess(h H, data []byte) error
	IsAlive(h H) bool
	ProcessMemory(h H) uint64

	NowNanos() int64
	WallClockMs() int64
	RandomBytes(buf []byte) error

	PollSyscalls(ctx context.Context) ([]PendingSyscall, error)
	ReadSyscallData(pid kernel.PID) ([]byte, error)
	WriteSyscallData(pid kernel.PID, data []byte) error
	CompleteSyscall(pid kernel.PID, resultCode int64) error

	// StartStorageOp and StartNetworkFetch enqueue an async operation and
	// return a RequestID immediately; the actual result is delivered later
	// as an ordinary IPC message to the requesting process's input
	// endpoint, per spec §4.I(d).
	StartStorageOp(ctx context.Context, pid kernel.PID, op StorageOp) (RequestID, error)
	StartNetworkFetch(ctx context.Context, pid kernel.PID, req NetworkFetch) (RequestID, error)

	// TakeRequestPID releases the id -> requesting-PID mapping once its
	// result has been delivered, per spec §4.G.
	TakeRequestPID(id RequestID) (kernel.PID, bool)
}

// StorageOp describes one async storage operation (read/write/delete/
// exists/list/batch), addressed by the syscall numbers 0x50..0x55.
type StorageOp struct {
	Kind  StorageOpKind
	Key   string
	Value []byte
	Keys  []string
}

type StorageOpKind byte

const (
	StorageOpRead StorageOpKind = iota
	StorageOpWrite
	StorageOpDelete
	StorageOpExists
	StorageOpList
	StorageOpBatch
)

// NetworkFetch describes one async network fetch start (syscall 0x60).
type NetworkFetch struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// AsyncResult is what an async storage/network operation eventually
// produces; the HAL implementation is responsible for turning this into an
// IPC message delivered to the originating process, per spec §4.I(d).
type AsyncResult struct {
	RequestID RequestID
	OK        bool
	ErrKind   kernel.ErrKind
	Data      []byte
}
