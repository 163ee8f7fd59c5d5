package syscall

import "github.com/zeroos-kernel/zeroos/internal/kernel"

// Request is the decoded form of one syscall invocation, populated by
// whichever HAL read it off the wire (the browser's shared mailbox or the
// native host's direct call). Not every field applies to every Num; unused
// fields are simply left zero.
type Request struct {
	Caller kernel.PID
	Num    Num

	Slot   uint32
	Target kernel.PID
	Perms  kernel.Perm

	Tag     uint32
	Payload []byte
	Caps    []kernel.TransferredCap

	Text     string
	Name     string
	ExitCode int32
	SoftCap  int

	// Key/Value address an async storage operation; Batch holds a list of
	// sub-keys for StorageBatch.
	Key   string
	Value []byte
	Batch []string

	// URL and Method address a network fetch start.
	URL    string
	Method string

	// BinaryName addresses LoadBinary.
	BinaryName string
}

// Result is the outcome of one dispatched syscall. Code follows the
// negative-error-code convention from spec §7: Code < 0 means
// -Code-1 == int(ErrKind); Code >= 0 is a syscall-specific success value
// (an allocated ID, a byte count, 0 for "no news"). The richer typed
// fields below carry data a single int64 cannot, mirroring how a real
// syscall ABI writes extra results into out-parameters.
type Result struct {
	Code int64

	PID    kernel.PID
	EID    kernel.EndpointID
	Slot   uint32
	Caps   []kernel.SlotCap
	Procs  []kernel.Process
	Proc   *kernel.Process
	Msg    *kernel.Message
	Empty  bool
	NowNs  int64
	WallMs int64
	ReqID  uint64
}

// OK reports whether the result represents success.
func (r Result) OK() bool { return r.Code >= 0 }

// Err extracts the ErrKind encoded in a failing result's Code. Calling it on
// a successful result returns ErrNone.
func (r Result) Err() kernel.ErrKind {
	if r.Code >= 0 {
		return kernel.ErrNone
	}
	return kernel.ErrKind(-r.Code - 1)
}

func errResult(kind kernel.ErrKind) Result {
	return Result{Code: -int64(kind) - 1}
}

func okResult(code int64) Result {
	if code < 0 {
		code = 0
	}
	return Result{Code: code}
}
