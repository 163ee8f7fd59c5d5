package syscall

import (
	"encoding/binary"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

// Commit is the deterministic, hashable record of one dispatched syscall,
// handed to the audit gateway in step (6) of the dispatch algorithm.
type Commit struct {
	TS      time.Time
	PID     kernel.PID
	Num     Num
	Args    []byte
	Success bool
	ErrKind kernel.ErrKind
	Value   int64

	// Request is the exact decoded request that produced this commit,
	// carried so a replay can re-dispatch it verbatim rather than try to
	// decode Args back into one. Args remains the canonical encoding fed
	// to the rolling hash; Request is what replay actually re-executes.
	Request Request
}

// Gateway receives every mutating commit (Dispatch never hands it a
// non-mutating one) and is responsible for the
// append-only log and the rolling state hash described in spec §4.F.
type Gateway interface {
	Append(c Commit) error
}

// Clock supplies monotonic and wall-clock readings; satisfied by the HAL in
// production and by a fixed-value stub in tests, so dispatch stays
// deterministic under replay.
type Clock interface {
	NowNanos() int64
	WallClockMs() int64
}

// Dispatcher drives the pure kernel.State machine from decoded syscall
// requests. It owns no I/O itself; GetTime/WallClockMs delegate to Clock,
// Debug/ConsoleWrite delegate to a Sink, and everything mutating is logged
// through Gateway.
type Dispatcher struct {
	state   *kernel.State
	gateway Gateway
	clock   Clock
	sink    ConsoleSink
}

// ConsoleSink receives Debug and ConsoleWrite output; the supervisor wires
// this to the HAL's host log / console stream.
type ConsoleSink interface {
	Debug(pid kernel.PID, text string)
	ConsoleWrite(pid kernel.PID, data []byte)
}

func NewDispatcher(state *kernel.State, gateway Gateway, clock Clock, sink ConsoleSink) *Dispatcher {
	return &Dispatcher{state: state, gateway: gateway, clock: clock, sink: sink}
}

// Dispatch runs the six-step algorithm from spec §4.E: verify the caller,
// enforce init-only tags, check capability permissions, apply the
// operation, touch caller metrics, and forward the commit.
func (d *Dispatcher) Dispatch(req Request) (Result, error) {
	now := time.Now()

	caller, ok := d.state.GetProcess(req.Caller)
	if !ok || caller.State == kernel.ProcZombie {
		return d.finish(req, now, errResult(kernel.ErrNoSuchProcess))
	}

	if req.Num.initOnly() && req.Caller != kernel.PIDInit {
		return d.finish(req, now, errResult(kernel.ErrPermissionDenied))
	}

	res := d.apply(req, now)
	return d.finish(req, now, res)
}

// finish performs steps (5) and (6): touch metrics, forward the commit.
func (d *Dispatcher) finish(req Request, now time.Time, res Result) (Result, error) {
	d.state.Touch(req.Caller, now)

	if req.Num.Mutating() {
		c := Commit{
			TS:      now,
			PID:     req.Caller,
			Num:     req.Num,
			Args:    encodeArgs(req),
			Success: res.OK(),
			ErrKind: res.Err(),
			Value:   res.Code,
			Request: req,
		}
		if err := d.gateway.Append(c); err != nil {
			return res, err
		}
	}
	return res, nil
}

// apply is step (4): the actual operation, assuming the caller check from
// step (1) and the init-only check from step (2) already passed. Capability
// checks (step 3) happen per-operation, inline, since each op addresses a
// different slot field.
func (d *Dispatcher) apply(req Request, now time.Time) Result {
	switch req.Num {
	case Debug:
		d.sink.Debug(req.Caller, req.Text)
		return okResult(0)

	case GetTime:
		return Result{Code: 0, NowNs: d.clock.NowNanos()}

	case WallClockMs:
		return Result{Code: 0, WallMs: d.clock.WallClockMs()}

	case ConsoleWrite:
		d.sink.ConsoleWrite(req.Caller, req.Payload)
		return okResult(int64(len(req.Payload)))

	case Exit:
		d.state.SetZombie(req.Caller)
		return okResult(int64(req.ExitCode))

	case Kill:
		if req.Caller != kernel.PIDInit && req.Caller != req.Target {
			return errResult(kernel.ErrPermissionDenied)
		}
		if !d.state.SetZombie(req.Target) {
			return errResult(kernel.ErrNoSuchProcess)
		}
		return okResult(0)

	case CreateEndpoint:
		eid := d.state.AllocEndpointID()
		d.state.AddEndpoint(eid, req.Caller, req.SoftCap)
		slot, err := d.grantSelf(req.Caller, eid, kernel.PermRead|kernel.PermWrite|kernel.PermGrant, now)
		if err != nil {
			return *err
		}
		return Result{Code: int64(slot), EID: eid, Slot: slot}

	case CreateEndpointFor:
		if _, ok := d.state.GetProcess(req.Target); !ok {
			return errResult(kernel.ErrNoSuchProcess)
		}
		eid := d.state.AllocEndpointID()
		d.state.AddEndpoint(eid, req.Target, req.SoftCap)
		slot, err := d.grantSelf(req.Caller, eid, kernel.PermRead|kernel.PermWrite|kernel.PermGrant, now)
		if err != nil {
			return *err
		}
		return Result{Code: int64(slot), EID: eid, Slot: slot}

	case CapGrant:
		return d.capGrant(req, now)

	case CapRevoke:
		cs, _ := d.state.CapSpace(req.Caller)
		if _, ok := cs.Remove(req.Slot); !ok {
			return errResult(kernel.ErrNoSuchObject)
		}
		return okResult(0)

	case ListCaps:
		cs, ok := d.state.CapSpace(req.Caller)
		if !ok {
			return errResult(kernel.ErrNoSuchProcess)
		}
		return Result{Code: 0, Caps: cs.List()}

	case ListProcesses:
		return Result{Code: 0, Procs: d.state.ListProcesses()}

	case GetProcessInfo:
		p, ok := d.state.GetProcess(req.Target)
		if !ok {
			return errResult(kernel.ErrNoSuchProcess)
		}
		cp := *p
		return Result{Code: 0, Proc: &cp}

	case RegisterProcess:
		pid := d.state.AllocPID()
		d.state.AddProcess(pid, req.Name, now)
		return Result{Code: int64(pid), PID: pid}

	case Send:
		return d.send(req, now)

	case Receive:
		return d.receive(req, now)

	case DestroyEndpoint:
		cs, _ := d.state.CapSpace(req.Caller)
		c, ok := d.liveCap(cs, req.Slot, now)
		if !ok || c.Kind != kernel.ObjectKindEndpoint {
			return errResult(kernel.ErrNoSuchObject)
		}
		ep, ok := d.state.GetEndpoint(kernel.EndpointID(c.ObjectID))
		if !ok {
			return errResult(kernel.ErrNoSuchObject)
		}
		if ep.Owner != req.Caller {
			return errResult(kernel.ErrPermissionDenied)
		}
		d.state.RemoveEndpoint(ep.ID)
		return okResult(0)

	case StorageRead, StorageWrite, StorageDelete, StorageExists, StorageList, StorageBatch, NetworkFetchStart:
		// Async operations only hand back a request id from nextReqID here.
		// The request is not passed to the HAL, no I/O is started, and no
		// outcome message follows.
		return Result{Code: 0, ReqID: nextReqID()}

	case LoadBinary:
		return errResult(kernel.ErrNotSupported)

	case ConsoleInputDelivery:
		ep, ok := d.state.GetEndpoint(kernel.EndpointID(req.Target))
		if !ok {
			return errResult(kernel.ErrNoSuchObject)
		}
		if !ep.Enqueue(kernel.Message{Sender: kernel.PIDSupervisor, Tag: req.Tag, Payload: req.Payload}) {
			return errResult(kernel.ErrResourceExhausted)
		}
		return okResult(0)

	default:
		return errResult(kernel.ErrNotSupported)
	}
}

// liveCap looks up the capability at slot in pid's space, treating an
// expired capability as if the slot were empty — an expired cap fails
// closed with ErrNoSuchObject at every lookup site rather than silently
// remaining usable forever.
func (d *Dispatcher) liveCap(cs *kernel.CapabilitySpace, slot uint32, now time.Time) (kernel.Capability, bool) {
	c, ok := cs.Get(slot)
	if !ok || c.Expired(now.UnixNano()) {
		return kernel.Capability{}, false
	}
	return c, true
}

func (d *Dispatcher) grantSelf(pid kernel.PID, eid kernel.EndpointID, perms kernel.Perm, now time.Time) (uint32, *Result) {
	cs, ok := d.state.CapSpace(pid)
	if !ok {
		r := errResult(kernel.ErrNoSuchProcess)
		return 0, &r
	}
	newCap := kernel.Capability{
		ID:       d.state.AllocCapID(),
		Kind:     kernel.ObjectKindEndpoint,
		ObjectID: uint64(eid),
		Perms:    perms,
	}
	return cs.Insert(newCap), nil
}

func (d *Dispatcher) capGrant(req Request, now time.Time) Result {
	srcSpace, ok := d.state.CapSpace(req.Caller)
	if !ok {
		return errResult(kernel.ErrNoSuchProcess)
	}
	src, ok := d.liveCap(srcSpace, req.Slot, now)
	if !ok {
		return errResult(kernel.ErrNoSuchObject)
	}
	if !src.Perms.Has(kernel.PermGrant) {
		return errResult(kernel.ErrPermissionDenied)
	}
	dstSpace, ok := d.state.CapSpace(req.Target)
	if !ok {
		return errResult(kernel.ErrNoSuchProcess)
	}
	granted := src.Perms.Downgrade(req.Perms)
	if granted == kernel.PermNone {
		return errResult(kernel.ErrPermissionDenied)
	}
	newCap := kernel.Capability{
		ID:         d.state.AllocCapID(),
		Kind:       src.Kind,
		ObjectID:   src.ObjectID,
		Perms:      granted,
		ExpiresAt:  src.ExpiresAt,
		Generation: src.Generation + 1,
	}
	slot := dstSpace.Insert(newCap)
	return Result{Code: int64(slot), Slot: slot}
}

func (d *Dispatcher) send(req Request, now time.Time) Result {
	cs, ok := d.state.CapSpace(req.Caller)
	if !ok {
		return errResult(kernel.ErrNoSuchProcess)
	}
	c, ok := d.liveCap(cs, req.Slot, now)
	if !ok || c.Kind != kernel.ObjectKindEndpoint {
		return errResult(kernel.ErrNoSuchObject)
	}
	if !c.Perms.Has(kernel.PermWrite) {
		return errResult(kernel.ErrPermissionDenied)
	}
	if len(req.Caps) > 0 && !c.Perms.Has(kernel.PermGrant) {
		return errResult(kernel.ErrPermissionDenied)
	}
	ep, ok := d.state.GetEndpoint(kernel.EndpointID(c.ObjectID))
	if !ok {
		return errResult(kernel.ErrNoSuchObject)
	}
	if owner, ok := d.state.GetProcess(ep.Owner); !ok || owner.State == kernel.ProcZombie {
		return errResult(kernel.ErrNoSuchObject)
	}

	msg := kernel.Message{Sender: req.Caller, Tag: req.Tag, Payload: append([]byte(nil), req.Payload...), Caps: req.Caps}
	if !ep.Enqueue(msg) {
		return errResult(kernel.ErrResourceExhausted)
	}
	d.state.IncIPC()
	return okResult(0)
}

func (d *Dispatcher) receive(req Request, now time.Time) Result {
	cs, ok := d.state.CapSpace(req.Caller)
	if !ok {
		return errResult(kernel.ErrNoSuchProcess)
	}
	c, ok := d.liveCap(cs, req.Slot, now)
	if !ok || c.Kind != kernel.ObjectKindEndpoint {
		return errResult(kernel.ErrNoSuchObject)
	}
	ep, ok := d.state.GetEndpoint(kernel.EndpointID(c.ObjectID))
	if !ok {
		return errResult(kernel.ErrNoSuchObject)
	}
	if ep.Owner != req.Caller {
		return errResult(kernel.ErrPermissionDenied)
	}
	msg, ok := ep.Dequeue()
	if !ok {
		return Result{Code: 0, Empty: true}
	}

	// Transferred capabilities are installed into the receiver's space at
	// delivery time, downgraded against the sender's own rights.
	installed := make([]kernel.TransferredCap, 0, len(msg.Caps))
	for _, tc := range msg.Caps {
		senderSpace, ok := d.state.CapSpace(msg.Sender)
		granted := tc.Perms
		if ok {
			for _, sc := range senderSpace.List() {
				if sc.Cap.Kind == tc.Kind && sc.Cap.ObjectID == tc.ID {
					granted = sc.Cap.Perms.Downgrade(tc.Perms)
					break
				}
			}
		}
		cs.Insert(kernel.Capability{
			ID:       d.state.AllocCapID(),
			Kind:     tc.Kind,
			ObjectID: tc.ID,
			Perms:    granted,
		})
		installed = append(installed, kernel.TransferredCap{Kind: tc.Kind, ID: tc.ID, Perms: granted})
	}
	msg.Caps = installed
	d.state.IncIPC()
	return Result{Code: 0, Msg: &msg}
}

var reqIDCounter uint64

// nextReqID hands out request ids for async storage/network operations
// from a package-level counter shared by every Dispatcher in the process
// and never reset, so a replay in the same process gets different ids. The
// id is not part of Result.Code or the commit hash.
func nextReqID() uint64 {
	reqIDCounter++
	return reqIDCounter
}

// encodeArgs produces a deterministic byte encoding of the arguments that
// matter for replay equivalence; it deliberately omits fields (such as
// Text and SoftCap) that do not affect kernel state transitions when
// replayed.
func encodeArgs(req Request) []byte {
	buf := make([]byte, 0, 32)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], uint32(req.Num))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(req.Caller))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:4], req.Slot)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(req.Target))
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(req.Perms))
	binary.LittleEndian.PutUint32(tmp[:4], req.Tag)
	buf = append(buf, tmp[:4]...)
	buf = append(buf, req.Payload...)
	buf = append(buf, []byte(req.Name)...)
	return buf
}
