// Package broker implements Component J from spec §4.J: PID 1, the one
// process trusted to mint processes, endpoints, and capability grants on
// the supervisor's behalf. It is named broker rather than init purely
// because init collides with Go's reserved package-initializer name — its
// role is exactly the spec's init.
package broker

import (
	"fmt"
	"sync"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/logger"
	"github.com/zeroos-kernel/zeroos/internal/syscall"
	"github.com/zeroos-kernel/zeroos/internal/wire"
)

// delivery is one queued message awaiting its target's inbox endpoint.
type delivery struct {
	tag     uint32
	payload []byte
}

// Broker drives every privileged operation a process can't do for itself,
// dispatching init-only syscalls as kernel.PIDInit and maintaining the
// pending-delivery retry queue: a message destined for a process with no
// known inbox endpoint is held, not dropped. The queue is delivered once
// createEndpoint records that process's inbox endpoint. grantCap and
// vfsCapGranted re-attempt the queue as well, but a held message is only
// delivered when the inbox is already known; a capability grant alone does
// not supply one. There is no handler for TagServiceCapGranted.
type Broker struct {
	mu         sync.Mutex
	dispatcher *syscall.Dispatcher
	inbox      map[kernel.PID]kernel.EndpointID
	pending    map[kernel.PID][]delivery
}

func New(d *syscall.Dispatcher) *Broker {
	return &Broker{
		dispatcher: d,
		inbox:      make(map[kernel.PID]kernel.EndpointID),
		pending:    make(map[kernel.PID][]delivery),
	}
}

// Handle dispatches one broker-protocol frame and returns the response
// frame to send back over the same link, implementing the 7 message
// handlers named in spec §4.J. An unrecognized tag is a protocol error,
// not a panic.
func (b *Broker) Handle(f wire.Frame) (wire.Frame, error) {
	switch wire.Tag(f.Tag) {
	case wire.TagSupervisorSpawnProcess:
		return b.spawnProcess(f)
	case wire.TagSupervisorCreateEndpoint:
		return b.createEndpoint(f)
	case wire.TagSupervisorGrantCap:
		return b.grantCap(f)
	case wire.TagSupervisorConsoleInput:
		return b.consoleInput(f)
	case wire.TagSupervisorKillProcess:
		return b.killProcess(f)
	case wire.TagSupervisorIPCDelivery:
		return b.ipcDelivery(f)
	case wire.TagVFSResponseCapGranted:
		return b.vfsCapGranted(f)
	default:
		return wire.Frame{}, fmt.Errorf("broker: unrecognized tag %#04x", f.Tag)
	}
}

// RouteFromSupervisor implements supervisor.Router: an async completion (or
// any other supervisor-originated message) is delivered exactly like an
// MSG_SUPERVISOR_IPC_DELIVERY, through the same queue-and-retry path.
func (b *Broker) RouteFromSupervisor(target kernel.PID, tag uint32, payload []byte) error {
	b.deliver(target, tag, payload)
	return nil
}

func (b *Broker) spawnProcess(f wire.Frame) (wire.Frame, error) {
	name := string(f.Payload)
	res, err := b.dispatcher.Dispatch(syscall.Request{Caller: kernel.PIDInit, Num: syscall.RegisterProcess, Name: name})
	if err != nil {
		return wire.Frame{}, err
	}
	return responseFrame(wire.TagSpawnResponse, res), nil
}

func (b *Broker) createEndpoint(f wire.Frame) (wire.Frame, error) {
	if len(f.Payload) < 4 {
		return wire.Frame{}, fmt.Errorf("broker: create-endpoint payload too short")
	}
	target := kernel.PID(beUint32(f.Payload[0:4]))
	softCap := 0
	if len(f.Payload) >= 8 {
		softCap = int(beUint32(f.Payload[4:8]))
	}
	res, err := b.dispatcher.Dispatch(syscall.Request{Caller: kernel.PIDInit, Num: syscall.CreateEndpointFor, Target: target, SoftCap: softCap})
	if err != nil {
		return wire.Frame{}, err
	}
	if res.OK() {
		b.mu.Lock()
		b.inbox[target] = res.EID
		b.mu.Unlock()
		b.flushPending(target)
	}
	return responseFrame(wire.TagEndpointResponse, res), nil
}

func (b *Broker) grantCap(f wire.Frame) (wire.Frame, error) {
	if len(f.Payload) < 9 {
		return wire.Frame{}, fmt.Errorf("broker: grant-cap payload too short")
	}
	slot := beUint32(f.Payload[0:4])
	target := kernel.PID(beUint32(f.Payload[4:8]))
	perms := kernel.Perm(f.Payload[8])
	res, err := b.dispatcher.Dispatch(syscall.Request{Caller: kernel.PIDInit, Num: syscall.CapGrant, Slot: slot, Target: target, Perms: perms})
	if err != nil {
		return wire.Frame{}, err
	}
	if res.OK() {
		b.flushPending(target)
	}
	return responseFrame(wire.TagGrantCapResponse, res), nil
}

func (b *Broker) consoleInput(f wire.Frame) (wire.Frame, error) {
	b.deliver(f.Sender, f.Tag, f.Payload)
	return wire.Frame{}, nil
}

func (b *Broker) killProcess(f wire.Frame) (wire.Frame, error) {
	if len(f.Payload) < 4 {
		return wire.Frame{}, fmt.Errorf("broker: kill-process payload too short")
	}
	target := kernel.PID(beUint32(f.Payload[0:4]))
	res, err := b.dispatcher.Dispatch(syscall.Request{Caller: kernel.PIDInit, Num: syscall.Kill, Target: target})
	if err != nil {
		return wire.Frame{}, err
	}
	b.mu.Lock()
	delete(b.inbox, target)
	delete(b.pending, target)
	b.mu.Unlock()
	return responseFrame(wire.TagSupervisorKillProcess, res), nil
}

func (b *Broker) ipcDelivery(f wire.Frame) (wire.Frame, error) {
	if len(f.Payload) < 4 {
		return wire.Frame{}, fmt.Errorf("broker: ipc-delivery payload too short")
	}
	target := kernel.PID(beUint32(f.Payload[0:4]))
	b.deliver(target, f.Tag, f.Payload[4:])
	return wire.Frame{}, nil
}

func (b *Broker) vfsCapGranted(f wire.Frame) (wire.Frame, error) {
	if len(f.Payload) < 4 {
		return wire.Frame{}, fmt.Errorf("broker: vfs-cap-granted payload too short")
	}
	target := kernel.PID(beUint32(f.Payload[0:4]))
	b.flushPending(target)
	return wire.Frame{}, nil
}

// deliver enqueues tag/payload as a ConsoleInputDelivery into target's
// inbox endpoint if one is known, or holds it in the pending queue
// otherwise. A dispatch failure (e.g. the endpoint's soft cap is full) is
// logged and the delivery is dropped rather than retried forever — per
// spec §4.J, pending retry covers "no inbox yet", not backpressure.
func (b *Broker) deliver(target kernel.PID, tag uint32, payload []byte) {
	b.mu.Lock()
	eid, ok := b.inbox[target]
	if !ok {
		b.pending[target] = append(b.pending[target], delivery{tag: tag, payload: payload})
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	res, err := b.dispatcher.Dispatch(syscall.Request{
		Caller: kernel.PIDInit,
		Num:    syscall.ConsoleInputDelivery,
		Target: kernel.PID(eid),
		Tag:    tag,
		Payload: payload,
	})
	if err != nil || !res.OK() {
		logger.ForPID(int64(target)).Warn("broker delivery dropped", "err", err, "code", res.Code)
	}
}

// flushPending replays every message held for target since its inbox
// became known, in the order it arrived.
func (b *Broker) flushPending(target kernel.PID) {
	b.mu.Lock()
	queued := b.pending[target]
	delete(b.pending, target)
	b.mu.Unlock()

	for _, d := range queued {
		b.deliver(target, d.tag, d.payload)
	}
}

func responseFrame(tag wire.Tag, res syscall.Result) wire.Frame {
	payload := make([]byte, 12)
	putBeUint64(payload[0:8], uint64(res.Code))
	putBeUint32(payload[8:12], res.Slot)
	return wire.Frame{Sender: kernel.PIDInit, Tag: uint32(tag), Payload: payload}
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBeUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putBeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
