package interp

import (
	"fmt"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
)

// TrapKind names why a module's Run/Resume call returned control to the
// host.
type TrapKind int

const (
	// TrapFuelExhausted means fuel ran out inside module code with no
	// host trap pending — per spec §4.H.5 this is fail-safe termination,
	// never a silent stall.
	TrapFuelExhausted TrapKind = iota
	// TrapSyscall means the module issued a host call; Instance now holds
	// the syscall descriptor and is suspended awaiting Supply.
	TrapSyscall
	// TrapExited means the module's entry function returned normally.
	TrapExited
)

// Module is a native code image that runs cooperatively under a fuel
// budget, trapping out to the host exactly as described in spec §4.H.2: a
// host call writes the syscall descriptor and yields a resumable
// continuation rather than blocking.
type Module interface {
	// Run starts (or restarts) the module's entry function with the given
	// fuel. It returns remaining fuel, why it stopped, and — for
	// TrapSyscall — the raw syscall descriptor the module wrote.
	Run(fuel uint64) (remaining uint64, trap TrapKind, descriptor []byte, err error)
	// Resume continues a module previously suspended on TrapSyscall,
	// supplying the dispatched result.
	Resume(fuel uint64, result int64) (remaining uint64, trap TrapKind, descriptor []byte, err error)
}

// Instance pairs a Module with the host-state record from spec §4.H: pid,
// pending syscall buffer, and the quota governing its fuel.
type Instance struct {
	PID    kernel.PID
	Module Module
	Quota  Quota

	suspended bool
	started   bool
}

// NewInstance returns an instance that has not yet run; the first Tick
// starts its entry function.
func NewInstance(pid kernel.PID, m Module, q Quota) *Instance {
	return &Instance{PID: pid, Module: m, Quota: q}
}

// Started reports whether the instance's entry function has ever run.
func (i *Instance) Started() bool { return i.started }

// Suspended reports whether the instance is currently blocked on Supply.
func (i *Instance) Suspended() bool { return i.suspended }

// TickResult is what one scheduling slice produces.
type TickResult struct {
	// Descriptor is non-nil exactly when Trap == TrapSyscall: the module
	// is suspended and the supervisor must dispatch this syscall and call
	// Supply with the outcome.
	Descriptor []byte
	Trap       TrapKind
	// Terminate is true when the instance must be torn down: either fuel
	// ran out inside module code (fail-safe, per §4.H.5) or the module
	// exited normally.
	Terminate bool
}

// Tick runs the instance for one scheduling slice: a fresh quantum if it
// hasn't started or just finished a syscall round trip, implementing §4.H
// steps 1 and 5.
func (i *Instance) Tick() (TickResult, error) {
	if i.suspended {
		return TickResult{}, fmt.Errorf("interp: instance %d is suspended awaiting Supply", i.PID)
	}
	i.started = true
	remaining, trap, desc, err := i.Module.Run(i.Quota.FuelQuantum)
	return i.classify(remaining, trap, desc, err)
}

// Supply delivers a dispatched syscall's result to a suspended instance
// and resumes it, implementing §4.H steps 3-4.
func (i *Instance) Supply(result int64) (TickResult, error) {
	if !i.suspended {
		return TickResult{}, fmt.Errorf("interp: instance %d has no pending syscall to supply", i.PID)
	}
	fuel := i.Quota.FuelQuantum
	if !i.Quota.AllowRefuel {
		fuel = 0
	}
	remaining, trap, desc, err := i.Module.Resume(fuel, result)
	i.suspended = false
	return i.classify(remaining, trap, desc, err)
}

func (i *Instance) classify(remaining uint64, trap TrapKind, desc []byte, err error) (TickResult, error) {
	if err != nil {
		return TickResult{Terminate: true}, err
	}
	switch trap {
	case TrapSyscall:
		i.suspended = true
		return TickResult{Descriptor: desc, Trap: trap}, nil
	case TrapExited:
		return TickResult{Trap: trap, Terminate: true}, nil
	default: // TrapFuelExhausted
		_ = remaining
		return TickResult{Trap: TrapFuelExhausted, Terminate: true}, nil
	}
}
