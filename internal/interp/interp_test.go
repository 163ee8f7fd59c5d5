package interp

import "testing"

// scriptedModule replays a fixed sequence of Run/Resume outcomes, enough
// to exercise Instance's state machine without a real interpreter.
type scriptedModule struct {
	steps []step
	i     int
}

type step struct {
	trap TrapKind
	desc []byte
}

func (m *scriptedModule) Run(fuel uint64) (uint64, TrapKind, []byte, error) {
	return m.next()
}

func (m *scriptedModule) Resume(fuel uint64, result int64) (uint64, TrapKind, []byte, error) {
	return m.next()
}

func (m *scriptedModule) next() (uint64, TrapKind, []byte, error) {
	s := m.steps[m.i]
	m.i++
	return 0, s.trap, s.desc, nil
}

func TestInstanceSyscallRoundTrip(t *testing.T) {
	mod := &scriptedModule{steps: []step{
		{trap: TrapSyscall, desc: []byte{1, 2, 3}},
		{trap: TrapExited},
	}}
	inst := NewInstance(5, mod, NewQuota(Standard, 0))

	res, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Trap != TrapSyscall || string(res.Descriptor) != "\x01\x02\x03" {
		t.Fatalf("expected a syscall trap with descriptor, got %+v", res)
	}
	if !inst.Suspended() {
		t.Fatalf("expected instance to be suspended after a syscall trap")
	}

	res, err = inst.Supply(0)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if !res.Terminate || res.Trap != TrapExited {
		t.Fatalf("expected module exit to terminate the instance, got %+v", res)
	}
}

func TestInstanceFuelExhaustionTerminates(t *testing.T) {
	mod := &scriptedModule{steps: []step{{trap: TrapFuelExhausted}}}
	inst := NewInstance(5, mod, NewQuota(Strict, 0))

	res, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !res.Terminate {
		t.Fatalf("expected fuel exhaustion without a trap to terminate fail-safe")
	}
}
