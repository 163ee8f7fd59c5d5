package kernel

import "time"

// State is the entire mutable kernel state: the process table, one
// capability space per process, the endpoint table, and the three
// monotonic allocators described in spec §4.D. It has no HAL dependency and
// performs no I/O — every method here is a pure data transformation, which
// is what makes the commit log replayable.
type State struct {
	processes map[ProcessID]*Process
	capSpaces map[ProcessID]*CapabilitySpace
	endpoints map[EndpointID]*Endpoint

	nextPID ProcessID
	nextEID EndpointID
	nextCap CapID

	totalIPC uint64
}

// New returns an empty kernel state with allocators seeded at 1 (0 is
// reserved, per spec §4.A).
func New() *State {
	return &State{
		processes: make(map[ProcessID]*Process),
		capSpaces: make(map[ProcessID]*CapabilitySpace),
		endpoints: make(map[EndpointID]*Endpoint),
		nextPID:   1,
		nextEID:   1,
		nextCap:   1,
	}
}

// --- allocators ---

func (s *State) AllocPID() ProcessID {
	id := s.nextPID
	s.nextPID++
	return id
}

func (s *State) AllocEndpointID() EndpointID {
	id := s.nextEID
	s.nextEID++
	return id
}

func (s *State) AllocCapID() CapID {
	id := s.nextCap
	s.nextCap++
	return id
}

// SeedAllocators forces the allocators to specific next-values; used only by
// replay, which reconstructs state from a commit log that already recorded
// which IDs were handed out.
func (s *State) SeedAllocators(nextPID ProcessID, nextEID EndpointID, nextCap CapID) {
	if nextPID > s.nextPID {
		s.nextPID = nextPID
	}
	if nextEID > s.nextEID {
		s.nextEID = nextEID
	}
	if nextCap > s.nextCap {
		s.nextCap = nextCap
	}
}

// --- process table ---

// AddProcess registers pid in the process table with a fresh capability
// space and Running state. Callers (the dispatcher) are responsible for
// having allocated pid via AllocPID first, except for PIDSupervisor and
// PIDInit which are seeded directly during bootstrap.
func (s *State) AddProcess(pid ProcessID, name string, now time.Time) *Process {
	p := &Process{
		PID:   pid,
		Name:  name,
		State: ProcRunning,
		Metrics: Metrics{
			StartedAt:    now,
			LastActiveAt: now,
		},
	}
	s.processes[pid] = p
	s.capSpaces[pid] = NewCapabilitySpace()
	if pid >= s.nextPID {
		s.nextPID = pid + 1
	}
	return p
}

func (s *State) GetProcess(pid ProcessID) (*Process, bool) {
	p, ok := s.processes[pid]
	return p, ok
}

// Touch bumps a process's activity metrics; called once per dispatched
// syscall regardless of outcome (§4.E step 5).
func (s *State) Touch(pid ProcessID, now time.Time) {
	if p, ok := s.processes[pid]; ok {
		p.touch(now)
	}
}

// ListProcesses returns a stable, PID-ascending snapshot of the table.
func (s *State) ListProcesses() []Process {
	out := make([]Process, 0, len(s.processes))
	for _, p := range s.processes {
		out = append(out, *p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PID < out[j-1].PID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// SetZombie transitions pid to Zombie. Called by Exit/Kill. Returns false if
// pid is unknown.
func (s *State) SetZombie(pid ProcessID) bool {
	p, ok := s.processes[pid]
	if !ok {
		return false
	}
	p.State = ProcZombie
	return true
}

// Reap permanently removes a zombie process: its entry, its capability
// space, and every endpoint it owns (which fails closed any outstanding
// capability to those endpoints per the §3 invariant).
func (s *State) Reap(pid ProcessID) {
	delete(s.processes, pid)
	delete(s.capSpaces, pid)
	for id, ep := range s.endpoints {
		if ep.Owner == pid {
			delete(s.endpoints, id)
		}
	}
	// Drop any capability anywhere in the system pointing at an endpoint
	// that no longer exists, so ListCaps never reports a dangling slot.
	for _, cs := range s.capSpaces {
		for _, c := range cs.List() {
			if c.Cap.Kind == ObjectKindEndpoint {
				if _, alive := s.endpoints[EndpointID(c.Cap.ObjectID)]; !alive {
					cs.Remove(c.Slot)
				}
			}
		}
	}
}

// --- capability spaces ---

func (s *State) CapSpace(pid ProcessID) (*CapabilitySpace, bool) {
	cs, ok := s.capSpaces[pid]
	return cs, ok
}

// --- endpoints ---

// AddEndpoint creates a new endpoint owned by owner with id (already
// allocated by the caller).
func (s *State) AddEndpoint(id EndpointID, owner ProcessID, softCap int) *Endpoint {
	ep := NewEndpoint(id, owner, softCap)
	s.endpoints[id] = ep
	return ep
}

func (s *State) GetEndpoint(id EndpointID) (*Endpoint, bool) {
	ep, ok := s.endpoints[id]
	return ep, ok
}

// RemoveEndpoint deletes an endpoint outright (DestroyEndpoint syscall) and
// fails closed any capability pointing at it.
func (s *State) RemoveEndpoint(id EndpointID) {
	delete(s.endpoints, id)
	for _, cs := range s.capSpaces {
		cs.RemoveByObject(ObjectKindEndpoint, uint64(id))
	}
}

// ListEndpoints returns every live endpoint, ID-ascending.
func (s *State) ListEndpoints() []*Endpoint {
	out := make([]*Endpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// --- ipc counter ---

func (s *State) IncIPC() { s.totalIPC++ }

func (s *State) TotalIPC() uint64 { return s.totalIPC }

// TotalMemory sums every process's reported memory usage, for
// introspection only.
func (s *State) TotalMemory() uint64 {
	var total uint64
	for _, p := range s.processes {
		total += p.Metrics.MemoryBytes
	}
	return total
}
