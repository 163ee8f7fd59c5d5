package kernel

// Capability is an unforgeable reference to a kernel object, addressed only
// through a per-process slot. The same CapID can live in more than one
// process's space simultaneously: a grant duplicates rights, it never moves
// the original.
type Capability struct {
	ID         CapID
	Kind       ObjectKind
	ObjectID   uint64 // EndpointID today; kept generic for future object kinds
	Perms      Perm
	ExpiresAt  int64 // unix nanos; zero means "never expires"
	Generation uint64
}

// Expired reports whether the capability's expiry has passed as of "now"
// (unix nanos). A zero ExpiresAt never expires. Exported so the dispatcher
// can enforce it at every capability-lookup site (spec §9's expires_at
// open question, resolved in favor of lookup-time enforcement).
func (c Capability) Expired(nowNanos int64) bool {
	return c.ExpiresAt != 0 && nowNanos >= c.ExpiresAt
}

// CapabilitySpace is a process's entire authority: a sparse mapping from
// slot index to capability, with first-fit allocation from a monotonically
// growing high-water mark. The choice of allocation strategy is recorded
// here, not left to each caller, so that replay from the commit log is
// deterministic regardless of which process issued the insert.
type CapabilitySpace struct {
	slots     map[uint32]Capability
	highWater uint32 // one past the highest slot ever handed out
}

// NewCapabilitySpace returns an empty capability space.
func NewCapabilitySpace() *CapabilitySpace {
	return &CapabilitySpace{slots: make(map[uint32]Capability)}
}

// Insert assigns the lowest unused slot and stores cap there.
func (cs *CapabilitySpace) Insert(cap Capability) uint32 {
	for slot := uint32(0); slot < cs.highWater; slot++ {
		if _, used := cs.slots[slot]; !used {
			cs.slots[slot] = cap
			return slot
		}
	}
	slot := cs.highWater
	cs.slots[slot] = cap
	cs.highWater++
	return slot
}

// InsertAt stores cap at an explicit slot, used during replay to reproduce
// the exact allocation history recorded in the commit log.
func (cs *CapabilitySpace) InsertAt(slot uint32, cap Capability) {
	cs.slots[slot] = cap
	if slot >= cs.highWater {
		cs.highWater = slot + 1
	}
}

// Get returns the capability at slot, if any.
func (cs *CapabilitySpace) Get(slot uint32) (Capability, bool) {
	c, ok := cs.slots[slot]
	return c, ok
}

// Remove drops the capability at slot, revoking further use of it from this
// process's space. The zero value, false is returned if the slot was empty.
func (cs *CapabilitySpace) Remove(slot uint32) (Capability, bool) {
	c, ok := cs.slots[slot]
	if ok {
		delete(cs.slots, slot)
	}
	return c, ok
}

// SlotCap pairs a slot index with the capability stored there, for List.
type SlotCap struct {
	Slot uint32
	Cap  Capability
}

// List enumerates all (slot, capability) pairs in ascending slot order.
func (cs *CapabilitySpace) List() []SlotCap {
	out := make([]SlotCap, 0, len(cs.slots))
	for slot, c := range cs.slots {
		out = append(out, SlotCap{Slot: slot, Cap: c})
	}
	// ascending slot order keeps ListCaps deterministic for callers/tests.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Slot < out[j-1].Slot; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// RemoveByObject drops every capability in this space pointing at the given
// object, used when an endpoint is torn down so stale caps fail closed.
func (cs *CapabilitySpace) RemoveByObject(kind ObjectKind, objectID uint64) {
	for slot, c := range cs.slots {
		if c.Kind == kind && c.ObjectID == objectID {
			delete(cs.slots, slot)
		}
	}
}
