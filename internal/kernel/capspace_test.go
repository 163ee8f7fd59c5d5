package kernel

import "testing"

func TestCapabilitySpaceInsertReusesLowestFreeSlot(t *testing.T) {
	cs := NewCapabilitySpace()
	a := cs.Insert(Capability{ID: 1, Perms: PermRead})
	b := cs.Insert(Capability{ID: 2, Perms: PermWrite})
	if a != 0 || b != 1 {
		t.Fatalf("expected slots 0,1, got %d,%d", a, b)
	}

	if _, ok := cs.Remove(0); !ok {
		t.Fatalf("expected slot 0 to exist")
	}

	c := cs.Insert(Capability{ID: 3, Perms: PermGrant})
	if c != 0 {
		t.Fatalf("expected freed slot 0 to be reused, got %d", c)
	}
}

func TestCapabilitySpaceRemoveByObject(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Insert(Capability{ID: 1, Kind: ObjectKindEndpoint, ObjectID: 7, Perms: PermRead})
	cs.Insert(Capability{ID: 2, Kind: ObjectKindEndpoint, ObjectID: 8, Perms: PermRead})

	cs.RemoveByObject(ObjectKindEndpoint, 7)

	list := cs.List()
	if len(list) != 1 || list[0].Cap.ObjectID != 8 {
		t.Fatalf("expected only object 8 to remain, got %+v", list)
	}
}

func TestPermDowngrade(t *testing.T) {
	have := PermRead | PermWrite
	got := have.Downgrade(PermAll)
	if got != have {
		t.Fatalf("downgrading to PermAll should yield the source perms, got %s", got)
	}
	if have.Downgrade(PermNone) != PermNone {
		t.Fatalf("downgrading to PermNone should yield PermNone")
	}
}
