package audit

import (
	"testing"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

func bootstrapState() *kernel.State {
	s := kernel.New()
	now := time.Now()
	s.AddProcess(kernel.PIDSupervisor, "supervisor", now)
	s.AddProcess(kernel.PIDInit, "init", now)
	return s
}

func TestReplayReproducesSameOutcomes(t *testing.T) {
	state := bootstrapState()
	log := NewLog()
	disp := ksys.NewDispatcher(state, log, fixedClock{}, nullSink{})

	pid2 := state.AllocPID()
	state.AddProcess(pid2, "two", time.Now())

	if _, err := disp.Dispatch(ksys.Request{Caller: kernel.PIDInit, Num: ksys.CreateEndpointFor, Target: pid2}); err != nil {
		t.Fatalf("CreateEndpointFor: %v", err)
	}
	if _, err := disp.Dispatch(ksys.Request{Caller: pid2, Num: ksys.Exit}); err != nil {
		t.Fatalf("Exit: %v", err)
	}

	recordedHash := log.StateHash()

	replayState := bootstrapState()
	replayState.AddProcess(pid2, "two", time.Now())
	_, replayHash, err := Replay(replayState, log)
	if err != nil {
		t.Fatalf("unexpected replay divergence: %v", err)
	}
	if replayHash != recordedHash {
		t.Fatalf("replay hash %x does not match recorded hash %x", replayHash, recordedHash)
	}
}

func TestHashAdvanceIsDeterministic(t *testing.T) {
	c := ksys.Commit{PID: 1, Num: ksys.Exit, Success: true}
	h1 := advance([32]byte{}, c)
	h2 := advance([32]byte{}, c)
	if h1 != h2 {
		t.Fatalf("expected identical commits to produce identical hashes")
	}

	other := ksys.Commit{PID: 2, Num: ksys.Exit, Success: true}
	h3 := advance([32]byte{}, other)
	if h1 == h3 {
		t.Fatalf("expected different commits to produce different hashes")
	}
}

// TestHashIgnoresCommitTimestamp guards against TS leaking into the
// rolling hash: a replayed commit is re-dispatched through a fresh
// Dispatch call that stamps a brand-new time.Now(), never the originally
// recorded TS, so hashing TS would make every replay diverge regardless
// of whether the outcome agreed.
func TestHashIgnoresCommitTimestamp(t *testing.T) {
	base := ksys.Commit{PID: 1, Num: ksys.Exit, Success: true, TS: time.Unix(0, 0)}
	later := base
	later.TS = time.Unix(0, 0).Add(time.Hour)

	if advance([32]byte{}, base) != advance([32]byte{}, later) {
		t.Fatalf("expected commits differing only in TS to hash identically")
	}
}
