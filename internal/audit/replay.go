package audit

import (
	"fmt"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

// fixedClock stands in for the live HAL clock during replay; Replay passes
// its zero value. GetTime and WallClockMs are non-mutating, so they never
// enter the commit log and no replayed commit reads this clock.
type fixedClock struct {
	nowNs  int64
	wallMs int64
}

func (c fixedClock) NowNanos() int64    { return c.nowNs }
func (c fixedClock) WallClockMs() int64 { return c.wallMs }

// nullSink discards Debug/ConsoleWrite output during replay; the original
// run already delivered it to the host log once.
type nullSink struct{}

func (nullSink) Debug(kernel.PID, string)        {}
func (nullSink) ConsoleWrite(kernel.PID, []byte) {}

// Replay re-applies every commit in l, in order, against a freshly seeded
// kernel.State and reports the final state and hash. It fails closed with
// a wrapped ReplayDivergence error naming the offending commit index the
// moment a re-applied commit's outcome disagrees with what was recorded.
func Replay(seed *kernel.State, l *Log) (*kernel.State, [32]byte, error) {
	var hash [32]byte
	var diverged error

	l.Iter(func(idx int, c ksys.Commit) bool {
		gw := &recordingGateway{}
		disp := ksys.NewDispatcher(seed, gw, fixedClock{}, nullSink{})
		res, err := disp.Dispatch(c.Request)
		if err != nil {
			diverged = fmt.Errorf("%w: commit %d: dispatch error: %v", errReplayDivergence(), idx, err)
			return false
		}
		if res.OK() != c.Success || (!res.OK() && res.Err() != c.ErrKind) {
			diverged = fmt.Errorf("%w: commit %d: recorded success=%v errKind=%s, replay produced success=%v errKind=%s",
				errReplayDivergence(), idx, c.Success, c.ErrKind, res.OK(), res.Err())
			return false
		}
		if gw.last != nil {
			hash = advance(hash, *gw.last)
		}
		return true
	})

	if diverged != nil {
		return seed, hash, diverged
	}
	return seed, hash, nil
}

// recordingGateway captures the single commit a replayed dispatch
// produces so Replay can feed it into its own rolling hash, independent of
// the original log's bookkeeping.
type recordingGateway struct {
	last *ksys.Commit
}

func (g *recordingGateway) Append(c ksys.Commit) error {
	cp := c
	g.last = &cp
	return nil
}

func errReplayDivergence() error {
	return kernel.Fail(kernel.ErrReplayDivergence, "replay diverged from recorded commit log")
}
