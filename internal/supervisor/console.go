package supervisor

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/logger"
)

// DefaultConsoleRate and DefaultConsoleBurst bound how fast one process can
// emit Debug/ConsoleWrite output, so a runaway module can't flood the host
// log or a console collaborator — the same per-key limiter-map shape the
// teacher's relay.BandwidthMeter uses for per-user bandwidth.
const (
	DefaultConsoleRate  = 200 // messages/sec
	DefaultConsoleBurst = 50
)

// ConsoleSink implements syscall.ConsoleSink with per-process rate limiting,
// logging every Debug line and handing ConsoleWrite bytes to an optional
// downstream writer (a collab-tier console/log collector).
type ConsoleSink struct {
	mu       sync.Mutex
	limiters map[kernel.PID]*rate.Limiter
	rateVal  rate.Limit
	burst    int

	// Write receives a process's console bytes once past the rate limit.
	// Nil means console output is logged only, never forwarded.
	Write func(pid kernel.PID, data []byte)
}

// NewConsoleSink builds a sink with the default rate/burst.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{
		limiters: make(map[kernel.PID]*rate.Limiter),
		rateVal:  rate.Limit(DefaultConsoleRate),
		burst:    DefaultConsoleBurst,
	}
}

func (c *ConsoleSink) limiter(pid kernel.PID) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[pid]
	if !ok {
		lim = rate.NewLimiter(c.rateVal, c.burst)
		c.limiters[pid] = lim
	}
	return lim
}

// Debug logs a debug line from pid, dropping it silently once the
// process exceeds its rate budget rather than blocking the dispatcher.
func (c *ConsoleSink) Debug(pid kernel.PID, text string) {
	if !c.limiter(pid).Allow() {
		return
	}
	logger.ForPID(int64(pid)).Debug(text)
}

// ConsoleWrite forwards console bytes to Write, or just logs a summary
// line if no downstream writer is configured.
func (c *ConsoleSink) ConsoleWrite(pid kernel.PID, data []byte) {
	if !c.limiter(pid).Allow() {
		return
	}
	if c.Write != nil {
		c.Write(pid, data)
		return
	}
	logger.ForPID(int64(pid)).Info("console write", "bytes", len(data))
}

// Forget drops a process's limiter once it exits, matching Reap's
// teardown of the rest of a zombie's bookkeeping.
func (c *ConsoleSink) Forget(pid kernel.PID) {
	c.mu.Lock()
	delete(c.limiters, pid)
	c.mu.Unlock()
}
