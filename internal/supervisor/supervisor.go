// Package supervisor implements Component I from spec §4.I: the
// scheduling loop that drains pending syscalls off a HAL, dispatches them
// through the kernel's syscall.Dispatcher, writes results back, and routes
// async storage/network completions to their requesting process as
// ordinary IPC — the same loop shape regardless of which host (native or
// browser) it's driving, grounded on the teacher's timeline.Engine poll loop.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/hal"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/logger"
	"github.com/zeroos-kernel/zeroos/internal/syscall"
)

// DefaultPollInterval is how often Run ticks when PollInterval is zero.
// Neither host's PollSyscalls blocks waiting for work; each tick takes
// whatever is pending at that moment.
const DefaultPollInterval = 5 * time.Millisecond

// Router delivers a supervisor-originated message to its target process
// through the trusted broker (PID 1), per spec §4.J: the supervisor never
// enqueues IPC directly, it always goes through init so delivery retry and
// capability-gating stay in one place. internal/broker implements this.
type Router interface {
	RouteFromSupervisor(target kernel.PID, tag uint32, payload []byte) error
}

// Supervisor drives one HAL's scheduling loop. H is the HAL's opaque
// process handle type (kernel.PID for the native host, *browserhal.Worker
// for the browser host) — the same generic association pattern
// internal/hal.HAL itself uses.
type Supervisor[H hal.ProcessHandle] struct {
	HAL        hal.HAL[H]
	Dispatcher *syscall.Dispatcher
	State      *kernel.State

	// Init routes async completions and other supervisor-originated
	// messages through the broker. Nil is valid before the broker is
	// wired up (e.g. in tests exercising only the syscall drain path);
	// completions are then logged and dropped rather than delivered.
	Init Router

	PollInterval time.Duration
}

// Run drives the scheduling loop until ctx is cancelled, ticking at
// PollInterval the same way the teacher's timeline.Engine polls for
// pending tasks.
func (s *Supervisor[H]) Run(ctx context.Context) error {
	interval := s.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				logger.Error("supervisor tick failed", "err", err)
			}
		}
	}
}

// Tick drains every syscall the HAL currently has pending, dispatches
// each through the kernel, and writes the outcome back. It implements
// spec §4.I(a)-(c): poll, decode, dispatch, complete.
func (s *Supervisor[H]) Tick(ctx context.Context) error {
	pending, err := s.HAL.PollSyscalls(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: poll syscalls: %w", err)
	}

	for _, p := range pending {
		if err := s.handle(p); err != nil {
			logger.ForPID(int64(p.PID)).Warn("syscall handling failed", "err", err)
		}
	}
	return nil
}

func (s *Supervisor[H]) handle(p hal.PendingSyscall) error {
	req, err := decodeRequest(p.PID, p.Data)
	if err != nil {
		return err
	}

	res, err := s.Dispatcher.Dispatch(req)
	if err != nil {
		return fmt.Errorf("dispatch %s for pid %d: %w", req.Num, p.PID, err)
	}

	return s.HAL.CompleteSyscall(p.PID, res.Code)
}

// DeliverAsync is called once a storage or network backend finishes an
// operation started through HAL.StartStorageOp or HAL.StartNetworkFetch;
// request ids returned by the dispatcher itself are not registered with
// the HAL and do not resolve here. It resolves
// the requesting PID and routes the result to it as an ordinary IPC
// message through init, per spec §4.G: async completions look exactly
// like any other message from the process's perspective.
func (s *Supervisor[H]) DeliverAsync(res hal.AsyncResult, tag uint32) error {
	pid, ok := s.HAL.TakeRequestPID(res.RequestID)
	if !ok {
		return fmt.Errorf("supervisor: no pending request %d", res.RequestID)
	}
	if s.Init == nil {
		logger.ForPID(int64(pid)).Warn("async result dropped: no broker wired", "request_id", res.RequestID)
		return nil
	}
	return s.Init.RouteFromSupervisor(pid, tag, res.Data)
}
