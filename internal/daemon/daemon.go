// Package daemon wires together every kernel component (state, audit log,
// dispatcher, HAL, supervisor, broker, debug transport) into the single
// long-running process cmd/kerneld starts, grounded on the teacher's
// internal/daemon.Run: same construct-then-Serve shape, repointed from a
// task-runner's store/engine/transport trio to the kernel's state/
// dispatcher/supervisor stack.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/audit"
	"github.com/zeroos-kernel/zeroos/internal/broker"
	"github.com/zeroos-kernel/zeroos/internal/config"
	"github.com/zeroos-kernel/zeroos/internal/hal/browserhal"
	"github.com/zeroos-kernel/zeroos/internal/hal/nativehal"
	"github.com/zeroos-kernel/zeroos/internal/interp"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/logger"
	"github.com/zeroos-kernel/zeroos/internal/snapshot"
	"github.com/zeroos-kernel/zeroos/internal/supervisor"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
	"github.com/zeroos-kernel/zeroos/internal/transport"
)

// ModuleFactory lets an embedding build supply the native host's actual
// bytecode interpreter; zeroos itself ships no interpreter for any
// particular module format (spec's concern is the kernel around it, not
// a language runtime), so Run defaults to a stub that fails closed.
type ModuleFactory = nativehal.ModuleFactory

// Runner is the subset of Supervisor[H] that Run needs — satisfied by
// both *supervisor.Supervisor[kernel.PID] and
// *supervisor.Supervisor[*browserhal.Worker], since Serve's signature
// doesn't depend on the HAL's process-handle type.
type Runner interface {
	Serve(ctx context.Context, extra ...func(context.Context) error) error
}

// Run boots the kernel per cfg and blocks until ctx is cancelled or a
// component fails. factory is consulted only when cfg.Host == "native";
// pass nil to fail closed on the first LoadBinary/spawn attempt.
func Run(ctx context.Context, cfg *config.KernelConfig, factory ModuleFactory) error {
	state := kernel.New()
	now := time.Now()
	state.AddProcess(kernel.PIDSupervisor, "supervisor", now)
	state.AddProcess(kernel.PIDInit, "init", now)

	log, store, err := openLog(cfg, state)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	gateway := &persistingGateway{log: log, store: store}
	sink := supervisor.NewConsoleSink()

	var runner Runner
	var extra []func(context.Context) error

	switch cfg.Host {
	case "browser":
		br := browserhal.New()
		dispatcher := ksys.NewDispatcher(state, gateway, br, sink)
		b := broker.New(dispatcher)
		sup := &supervisor.Supervisor[*browserhal.Worker]{
			HAL:        br,
			Dispatcher: dispatcher,
			State:      state,
			Init:       b,
		}
		runner = sup
		extra = append(extra, func(ctx context.Context) error {
			logger.Info("browser worker listener starting", "addr", cfg.BrowserListenAddr)
			return br.ListenAndServeWorkers(ctx, cfg.BrowserListenAddr)
		})
	default:
		native, err := buildNative(cfg, factory)
		if err != nil {
			return err
		}
		dispatcher := ksys.NewDispatcher(state, gateway, native, sink)
		b := broker.New(dispatcher)
		sup := &supervisor.Supervisor[kernel.PID]{
			HAL:        native,
			Dispatcher: dispatcher,
			State:      state,
			Init:       b,
		}
		runner = sup
	}

	var snap transport.Snapshotter
	if store != nil {
		snap = store
	}
	transportSrv := transport.NewServer(state, log, cfg.DebugSocket, snap)
	extra = append(extra, transportSrv.ListenAndServe)

	logger.Info("kernel starting", "kernel_id", cfg.KernelID, "host", cfg.Host, "debug_socket", cfg.DebugSocket)
	return runner.Serve(ctx, extra...)
}

// RunWithSignals is the entry point cmd/kerneld uses: it builds a
// cancellation context from SIGINT/SIGTERM, grounded on the teacher's
// cmd/wtd/main.go signal-handling shape, and delegates to Run.
func RunWithSignals(cfg *config.KernelConfig, factory ModuleFactory) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := Run(ctx, cfg, factory)
	if err != nil && ctx.Err() != nil {
		// Shutdown was requested; a context-cancellation error from one of
		// the Serve group's goroutines isn't a failure worth reporting.
		return nil
	}
	return err
}

// openLog constructs the in-memory commit log, replaying persisted
// commits from cfg.SnapshotPath (if set) against state first so a
// restarted kernel resumes exactly where it left off, per spec §4.F.
func openLog(cfg *config.KernelConfig, state *kernel.State) (*audit.Log, *snapshot.Store, error) {
	if cfg.SnapshotPath == "" {
		return audit.NewLog(), nil, nil
	}

	store, err := snapshot.Open(cfg.SnapshotPath)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: open snapshot store: %w", err)
	}

	persisted, err := store.LoadLog()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("daemon: load persisted log: %w", err)
	}
	if persisted.Len() == 0 {
		return persisted, store, nil
	}

	replayed, _, err := audit.Replay(state, persisted)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("daemon: replay persisted log: %w", err)
	}
	*state = *replayed
	return persisted, store, nil
}

// buildNative constructs the native HAL, creating cfg.NativeBinDir if
// missing so a fresh install doesn't fail boot over an empty directory.
func buildNative(cfg *config.KernelConfig, factory ModuleFactory) (*nativehal.Native, error) {
	quota := interp.NewQuota(interp.ParseLevel(cfg.QuotaLevel), cfg.FuelQuantum)

	if err := os.MkdirAll(cfg.NativeBinDir, 0755); err != nil {
		return nil, fmt.Errorf("daemon: create native bin dir: %w", err)
	}
	if factory == nil {
		factory = stubFactory
	}
	store, err := nativehal.NewBinaryStore(cfg.NativeBinDir, factory)
	if err != nil {
		return nil, fmt.Errorf("daemon: open binary store: %w", err)
	}
	return nativehal.New(store, quota), nil
}

// stubFactory fails every load rather than pretend to interpret a format
// zeroos has no opinion on; an embedding application supplies a real
// ModuleFactory to Run once it has one.
func stubFactory(image []byte) (interp.Module, error) {
	return nil, fmt.Errorf("daemon: no native module factory configured")
}

// persistingGateway implements syscall.Gateway by appending to the live
// in-memory log and, when a snapshot store is wired, mirroring the same
// commit to SQLite so a restart can resume from it.
type persistingGateway struct {
	log   *audit.Log
	store *snapshot.Store
}

func (g *persistingGateway) Append(c ksys.Commit) error {
	if err := g.log.Append(c); err != nil {
		return err
	}
	if g.store == nil {
		return nil
	}
	if err := g.store.Persist(c, g.log.StateHash(), g.log.Len()); err != nil {
		return fmt.Errorf("daemon: persist commit: %w", err)
	}
	return nil
}
