package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/config"
)

func testConfig(t *testing.T) *config.KernelConfig {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadKernelConfig(dir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.DebugSocket = filepath.Join(dir, "kernel.sock")
	cfg.NativeBinDir = filepath.Join(dir, "bin")
	cfg.SnapshotPath = "" // exercise the in-memory-only log path
	return cfg
}

// TestRunNativeBootsAndShutsDown exercises the full native-host wiring
// path — state, log, dispatcher, HAL, supervisor, broker, transport —
// boots clean and shuts down promptly when its context is cancelled,
// covering scenario S1 (bootstrap) from the supervisor side.
func TestRunNativeBootsAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not shut down after cancel")
	}
}

// TestRunNativeWithSnapshotPersistsAcrossRestart exercises daemon's
// replay-on-restart path: a kernel boots, runs briefly with a snapshot
// store wired, shuts down, and a second Run against the same path must
// not fail to load the (empty) persisted log.
func TestRunNativeWithSnapshotPersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "kernel.db")

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- Run(ctx, cfg, nil) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if err != nil && err != context.Canceled {
				t.Fatalf("run %d: Run returned unexpected error: %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d: Run did not shut down after cancel", i)
		}
	}
}
