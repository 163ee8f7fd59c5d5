package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/audit"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

func setup(t *testing.T) (*kernel.State, *audit.Log, *Client, context.CancelFunc) {
	t.Helper()

	state := kernel.New()
	state.AddProcess(kernel.PIDSupervisor, "supervisor", time.Now())
	state.AddProcess(kernel.PIDInit, "init", time.Now())
	log := audit.NewLog()

	sock := filepath.Join(t.TempDir(), "zeroos.sock")
	srv := NewServer(state, log, sock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	go func() {
		go func() {
			for {
				if _, err := os.Stat(sock); err == nil {
					close(ready)
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()
		srv.ListenAndServe(ctx)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start in time")
	}

	client := NewClient(sock)
	return state, log, client, cancel
}

func TestListProcesses(t *testing.T) {
	_, _, client, cleanup := setup(t)
	defer cleanup()

	procs, err := client.ListProcesses()
	if err != nil {
		t.Fatalf("list processes: %v", err)
	}
	if len(procs) != 2 {
		t.Fatalf("want 2 processes, got %d", len(procs))
	}
	if procs[0].PID != uint64(kernel.PIDSupervisor) {
		t.Errorf("want first pid=%d, got %d", kernel.PIDSupervisor, procs[0].PID)
	}
}

func TestGetProcessNotFound(t *testing.T) {
	_, _, client, cleanup := setup(t)
	defer cleanup()

	_, err := client.GetProcess(999)
	if err == nil {
		t.Fatal("expected error for missing process")
	}
}

func TestGetProcess(t *testing.T) {
	_, _, client, cleanup := setup(t)
	defer cleanup()

	p, err := client.GetProcess(uint64(kernel.PIDInit))
	if err != nil {
		t.Fatalf("get process: %v", err)
	}
	if p.Name != "init" {
		t.Errorf("want name=init, got %s", p.Name)
	}
}

func TestCommitsAndStateHash(t *testing.T) {
	_, log, client, cleanup := setup(t)
	defer cleanup()

	c := ksys.Commit{
		TS: time.Now(), PID: kernel.PIDInit, Num: ksys.RegisterProcess,
		Success: true, ErrKind: kernel.ErrNone, Value: 2,
		Request: ksys.Request{Caller: kernel.PIDInit, Num: ksys.RegisterProcess, Name: "worker"},
	}
	if err := log.Append(c); err != nil {
		t.Fatalf("append commit: %v", err)
	}

	commits, err := client.Commits(0)
	if err != nil {
		t.Fatalf("commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("want 1 commit, got %d", len(commits))
	}
	if commits[0].PID != uint64(kernel.PIDInit) {
		t.Errorf("want pid=%d, got %d", kernel.PIDInit, commits[0].PID)
	}

	hash, err := client.StateHash()
	if err != nil {
		t.Fatalf("state hash: %v", err)
	}
	if hash.CommitCount != 1 {
		t.Errorf("want commit_count=1, got %d", hash.CommitCount)
	}
	if hash.Algorithm != audit.HashAlgorithm {
		t.Errorf("want algorithm=%s, got %s", audit.HashAlgorithm, hash.Algorithm)
	}
}

func TestCommitsSince(t *testing.T) {
	_, log, client, cleanup := setup(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		log.Append(ksys.Commit{
			TS: time.Now(), PID: kernel.PIDInit, Num: ksys.RegisterProcess,
			Success: true, ErrKind: kernel.ErrNone,
			Request: ksys.Request{Caller: kernel.PIDInit, Num: ksys.RegisterProcess, Name: "w"},
		})
	}

	commits, err := client.Commits(2)
	if err != nil {
		t.Fatalf("commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("want 1 commit since index 2, got %d", len(commits))
	}
	if commits[0].Index != 2 {
		t.Errorf("want index=2, got %d", commits[0].Index)
	}
}

func TestReplayAgreesWithEmptyLog(t *testing.T) {
	_, _, client, cleanup := setup(t)
	defer cleanup()

	resp, err := client.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !resp.OK {
		t.Errorf("want ok=true for empty log, got diverged=%s", resp.Diverged)
	}
	if resp.CommitCount != 0 {
		t.Errorf("want commit_count=0, got %d", resp.CommitCount)
	}
}

type stubClock struct{}

func (stubClock) NowNanos() int64    { return 1 }
func (stubClock) WallClockMs() int64 { return 1 }

type stubSink struct{}

func (stubSink) Debug(kernel.PID, string)        {}
func (stubSink) ConsoleWrite(kernel.PID, []byte) {}

// TestReplayAgreesWithRealCommit guards against handleReplay seeding an
// empty kernel.State: replaying a commit issued by PIDInit (as almost
// every real commit is) against an unseeded state fails the dispatcher's
// caller-existence check and gets reported as a false divergence.
func TestReplayAgreesWithRealCommit(t *testing.T) {
	state, log, client, cleanup := setup(t)
	defer cleanup()

	disp := ksys.NewDispatcher(state, log, stubClock{}, stubSink{})
	if _, err := disp.Dispatch(ksys.Request{Caller: kernel.PIDInit, Num: ksys.RegisterProcess, Name: "worker"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	resp, err := client.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !resp.OK {
		t.Fatalf("want ok=true replaying a real commit, got diverged=%s", resp.Diverged)
	}
	if resp.CommitCount != 1 {
		t.Errorf("want commit_count=1, got %d", resp.CommitCount)
	}
}

func TestStatus(t *testing.T) {
	_, _, client, cleanup := setup(t)
	defer cleanup()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ProcessCount != 2 {
		t.Errorf("want process_count=2, got %d", status.ProcessCount)
	}
}
