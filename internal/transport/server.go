// Package transport exposes the kernel's debug/introspection API: the
// process table, a tail of the commit log, the current rolling state hash,
// and a replay-and-verify trigger. It is deliberately read-mostly — the
// one mutating-sounding endpoint (replay) never touches the live
// kernel.State, it only re-derives a fresh one from the commit log (the
// persisted one when a snapshot store is wired, otherwise the in-memory
// one) and reports whether it agrees with what was recorded.
//
// Grounded on the teacher's internal/transport: same unix-socket
// ListenAndServe/graceful-shutdown shape and the same ServeMux
// registerRoutes pattern, repurposed from task/agent endpoints to kernel
// introspection endpoints.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/zeroos-kernel/zeroos/internal/audit"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/logger"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

// Snapshotter is the subset of *snapshot.Store the transport needs, kept
// as an interface so this package never imports database/sql machinery.
type Snapshotter interface {
	LoadLog() (*audit.Log, error)
}

// Server is the debug transport. It holds read access to the live kernel
// state and commit log; snapshot, if non-nil, lets /replay re-derive state
// from the persisted store instead of just the in-memory log.
type Server struct {
	state      *kernel.State
	log        *audit.Log
	socketPath string
	snapshot   Snapshotter
}

// NewServer wires a debug transport over socketPath. snap may be nil, in
// which case /replay re-derives from the live in-memory log instead of a
// persisted store.
func NewServer(state *kernel.State, log *audit.Log, socketPath string, snap Snapshotter) *Server {
	return &Server{state: state, log: log, socketPath: socketPath, snapshot: snap}
}

// ListenAndServe serves the debug API over a unix socket at s.socketPath
// until ctx is canceled, at which point it shuts down gracefully and
// removes the socket file.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up stale socket.
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", s.socketPath, err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		os.Remove(s.socketPath)
		return nil
	case err := <-errCh:
		os.Remove(s.socketPath)
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /processes", s.handleListProcesses)
	mux.HandleFunc("GET /processes/{pid}", s.handleGetProcess)
	mux.HandleFunc("GET /commits", s.handleCommits)
	mux.HandleFunc("GET /state-hash", s.handleStateHash)
	mux.HandleFunc("POST /replay", s.handleReplay)
	mux.HandleFunc("GET /status", s.handleStatus)
}

// Request/response types

type processResponse struct {
	PID          uint64 `json:"pid"`
	Name         string `json:"name"`
	State        string `json:"state"`
	StartedAt    string `json:"started_at"`
	LastActiveAt string `json:"last_active_at"`
	SyscallCount uint64 `json:"syscall_count"`
	MemoryBytes  uint64 `json:"memory_bytes"`
}

func processToResponse(p kernel.Process) processResponse {
	return processResponse{
		PID:          uint64(p.PID),
		Name:         p.Name,
		State:        p.State.String(),
		StartedAt:    p.Metrics.StartedAt.UTC().Format(time.RFC3339Nano),
		LastActiveAt: p.Metrics.LastActiveAt.UTC().Format(time.RFC3339Nano),
		SyscallCount: p.Metrics.SyscallCount,
		MemoryBytes:  p.Metrics.MemoryBytes,
	}
}

type commitResponse struct {
	Index   int    `json:"index"`
	PID     uint64 `json:"pid"`
	Num     uint32 `json:"num"`
	Success bool   `json:"success"`
	ErrKind int    `json:"err_kind,omitempty"`
	Value   int64  `json:"value"`
	TS      string `json:"ts"`
}

func commitToResponse(idx int, c ksys.Commit) commitResponse {
	return commitResponse{
		Index:   idx,
		PID:     uint64(c.PID),
		Num:     uint32(c.Num),
		Success: c.Success,
		ErrKind: int(c.ErrKind),
		Value:   c.Value,
		TS:      c.TS.UTC().Format(time.RFC3339Nano),
	}
}

type stateHashResponse struct {
	Algorithm   string `json:"algorithm"`
	Hash        string `json:"hash"`
	CommitCount int    `json:"commit_count"`
}

type replayResponse struct {
	OK          bool   `json:"ok"`
	CommitCount int    `json:"commit_count"`
	Hash        string `json:"hash"`
	Diverged    string `json:"diverged,omitempty"`
}

type statusResponse struct {
	ProcessCount  int    `json:"process_count"`
	EndpointCount int    `json:"endpoint_count"`
	TotalIPC      uint64 `json:"total_ipc"`
	CommitCount   int    `json:"commit_count"`
	TotalMemory   uint64 `json:"total_memory"`
}

// Handlers

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	procs := s.state.ListProcesses()
	out := make([]processResponse, 0, len(procs))
	for _, p := range procs {
		out = append(out, processToResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	pidStr := r.PathValue("pid")
	n, err := strconv.ParseUint(pidStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pid: "+err.Error())
		return
	}
	p, ok := s.state.GetProcess(kernel.PID(n))
	if !ok {
		writeError(w, http.StatusNotFound, "no such process: "+pidStr)
		return
	}
	writeJSON(w, http.StatusOK, processToResponse(*p))
}

// handleCommits returns a tail of the commit log. The "since" query
// parameter, if present, limits the response to commits at or after that
// index; otherwise every commit is returned.
func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}
	result := []commitResponse{}
	s.log.Iter(func(idx int, c ksys.Commit) bool {
		if idx >= since {
			result = append(result, commitToResponse(idx, c))
		}
		return true
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStateHash(w http.ResponseWriter, r *http.Request) {
	hash := s.log.StateHash()
	writeJSON(w, http.StatusOK, stateHashResponse{
		Algorithm:   audit.HashAlgorithm,
		Hash:        fmt.Sprintf("%x", hash),
		CommitCount: s.log.Len(),
	})
}

// handleReplay re-derives kernel state from a fresh seed by replaying
// every persisted commit (via s.snapshot if wired, otherwise the live
// in-memory log) and reports whether the replay's final hash and every
// intermediate outcome agreed with what was recorded. It never mutates
// s.state.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	l := s.log
	if s.snapshot != nil {
		loaded, err := s.snapshot.LoadLog()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load log: "+err.Error())
			return
		}
		l = loaded
	}

	seed := kernel.New()
	now := time.Now()
	seed.AddProcess(kernel.PIDSupervisor, "supervisor", now)
	seed.AddProcess(kernel.PIDInit, "init", now)
	_, hash, err := audit.Replay(seed, l)
	resp := replayResponse{
		CommitCount: l.Len(),
		Hash:        fmt.Sprintf("%x", hash),
	}
	if err != nil {
		resp.OK = false
		resp.Diverged = err.Error()
		logger.Warn("replay diverged", "error", err)
	} else {
		resp.OK = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	procs := s.state.ListProcesses()
	writeJSON(w, http.StatusOK, statusResponse{
		ProcessCount:  len(procs),
		EndpointCount: len(s.state.ListEndpoints()),
		TotalIPC:      s.state.TotalIPC(),
		CommitCount:   s.log.Len(),
		TotalMemory:   s.state.TotalMemory(),
	})
}

// Helpers

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
