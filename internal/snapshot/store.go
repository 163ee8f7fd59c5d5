// Package snapshot persists the commit log the supervisor accumulates in
// memory (internal/audit.Log) to SQLite, so a kernel restart can resume
// from its last committed state instead of starting cold — the native
// host's answer to spec §4.F's "given an initial KernelState and a commit
// sequence, re-applying each commit deterministically reproduces the final
// state"; persistence plus replay is what makes that survive a restart.
package snapshot

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zeroos-kernel/zeroos/internal/audit"
	"github.com/zeroos-kernel/zeroos/internal/kernel"
	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed commit log, grounded on the teacher's
// internal/store.Store: the same Open/migrate/embedded-SQL shape,
// repurposed from task/chat persistence to commit-log persistence.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dsn and
// applies any migration not yet recorded in schema_migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// Persist appends one commit's row and refreshes the single-row state_hash
// summary. It does not itself decide whether a commit is mutating —
// callers only persist what audit.Log already accepted.
func (s *Store) Persist(c ksys.Commit, hash [32]byte, commitCount int) error {
	reqBlob, err := json.Marshal(c.Request)
	if err != nil {
		return fmt.Errorf("snapshot: marshal request: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO commits (ts_unix_ns, pid, num, args, success, err_kind, value, request)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TS.UnixNano(), uint64(c.PID), uint32(c.Num), c.Args, c.Success, int(c.ErrKind), c.Value, reqBlob,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("snapshot: insert commit: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO state_hash (id, commit_count, hash) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET commit_count = ?, hash = ?`,
		commitCount, hash[:], commitCount, hash[:],
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("snapshot: update state hash: %w", err)
	}
	return tx.Commit()
}

// LoadLog reconstructs an audit.Log by replaying every persisted commit in
// id order through a fresh Log, so the recomputed rolling hash is always
// derived the same way regardless of whether it came from a live run or a
// restart.
func (s *Store) LoadLog() (*audit.Log, error) {
	rows, err := s.db.Query(
		`SELECT ts_unix_ns, pid, num, args, success, err_kind, value, request
		 FROM commits ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query commits: %w", err)
	}
	defer rows.Close()

	log := audit.NewLog()
	for rows.Next() {
		var tsNano int64
		var pid uint64
		var num uint32
		var args []byte
		var success bool
		var errKind int
		var value int64
		var reqBlob []byte
		if err := rows.Scan(&tsNano, &pid, &num, &args, &success, &errKind, &value, &reqBlob); err != nil {
			return nil, fmt.Errorf("snapshot: scan commit: %w", err)
		}
		var req ksys.Request
		if err := json.Unmarshal(reqBlob, &req); err != nil {
			return nil, fmt.Errorf("snapshot: unmarshal request: %w", err)
		}
		c := ksys.Commit{
			TS:      time.Unix(0, tsNano),
			PID:     kernel.PID(pid),
			Num:     ksys.Num(num),
			Args:    args,
			Success: success,
			ErrKind: kernel.ErrKind(errKind),
			Value:   value,
			Request: req,
		}
		if err := log.Append(c); err != nil {
			return nil, fmt.Errorf("snapshot: replay commit: %w", err)
		}
	}
	return log, rows.Err()
}
