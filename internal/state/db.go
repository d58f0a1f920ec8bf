// Package state records agent runs in SQLite: one row per run, its
// transcript messages in order, and the raw event log.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBFile is the database file name inside the state directory.
const DBFile = "toolloop.db"

// Run statuses.
const (
	StatusRunning  = "running"
	StatusAnswered = "answered"
	StatusTimeout  = "timeout"
	StatusFailed   = "failed"
)

// DB is a SQLite-backed run store.
type DB struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// OpenDB opens (or creates) the run database in dir.
func OpenDB(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Single connection for writes, WAL allows concurrent reads
	db.SetMaxOpenConns(2)

	s := &DB{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *DB) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		prompt         TEXT NOT NULL,
		provider       TEXT,
		model          TEXT,
		status         TEXT NOT NULL DEFAULT 'running',
		answer         TEXT,
		error          TEXT,
		iterations     INTEGER NOT NULL DEFAULT 0,
		max_iterations INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS messages (
		run_id      TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		type        TEXT NOT NULL,
		iteration   INTEGER NOT NULL DEFAULT 0,
		data        TEXT,
		created_at  TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	`
	_, err := s.db.Exec(ddl)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// --- Run operations ---

type RunRow struct {
	ID            string `json:"id"`
	Prompt        string `json:"prompt"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Status        string `json:"status"`
	Answer        string `json:"answer,omitempty"`
	Error         string `json:"error,omitempty"`
	Iterations    int    `json:"iterations"`
	MaxIterations int    `json:"max_iterations"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *DB) CreateRun(ctx context.Context, r RunRow) error {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, prompt, provider, model, status, max_iterations, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Prompt, r.Provider, r.Model, StatusRunning, r.MaxIterations, ts, ts,
	)
	return err
}

// UpdateRunIteration records progress of a running run.
func (s *DB) UpdateRunIteration(ctx context.Context, id string, iteration int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET iterations = ?, updated_at = ? WHERE id = ?`,
		iteration, now(), id,
	)
	return err
}

// FinishRun stores the outcome of a run.
func (s *DB) FinishRun(ctx context.Context, id, status, answer, errMsg string, iterations int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, answer = ?, error = ?, iterations = ?, updated_at = ? WHERE id = ?`,
		status, answer, errMsg, iterations, now(), id,
	)
	return err
}

const runColumns = `id, prompt, COALESCE(provider, ''), COALESCE(model, ''), status,
	COALESCE(answer, ''), COALESCE(error, ''), iterations, max_iterations, created_at, updated_at`

// GetRun loads a run by its full id.
func (s *DB) GetRun(ctx context.Context, id string) (*RunRow, error) {
	return scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

// FindRun resolves a full run id or a unique prefix of one. An exact id
// wins over longer ids it is a prefix of.
func (s *DB) FindRun(ctx context.Context, prefix string) (*RunRow, error) {
	if prefix == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if r, err := s.GetRun(ctx, prefix); err == nil {
		return r, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? ORDER BY created_at DESC LIMIT 2`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %s not found", prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id %s is ambiguous", prefix)
	}
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (s *DB) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// --- Transcript messages ---

type MessageRow struct {
	RunID     string `json:"run_id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// AppendMessage adds the next message of a run's transcript and returns its
// sequence number, starting at 1.
func (s *DB) AppendMessage(ctx context.Context, runID, role, content string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE run_id = ?`, runID,
	).Scan(&seq); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (run_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, seq, role, content, now(),
	); err != nil {
		return 0, err
	}
	return seq, tx.Commit()
}

func (s *DB) GetMessages(ctx context.Context, runID string) ([]MessageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, role, content, created_at FROM messages WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.RunID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- Event log (append-only) ---

func (s *DB) AppendEvent(ctx context.Context, runID, eventType string, iteration int, data interface{}) (int64, error) {
	var dataStr string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, err
		}
		dataStr = string(b)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, type, iteration, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, eventType, iteration, dataStr, now(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *DB) EventCount(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// CountRunsByStatus returns run counts keyed by status.
func (s *DB) CountRunsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var st string
		var c int
		if err := rows.Scan(&st, &c); err != nil {
			return nil, err
		}
		counts[st] = c
	}
	return counts, rows.Err()
}

// --- Lifecycle ---

func (s *DB) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *DB) Path() string {
	return s.path
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scannable) (*RunRow, error) {
	var r RunRow
	err := row.Scan(
		&r.ID, &r.Prompt, &r.Provider, &r.Model, &r.Status,
		&r.Answer, &r.Error, &r.Iterations, &r.MaxIterations,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
