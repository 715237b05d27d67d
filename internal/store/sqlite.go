package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reqflow/internal/state"
)

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS workflows (
    id          TEXT PRIMARY KEY,
    requirement TEXT NOT NULL,
    next_step   TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    state       TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_updated ON workflows(updated_at DESC);
`

// SQLiteStore keeps workflow states in a SQLite database, one row per
// workflow with the full state as JSON.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqliteSchemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Save inserts or replaces the workflow row.
func (s *SQLiteStore) Save(ctx context.Context, st *state.WorkflowState) error {
	if st == nil {
		return &state.ShapeError{Reason: "state is nil"}
	}
	if err := validateID(st.ID); err != nil {
		return err
	}
	data, err := state.Marshal(st)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO workflows (id, requirement, next_step, outcome, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			requirement = excluded.requirement,
			next_step   = excluded.next_step,
			outcome     = excluded.outcome,
			state       = excluded.state,
			updated_at  = excluded.updated_at`,
		st.ID, st.Requirement, string(st.NextStep), string(st.Outcome), string(data),
		st.CreatedAt.UTC().Format(time.RFC3339Nano), st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", st.ID, err)
	}
	return nil
}

// Load returns the workflow with the given ID.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*state.WorkflowState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	var data string
	err := s.conn.QueryRowContext(ctx, "SELECT state FROM workflows WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query workflow %s: %w", id, err)
	}
	return state.Unmarshal([]byte(data))
}

// List returns a summary per row, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, requirement, next_step, outcome, updated_at
		FROM workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var next, outcome, updated string
		if err := rows.Scan(&sum.ID, &sum.Requirement, &next, &outcome, &updated); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		sum.NextStep = state.Step(next)
		sum.Outcome = state.Outcome(outcome)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			sum.UpdatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the workflow row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
