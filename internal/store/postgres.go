package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reqflow/internal/state"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reqflow_workflows (
    id          TEXT PRIMARY KEY,
    requirement TEXT NOT NULL,
    next_step   TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    state       JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reqflow_workflows_updated ON reqflow_workflows(updated_at DESC);
`

// PostgresStore keeps workflow states in PostgreSQL using a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires a dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the workflow table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Save upserts the workflow row.
func (s *PostgresStore) Save(ctx context.Context, st *state.WorkflowState) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reqflow_workflows (id, requirement, next_step, outcome, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			requirement = EXCLUDED.requirement,
			next_step   = EXCLUDED.next_step,
			outcome     = EXCLUDED.outcome,
			state       = EXCLUDED.state,
			updated_at  = EXCLUDED.updated_at`,
		st.ID, st.Requirement, string(st.NextStep), string(st.Outcome), data,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", st.ID, err)
	}
	return nil
}

// Load returns the workflow with the given ID.
func (s *PostgresStore) Load(ctx context.Context, id string) (*state.WorkflowState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT state FROM reqflow_workflows WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query workflow %s: %w", id, err)
	}
	return state.Unmarshal(data)
}

// List returns a summary per row, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, requirement, next_step, outcome, updated_at
		FROM reqflow_workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var next, outcome string
		if err := rows.Scan(&sum.ID, &sum.Requirement, &next, &outcome, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		sum.NextStep = state.Step(next)
		sum.Outcome = state.Outcome(outcome)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the workflow row.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM reqflow_workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
