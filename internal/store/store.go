// Package store persists workflow states between CLI invocations.
//
// Three drivers implement [Store]:
//   - [FileStore] writes one JSON or YAML file per workflow
//   - [SQLiteStore] keeps states in a local SQLite database
//   - [PostgresStore] keeps states in a PostgreSQL table
//
// Every driver stores the full state and validates it on load, so a record
// edited by hand into an unknown shape surfaces as a *state.ShapeError.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reqflow/internal/config"
	"reqflow/internal/state"
)

// Default locations relative to the working directory.
const (
	DefaultDir        = ".reqflow"
	DefaultRunsDir    = ".reqflow/runs"
	DefaultSQLiteFile = ".reqflow/reqflow.db"
)

var (
	// ErrNotFound is returned when no workflow has the requested ID.
	ErrNotFound = errors.New("workflow not found")

	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("invalid workflow id")
)

// Summary is the listing view of a stored workflow.
type Summary struct {
	ID          string
	Requirement string
	NextStep    state.Step
	Outcome     state.Outcome
	UpdatedAt   time.Time
}

// Store persists workflow states by ID.
type Store interface {
	// Save inserts or replaces the state.
	Save(ctx context.Context, st *state.WorkflowState) error
	// Load returns the state with the given ID or [ErrNotFound].
	Load(ctx context.Context, id string) (*state.WorkflowState, error)
	// List returns every stored workflow, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes the state or returns [ErrNotFound].
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		dir := cfg.Path
		if dir == "" {
			dir = DefaultRunsDir
		}
		return NewFileStore(dir, cfg.Format)
	case config.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLiteFile
		}
		return OpenSQLite(path)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// validateID rejects anything that is not a UUID, which also keeps IDs safe
// to use as file names.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func summarize(st *state.WorkflowState) Summary {
	return Summary{
		ID:          st.ID,
		Requirement: st.Requirement,
		NextStep:    st.NextStep,
		Outcome:     st.Outcome,
		UpdatedAt:   st.UpdatedAt,
	}
}
