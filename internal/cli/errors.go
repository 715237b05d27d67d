package cli

import (
	"errors"
	"fmt"

	"reqflow/internal/state"
)

// Exit codes for workflow outcomes.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitStopped = 2
)

// ExitError represents a command execution failure with a specific exit code.
//
// Commands return it from RunE instead of calling os.Exit, so tests can assert
// on exit codes without terminating the process. [Run] extracts the code with
// [IsExitError] and [Execute] exits with it.
type ExitError struct {
	// Code is the exit code to return to the shell.
	// Convention: 0 = success, 1 = failed workflow or CLI error, 2 = workflow
	// stopped without failing (stalled or out of revision rounds).
	Code int
}

// Error returns "exit status N", matching os/exec.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is or wraps an [ExitError] and extracts its
// exit code. Returns (0, false) for nil or other errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// OutcomeExitCode maps a workflow outcome to an exit code. Running and
// completed workflows exit 0.
func OutcomeExitCode(o state.Outcome) int {
	switch o {
	case state.OutcomeFailed:
		return ExitFailed
	case state.OutcomeStalled, state.OutcomeExhausted:
		return ExitStopped
	default:
		return ExitOK
	}
}

// outcomeError returns an [ExitError] for outcomes that should exit non-zero.
func outcomeError(st *state.WorkflowState) error {
	if code := OutcomeExitCode(st.Outcome); code != ExitOK {
		return NewExitError(code)
	}
	return nil
}
