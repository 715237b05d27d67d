package stage

import (
	"context"
	"errors"

	"reqflow/internal/state"
)

// ErrPrerequisite is wrapped by every error recorded when a stage runs before
// its predecessor produced what it needs.
var ErrPrerequisite = errors.New("stage prerequisite not met")

// Kind is the variant of a [Result].
type Kind int

const (
	// KindProduced means the stage stored parsed output and moved on.
	KindProduced Kind = iota
	// KindEmpty means the generator answered but nothing usable was parsed.
	// The workflow still moves to review so the reviewer sees the gap.
	KindEmpty
	// KindFailed means the stage ended the workflow with outcome failed.
	KindFailed
	// KindNoProgress means the stage did nothing and left the state untouched.
	KindNoProgress
)

// String returns the kind name used in log fields.
func (k Kind) String() string {
	switch k {
	case KindProduced:
		return "produced"
	case KindEmpty:
		return "empty"
	case KindFailed:
		return "failed"
	default:
		return "no_progress"
	}
}

// Result reports what one stage run did to the state.
type Result struct {
	Kind   Kind
	Reason string
	// Err is the cause of a [KindFailed] result: a *llm.GeneratorError, an
	// error wrapping [ErrPrerequisite], or a prompt template error.
	Err error
}

func isPrerequisite(err error) bool {
	return errors.Is(err, ErrPrerequisite)
}

// Func runs one stage against a workflow state, mutating it in place.
type Func func(ctx context.Context, st *state.WorkflowState) Result
