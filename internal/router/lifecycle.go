package router

import (
	"reqflow/internal/state"
)

// StepKind tells generation steps apart from review checkpoints.
type StepKind string

const (
	// KindGenerate steps call the generator and run without a reviewer.
	KindGenerate StepKind = "generate"
	// KindReview steps wait for reviewer input.
	KindReview StepKind = "review"
)

// LifecycleStep represents a single step in the remaining pipeline sequence.
type LifecycleStep struct {
	// Step is the step identifier stored in WorkflowState.NextStep.
	Step state.Step

	// Stage is the stage the step belongs to.
	Stage Stage

	// Kind is whether the step generates or waits for review.
	Kind StepKind
}
