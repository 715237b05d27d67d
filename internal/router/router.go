// Package router provides the fixed stage order of the requirement pipeline.
//
// The pipeline is a strict chain of three stages, each a generation step
// followed by a human review step:
//
//	user stories → design document → code → end
//
// The router maps steps to their stage, gives the step that follows an
// approval, and lists the remaining lifecycle from any step. It never
// mutates a workflow state; the review controller and the orchestrator do.
//
// Key types:
//   - [Router] - the stage chain, optionally with a one-shot code stage
//   - [Stage] - one of the three stages
//   - [LifecycleStep] - a single step in a lifecycle sequence
package router

import (
	"errors"

	"reqflow/internal/state"
)

// Sentinel errors for step routing.
var (
	// ErrWorkflowEnded indicates the step is "end" and nothing remains to run.
	// Callers should report the outcome rather than treat this as a failure.
	ErrWorkflowEnded = errors.New("workflow has ended, no step remains")

	// ErrUnknownStep indicates the step value is not recognized, which means
	// the state did not come from this pipeline.
	ErrUnknownStep = errors.New("unknown step value")
)

// Stage is one of the three reviewable pipeline stages.
type Stage string

const (
	StageUserStories Stage = "user_stories"
	StageDesignDoc   Stage = "design_doc"
	StageCode        Stage = "code"
)

// chainStep is one stage with its generation and review steps.
type chainStep struct {
	Stage    Stage
	Generate state.Step
	Review   state.Step
}

// Router routes steps to stages.
//
// Create with [NewRouter]. The zero value is not usable.
type Router struct {
	chain []chainStep

	// codeReview is false when the code stage is one-shot.
	codeReview bool
}

// Option configures a [Router].
type Option func(*Router)

// WithCodeReview sets whether the code stage has a review checkpoint.
// Default: true.
func WithCodeReview(enabled bool) Option {
	return func(r *Router) {
		r.codeReview = enabled
	}
}

// NewRouter creates a [Router] with the fixed chain.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		chain: []chainStep{
			{Stage: StageUserStories, Generate: state.StepGetUserStories, Review: state.StepReviewUserStories},
			{Stage: StageDesignDoc, Generate: state.StepGenerateDesignDoc, Review: state.StepReviewDesignDoc},
			{Stage: StageCode, Generate: state.StepGenerateCode, Review: state.StepReviewCode},
		},
		codeReview: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CodeReview reports whether the code stage has a review checkpoint.
func (r *Router) CodeReview() bool {
	return r.codeReview
}

// Stages returns the stages in pipeline order.
func (r *Router) Stages() []Stage {
	stages := make([]Stage, len(r.chain))
	for i, cs := range r.chain {
		stages[i] = cs.Stage
	}
	return stages
}

// StageOf returns the stage a step belongs to.
//
// Returns [ErrWorkflowEnded] for the end step and [ErrUnknownStep] for
// unrecognized values.
func (r *Router) StageOf(step state.Step) (Stage, error) {
	idx, err := r.index(step)
	if err != nil {
		return "", err
	}
	return r.chain[idx].Stage, nil
}

// GenerateStep returns the generation step of a stage.
func (r *Router) GenerateStep(s Stage) (state.Step, error) {
	for _, cs := range r.chain {
		if cs.Stage == s {
			return cs.Generate, nil
		}
	}
	return "", ErrUnknownStep
}

// ReviewStep returns the review step that follows a stage's generation.
//
// For a one-shot code stage this is the end step.
func (r *Router) ReviewStep(s Stage) (state.Step, error) {
	for _, cs := range r.chain {
		if cs.Stage == s {
			if s == StageCode && !r.codeReview {
				return state.StepEnd, nil
			}
			return cs.Review, nil
		}
	}
	return "", ErrUnknownStep
}

// NextAfterApproval returns the step that follows approval of a stage: the
// next stage's generation step, or the end step after the last stage.
func (r *Router) NextAfterApproval(s Stage) (state.Step, error) {
	for i, cs := range r.chain {
		if cs.Stage != s {
			continue
		}
		if i+1 < len(r.chain) {
			return r.chain[i+1].Generate, nil
		}
		return state.StepEnd, nil
	}
	return "", ErrUnknownStep
}

// IsFinal reports whether approving the stage completes the pipeline.
func (r *Router) IsFinal(s Stage) bool {
	return len(r.chain) > 0 && r.chain[len(r.chain)-1].Stage == s
}

// GetLifecycle returns every step from step through to the end, in order.
//
// Returns [ErrWorkflowEnded] for the end step and [ErrUnknownStep] for
// unrecognized values.
func (r *Router) GetLifecycle(step state.Step) ([]LifecycleStep, error) {
	idx, err := r.index(step)
	if err != nil {
		return nil, err
	}

	var steps []LifecycleStep
	for i := idx; i < len(r.chain); i++ {
		cs := r.chain[i]
		if i > idx || step == cs.Generate {
			steps = append(steps, LifecycleStep{Step: cs.Generate, Stage: cs.Stage, Kind: KindGenerate})
		}
		if cs.Stage == StageCode && !r.codeReview {
			continue
		}
		steps = append(steps, LifecycleStep{Step: cs.Review, Stage: cs.Stage, Kind: KindReview})
	}
	return steps, nil
}

func (r *Router) index(step state.Step) (int, error) {
	if step == state.StepEnd {
		return -1, ErrWorkflowEnded
	}
	for i, cs := range r.chain {
		if step == cs.Generate || step == cs.Review {
			return i, nil
		}
	}
	return -1, ErrUnknownStep
}
