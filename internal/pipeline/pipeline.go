// Package pipeline drives a workflow through the fixed stage chain.
//
// The [Orchestrator] owns no workflow: every operation takes the state in and
// hands it back, so callers can persist it between interactions. Generation
// steps run stage functions from [stage.Stages]; review steps run one cycle of
// the [review.Controller].
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/logging"
	"reqflow/internal/prompt"
	"reqflow/internal/review"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/state"
)

// Sentinel errors returned by orchestrator operations.
var (
	ErrNilState = errors.New("workflow state is nil")

	// ErrNotAtReview is returned by RunReview when the workflow is not waiting
	// for reviewer input.
	ErrNotAtReview = review.ErrNotAtReview

	// ErrNotAtGeneration is returned by Advance when the workflow is waiting
	// for review instead.
	ErrNotAtGeneration = errors.New("workflow has no pending generation step")

	ErrWorkflowEnded = router.ErrWorkflowEnded

	// ErrUnknownTrigger is returned by Trigger for names that are not steps.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrPaused is returned by a [Reviewer] to stop [Orchestrator.Drive]
	// without ending the workflow.
	ErrPaused = errors.New("review paused")
)

// Input is one round of reviewer input.
type Input struct {
	Approve  bool
	Feedback string
}

// Reviewer supplies input at a review checkpoint.
type Reviewer interface {
	Review(ctx context.Context, st *state.WorkflowState, stg router.Stage) (Input, error)
}

// ReviewerFunc adapts a function to [Reviewer].
type ReviewerFunc func(ctx context.Context, st *state.WorkflowState, stg router.Stage) (Input, error)

// Review calls f.
func (f ReviewerFunc) Review(ctx context.Context, st *state.WorkflowState, stg router.Stage) (Input, error) {
	return f(ctx, st, stg)
}

// AutoApprove approves every stage.
var AutoApprove = ReviewerFunc(func(context.Context, *state.WorkflowState, router.Stage) (Input, error) {
	return Input{Approve: true}, nil
})

// CheckpointFunc is called by Drive after every step, typically to persist
// the state.
type CheckpointFunc func(ctx context.Context, st *state.WorkflowState) error

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// Use appends middlewares applied to every generation and revision function.
func Use(mws ...Middleware) Option {
	return func(o *Orchestrator) {
		o.middleware = append(o.middleware, mws...)
	}
}

// WithCheckpoint sets the function Drive calls after every step.
func WithCheckpoint(fn CheckpointFunc) Option {
	return func(o *Orchestrator) {
		o.checkpoint = fn
	}
}

// Orchestrator runs pipeline steps against caller-owned workflow states.
type Orchestrator struct {
	router     *router.Router
	generators map[state.Step]stage.Func
	controller *review.Controller
	middleware []Middleware
	checkpoint CheckpointFunc
	logger     *zap.Logger
}

// New builds an orchestrator from configuration. A nil cfg uses
// [config.DefaultConfig] and a nil logger discards output.
func New(gen llm.Generator, cfg *config.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger = logging.OrNop(logger)

	o := &Orchestrator{
		router: router.NewRouter(router.WithCodeReview(cfg.Stages.CodeRegeneration)),
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}

	stages := stage.New(gen, prompt.NewBuilder(cfg), o.router, logger)

	o.generators = make(map[state.Step]stage.Func)
	for step, fn := range stages.Generators() {
		o.generators[step] = chain(step, fn, o.middleware)
	}

	revisers := make(map[router.Stage]stage.Func)
	for stg, fn := range stages.Revisers() {
		step := state.Step("revise_" + string(stg))
		if rs, err := o.router.ReviewStep(stg); err == nil && rs != state.StepEnd {
			step = rs
		}
		revisers[stg] = chain(step, fn, o.middleware)
	}

	o.controller = review.NewController(o.router, revisers, review.Config{
		MaxAttempts:  cfg.Review.MaxAttempts,
		MaxRevisions: cfg.Review.MaxRevisions,
	}, logger)
	return o
}

// Router returns the stage chain in use.
func (o *Orchestrator) Router() *router.Router {
	return o.router
}

// RunInitial creates a workflow for requirement and generates the first
// story set. An empty requirement ends the workflow as failed.
func (o *Orchestrator) RunInitial(ctx context.Context, requirement string) (*state.WorkflowState, error) {
	st := state.New(strings.TrimSpace(requirement))
	o.logger.Info("workflow started", zap.String("workflow_id", st.ID))

	res := o.generators[state.StepGetUserStories](ctx, st)
	if res.Kind == stage.KindNoProgress {
		st.End(state.OutcomeFailed, res.Reason)
		st.Touch()
	}
	return st, nil
}

// RunReview applies reviewer input to the stage awaiting review and runs one
// review cycle. Story feedback is also appended to the requirement so later
// stages see it.
func (o *Orchestrator) RunReview(ctx context.Context, st *state.WorkflowState, in Input) (*state.WorkflowState, review.Transition, error) {
	if err := o.check(st); err != nil {
		return st, review.Transition{}, err
	}
	if !st.NextStep.IsReview() {
		return st, review.Transition{}, fmt.Errorf("%w: next step is %s", ErrNotAtReview, st.NextStep)
	}

	feedback := strings.TrimSpace(in.Feedback)
	if st.NextStep == state.StepReviewUserStories && feedback != "" && !in.Approve {
		st.Requirement = st.Requirement + ". " + feedback
	}

	if err := o.controller.Apply(st, in.Approve, feedback); err != nil {
		return st, review.Transition{}, err
	}
	tr, err := o.controller.Review(ctx, st)
	if err != nil {
		return st, tr, err
	}
	o.logger.Info("review cycle",
		zap.String("workflow_id", st.ID),
		zap.String("stage", string(tr.Stage)),
		zap.String("decision", string(tr.Decision)),
		zap.String("to", string(tr.To)),
	)
	return st, tr, nil
}

// Advance runs the pending generation step.
func (o *Orchestrator) Advance(ctx context.Context, st *state.WorkflowState) (*state.WorkflowState, stage.Result, error) {
	if err := o.check(st); err != nil {
		return st, stage.Result{}, err
	}
	fn, ok := o.generators[st.NextStep]
	if !ok {
		return st, stage.Result{}, fmt.Errorf("%w: next step is %s", ErrNotAtGeneration, st.NextStep)
	}
	res := fn(ctx, st)
	if res.Kind == stage.KindNoProgress {
		st.End(state.OutcomeFailed, res.Reason)
		st.Touch()
	}
	return st, res, nil
}

// Trigger runs the step named by an external trigger. The workflow must be
// at that step. Generation step names run that generator; review step names
// run one review cycle without new input.
func (o *Orchestrator) Trigger(ctx context.Context, st *state.WorkflowState, name string) (*state.WorkflowState, error) {
	step := state.Step(strings.TrimSpace(name))
	if !step.IsGeneration() && !step.IsReview() {
		return st, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	if err := o.check(st); err != nil {
		return st, err
	}

	if step.IsGeneration() {
		fn, ok := o.generators[step]
		if !ok {
			return st, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
		}
		if st.NextStep != step {
			return st, fmt.Errorf("%w: next step is %s, not %s", ErrNotAtGeneration, st.NextStep, step)
		}
		if res := fn(ctx, st); res.Kind == stage.KindNoProgress {
			st.End(state.OutcomeFailed, res.Reason)
			st.Touch()
		}
		return st, nil
	}

	if st.NextStep != step {
		return st, fmt.Errorf("%w: next step is %s, not %s", ErrNotAtReview, st.NextStep, step)
	}
	_, err := o.controller.Review(ctx, st)
	return st, err
}

// Drive runs the workflow until it ends, the reviewer pauses, or ctx is
// canceled. Generation steps run automatically; review steps ask reviewer.
func (o *Orchestrator) Drive(ctx context.Context, st *state.WorkflowState, reviewer Reviewer) (*state.WorkflowState, error) {
	if err := o.check(st); err != nil && !errors.Is(err, ErrWorkflowEnded) {
		return st, err
	}

	for !st.Ended() {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		if st.NextStep.IsGeneration() {
			if _, _, err := o.Advance(ctx, st); err != nil {
				return st, err
			}
		} else {
			stg, err := o.router.StageOf(st.NextStep)
			if err != nil {
				return st, err
			}
			in, err := reviewer.Review(ctx, st, stg)
			if err != nil {
				return st, err
			}
			if _, _, err := o.RunReview(ctx, st, in); err != nil {
				return st, err
			}
		}

		if o.checkpoint != nil {
			if err := o.checkpoint(ctx, st); err != nil {
				return st, fmt.Errorf("checkpoint: %w", err)
			}
		}
	}

	o.logger.Info("workflow ended",
		zap.String("workflow_id", st.ID),
		zap.String("outcome", string(st.Outcome)),
	)
	return st, nil
}

// RunToCompletion runs a whole workflow in batch mode, approving every stage.
func (o *Orchestrator) RunToCompletion(ctx context.Context, requirement string) (*state.WorkflowState, error) {
	st, err := o.RunInitial(ctx, requirement)
	if err != nil {
		return st, err
	}
	return o.Drive(ctx, st, AutoApprove)
}

func (o *Orchestrator) check(st *state.WorkflowState) error {
	if st == nil {
		return ErrNilState
	}
	if err := state.Validate(st); err != nil {
		return err
	}
	if st.Ended() {
		return ErrWorkflowEnded
	}
	return nil
}
