// Package review runs the bounded review/revision loop of a pipeline stage.
//
// Each call to [Controller.Review] is exactly one cycle for the stage implied
// by the workflow's next step. A cycle approves, revises once, or records a
// wait; it never loops internally. The surrounding surface decides when the
// next cycle happens.
//
//	Generating → PendingReview ─approve→ Approved
//	                  │  ▲
//	          feedback│  │revision ok
//	                  ▼  │
//	               Revising ─empty/failed→ End
//
// A stage also reaches End when the reviewer stays silent for
// [Config.MaxAttempts] cycles or gives feedback [Config.MaxRevisions] times.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reqflow/internal/logging"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/state"
)

// ErrNotAtReview is returned when the workflow's next step is not a review
// checkpoint.
var ErrNotAtReview = errors.New("workflow is not waiting for review")

// Phase is a per-stage state of the review machine.
type Phase string

const (
	PhaseGenerating    Phase = "generating"
	PhasePendingReview Phase = "pending_review"
	PhaseRevising      Phase = "revising"
	PhaseApproved      Phase = "approved"
	PhaseEnd           Phase = "end"
)

// Decision is what the controller did in a cycle.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionRevise  Decision = "revise"
	DecisionWait    Decision = "wait"
)

// Transition reports one review cycle.
type Transition struct {
	Stage    router.Stage
	From     Phase
	To       Phase
	Decision Decision

	// Revision is the result of the revision call; zero unless Decision is
	// [DecisionRevise].
	Revision stage.Result
}

// Ended reports whether the cycle ended the workflow.
func (t Transition) Ended() bool {
	return t.To == PhaseEnd
}

// Config bounds the review loop.
type Config struct {
	// MaxAttempts is the number of cycles without reviewer input before the
	// workflow ends as stalled.
	MaxAttempts int
	// MaxRevisions is the number of feedback rounds per stage before the
	// workflow ends as exhausted.
	MaxRevisions int
}

// DefaultConfig returns two attempts and two revision rounds.
func DefaultConfig() Config {
	return Config{MaxAttempts: 2, MaxRevisions: 2}
}

// Controller evaluates review cycles.
type Controller struct {
	router   *router.Router
	revisers map[router.Stage]stage.Func
	cfg      Config
	logger   *zap.Logger
}

// NewController creates a controller. Non-positive bounds take the
// [DefaultConfig] values.
func NewController(r *router.Router, revisers map[router.Stage]stage.Func, cfg Config, logger *zap.Logger) *Controller {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = def.MaxRevisions
	}
	if r == nil {
		r = router.NewRouter()
	}
	return &Controller{
		router:   r,
		revisers: revisers,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
	}
}

// Config returns the effective bounds.
func (c *Controller) Config() Config {
	return c.cfg
}

// Apply records reviewer input on the stage awaiting review. Approval sets the
// stage's status to approved and discards any pending feedback, including
// feedback given alongside it. Otherwise non-empty feedback is stored as the
// stage's pending feedback.
func (c *Controller) Apply(st *state.WorkflowState, approve bool, feedback string) error {
	stg, acc, err := c.current(st)
	if err != nil {
		return err
	}
	switch fb := strings.TrimSpace(feedback); {
	case approve:
		acc.approve(st)
		acc.clearFeedback(st)
	case fb != "":
		acc.setFeedback(st, fb)
	}
	c.logger.Debug("review input applied",
		zap.String("workflow_id", st.ID),
		zap.String("stage", string(stg)),
		zap.Bool("approve", approve),
		zap.Bool("feedback", strings.TrimSpace(feedback) != ""),
	)
	st.Touch()
	return nil
}

// Review runs one cycle for the stage awaiting review.
//
// Approval is checked first and wins over feedback given in the same cycle.
// Feedback is appended to the stage history, the current output is
// snapshotted, and the stage's revision function runs once. With neither,
// the attempt counter grows and the workflow ends once it reaches
// MaxAttempts.
func (c *Controller) Review(ctx context.Context, st *state.WorkflowState) (Transition, error) {
	stg, acc, err := c.current(st)
	if err != nil {
		return Transition{}, err
	}
	log := c.logger.With(zap.String("workflow_id", st.ID), zap.String("stage", string(stg)))
	tr := Transition{Stage: stg, From: PhasePendingReview}

	switch {
	case acc.approved(st):
		next, err := c.router.NextAfterApproval(stg)
		if err != nil {
			return Transition{}, err
		}
		if next == state.StepEnd {
			st.End(state.OutcomeCompleted, "")
		} else {
			st.NextStep = next
		}
		tr.To, tr.Decision = PhaseApproved, DecisionApprove
		log.Info("stage approved", zap.String("next_step", string(st.NextStep)))

	case strings.TrimSpace(acc.feedback(st)) != "":
		tr.Decision = DecisionRevise
		tr.Revision, tr.To = c.revise(ctx, log, st, stg, acc)

	default:
		st.ReviewAttempts++
		tr.Decision = DecisionWait
		if st.ReviewAttempts >= c.cfg.MaxAttempts {
			st.End(state.OutcomeStalled, fmt.Sprintf("no reviewer input after %d attempts", st.ReviewAttempts))
			tr.To = PhaseEnd
			log.Warn("review stalled", zap.Int("attempts", st.ReviewAttempts))
		} else {
			tr.To = PhasePendingReview
			log.Info("waiting for reviewer", zap.Int("attempts", st.ReviewAttempts))
		}
	}

	st.Touch()
	return tr, nil
}

func (c *Controller) revise(ctx context.Context, log *zap.Logger, st *state.WorkflowState, stg router.Stage, acc access) (stage.Result, Phase) {
	reviser, ok := c.revisers[stg]
	if !ok {
		st.End(state.OutcomeFailed, fmt.Sprintf("no revision function for stage %s", stg))
		log.Error("no revision function", zap.String("stage", string(stg)))
		return stage.Result{Kind: stage.KindFailed, Reason: st.Error}, PhaseEnd
	}

	acc.record(st, strings.TrimSpace(acc.feedback(st)))
	st.RevisionRounds++
	log.Info("revising stage", zap.Int("round", st.RevisionRounds))

	res := reviser(ctx, st)
	if res.Kind == stage.KindFailed || st.Ended() {
		return res, PhaseEnd
	}

	if st.RevisionRounds >= c.cfg.MaxRevisions {
		st.End(state.OutcomeExhausted, fmt.Sprintf("stage %s used all %d revision rounds", stg, c.cfg.MaxRevisions))
		log.Warn("revision rounds exhausted", zap.Int("rounds", st.RevisionRounds))
		return res, PhaseEnd
	}
	return res, PhasePendingReview
}

// current returns the stage awaiting review and its field accessors.
func (c *Controller) current(st *state.WorkflowState) (router.Stage, access, error) {
	if st == nil {
		return "", access{}, &state.ShapeError{Reason: "state is nil"}
	}
	if st.Ended() {
		return "", access{}, router.ErrWorkflowEnded
	}
	if !st.NextStep.IsReview() {
		return "", access{}, fmt.Errorf("%w: next step is %s", ErrNotAtReview, st.NextStep)
	}
	stg, err := c.router.StageOf(st.NextStep)
	if err != nil {
		return "", access{}, err
	}
	acc, ok := stageAccess[stg]
	if !ok {
		return "", access{}, fmt.Errorf("%w: stage %s", router.ErrUnknownStep, stg)
	}
	return stg, acc, nil
}
