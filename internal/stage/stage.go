// Package stage implements the generation and revision step of each pipeline
// stage.
//
// Every stage function has the same shape, [Func]: it reads what it needs from
// the workflow state, calls the generator once, parses the answer and writes
// the result back along with the next step. Generator failures and missing
// prerequisites never escape as errors. They end the workflow with outcome
// failed and are reported through [Result].
package stage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reqflow/internal/llm"
	"reqflow/internal/logging"
	"reqflow/internal/parser"
	"reqflow/internal/prompt"
	"reqflow/internal/router"
	"reqflow/internal/state"
)

// Stages bundles the collaborators shared by every stage function.
type Stages struct {
	gen     llm.Generator
	prompts *prompt.Builder
	router  *router.Router
	logger  *zap.Logger
}

// New creates the stage functions. A nil router uses the default chain and a
// nil logger discards output.
func New(gen llm.Generator, prompts *prompt.Builder, r *router.Router, logger *zap.Logger) *Stages {
	if r == nil {
		r = router.NewRouter()
	}
	if prompts == nil {
		prompts = prompt.NewBuilder(nil)
	}
	return &Stages{
		gen:     gen,
		prompts: prompts,
		router:  r,
		logger:  logging.OrNop(logger),
	}
}

// Generators maps each generation step to its stage function.
func (s *Stages) Generators() map[state.Step]Func {
	return map[state.Step]Func{
		state.StepGetUserStories:    s.ProduceUserStories,
		state.StepGenerateDesignDoc: s.ProduceDesignDocument,
		state.StepGenerateCode:      s.ProduceCode,
	}
}

// Revisers maps each stage to its revision function.
func (s *Stages) Revisers() map[router.Stage]Func {
	return map[router.Stage]Func{
		router.StageUserStories: s.ReviseUserStories,
		router.StageDesignDoc:   s.ReviseDesignDocument,
		router.StageCode:        s.ReviseCode,
	}
}

// ProduceUserStories generates the first story set from the requirement.
//
// An empty requirement is a no-op: the state is left untouched and the result
// is [KindNoProgress] so the caller can decide how to end the run.
func (s *Stages) ProduceUserStories(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepGetUserStories
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID))

	if strings.TrimSpace(st.Requirement) == "" {
		log.Warn("requirement is empty, nothing to generate")
		return Result{Kind: KindNoProgress, Reason: "requirement is empty"}
	}

	st.EnterStage()
	raw, err := s.generate(ctx, st, step, llm.IntentUserStories, "")
	if err != nil {
		return s.fail(log, st, err)
	}

	parsed := parser.UserStories(raw)
	st.UserStories = storiesOrEmpty(parsed.Value)
	st.UserStoryStatus = state.StoryPendingReview
	st.NextStep = state.StepReviewUserStories
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason, zap.Int("stories", len(st.UserStories)))
}

// ProduceDesignDocument generates the design document from the requirement
// and the approved stories. Without stories the workflow ends as failed and
// the document is left untouched.
func (s *Stages) ProduceDesignDocument(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepGenerateDesignDoc
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID))

	if len(st.UserStories) == 0 {
		return s.fail(log, st, fmt.Errorf("%w: no user stories to design from", ErrPrerequisite))
	}

	st.EnterStage()
	raw, err := s.generate(ctx, st, step, llm.IntentDesignDocument, "")
	if err != nil {
		return s.fail(log, st, err)
	}

	parsed := parser.DesignDocument(raw)
	st.DesignDoc.FunctionalDoc = parsed.Value.FunctionalDoc
	st.DesignDoc.TechnicalDoc = parsed.Value.TechnicalDoc
	st.DesignDoc.ReviewStatus = state.DocPending
	st.NextStep = state.StepReviewDesignDoc
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason)
}

// ProduceCode generates the file set from the approved design document.
//
// Without an approved design the workflow ends as failed and no generation is
// attempted. When the code stage is one-shot, producing code completes the
// workflow.
func (s *Stages) ProduceCode(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepGenerateCode
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID))

	if st.DesignDoc.ReviewStatus != state.DocApproved {
		return s.fail(log, st, fmt.Errorf("%w: design document is %q, not approved", ErrPrerequisite, st.DesignDoc.ReviewStatus))
	}

	st.EnterStage()
	raw, err := s.generate(ctx, st, step, llm.IntentCode, "")
	if err != nil {
		return s.fail(log, st, err)
	}

	parsed := parser.GeneratedCode(raw)
	st.CodeGeneration.Files = parsed.Value
	st.CodeGeneration.ReviewStatus = state.CodePending

	next, err := s.router.ReviewStep(router.StageCode)
	if err != nil {
		return s.fail(log, st, err)
	}
	switch {
	case next == state.StepEnd && !parsed.OK():
		// No checkpoint follows, so an empty file set cannot be reviewed away.
		st.End(state.OutcomeFailed, "no code generated: "+parsed.Reason)
	case next == state.StepEnd:
		st.End(state.OutcomeCompleted, "")
	default:
		st.NextStep = next
	}
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason, zap.Int("files", len(st.CodeGeneration.Files)))
}

// ReviseUserStories regenerates the stories with the pending feedback.
//
// The feedback is cleared before the call. An empty or unparseable revision
// ends the workflow as failed and keeps the previous stories.
func (s *Stages) ReviseUserStories(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepReviewUserStories
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID), zap.Bool("revision", true))

	feedback := st.Feedback
	st.Feedback = ""
	if strings.TrimSpace(feedback) == "" {
		return s.fail(log, st, fmt.Errorf("%w: no story feedback to apply", ErrPrerequisite))
	}

	raw, err := s.generate(ctx, st, step, llm.IntentReviseUserStories, feedback)
	if err != nil {
		return s.fail(log, st, err)
	}

	parsed := parser.UserStories(raw)
	if !parsed.OK() {
		return s.emptyRevision(log, st, parsed.Reason)
	}

	st.UserStories = parsed.Value
	st.UserStoryStatus = state.StoryPendingReview
	st.NextStep = state.StepReviewUserStories
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason, zap.Int("stories", len(st.UserStories)))
}

// ReviseDesignDocument regenerates the design document with the pending
// feedback. An empty revision ends the workflow as failed.
func (s *Stages) ReviseDesignDocument(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepReviewDesignDoc
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID), zap.Bool("revision", true))

	feedback := st.DesignDoc.Feedback
	st.DesignDoc.Feedback = ""
	if strings.TrimSpace(feedback) == "" {
		st.DesignDoc.ReviewStatus = state.DocPending
		return s.fail(log, st, fmt.Errorf("%w: no design feedback to apply", ErrPrerequisite))
	}

	raw, err := s.generate(ctx, st, step, llm.IntentReviseDesignDoc, feedback)
	if err != nil {
		st.DesignDoc.ReviewStatus = state.DocPending
		return s.fail(log, st, err)
	}

	parsed := parser.DesignDocument(raw)
	st.DesignDoc.ReviewStatus = state.DocPending
	if !parsed.OK() {
		return s.emptyRevision(log, st, parsed.Reason)
	}

	st.DesignDoc.FunctionalDoc = parsed.Value.FunctionalDoc
	st.DesignDoc.TechnicalDoc = parsed.Value.TechnicalDoc
	st.NextStep = state.StepReviewDesignDoc
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason)
}

// ReviseCode regenerates the file set with the pending feedback. An empty
// revision ends the workflow as failed and keeps the previous files.
func (s *Stages) ReviseCode(ctx context.Context, st *state.WorkflowState) Result {
	step := state.StepReviewCode
	log := s.logger.With(zap.String("step", string(step)), zap.String("workflow_id", st.ID), zap.Bool("revision", true))

	feedback := st.CodeGeneration.Feedback
	st.CodeGeneration.Feedback = ""
	st.CodeGeneration.ReviewStatus = state.CodePending
	if strings.TrimSpace(feedback) == "" {
		return s.fail(log, st, fmt.Errorf("%w: no code feedback to apply", ErrPrerequisite))
	}

	raw, err := s.generate(ctx, st, step, llm.IntentReviseCode, feedback)
	if err != nil {
		return s.fail(log, st, err)
	}

	parsed := parser.GeneratedCode(raw)
	if !parsed.OK() {
		return s.emptyRevision(log, st, parsed.Reason)
	}

	st.CodeGeneration.Files = parsed.Value
	st.NextStep = state.StepReviewCode
	st.Touch()

	return s.produced(log, parsed.Kind, parsed.Reason, zap.Int("files", len(st.CodeGeneration.Files)))
}

func (s *Stages) generate(ctx context.Context, st *state.WorkflowState, step state.Step, intent llm.Intent, feedback string) (string, error) {
	if s.gen == nil {
		return "", llm.Wrap(string(step), fmt.Errorf("no generator configured"))
	}

	req, err := s.prompts.Build(intent, string(step), st, feedback)
	if err != nil {
		return "", fmt.Errorf("build %s prompt: %w", intent, err)
	}

	raw, err := s.gen.Generate(ctx, req)
	if err != nil {
		return "", llm.Wrap(string(step), err)
	}

	s.logger.Debug("generator responded",
		zap.String("step", string(step)),
		zap.String("intent", string(intent)),
		zap.Int("bytes", len(raw)),
	)
	return raw, nil
}

func (s *Stages) fail(log *zap.Logger, st *state.WorkflowState, err error) Result {
	if isPrerequisite(err) {
		log.Warn("stage prerequisite not met", zap.Error(err))
	} else {
		log.Error("stage failed", zap.Error(err))
	}
	st.End(state.OutcomeFailed, err.Error())
	st.Touch()
	return Result{Kind: KindFailed, Reason: err.Error(), Err: err}
}

func (s *Stages) emptyRevision(log *zap.Logger, st *state.WorkflowState, reason string) Result {
	log.Error("revision produced nothing usable", zap.String("reason", reason))
	msg := "revision produced nothing usable: " + reason
	st.End(state.OutcomeFailed, msg)
	st.Touch()
	return Result{Kind: KindFailed, Reason: msg}
}

func (s *Stages) produced(log *zap.Logger, kind parser.Kind, reason string, fields ...zap.Field) Result {
	if kind != parser.KindOK {
		log.Error("generator response yielded no records",
			zap.String("parse", kind.String()),
			zap.String("reason", reason),
		)
		return Result{Kind: KindEmpty, Reason: reason}
	}
	log.Info("stage produced output", fields...)
	return Result{Kind: KindProduced}
}

func storiesOrEmpty(stories []state.UserStory) []state.UserStory {
	if stories == nil {
		return []state.UserStory{}
	}
	return stories
}
