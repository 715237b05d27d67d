package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/review"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/state"
)

const (
	loginStories = `{"user_stories":[{"user_story":"As a user, I want to log in","acceptance_criteria":["Valid credentials accepted","Invalid credentials rejected"]}]}`
	emailStories = `{"user_stories":[{"user_story":"As a user, I want to log in with email","acceptance_criteria":["Email required"]}]}`
	loginDesign  = "```json\n{\"functional_doc\":\"Login form\",\"technical_doc\":\"JWT sessions\"}\n```"
	loginCode    = `{"files":{"main.py":"print('login')"}}`
)

func newOrchestrator(t *testing.T, gen llm.Generator, cfg *config.Config, opts ...Option) (*Orchestrator, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	opts = append([]Option{Use(WithLogging(logger), WithTiming(logger))}, opts...)
	return New(gen, cfg, logger, opts...), logs
}

// scripted answers review checkpoints from a fixed list.
type scripted struct {
	inputs []Input
	stages []router.Stage
}

func (s *scripted) Review(_ context.Context, _ *state.WorkflowState, stg router.Stage) (Input, error) {
	s.stages = append(s.stages, stg)
	if len(s.inputs) == 0 {
		return Input{}, ErrPaused
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	return in, nil
}

func TestRunToCompletion_HappyPath(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories, loginDesign, loginCode}}
	o, logs := newOrchestrator(t, gen, nil)

	st, err := o.RunToCompletion(context.Background(), "Add login")

	require.NoError(t, err)
	assert.Equal(t, state.StepEnd, st.NextStep)
	assert.Equal(t, state.OutcomeCompleted, st.Outcome)
	assert.Equal(t, state.StoryApproved, st.UserStoryStatus)
	assert.Equal(t, state.DocApproved, st.DesignDoc.ReviewStatus)
	assert.Equal(t, state.CodeApproved, st.CodeGeneration.ReviewStatus)
	assert.Equal(t, map[string]string{"main.py": "print('login')"}, st.CodeGeneration.Files)
	assert.Equal(t, 3, gen.Calls())

	assert.Equal(t, 3, logs.FilterMessage("step started").Len())
	assert.Equal(t, 3, logs.FilterMessage("step timing").Len())
}

func TestRunToCompletion_OneShotCode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stages.CodeRegeneration = false
	gen := &llm.MockGenerator{Responses: []string{loginStories, loginDesign, loginCode}}
	o, _ := newOrchestrator(t, gen, cfg)

	st, err := o.RunToCompletion(context.Background(), "Add login")

	require.NoError(t, err)
	assert.Equal(t, state.OutcomeCompleted, st.Outcome)
	assert.Equal(t, state.CodePending, st.CodeGeneration.ReviewStatus)
	assert.False(t, o.Router().CodeReview())
}

func TestRunInitial_EmptyRequirement(t *testing.T) {
	gen := &llm.MockGenerator{}
	o, _ := newOrchestrator(t, gen, nil)

	st, err := o.RunInitial(context.Background(), "  ")

	require.NoError(t, err)
	assert.True(t, st.Failed())
	assert.Equal(t, state.OutcomeFailed, st.Outcome)
	assert.Equal(t, "requirement is empty", st.Error)
	assert.Zero(t, gen.Calls())
}

func TestRunInitial_GeneratorError(t *testing.T) {
	gen := &llm.MockGenerator{Err: errors.New("connection refused")}
	o, _ := newOrchestrator(t, gen, nil)

	st, err := o.RunInitial(context.Background(), "Add login")

	require.NoError(t, err)
	assert.Equal(t, state.OutcomeFailed, st.Outcome)
	assert.Contains(t, st.Error, "connection refused")
	assert.Empty(t, st.UserStories)
}

func TestRunReview_StoryFeedbackExtendsRequirement(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories, emailStories}}
	o, _ := newOrchestrator(t, gen, nil)

	st, err := o.RunInitial(context.Background(), "Add login")
	require.NoError(t, err)

	st, tr, err := o.RunReview(context.Background(), st, Input{Feedback: "use email"})
	require.NoError(t, err)

	assert.Equal(t, review.DecisionRevise, tr.Decision)
	assert.Equal(t, "Add login. use email", st.Requirement)
	assert.Equal(t, []string{"use email"}, st.FeedbackHistory)
	assert.Equal(t, "As a user, I want to log in with email", st.UserStories[0].Text)
	require.Len(t, gen.Requests, 2)
	assert.Contains(t, gen.RecordedPrompts()[1], "use email")
}

func TestRunReview_ApprovalDoesNotExtendRequirement(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories}}
	o, _ := newOrchestrator(t, gen, nil)
	st, err := o.RunInitial(context.Background(), "Add login")
	require.NoError(t, err)

	st, tr, err := o.RunReview(context.Background(), st, Input{Approve: true, Feedback: "ignored"})

	require.NoError(t, err)
	assert.Equal(t, review.DecisionApprove, tr.Decision)
	assert.Equal(t, "Add login", st.Requirement)
	assert.Equal(t, state.StepGenerateDesignDoc, st.NextStep)
}

func TestRunReview_ApprovalWinsOverFeedback(t *testing.T) {
	ctx := context.Background()
	approve := Input{Approve: true}
	both := Input{Approve: true, Feedback: "add 2FA"}

	tests := []struct {
		name     string
		before   []Input
		wantNext state.Step
	}{
		{"stories", nil, state.StepGenerateDesignDoc},
		{"design", []Input{approve}, state.StepGenerateCode},
		{"code", []Input{approve, approve}, state.StepEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &llm.MockGenerator{Responses: []string{loginStories, loginDesign, loginCode}}
			o, _ := newOrchestrator(t, gen, nil)
			st, err := o.RunInitial(ctx, "Add login")
			require.NoError(t, err)
			for _, in := range tt.before {
				st, _, err = o.RunReview(ctx, st, in)
				require.NoError(t, err)
				st, _, err = o.Advance(ctx, st)
				require.NoError(t, err)
			}
			calls := gen.Calls()

			st, tr, err := o.RunReview(ctx, st, both)

			require.NoError(t, err)
			assert.Equal(t, review.DecisionApprove, tr.Decision)
			assert.Equal(t, tt.wantNext, st.NextStep)
			assert.Equal(t, calls, gen.Calls())
			assert.Zero(t, st.RevisionRounds)
			assert.Empty(t, st.Feedback)
			assert.Empty(t, st.DesignDoc.Feedback)
			assert.Empty(t, st.CodeGeneration.Feedback)
			assert.Equal(t, "Add login", st.Requirement)
		})
	}
}

func TestRunReview_Errors(t *testing.T) {
	o, _ := newOrchestrator(t, &llm.MockGenerator{}, nil)
	ctx := context.Background()

	_, _, err := o.RunReview(ctx, nil, Input{Approve: true})
	assert.ErrorIs(t, err, ErrNilState)

	fresh := state.New("Add login")
	_, _, err = o.RunReview(ctx, fresh, Input{Approve: true})
	assert.ErrorIs(t, err, ErrNotAtReview)

	bad := state.New("Add login")
	bad.NextStep = "review_everything"
	_, _, err = o.RunReview(ctx, bad, Input{Approve: true})
	assert.True(t, state.IsShapeError(err))

	ended := state.New("Add login")
	ended.End(state.OutcomeCompleted, "")
	_, _, err = o.RunReview(ctx, ended, Input{Approve: true})
	assert.ErrorIs(t, err, ErrWorkflowEnded)
}

func TestAdvance(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginDesign}}
	o, _ := newOrchestrator(t, gen, nil)
	st := state.New("Add login")
	st.UserStories = []state.UserStory{{Text: "As a user, I want to log in", AcceptanceCriteria: []string{}}}
	st.UserStoryStatus = state.StoryApproved
	st.NextStep = state.StepGenerateDesignDoc

	st, res, err := o.Advance(context.Background(), st)

	require.NoError(t, err)
	assert.Equal(t, stage.KindProduced, res.Kind)
	assert.Equal(t, "Login form", st.DesignDoc.FunctionalDoc)
	assert.Equal(t, state.StepReviewDesignDoc, st.NextStep)

	_, _, err = o.Advance(context.Background(), st)
	assert.ErrorIs(t, err, ErrNotAtGeneration)
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown name", func(t *testing.T) {
		o, _ := newOrchestrator(t, &llm.MockGenerator{}, nil)
		for _, name := range []string{"", "end", "deploy"} {
			_, err := o.Trigger(ctx, state.New("Add login"), name)
			assert.ErrorIs(t, err, ErrUnknownTrigger, name)
		}
	})

	t.Run("generation step", func(t *testing.T) {
		gen := &llm.MockGenerator{Responses: []string{loginStories}}
		o, _ := newOrchestrator(t, gen, nil)

		st, err := o.Trigger(ctx, state.New("Add login"), "get_user_stories")

		require.NoError(t, err)
		assert.Equal(t, state.StepReviewUserStories, st.NextStep)
	})

	t.Run("design without stories fails the run", func(t *testing.T) {
		gen := &llm.MockGenerator{}
		o, _ := newOrchestrator(t, gen, nil)

		st := state.New("Add login")
		st.NextStep = state.StepGenerateDesignDoc

		st, err := o.Trigger(ctx, st, "generate_design_doc")

		require.NoError(t, err)
		assert.Equal(t, state.OutcomeFailed, st.Outcome)
		assert.Zero(t, gen.Calls())
	})

	t.Run("generation out of order", func(t *testing.T) {
		gen := &llm.MockGenerator{Responses: []string{loginStories, loginDesign}}
		o, _ := newOrchestrator(t, gen, nil)
		st, err := o.RunInitial(ctx, "Add login")
		require.NoError(t, err)

		for _, name := range []string{"generate_design_doc", "generate_code"} {
			_, err = o.Trigger(ctx, st, name)
			assert.ErrorIs(t, err, ErrNotAtGeneration, name)
		}
		assert.Equal(t, state.StoryPendingReview, st.UserStoryStatus)
		assert.Equal(t, state.StepReviewUserStories, st.NextStep)
		assert.True(t, st.DesignDoc.IsEmpty())

		st, _, err = o.RunReview(ctx, st, Input{Approve: true})
		require.NoError(t, err)
		st, err = o.Trigger(ctx, st, "generate_design_doc")
		require.NoError(t, err)
		require.Equal(t, state.StepReviewDesignDoc, st.NextStep)

		_, err = o.Trigger(ctx, st, "get_user_stories")
		assert.ErrorIs(t, err, ErrNotAtGeneration)
		assert.Equal(t, state.StepReviewDesignDoc, st.NextStep)
		assert.Equal(t, state.StoryApproved, st.UserStoryStatus)
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("review step counts an attempt", func(t *testing.T) {
		gen := &llm.MockGenerator{Responses: []string{loginStories}}
		o, _ := newOrchestrator(t, gen, nil)
		st, err := o.RunInitial(ctx, "Add login")
		require.NoError(t, err)

		st, err = o.Trigger(ctx, st, "review_user_stories")
		require.NoError(t, err)
		assert.Equal(t, 1, st.ReviewAttempts)

		_, err = o.Trigger(ctx, st, "review_code")
		assert.ErrorIs(t, err, ErrNotAtReview)
	})
}

func TestDrive_PauseAndResume(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories, loginDesign, loginCode}}
	var checkpoints int
	o, _ := newOrchestrator(t, gen, nil, WithCheckpoint(func(context.Context, *state.WorkflowState) error {
		checkpoints++
		return nil
	}))

	st, err := o.RunInitial(context.Background(), "Add login")
	require.NoError(t, err)

	reviewer := &scripted{inputs: []Input{{Approve: true}}}
	st, err = o.Drive(context.Background(), st, reviewer)

	assert.ErrorIs(t, err, ErrPaused)
	assert.Equal(t, state.StepReviewDesignDoc, st.NextStep)
	assert.Equal(t, []router.Stage{router.StageUserStories, router.StageDesignDoc}, reviewer.stages)
	assert.Equal(t, 2, checkpoints)

	st, err = o.Drive(context.Background(), st, &scripted{inputs: []Input{{Approve: true}, {Approve: true}}})
	require.NoError(t, err)
	assert.Equal(t, state.OutcomeCompleted, st.Outcome)
}

func TestDrive_TwoFeedbackRoundsExhaust(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories, emailStories, emailStories}}
	o, _ := newOrchestrator(t, gen, nil)
	st, err := o.RunInitial(context.Background(), "Add login")
	require.NoError(t, err)

	st, err = o.Drive(context.Background(), st, &scripted{inputs: []Input{
		{Feedback: "use email"},
		{Feedback: "add password reset"},
	}})

	require.NoError(t, err)
	assert.Equal(t, state.OutcomeExhausted, st.Outcome)
	assert.Equal(t, []string{"use email", "add password reset"}, st.FeedbackHistory)
	assert.Len(t, st.Revisions, 2)
}

func TestDrive_SilentReviewerStalls(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories}}
	o, _ := newOrchestrator(t, gen, nil)
	st, err := o.RunInitial(context.Background(), "Add login")
	require.NoError(t, err)

	silent := ReviewerFunc(func(context.Context, *state.WorkflowState, router.Stage) (Input, error) {
		return Input{}, nil
	})
	st, err = o.Drive(context.Background(), st, silent)

	require.NoError(t, err)
	assert.Equal(t, state.OutcomeStalled, st.Outcome)
	assert.Equal(t, 2, st.ReviewAttempts)
}

func TestDrive_CanceledContext(t *testing.T) {
	o, _ := newOrchestrator(t, &llm.MockGenerator{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := o.Drive(ctx, state.New("Add login"), AutoApprove)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, state.StepGetUserStories, st.NextStep)
}

func TestDrive_CheckpointError(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{loginStories}}
	o, _ := newOrchestrator(t, gen, nil, WithCheckpoint(func(context.Context, *state.WorkflowState) error {
		return errors.New("disk full")
	}))

	_, err := o.Drive(context.Background(), state.New("Add login"), AutoApprove)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMiddleware_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(step state.Step, next stage.Func) stage.Func {
			return func(ctx context.Context, st *state.WorkflowState) stage.Result {
				calls = append(calls, name+":"+string(step))
				return next(ctx, st)
			}
		}
	}
	gen := &llm.MockGenerator{Responses: []string{loginStories}}
	o := New(gen, nil, nil, Use(mw("outer"), mw("inner")))

	_, err := o.RunInitial(context.Background(), "Add login")

	require.NoError(t, err)
	assert.Equal(t, []string{"outer:get_user_stories", "inner:get_user_stories"}, calls)
}
