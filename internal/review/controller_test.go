package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"reqflow/internal/llm"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/state"
)

const (
	storiesV2 = `{"user_stories":[{"user_story":"As a user, I want to log in with email","acceptance_criteria":["Email required"]}]}`
	storiesV3 = `{"user_stories":[{"user_story":"As a user, I want to log in with SSO","acceptance_criteria":["SSO redirect"]}]}`
)

func newController(t *testing.T, gen llm.Generator, cfg Config, opts ...router.Option) (*Controller, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	r := router.NewRouter(opts...)
	stages := stage.New(gen, nil, r, logger)
	return NewController(r, stages.Revisers(), cfg, logger), logs
}

func storiesAtReview() *state.WorkflowState {
	st := state.New("Add login")
	st.UserStories = []state.UserStory{{Text: "As a user, I want to log in", AcceptanceCriteria: []string{"Valid credentials accepted"}}}
	st.UserStoryStatus = state.StoryPendingReview
	st.NextStep = state.StepReviewUserStories
	return st
}

func designAtReview() *state.WorkflowState {
	st := storiesAtReview()
	st.UserStoryStatus = state.StoryApproved
	st.DesignDoc.FunctionalDoc = "Login form"
	st.DesignDoc.TechnicalDoc = "JWT sessions"
	st.NextStep = state.StepReviewDesignDoc
	return st
}

func codeAtReview() *state.WorkflowState {
	st := designAtReview()
	st.DesignDoc.ReviewStatus = state.DocApproved
	st.CodeGeneration.Files = map[string]string{"main.py": "print('login')"}
	st.NextStep = state.StepReviewCode
	return st
}

func TestNewController_Defaults(t *testing.T) {
	c := NewController(nil, nil, Config{}, nil)
	assert.Equal(t, DefaultConfig(), c.Config())
}

func TestReview_ApproveAdvances(t *testing.T) {
	tests := []struct {
		name     string
		st       func() *state.WorkflowState
		wantNext state.Step
		wantOut  state.Outcome
	}{
		{"stories", storiesAtReview, state.StepGenerateDesignDoc, state.OutcomeRunning},
		{"design", designAtReview, state.StepGenerateCode, state.OutcomeRunning},
		{"code completes", codeAtReview, state.StepEnd, state.OutcomeCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &llm.MockGenerator{}
			c, _ := newController(t, gen, DefaultConfig())
			st := tt.st()

			require.NoError(t, c.Apply(st, true, ""))
			tr, err := c.Review(context.Background(), st)

			require.NoError(t, err)
			assert.Equal(t, DecisionApprove, tr.Decision)
			assert.Equal(t, PhaseApproved, tr.To)
			assert.Equal(t, tt.wantNext, st.NextStep)
			assert.Equal(t, tt.wantOut, st.Outcome)
			assert.Zero(t, gen.Calls())
		})
	}
}

func TestReview_ApprovalWinsOverFeedback(t *testing.T) {
	tests := []struct {
		name     string
		st       func() *state.WorkflowState
		wantNext state.Step
		approved func(st *state.WorkflowState) bool
		pending  func(st *state.WorkflowState) string
		history  func(st *state.WorkflowState) []string
	}{
		{
			name:     "stories",
			st:       storiesAtReview,
			wantNext: state.StepGenerateDesignDoc,
			approved: func(st *state.WorkflowState) bool { return st.UserStoryStatus == state.StoryApproved },
			pending:  func(st *state.WorkflowState) string { return st.Feedback },
			history:  func(st *state.WorkflowState) []string { return st.FeedbackHistory },
		},
		{
			name:     "design",
			st:       designAtReview,
			wantNext: state.StepGenerateCode,
			approved: func(st *state.WorkflowState) bool { return st.DesignDoc.ReviewStatus == state.DocApproved },
			pending:  func(st *state.WorkflowState) string { return st.DesignDoc.Feedback },
			history:  func(st *state.WorkflowState) []string { return st.DesignDoc.FeedbackHistory },
		},
		{
			name:     "code",
			st:       codeAtReview,
			wantNext: state.StepEnd,
			approved: func(st *state.WorkflowState) bool { return st.CodeGeneration.ReviewStatus == state.CodeApproved },
			pending:  func(st *state.WorkflowState) string { return st.CodeGeneration.Feedback },
			history:  func(st *state.WorkflowState) []string { return st.CodeGeneration.FeedbackHistory },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &llm.MockGenerator{Responses: []string{storiesV2}}
			c, _ := newController(t, gen, DefaultConfig())
			st := tt.st()

			require.NoError(t, c.Apply(st, true, "also add logout"))
			assert.True(t, tt.approved(st))
			assert.Empty(t, tt.pending(st))

			tr, err := c.Review(context.Background(), st)

			require.NoError(t, err)
			assert.Equal(t, DecisionApprove, tr.Decision)
			assert.Equal(t, tt.wantNext, st.NextStep)
			assert.Empty(t, tt.history(st))
			assert.Zero(t, st.RevisionRounds)
			assert.Zero(t, gen.Calls())
		})
	}
}

func TestApply_ApprovalClearsStaleFeedback(t *testing.T) {
	c, _ := newController(t, &llm.MockGenerator{}, DefaultConfig())
	st := designAtReview()
	require.NoError(t, c.Apply(st, false, "split the auth module"))
	require.Equal(t, state.DocFeedback, st.DesignDoc.ReviewStatus)

	require.NoError(t, c.Apply(st, true, ""))

	assert.Equal(t, state.DocApproved, st.DesignDoc.ReviewStatus)
	assert.Empty(t, st.DesignDoc.Feedback)
}

func TestReview_NoInputStallsAtMaxAttempts(t *testing.T) {
	for _, limit := range []int{1, 2, 3} {
		c, logs := newController(t, &llm.MockGenerator{}, Config{MaxAttempts: limit, MaxRevisions: 2})
		st := storiesAtReview()

		for i := 1; i < limit; i++ {
			tr, err := c.Review(context.Background(), st)
			require.NoError(t, err)
			assert.Equal(t, DecisionWait, tr.Decision)
			assert.Equal(t, PhasePendingReview, tr.To)
			assert.Equal(t, i, st.ReviewAttempts)
			assert.False(t, st.Ended())
		}

		tr, err := c.Review(context.Background(), st)
		require.NoError(t, err)
		assert.True(t, tr.Ended())
		assert.Equal(t, limit, st.ReviewAttempts)
		assert.Equal(t, state.OutcomeStalled, st.Outcome)
		assert.Equal(t, 1, logs.FilterMessage("review stalled").Len())

		_, err = c.Review(context.Background(), st)
		assert.ErrorIs(t, err, router.ErrWorkflowEnded)
	}
}

func TestReview_TwoFeedbackRoundsExhaust(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{storiesV2, storiesV3}}
	c, _ := newController(t, gen, DefaultConfig())
	st := storiesAtReview()
	original := state.CloneStories(st.UserStories)

	require.NoError(t, c.Apply(st, false, "use email"))
	tr, err := c.Review(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, DecisionRevise, tr.Decision)
	assert.Equal(t, PhasePendingReview, tr.To)
	assert.Equal(t, stage.KindProduced, tr.Revision.Kind)
	assert.Equal(t, "As a user, I want to log in with email", st.UserStories[0].Text)
	assert.Empty(t, st.Feedback)
	assert.Equal(t, state.StepReviewUserStories, st.NextStep)

	require.NoError(t, c.Apply(st, false, "use SSO"))
	tr, err = c.Review(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, tr.Ended())
	assert.Equal(t, state.OutcomeExhausted, st.Outcome)

	assert.Equal(t, []string{"use email", "use SSO"}, st.FeedbackHistory)
	require.Len(t, st.Revisions, 2)
	assert.Equal(t, original, st.Revisions[0])
	assert.Equal(t, "As a user, I want to log in with email", st.Revisions[1][0].Text)
	assert.Equal(t, "As a user, I want to log in with SSO", st.UserStories[0].Text)
	assert.Equal(t, 2, gen.Calls())
}

func TestReview_FeedbackDoesNotCountAsAttempt(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{storiesV2}}
	c, _ := newController(t, gen, Config{MaxAttempts: 1, MaxRevisions: 3})
	st := storiesAtReview()

	require.NoError(t, c.Apply(st, false, "use email"))
	_, err := c.Review(context.Background(), st)

	require.NoError(t, err)
	assert.Zero(t, st.ReviewAttempts)
	assert.Equal(t, 1, st.RevisionRounds)
	assert.False(t, st.Ended())
}

func TestReview_EmptyRevisionEnds(t *testing.T) {
	tests := []struct {
		name  string
		st    func() *state.WorkflowState
		check func(t *testing.T, st *state.WorkflowState)
	}{
		{
			name: "stories",
			st:   storiesAtReview,
			check: func(t *testing.T, st *state.WorkflowState) {
				assert.Equal(t, "As a user, I want to log in", st.UserStories[0].Text)
				assert.Len(t, st.Revisions, 1)
			},
		},
		{
			name: "design",
			st:   designAtReview,
			check: func(t *testing.T, st *state.WorkflowState) {
				assert.Equal(t, "Login form", st.DesignDoc.FunctionalDoc)
				assert.Equal(t, []string{"more detail"}, st.DesignDoc.FeedbackHistory)
				require.Len(t, st.DesignDoc.Revisions, 1)
				assert.Equal(t, "JWT sessions", st.DesignDoc.Revisions[0].TechnicalDoc)
			},
		},
		{
			name: "code",
			st:   codeAtReview,
			check: func(t *testing.T, st *state.WorkflowState) {
				assert.Equal(t, map[string]string{"main.py": "print('login')"}, st.CodeGeneration.Files)
				assert.Equal(t, []string{"more detail"}, st.CodeGeneration.FeedbackHistory)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &llm.MockGenerator{Responses: []string{`{}`}}
			c, _ := newController(t, gen, DefaultConfig())
			st := tt.st()

			require.NoError(t, c.Apply(st, false, "more detail"))
			tr, err := c.Review(context.Background(), st)

			require.NoError(t, err)
			assert.True(t, tr.Ended())
			assert.Equal(t, stage.KindFailed, tr.Revision.Kind)
			assert.Equal(t, state.OutcomeFailed, st.Outcome)
			tt.check(t, st)
		})
	}
}

func TestReview_GeneratorErrorEnds(t *testing.T) {
	gen := &llm.MockGenerator{Err: errors.New("rate limited")}
	c, _ := newController(t, gen, DefaultConfig())
	st := designAtReview()

	require.NoError(t, c.Apply(st, false, "more detail"))
	tr, err := c.Review(context.Background(), st)

	require.NoError(t, err)
	assert.True(t, tr.Ended())
	assert.True(t, llm.IsGeneratorError(tr.Revision.Err))
	assert.Contains(t, st.Error, "rate limited")
}

func TestApply_SetsStageStatus(t *testing.T) {
	c, _ := newController(t, &llm.MockGenerator{}, DefaultConfig())

	design := designAtReview()
	require.NoError(t, c.Apply(design, false, "  split the API  "))
	assert.Equal(t, state.DocFeedback, design.DesignDoc.ReviewStatus)
	assert.Equal(t, "split the API", design.DesignDoc.Feedback)

	code := codeAtReview()
	require.NoError(t, c.Apply(code, false, "add tests"))
	assert.Equal(t, state.CodeNeedsChanges, code.CodeGeneration.ReviewStatus)

	stories := storiesAtReview()
	require.NoError(t, c.Apply(stories, false, "   "))
	assert.Empty(t, stories.Feedback)
}

func TestReview_CodeRevision(t *testing.T) {
	gen := &llm.MockGenerator{Responses: []string{`{"files":{"main.py":"print('v2')","test_main.py":"assert True"}}`}}
	c, _ := newController(t, gen, DefaultConfig())
	st := codeAtReview()

	require.NoError(t, c.Apply(st, false, "add tests"))
	tr, err := c.Review(context.Background(), st)

	require.NoError(t, err)
	assert.Equal(t, PhasePendingReview, tr.To)
	assert.Len(t, st.CodeGeneration.Files, 2)
	assert.Equal(t, state.CodePending, st.CodeGeneration.ReviewStatus)
	assert.Equal(t, []map[string]string{{"main.py": "print('login')"}}, st.CodeGeneration.Revisions)
	assert.Equal(t, state.StepReviewCode, st.NextStep)
}

func TestReview_Errors(t *testing.T) {
	c, _ := newController(t, &llm.MockGenerator{}, DefaultConfig())

	_, err := c.Review(context.Background(), nil)
	assert.True(t, state.IsShapeError(err))

	st := state.New("Add login")
	_, err = c.Review(context.Background(), st)
	assert.ErrorIs(t, err, ErrNotAtReview)

	st.End(state.OutcomeFailed, "boom")
	assert.ErrorIs(t, c.Apply(st, true, ""), router.ErrWorkflowEnded)
}

func TestReview_MissingReviser(t *testing.T) {
	c := NewController(router.NewRouter(), map[router.Stage]stage.Func{}, DefaultConfig(), nil)
	st := storiesAtReview()

	require.NoError(t, c.Apply(st, false, "use email"))
	tr, err := c.Review(context.Background(), st)

	require.NoError(t, err)
	assert.True(t, tr.Ended())
	assert.Equal(t, state.OutcomeFailed, st.Outcome)
	assert.Empty(t, st.FeedbackHistory)
}
