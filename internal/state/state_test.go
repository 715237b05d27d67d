package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullState() *WorkflowState {
	s := New("Add login")
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s.CreatedAt = fixed
	s.UpdatedAt = fixed
	s.UserStories = []UserStory{
		{Text: "As a user, I want to log in", AcceptanceCriteria: []string{"Valid credentials accepted", "Invalid credentials rejected"}},
	}
	s.UserStoryStatus = StoryApproved
	s.FeedbackHistory = []string{"mention lockout"}
	s.Revisions = [][]UserStory{{{Text: "As a user, I log in", AcceptanceCriteria: []string{}}}}
	s.ReviewAttempts = 1
	s.RevisionRounds = 1
	s.NextStep = StepReviewCode
	s.DesignDoc = DesignDocument{
		FunctionalDoc:   "Login form",
		TechnicalDoc:    "JWT sessions",
		ReviewStatus:    DocApproved,
		FeedbackHistory: []string{"add sequence diagram"},
		Revisions:       []DesignSnapshot{{FunctionalDoc: "v1", TechnicalDoc: "v1"}},
	}
	s.CodeGeneration = GeneratedCodeSet{
		Files:           map[string]string{"main.go": "package main"},
		ReviewStatus:    CodeNeedsChanges,
		Feedback:        "add tests",
		FeedbackHistory: []string{},
		Revisions:       []map[string]string{},
	}
	return s
}

func TestNew(t *testing.T) {
	s := New("Add login")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Add login", s.Requirement)
	assert.Equal(t, StepGetUserStories, s.NextStep)
	assert.Equal(t, StoryPending, s.UserStoryStatus)
	assert.Equal(t, DocPending, s.DesignDoc.ReviewStatus)
	assert.Equal(t, CodePending, s.CodeGeneration.ReviewStatus)
	assert.Equal(t, OutcomeRunning, s.Outcome)
	assert.Empty(t, s.FeedbackHistory)
	assert.NotNil(t, s.CodeGeneration.Files)
	assert.False(t, s.Ended())
}

func TestWorkflowState_End(t *testing.T) {
	tests := []struct {
		name       string
		outcome    Outcome
		reason     string
		wantFailed bool
		wantError  string
	}{
		{name: "completed is not a failure", outcome: OutcomeCompleted, reason: "ignored", wantFailed: false, wantError: ""},
		{name: "failed keeps reason", outcome: OutcomeFailed, reason: "generator down", wantFailed: true, wantError: "generator down"},
		{name: "stalled is a failure", outcome: OutcomeStalled, reason: "no input", wantFailed: true, wantError: "no input"},
		{name: "exhausted is a failure", outcome: OutcomeExhausted, reason: "too many rounds", wantFailed: true, wantError: "too many rounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("r")
			s.End(tt.outcome, tt.reason)

			assert.True(t, s.Ended())
			assert.Equal(t, StepEnd, s.NextStep)
			assert.Equal(t, tt.wantFailed, s.Failed())
			assert.Equal(t, tt.wantError, s.Error)
		})
	}
}

func TestWorkflowState_EnterStage(t *testing.T) {
	s := New("r")
	s.ReviewAttempts = 1
	s.RevisionRounds = 2

	s.EnterStage()

	assert.Zero(t, s.ReviewAttempts)
	assert.Zero(t, s.RevisionRounds)
}

func TestCloneStories_IsDeep(t *testing.T) {
	orig := []UserStory{{Text: "a", AcceptanceCriteria: []string{"x"}}}
	clone := CloneStories(orig)

	orig[0].Text = "changed"
	orig[0].AcceptanceCriteria[0] = "changed"

	assert.Equal(t, "a", clone[0].Text)
	assert.Equal(t, []string{"x"}, clone[0].AcceptanceCriteria)
	assert.Equal(t, []UserStory{}, CloneStories(nil))
}

func TestUserStory_HasCriteria(t *testing.T) {
	assert.True(t, UserStory{Text: "a", AcceptanceCriteria: []string{"b"}}.HasCriteria())
	assert.False(t, UserStory{Text: "a"}.HasCriteria())
}

func TestMarshalUnmarshal_PreservesEveryField(t *testing.T) {
	want := fullState()

	data, err := Marshal(want)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshal_ShapeErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{name: "empty input", input: ""},
		{name: "array instead of object", input: `[{"requirement":"x"}]`},
		{name: "plain string", input: `"Add login"`},
		{name: "unknown field", input: `{"requirement":"x","surprise":true}`},
		{name: "wrong field type", input: `{"requirement":42}`},
		{name: "unknown step", input: `{"requirement":"x","next_step":"deploy"}`, wantField: "next_step"},
		{name: "unknown story status", input: `{"requirement":"x","user_story_status":"Maybe"}`, wantField: "user_story_status"},
		{name: "unknown outcome", input: `{"requirement":"x","outcome":"vanished"}`, wantField: "outcome"},
		{name: "negative attempts", input: `{"requirement":"x","review_attempts":-1}`, wantField: "review_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Unmarshal([]byte(tt.input))

			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, IsShapeError(err))

			var se *ShapeError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestUnmarshal_FillsDefaults(t *testing.T) {
	s, err := Unmarshal([]byte(`{"requirement":"Add login"}`))
	require.NoError(t, err)

	assert.Equal(t, StepGetUserStories, s.NextStep)
	assert.Equal(t, StoryPending, s.UserStoryStatus)
	assert.Equal(t, OutcomeRunning, s.Outcome)
	assert.NotNil(t, s.FeedbackHistory)
	assert.NotNil(t, s.CodeGeneration.Files)
}

func TestMarshal_NilState(t *testing.T) {
	_, err := Marshal(nil)
	assert.True(t, IsShapeError(err))
}
