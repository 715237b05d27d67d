// Package state defines the domain model threaded through the requirement-to-code
// pipeline.
//
// A [WorkflowState] is created once per run, seeded with only a requirement, and
// filled in progressively by the stage generators and the review controller.
// Feedback histories and revision snapshots are append-only audit trails.
//
// Key types:
//   - [WorkflowState] is the aggregate root persisted between interactions
//   - [UserStory], [DesignDocument] and [GeneratedCodeSet] are the stage outputs
//   - [Step] names pipeline steps, [Outcome] records how a run ended
package state

import (
	"time"

	"github.com/google/uuid"
)

// UserStory is a single story with its acceptance criteria.
type UserStory struct {
	// Text is the story itself. Never empty after successful parsing.
	Text string `json:"user_story" yaml:"user_story"`

	// AcceptanceCriteria is the ordered criteria list. May be empty.
	AcceptanceCriteria []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`
}

// HasCriteria reports whether the story carries any acceptance criteria.
// Renderers flag stories without criteria; they are still valid.
func (s UserStory) HasCriteria() bool {
	return len(s.AcceptanceCriteria) > 0
}

// DesignSnapshot is the design document content at the time feedback was given.
type DesignSnapshot struct {
	FunctionalDoc string `json:"functional_doc" yaml:"functional_doc"`
	TechnicalDoc  string `json:"technical_doc" yaml:"technical_doc"`
}

// DesignDocument is the combined functional and technical design.
//
// Feedback is non-empty only while ReviewStatus is [DocFeedback].
type DesignDocument struct {
	FunctionalDoc   string           `json:"functional_doc" yaml:"functional_doc"`
	TechnicalDoc    string           `json:"technical_doc" yaml:"technical_doc"`
	ReviewStatus    DocStatus        `json:"review_status" yaml:"review_status"`
	Feedback        string           `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	FeedbackHistory []string         `json:"feedback_history" yaml:"feedback_history"`
	Revisions       []DesignSnapshot `json:"revisions" yaml:"revisions"`
}

// IsEmpty reports whether neither document section has content.
func (d DesignDocument) IsEmpty() bool {
	return d.FunctionalDoc == "" && d.TechnicalDoc == ""
}

// Combined returns the functional and technical documents joined by a blank line.
func (d DesignDocument) Combined() string {
	return d.FunctionalDoc + "\n\n" + d.TechnicalDoc
}

// GeneratedCodeSet holds generated source files keyed by filename.
type GeneratedCodeSet struct {
	Files           map[string]string   `json:"generated_code" yaml:"generated_code"`
	ReviewStatus    CodeStatus          `json:"code_review_status" yaml:"code_review_status"`
	Feedback        string              `json:"code_feedback,omitempty" yaml:"code_feedback,omitempty"`
	FeedbackHistory []string            `json:"feedback_history" yaml:"feedback_history"`
	Revisions       []map[string]string `json:"revisions" yaml:"revisions"`
}

// WorkflowState is the aggregate root of one end-to-end pipeline run.
//
// One instance is mutated in place by a single caller at a time. Embedders that
// need concurrent access must serialize it per instance.
type WorkflowState struct {
	ID          string `json:"id" yaml:"id"`
	Requirement string `json:"requirement" yaml:"requirement"`

	UserStories     []UserStory `json:"user_stories" yaml:"user_stories"`
	UserStoryStatus StoryStatus `json:"user_story_status" yaml:"user_story_status"`

	// Feedback is the pending story feedback, cleared once a revision consumes it.
	Feedback        string        `json:"feedback" yaml:"feedback"`
	FeedbackHistory []string      `json:"feedback_history" yaml:"feedback_history"`
	Revisions       [][]UserStory `json:"revisions" yaml:"revisions"`

	// ReviewAttempts counts review cycles without reviewer input in the current stage.
	ReviewAttempts int `json:"review_attempts" yaml:"review_attempts"`
	// RevisionRounds counts feedback rounds in the current stage.
	RevisionRounds int `json:"revision_rounds" yaml:"revision_rounds"`

	NextStep Step `json:"next_step" yaml:"next_step"`

	DesignDoc      DesignDocument   `json:"design_doc" yaml:"design_doc"`
	CodeGeneration GeneratedCodeSet `json:"code_generation" yaml:"code_generation"`

	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// New creates a fresh state seeded with the requirement and a new ID.
func New(requirement string) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		ID:              uuid.New().String(),
		Requirement:     requirement,
		UserStoryStatus: StoryPending,
		FeedbackHistory: []string{},
		Revisions:       [][]UserStory{},
		NextStep:        StepGetUserStories,
		DesignDoc: DesignDocument{
			ReviewStatus:    DocPending,
			FeedbackHistory: []string{},
			Revisions:       []DesignSnapshot{},
		},
		CodeGeneration: GeneratedCodeSet{
			Files:           map[string]string{},
			ReviewStatus:    CodePending,
			FeedbackHistory: []string{},
			Revisions:       []map[string]string{},
		},
		Outcome:   OutcomeRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Ended reports whether the workflow has reached the end step.
func (s *WorkflowState) Ended() bool {
	return s.NextStep == StepEnd
}

// Failed reports whether the workflow ended for any reason other than completion.
func (s *WorkflowState) Failed() bool {
	return s.Ended() && s.Outcome != OutcomeCompleted
}

// End moves the workflow to the end step with the given outcome.
// The reason is kept in Error for every outcome except completion.
func (s *WorkflowState) End(outcome Outcome, reason string) {
	s.NextStep = StepEnd
	s.Outcome = outcome
	if outcome != OutcomeCompleted {
		s.Error = reason
	}
}

// EnterStage resets the per-stage counters. It is called only when a stage is
// first entered, never between revisions of the same stage.
func (s *WorkflowState) EnterStage() {
	s.ReviewAttempts = 0
	s.RevisionRounds = 0
}

// Touch updates the modification timestamp.
func (s *WorkflowState) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// StoryTexts returns the story texts in order.
func (s *WorkflowState) StoryTexts() []string {
	texts := make([]string, len(s.UserStories))
	for i, story := range s.UserStories {
		texts[i] = story.Text
	}
	return texts
}

// CloneStories returns a deep copy of a story set, used for revision snapshots.
func CloneStories(stories []UserStory) []UserStory {
	if stories == nil {
		return []UserStory{}
	}
	out := make([]UserStory, len(stories))
	for i, s := range stories {
		criteria := make([]string, len(s.AcceptanceCriteria))
		copy(criteria, s.AcceptanceCriteria)
		out[i] = UserStory{Text: s.Text, AcceptanceCriteria: criteria}
	}
	return out
}

// CloneFiles returns a copy of a filename to content map.
func CloneFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}
