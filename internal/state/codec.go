package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ShapeError reports a value that cannot be accepted as a [WorkflowState].
//
// It is returned at the boundary (decoding, store loads, orchestrator entry)
// instead of attempting to coerce the value.
type ShapeError struct {
	// Field is the offending field, empty when the whole value is wrong.
	Field string
	// Reason describes what was expected.
	Reason string
	// Err is the underlying decode error, if any.
	Err error
}

func (e *ShapeError) Error() string {
	msg := "invalid workflow state"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

// IsShapeError reports whether err is or wraps a [ShapeError].
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// Marshal encodes the state as indented JSON.
func Marshal(s *WorkflowState) ([]byte, error) {
	if s == nil {
		return nil, &ShapeError{Reason: "state is nil"}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow state: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON record into a [WorkflowState].
//
// The record must be a JSON object using only known fields, and every enum
// field must hold a known value. Missing collections are restored as empty.
func Unmarshal(data []byte) (*WorkflowState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ShapeError{Reason: "expected a JSON object"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var s WorkflowState
	if err := dec.Decode(&s); err != nil {
		return nil, &ShapeError{Err: err}
	}

	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks enum fields and fills missing collections and statuses with
// their initial values.
func Validate(s *WorkflowState) error {
	if s == nil {
		return &ShapeError{Reason: "state is nil"}
	}

	if s.NextStep == "" {
		s.NextStep = StepGetUserStories
	}
	if !s.NextStep.IsValid() {
		return &ShapeError{Field: "next_step", Reason: fmt.Sprintf("unknown step %q", s.NextStep)}
	}

	if s.UserStoryStatus == "" {
		s.UserStoryStatus = StoryPending
	}
	if !s.UserStoryStatus.IsValid() {
		return &ShapeError{Field: "user_story_status", Reason: fmt.Sprintf("unknown status %q", s.UserStoryStatus)}
	}

	if s.DesignDoc.ReviewStatus == "" {
		s.DesignDoc.ReviewStatus = DocPending
	}
	if !s.DesignDoc.ReviewStatus.IsValid() {
		return &ShapeError{Field: "design_doc.review_status", Reason: fmt.Sprintf("unknown status %q", s.DesignDoc.ReviewStatus)}
	}

	if s.CodeGeneration.ReviewStatus == "" {
		s.CodeGeneration.ReviewStatus = CodePending
	}
	if !s.CodeGeneration.ReviewStatus.IsValid() {
		return &ShapeError{Field: "code_generation.code_review_status", Reason: fmt.Sprintf("unknown status %q", s.CodeGeneration.ReviewStatus)}
	}

	if s.Outcome == "" {
		s.Outcome = OutcomeRunning
	}
	if !s.Outcome.IsValid() {
		return &ShapeError{Field: "outcome", Reason: fmt.Sprintf("unknown outcome %q", s.Outcome)}
	}

	if s.ReviewAttempts < 0 {
		return &ShapeError{Field: "review_attempts", Reason: "must not be negative"}
	}
	if s.RevisionRounds < 0 {
		return &ShapeError{Field: "revision_rounds", Reason: "must not be negative"}
	}

	if s.FeedbackHistory == nil {
		s.FeedbackHistory = []string{}
	}
	if s.Revisions == nil {
		s.Revisions = [][]UserStory{}
	}
	if s.DesignDoc.FeedbackHistory == nil {
		s.DesignDoc.FeedbackHistory = []string{}
	}
	if s.DesignDoc.Revisions == nil {
		s.DesignDoc.Revisions = []DesignSnapshot{}
	}
	if s.CodeGeneration.Files == nil {
		s.CodeGeneration.Files = map[string]string{}
	}
	if s.CodeGeneration.FeedbackHistory == nil {
		s.CodeGeneration.FeedbackHistory = []string{}
	}
	if s.CodeGeneration.Revisions == nil {
		s.CodeGeneration.Revisions = []map[string]string{}
	}
	return nil
}
