// Package llm defines the generator capability the pipeline stages call out to.
//
// A [Generator] turns a list of chat messages into response text. The stages
// never know which backend answers: the Claude CLI backend lives in the claude
// package, and [OpenAIGenerator] talks to any OpenAI-compatible endpoint through
// langchaingo.
//
// Every backend failure surfaces as a [*GeneratorError] carrying the label of
// the stage that made the call. There is no retry at this layer.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Intent names what a generation request is for. Prompt templates are keyed
// by intent.
type Intent string

const (
	IntentUserStories       Intent = "user_stories"
	IntentReviseUserStories Intent = "revise_user_stories"
	IntentDesignDocument    Intent = "design_doc"
	IntentReviseDesignDoc   Intent = "revise_design_doc"
	IntentCode              Intent = "code"
	IntentReviseCode        Intent = "revise_code"
)

// Intents lists every intent in pipeline order.
func Intents() []Intent {
	return []Intent{
		IntentUserStories,
		IntentReviseUserStories,
		IntentDesignDocument,
		IntentReviseDesignDoc,
		IntentCode,
		IntentReviseCode,
	}
}

// IsValid returns true if the intent is one of the known intents.
func (i Intent) IsValid() bool {
	for _, known := range Intents() {
		if i == known {
			return true
		}
	}
	return false
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message sent to the generator.
type Message struct {
	Role    Role
	Content string
}

// Request is a single generation call.
type Request struct {
	// Intent selects the prompt pair that produced Messages.
	Intent Intent
	// Label identifies the calling stage in logs and errors.
	Label string
	// Messages is the conversation, system message first.
	Messages []Message
}

// Prompt joins the message contents into one text block for backends that
// accept a single prompt string.
func (r Request) Prompt() string {
	var out string
	for i, m := range r.Messages {
		if i > 0 {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}

// Generator produces response text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the [Generator] interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// GeneratorError reports a failed generator call.
type GeneratorError struct {
	Label string
	Err   error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("generator call %q failed: %v", e.Label, e.Err)
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a [*GeneratorError] for label, or nil when err is nil.
// An error that already is a GeneratorError is returned unchanged.
func Wrap(label string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GeneratorError
	if errors.As(err, &ge) {
		return err
	}
	return &GeneratorError{Label: label, Err: err}
}

// IsGeneratorError reports whether err is or wraps a [*GeneratorError].
func IsGeneratorError(err error) bool {
	var ge *GeneratorError
	return errors.As(err, &ge)
}
