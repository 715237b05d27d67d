// Package claude runs the Claude CLI as a text generator.
//
// The CLI is started once per generation request in print mode with
// stream-json output. Each stdout line is one JSON event; this package decodes
// those lines, keeps the assistant text, and hands the final answer back to the
// pipeline as an llm.Generator.
//
// Key types:
//   - [Executor]: runs the CLI and streams [Event] values to a handler
//   - [Parser]: decodes stream-json lines into [Event] values
//   - [Generator]: adapts an Executor to llm.Generator
//
// For testing, use [MockExecutor], which replays canned events without
// spawning a process.
package claude

import "strings"

// StreamEvent is one raw line of the CLI's stream-json output.
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`

	// Result and IsError are set on the final "result" event.
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// MessageContent is the message body of an assistant event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is one block of an assistant message. Only "text" blocks carry
// generator output; other block types are ignored.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EventType is the type of a stream event.
type EventType string

const (
	// EventTypeSystem is emitted first, with subtype [SubtypeInit].
	EventTypeSystem EventType = "system"
	// EventTypeAssistant carries generated text.
	EventTypeAssistant EventType = "assistant"
	// EventTypeUser carries tool results; a plain generation has none.
	EventTypeUser EventType = "user"
	// EventTypeResult closes the session and repeats the final answer.
	EventTypeResult EventType = "result"
)

// SubtypeInit marks the session start event.
const SubtypeInit = "init"

// Event is a decoded stream event.
type Event struct {
	// Raw is the undecoded event.
	Raw *StreamEvent

	Type    EventType
	Subtype string

	// Text is the concatenated text blocks of an assistant event.
	Text string

	// Result is the final answer of a result event.
	Result string

	// IsError is true when the result event reports a failed session.
	IsError bool

	SessionStarted  bool
	SessionComplete bool
}

// NewEventFromStream builds an [Event] from a raw stream line.
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Raw:     raw,
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		e.SessionStarted = raw.Subtype == SubtypeInit

	case EventTypeAssistant:
		if raw.Message != nil {
			var parts []string
			for _, block := range raw.Message.Content {
				if block.Type == "text" && block.Text != "" {
					parts = append(parts, block.Text)
				}
			}
			e.Text = strings.Join(parts, "")
		}

	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError
	}

	return e
}

// IsText returns true for assistant events carrying text.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}
