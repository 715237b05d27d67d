// Package parser converts raw generator output into validated domain records.
//
// Generators answer with JSON, JSON inside a markdown fence, a bare object where
// a list was asked for, or (for user stories) labeled prose. All of that
// tolerance lives here. Nothing in this package returns an error or panics:
// every entry point returns a [Result] that is OK, Empty or Failed, and callers
// branch on [Result.Kind].
//
// Key entry points:
//   - [Classify] normalizes any raw value into a [Payload] tagged by [Shape]
//   - [UserStories], [DesignDocument] and [GeneratedCode] build records per stage
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Shape tags the structure found in a raw generator response.
type Shape int

const (
	// ShapeInvalid means the value could not be interpreted at all.
	ShapeInvalid Shape = iota
	// ShapeStructured is a decoded JSON array.
	ShapeStructured
	// ShapeSingleObject is a decoded JSON object.
	ShapeSingleObject
	// ShapeProse is text that is not JSON.
	ShapeProse
)

// String returns the shape name used in log fields.
func (s Shape) String() string {
	switch s {
	case ShapeStructured:
		return "structured"
	case ShapeSingleObject:
		return "single_object"
	case ShapeProse:
		return "prose"
	default:
		return "invalid"
	}
}

// Payload is a raw response normalized into exactly one shape.
//
// Only the field matching Shape is populated: List for [ShapeStructured],
// Object for [ShapeSingleObject], Text for [ShapeProse] and Reason for
// [ShapeInvalid].
type Payload struct {
	Shape  Shape
	List   []any
	Object map[string]any
	Text   string
	Reason string
}

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	bareFence = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \\t]*\\r?\\n(.*?)```")
)

// Classify inspects raw and reports its shape.
//
// Accepted inputs are string, []byte, json.RawMessage, map[string]any and
// []any. Text is decoded from the first candidate that parses, in order: the
// contents of a ```json fence, the trimmed text, the contents of any other
// fence. Text that decodes to a JSON scalar is invalid; text that does not
// decode is prose.
func Classify(raw any) Payload {
	switch v := raw.(type) {
	case nil:
		return invalid("no response")
	case map[string]any:
		return Payload{Shape: ShapeSingleObject, Object: v}
	case []any:
		return Payload{Shape: ShapeStructured, List: v}
	case string:
		return classifyText(v)
	case []byte:
		return classifyText(string(v))
	case json.RawMessage:
		return classifyText(string(v))
	default:
		return invalid(fmt.Sprintf("unsupported response type %T", raw))
	}
}

func classifyText(text string) Payload {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return invalid("empty response")
	}

	for _, candidate := range candidates(trimmed) {
		var decoded any
		if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
			continue
		}
		switch v := decoded.(type) {
		case map[string]any:
			return Payload{Shape: ShapeSingleObject, Object: v}
		case []any:
			return Payload{Shape: ShapeStructured, List: v}
		default:
			return invalid(fmt.Sprintf("response decodes to %T, want object or array", decoded))
		}
	}

	return Payload{Shape: ShapeProse, Text: trimmed}
}

// candidates lists the strings worth attempting to decode, most specific first.
func candidates(text string) []string {
	out := make([]string, 0, 3)
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			out = append(out, inner)
		}
	}
	out = append(out, text)
	if m := bareFence.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			out = append(out, inner)
		}
	}
	return out
}

func invalid(reason string) Payload {
	return Payload{Shape: ShapeInvalid, Reason: reason}
}
