package llm

import (
	"context"
	"errors"
)

// ErrNoResponse is returned by [MockGenerator] when its response queue is empty.
var ErrNoResponse = errors.New("mock generator: no response queued")

// MockGenerator implements [Generator] for testing.
//
// Responses are returned in order, one per call. Errors, when set for the
// same index, take precedence over the response at that index.
type MockGenerator struct {
	// Responses are returned in call order.
	Responses []string
	// Errors holds per-call errors; a nil entry means no error.
	Errors []error
	// Err, when set, fails every call.
	Err error

	// Requests records every request received.
	Requests []Request

	calls int
}

// Generate returns the next queued response.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	i := m.calls
	m.calls++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if i < len(m.Errors) && m.Errors[i] != nil {
		return "", m.Errors[i]
	}
	if i >= len(m.Responses) {
		return "", ErrNoResponse
	}
	return m.Responses[i], nil
}

// Calls returns the number of Generate calls made.
func (m *MockGenerator) Calls() int {
	return m.calls
}

// RecordedPrompts returns the user message of each recorded request.
func (m *MockGenerator) RecordedPrompts() []string {
	prompts := make([]string, 0, len(m.Requests))
	for _, r := range m.Requests {
		var user string
		for _, msg := range r.Messages {
			if msg.Role == RoleUser {
				user = msg.Content
			}
		}
		prompts = append(prompts, user)
	}
	return prompts
}
