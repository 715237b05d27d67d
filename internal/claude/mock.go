package claude

import "context"

// MockExecutor implements [Executor] for testing.
type MockExecutor struct {
	// Events are replayed to the handler on every call.
	Events []Event
	// ExitCode is returned on every call.
	ExitCode int
	// Error, when set, is returned before any event is replayed.
	Error error

	// RecordedPrompts holds every prompt received, in call order.
	RecordedPrompts []Prompt
}

// Execute records prompt and replays Events.
func (m *MockExecutor) Execute(ctx context.Context, prompt Prompt, handler EventHandler) (int, error) {
	m.RecordedPrompts = append(m.RecordedPrompts, prompt)
	if m.Error != nil {
		return -1, m.Error
	}
	for _, e := range m.Events {
		if handler != nil {
			handler(e)
		}
	}
	return m.ExitCode, nil
}
