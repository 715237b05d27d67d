package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reqflow/internal/llm"
)

// Generator adapts an [Executor] to llm.Generator.
type Generator struct {
	executor Executor
	logger   *zap.Logger
}

// NewGenerator creates a generator. A nil logger discards output.
func NewGenerator(executor Executor, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{executor: executor, logger: logger}
}

// Generate runs one CLI session and returns its final answer.
//
// System messages become the appended system prompt and the remaining
// messages become the print-mode prompt. The answer is the text of the result
// event, or the concatenated assistant text when the CLI did not repeat it
// there.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	prompt := toPrompt(req.Messages)

	var (
		texts  []string
		result string
		failed bool
		events int
	)
	code, err := g.executor.Execute(ctx, prompt, func(e Event) {
		events++
		switch {
		case e.IsText():
			texts = append(texts, e.Text)
		case e.SessionComplete:
			result = e.Result
			failed = e.IsError
		}
	})
	if err != nil {
		return "", llm.Wrap(req.Label, err)
	}

	g.logger.Debug("claude session finished",
		zap.String("label", req.Label),
		zap.Int("exit_code", code),
		zap.Int("events", events),
	)

	if code != 0 {
		return "", llm.Wrap(req.Label, fmt.Errorf("claude exited with code %d", code))
	}
	if failed {
		msg := result
		if msg == "" {
			msg = "session reported an error"
		}
		return "", llm.Wrap(req.Label, errors.New(msg))
	}

	if result != "" {
		return result, nil
	}
	return strings.Join(texts, "\n"), nil
}

func toPrompt(messages []llm.Message) Prompt {
	var system, user []string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
		} else {
			user = append(user, m.Content)
		}
	}
	return Prompt{
		System: strings.Join(system, "\n\n"),
		User:   strings.Join(user, "\n\n"),
	}
}
