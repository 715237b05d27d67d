package cli

import (
	"fmt"

	"go.uber.org/zap"

	"reqflow/internal/claude"
	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/logging"
)

// NewGenerator builds the generator backend selected in cfg.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (llm.Generator, error) {
	logger = logging.OrNop(logger)
	g := cfg.Generator

	switch g.Backend {
	case config.BackendClaude, "":
		executor := claude.NewExecutor(claude.ExecutorConfig{
			BinaryPath:   g.Claude.BinaryPath,
			OutputFormat: g.Claude.OutputFormat,
			Model:        g.Claude.Model,
			StderrHandler: func(line string) {
				logger.Debug("claude stderr", zap.String("line", line))
			},
		})
		return claude.NewGenerator(executor, logger), nil

	case config.BackendOpenAI:
		gen, err := llm.NewOpenAIGenerator(llm.OpenAIOptions{
			Model:       g.OpenAI.Model,
			BaseURL:     g.OpenAI.BaseURL,
			Token:       g.OpenAI.APIKey,
			Temperature: g.OpenAI.Temperature,
			MaxTokens:   g.OpenAI.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai generator: %w", err)
		}
		return gen, nil

	default:
		return nil, fmt.Errorf("unknown generator backend %q", g.Backend)
	}
}
