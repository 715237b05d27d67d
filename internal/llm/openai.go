package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ContentGenerator is the part of a langchaingo model used by [OpenAIGenerator].
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAIOptions configures an OpenAI-compatible backend.
type OpenAIOptions struct {
	Model       string
	BaseURL     string
	Token       string
	Temperature float64
	MaxTokens   int
}

// OpenAIGenerator implements [Generator] on top of a langchaingo chat model.
type OpenAIGenerator struct {
	model ContentGenerator
	opts  OpenAIOptions
}

// NewOpenAIGenerator creates a generator backed by langchaingo's OpenAI client.
//
// An empty Token falls back to the OPENAI_API_KEY environment variable, which
// the client reads itself.
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	clientOpts := []openai.Option{}
	if opts.Model != "" {
		clientOpts = append(clientOpts, openai.WithModel(opts.Model))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.Token != "" {
		clientOpts = append(clientOpts, openai.WithToken(opts.Token))
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewOpenAIGeneratorWithModel(client, opts), nil
}

// NewOpenAIGeneratorWithModel wraps an existing model. Tests pass a fake here.
func NewOpenAIGeneratorWithModel(model ContentGenerator, opts OpenAIOptions) *OpenAIGenerator {
	return &OpenAIGenerator{model: model, opts: opts}
}

// Generate sends the request messages and returns the first choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		messages = append(messages, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}},
		})
	}

	callOpts := []llms.CallOption{llms.WithTemperature(g.opts.Temperature)}
	if g.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.opts.MaxTokens))
	}

	resp, err := g.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", Wrap(req.Label, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", Wrap(req.Label, errors.New("response has no choices"))
	}
	return resp.Choices[0].Content, nil
}
