// Package openaicompat implements provider.Provider on top of
// github.com/sashabaranov/go-openai pointed at an arbitrary BaseURL, grounded
// on the teacher's llm.OpenAILLM and embedding.OpenAIEmbedding (both already
// build a go-openai client from a configurable base URL and API key). This
// single type covers all three spec.md §6 provider kinds that speak an
// OpenAI-compatible HTTP API: the project's own cloud credentials, a local
// "ollama" style endpoint (http://host:11434/v1), and a local "lmstudio"
// style endpoint (http://host:1234/v1).
package openaicompat

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stratarag/stratarag/provider"
)

// Provider wraps a go-openai client configured with a custom BaseURL.
type Provider struct {
	name   string
	client *openai.Client
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New builds a Provider. baseURL and apiKey follow the teacher's
// NewOpenAILLM convention: an empty apiKey is read from OPENAI_API_KEY. A
// non-empty baseURL replaces go-openai's default; an empty baseURL is not
// rejected and leaves that default, OpenAI's own cloud endpoint, in place.
func New(name, baseURL, apiKey string, opts ...Option) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	p := &Provider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWithClient wraps a pre-built go-openai client, mirroring the teacher's
// NewOpenAILLMWithClient escape hatch for tests.
func NewWithClient(name string, client *openai.Client, opts ...Option) *Provider {
	p := &Provider{name: name, client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

// IsOnline issues a cheap ListModels call and reports whether it succeeded.
func (p *Provider) IsOnline(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.Warn("openaicompat: health check failed", "provider", p.name, "error", err)
		return false
	}
	return true
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: list models: %w", err)
	}
	out := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		out[i] = m.ID
	}
	return out, nil
}

// Embed mirrors the teacher's embedding.OpenAIEmbedding.getEmbedding, batched
// into one request per call instead of one request per text.
func (p *Provider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		p.logger.Error("openaicompat: embedding failed", "provider", p.name, "model", model, "error", err)
		return nil, fmt.Errorf("openaicompat: embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openaicompat: embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Complete mirrors the teacher's llm.OpenAILLM.Chat.
func (p *Provider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMessages,
	}
	if params.Temperature != 0 {
		req.Temperature = params.Temperature
	}
	if params.MaxTokens != 0 {
		req.MaxTokens = params.MaxTokens
	}
	if params.TopP != 0 {
		req.TopP = params.TopP
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.logger.Error("openaicompat: completion failed", "provider", p.name, "model", model, "error", err)
		return "", fmt.Errorf("openaicompat: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openaicompat: complete: provider %q returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ provider.Provider = (*Provider)(nil)
