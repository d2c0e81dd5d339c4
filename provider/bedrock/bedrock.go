// Package bedrock implements provider.Provider on top of
// github.com/aws/aws-sdk-go-v2/service/bedrockruntime, adapted from the
// teacher's llm.BedrockLLM (chat, via the Converse API) and llm/bedrock.Embedding
// (Amazon Titan embeddings, via InvokeModel). It stands in for spec.md §6's
// "remote cloud provider (API key)" reference kind: AWS SigV4 request signing
// plays the role the spec describes as an API key.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/stratarag/stratarag/provider"
)

// DefaultRegion mirrors the teacher's NewBedrockLLM fallback chain.
const DefaultRegion = "us-east-1"

// titanEmbeddingRequest/titanEmbeddingResponse mirror the teacher's
// buildRequestBody/parseResponse JSON shapes for amazon.titan-embed-text-*.
type titanEmbeddingRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Provider wraps a bedrockruntime.Client. knownModels is the static list
// ListModels reports, since Bedrock has no cheap "list models this account
// can call" API the way an OpenAI-compatible server does.
type Provider struct {
	name        string
	client      *bedrockruntime.Client
	knownModels []string
	temperature float32
	topP        float32
	logger      *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithClient injects a pre-built client, mirroring the teacher's
// WithBedrockClient test escape hatch.
func WithClient(client *bedrockruntime.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New builds a Provider for the given region and the set of models it is
// configured to serve (spec.md §6 ProviderConfig.Models).
func New(name, region string, models []string, opts ...Option) *Provider {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = DefaultRegion
	}

	p := &Provider{
		name:        name,
		knownModels: models,
		temperature: 0.1,
		topP:        1.0,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
		if err == nil {
			p.client = bedrockruntime.NewFromConfig(cfg)
		}
	}
	return p
}

func (p *Provider) Name() string { return p.name }

// IsOnline issues a minimal Converse call against the first known model and
// reports whether that call succeeded. Any error, a throttling or validation
// error included, is reported as offline; errors are not told apart from
// transport failures.
func (p *Provider) IsOnline(ctx context.Context) bool {
	if p.client == nil || len(p.knownModels) == 0 {
		return false
	}
	_, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.knownModels[0]),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}},
		}},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(1)},
	})
	if err != nil {
		p.logger.Warn("bedrock: health check failed", "provider", p.name, "error", err)
		return false
	}
	return true
}

// ListModels returns the statically configured model set; Bedrock has no
// per-account "list callable models" endpoint analogous to OpenAI's.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return p.knownModels, nil
}

// Embed calls Amazon Titan's InvokeModel one text at a time, matching the
// teacher's GetTextEmbeddingsBatch fallback path for non-Cohere models (Cohere
// batch embedding is out of scope here; this module only targets Titan).
func (p *Provider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		body, err := json.Marshal(titanEmbeddingRequest{InputText: text})
		if err != nil {
			return nil, fmt.Errorf("bedrock: marshal embedding request: %w", err)
		}
		resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(model),
			Body:        body,
			Accept:      aws.String("application/json"),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			p.logger.Error("bedrock: embed failed", "provider", p.name, "model", model, "index", i, "error", err)
			return nil, fmt.Errorf("bedrock: embed text %d: %w", i, err)
		}
		var parsed titanEmbeddingResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("bedrock: parse embedding response: %w", err)
		}
		out[i] = parsed.Embedding
	}
	return out, nil
}

// Complete mirrors the teacher's llm.BedrockLLM.Chat, minus tool calling and
// streaming (out of this module's scope).
func (p *Provider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	converseMessages, systemPrompts := convertMessages(messages)

	temperature := p.temperature
	if params.Temperature != 0 {
		temperature = params.Temperature
	}
	topP := p.topP
	if params.TopP != 0 {
		topP = params.TopP
	}
	maxTokens := int32(1024)
	if params.MaxTokens != 0 {
		maxTokens = int32(params.MaxTokens)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: converseMessages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
			TopP:        aws.Float32(topP),
		},
	}
	if len(systemPrompts) > 0 {
		input.System = systemPrompts
	}

	resp, err := p.client.Converse(ctx, input)
	if err != nil {
		p.logger.Error("bedrock: complete failed", "provider", p.name, "model", model, "error", err)
		return "", fmt.Errorf("bedrock: complete: %w", err)
	}
	return extractText(resp), nil
}

func convertMessages(messages []provider.Message) ([]types.Message, []types.SystemContentBlock) {
	var converseMessages []types.Message
	var systemPrompts []types.SystemContentBlock
	for _, m := range messages {
		switch m.Role {
		case "system":
			systemPrompts = append(systemPrompts, &types.SystemContentBlockMemberText{Value: m.Content})
		case "assistant":
			converseMessages = append(converseMessages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			converseMessages = append(converseMessages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return converseMessages, systemPrompts
}

func extractText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msgOutput, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var text string
	for _, block := range msgOutput.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	return text
}

var _ provider.Provider = (*Provider)(nil)
