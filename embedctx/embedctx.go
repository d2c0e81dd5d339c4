// Package embedctx binds a library to a concrete embedding model (spec.md
// §4.5): fixed dimension, a context length measured in tokens, oversized-text
// handling, and vector normalization. It sits on top of dispatch.Dispatcher
// the way the teacher's embedding.EmbeddingModelWithBatch sits on top of a
// single provider, generalized to the multi-provider dispatcher and to a
// caller-configured target dimension rather than a model-fixed one.
package embedctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/tokencount"
)

var (
	errEmptyText     = errors.New("text must not be empty")
	errBatchTooLarge = fmt.Errorf("batch exceeds maximum size of %d", MaxBatchSize)
	errEmptyVector   = errors.New("provider returned an empty vector")
)

// MaxBatchSize is the spec.md §4.5 batch ceiling.
const MaxBatchSize = 10

// dimensionMismatchFactor is the spec.md §4.5 fatal threshold: a provider
// vector more than this many times larger or smaller than D is treated as a
// misconfiguration rather than something pad/truncate can paper over.
const dimensionMismatchFactor = 2

// ProgressFunc reports batch-embedding progress, mirrored from the teacher's
// embedding.ProgressCallback(current, total int).
type ProgressFunc func(current, total int)

// Summarizer is the narrow capability embedctx needs from llmctx.Context
// when a text exceeds the context length by more than 5% (spec.md §4.5).
// Defined here, consumer-side, the same way router.Classifier is defined
// against llmctx rather than the reverse, to keep embedctx free of a direct
// import of llmctx.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// Context binds one library to one embedding model served through a
// dispatcher.
type Context struct {
	dispatcher       *dispatch.Dispatcher
	model            string
	dimension        int
	contextLength    int
	summaryMaxTokens int
	counter          *tokencount.Counter
	summarizer       Summarizer
	logger           *slog.Logger
}

// Option configures a Context beyond its required fields.
type Option func(*Context)

// WithSummarizer registers the C6 completion context used for the
// oversized-text summarization path. Without one, oversized text is always
// truncated, never summarized, even past the 5% threshold.
func WithSummarizer(s Summarizer) Option {
	return func(c *Context) { c.summarizer = s }
}

// WithSummaryMaxTokens overrides the default 2048-token summary target
// (spec.md §4.5 SUMMARY_MAX_TOKENS).
func WithSummaryMaxTokens(n int) Option {
	return func(c *Context) { c.summaryMaxTokens = n }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// New binds a dispatcher and model to a fixed dimension D and context length
// L. counter is used to measure each text's token count against L.
func New(d *dispatch.Dispatcher, model string, dimension, contextLength int, counter *tokencount.Counter, opts ...Option) *Context {
	c := &Context{
		dispatcher:       d,
		model:            model,
		dimension:        dimension,
		contextLength:    contextLength,
		summaryMaxTokens: 2048,
		counter:          counter,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dimension returns D, the vector length every embedding from this Context
// is normalized to.
func (c *Context) Dimension() int { return c.dimension }

// ContextLength returns L, the token budget oversized-text handling measures
// against.
func (c *Context) ContextLength() int { return c.contextLength }

// EmbedOne embeds a single text, applying the oversized-text policy and
// dimension normalization.
func (c *Context) EmbedOne(ctx context.Context, text string, op dispatch.Op) ([]float32, error) {
	if text == "" {
		return nil, ragerr.New(ragerr.InvalidInput, "EmbedOne", errEmptyText)
	}
	prepared, _, err := c.prepareText(ctx, text)
	if err != nil {
		return nil, err
	}
	vec, err := c.dispatcher.Embed(ctx, op, prepared, c.model)
	if err != nil {
		return nil, err
	}
	return c.normalize(vec)
}

// EmbedBatch embeds up to MaxBatchSize texts in one call, applying the
// oversized-text policy and dimension normalization to each. progress, if
// non-nil, is invoked once per text as it completes (mirrored from the
// teacher's ProgressCallback).
func (c *Context) EmbedBatch(ctx context.Context, texts []string, op dispatch.Op, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragerr.New(ragerr.InvalidInput, "EmbedBatch", errEmptyText)
	}
	if len(texts) > MaxBatchSize {
		return nil, ragerr.New(ragerr.InvalidInput, "EmbedBatch", errBatchTooLarge)
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, ragerr.New(ragerr.InvalidInput, "EmbedBatch", errEmptyText)
		}
		p, _, err := c.prepareText(ctx, text)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	raw, err := c.dispatcher.EmbedBatch(ctx, op, prepared, c.model)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(raw))
	for i, vec := range raw {
		normalized, err := c.normalize(vec)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
		if progress != nil {
			progress(i+1, len(raw))
		}
	}
	return out, nil
}

// TextPreparation describes what, if anything, the oversized-text policy did
// to a text before embedding. Callers that need to persist the
// resumo_gerado / texto_truncado chunk metadata (spec.md §4.5, §4.7) use this
// rather than embedctx silently discarding the decision.
type TextPreparation struct {
	SummaryGenerated bool
	OriginalTokens   int
	TextTruncated    bool
}

// PrepareText applies the oversized-text policy to a single text and reports
// what happened, without embedding it. ingest.Service calls this directly so
// it can record the resulting chunk metadata before the embed call.
func (c *Context) PrepareText(ctx context.Context, text string) (string, TextPreparation, error) {
	return c.prepareText(ctx, text)
}

func (c *Context) prepareText(ctx context.Context, text string) (string, TextPreparation, error) {
	if c.counter == nil || c.contextLength <= 0 {
		return text, TextPreparation{}, nil
	}
	tokens := c.counter.Count(ctx, text, c.model)
	if tokens <= c.contextLength {
		return text, TextPreparation{}, nil
	}

	overage := float64(tokens-c.contextLength) / float64(tokens)
	if overage > 0.05 {
		if c.summarizer == nil {
			c.logger.Warn("embedctx: text exceeds context length by more than 5%% with no summarizer configured, truncating instead",
				"model", c.model, "tokens", tokens, "context_length", c.contextLength)
			return c.truncate(text), TextPreparation{TextTruncated: true}, nil
		}
		summary, err := c.summarizer.Summarize(ctx, text, c.summaryMaxTokens)
		if err != nil {
			return "", TextPreparation{}, ragerr.New(ragerr.ProviderUnavailable, "prepareText", err)
		}
		return summary, TextPreparation{SummaryGenerated: true, OriginalTokens: tokens}, nil
	}
	return c.truncate(text), TextPreparation{TextTruncated: true}, nil
}

// truncate applies the spec.md §4.5 within-5%% fallback: cut to L*4
// characters (a rough chars-per-token estimate, matching tokencount's own
// Heuristic ratio order of magnitude).
func (c *Context) truncate(text string) string {
	limit := c.contextLength * 4
	if limit <= 0 || limit >= len(text) {
		return text
	}
	return text[:limit]
}

// normalize pads or truncates vec to D (logging a warning either way, since
// both indicate a provider/config mismatch) then L2-normalizes it. A vector
// more than dimensionMismatchFactor times too long or too short is treated as
// a fatal misconfiguration rather than silently coerced.
func (c *Context) normalize(vec []float32) ([]float32, error) {
	n := len(vec)
	if n == 0 {
		return nil, ragerr.New(ragerr.InvalidConfiguration, "normalize", errEmptyVector)
	}
	if n > c.dimension*dimensionMismatchFactor || n*dimensionMismatchFactor < c.dimension {
		return nil, ragerr.New(ragerr.InvalidConfiguration, "normalize", fmt.Errorf(
			"provider returned dimension %d, configured dimension %d differ by more than %dx", n, c.dimension, dimensionMismatchFactor))
	}

	adjusted := vec
	if n != c.dimension {
		c.logger.Warn("embedctx: provider embedding dimension mismatch, padding/truncating",
			"model", c.model, "provider_dimension", n, "configured_dimension", c.dimension)
		adjusted = make([]float32, c.dimension)
		copy(adjusted, vec)
	}

	var sumSquares float64
	for _, v := range adjusted {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return adjusted, nil
	}
	out := make([]float32, len(adjusted))
	for i, v := range adjusted {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
