// Package tokencount estimates or computes token counts for a string under a
// named model (spec.md §4.1). It is grounded on the teacher's
// textsplitter.TikTokenTokenizerByEncoding (same tiktoken-go encoding-selection
// table) but exposes a single Count operation that never fails, per spec.
package tokencount

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding names, mirrored from the teacher's textsplitter package.
const (
	EncodingCL100kBase = "cl100k_base"
	EncodingO200kBase  = "o200k_base"
)

var modelEncodingMap = map[string]string{
	"gpt-4o":                 EncodingO200kBase,
	"gpt-4o-mini":             EncodingO200kBase,
	"gpt-4":                   EncodingCL100kBase,
	"gpt-4-turbo":             EncodingCL100kBase,
	"gpt-3.5-turbo":           EncodingCL100kBase,
	"text-embedding-ada-002":  EncodingCL100kBase,
	"text-embedding-3-small":  EncodingCL100kBase,
	"text-embedding-3-large":  EncodingCL100kBase,
}

func encodingForModel(model string) string {
	if enc, ok := modelEncodingMap[model]; ok {
		return enc
	}
	return EncodingCL100kBase
}

// ProviderTokenizer is the optional capability a provider.Provider may expose
// when the model it serves has its own tokeniser (spec.md §4.1 backend (a)).
type ProviderTokenizer interface {
	CountTokens(ctx context.Context, text, model string) (int, error)
}

// Counter counts tokens for (text, model) pairs. The zero value is usable and
// falls straight to tiktoken-go / the heuristic.
type Counter struct {
	// Provider, if set, is tried first for every model name it recognises.
	Provider ProviderTokenizer
	Logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*tiktoken.Tiktoken
}

// New builds a Counter. provider may be nil.
func New(provider ProviderTokenizer, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{Provider: provider, Logger: logger, cache: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns a non-negative token count for text under model. It never
// fails: on any backend error it logs and returns the heuristic estimate.
func (c *Counter) Count(ctx context.Context, text, model string) int {
	if text == "" {
		return 0
	}
	if c.Provider != nil {
		if n, err := c.Provider.CountTokens(ctx, text, model); err == nil {
			return n
		} else {
			c.logger().Warn("tokencount: provider tokenizer failed, using heuristic", "model", model, "error", err)
			return Heuristic(text)
		}
	}
	if enc, err := c.encoding(model); err == nil {
		return len(enc.Encode(text, nil, nil))
	} else {
		c.logger().Warn("tokencount: tiktoken encoding failed, using heuristic", "model", model, "error", err)
	}
	return Heuristic(text)
}

// Heuristic is the backend-independent fallback: ceil(len(text)/4.2).
func Heuristic(text string) int {
	return int(math.Ceil(float64(len(text)) / 4.2))
}

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := encodingForModel(model)
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	c.cache[name] = enc
	return enc, nil
}

func (c *Counter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
