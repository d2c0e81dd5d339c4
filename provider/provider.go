// Package provider defines the narrow embedding/completion port dispatch (C4)
// routes across (spec.md §6), grounded on the teacher's llm.LLM /
// embedding.EmbeddingModel interfaces but widened to the four operations the
// dispatcher itself needs: IsOnline, ListModels, Embed, Complete. Neither
// teacher interface exposes health/listing, which is why this is a fresh port
// rather than a reuse of llm.LLM directly.
package provider

import "context"

// Message is a minimal chat message, mirrored from the teacher's
// llm.ChatMessage (Role/Content only — this module has no need for the
// teacher's multi-modal content blocks or tool-call plumbing).
type Message struct {
	Role    string
	Content string
}

// Params carries the fixed set of completion knobs llmctx.Context exposes
// (spec.md §4.6): no open-ended options struct, matching the teacher's
// BedrockOption style of named, bounded configuration rather than a free-form
// map.
type Params struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// Provider is the capability dispatch.Dispatcher requires of every concrete
// backend. Every method takes a context and is safe for concurrent use.
type Provider interface {
	// Name identifies this provider in the dispatcher's log lines and error
	// messages.
	Name() string
	// IsOnline reports whether the provider is currently reachable. The
	// dispatcher exposes it through Dispatcher.Healthy; no routing strategy
	// consults it before sending a request.
	IsOnline(ctx context.Context) bool
	// ListModels returns the model identifiers this provider currently
	// serves, for find_provider_by_model and MODEL_BASED routing.
	ListModels(ctx context.Context) ([]string, error)
	// Embed returns one embedding vector per input text, in order. Batches
	// larger than a provider's own limit are the caller's concern
	// (embedctx enforces the ≤10 rule from spec.md §4.5).
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	// Complete generates a single completion for a chat-style message list.
	Complete(ctx context.Context, model string, messages []Message, params Params) (string, error)
}

// Tokenizer is the optional capability a Provider may additionally implement
// when the model it serves exposes its own token counter (spec.md §4.1
// backend (a)); tokencount.ProviderTokenizer is structurally identical so any
// Provider implementing this also satisfies that port without an adapter.
type Tokenizer interface {
	CountTokens(ctx context.Context, text, model string) (int, error)
}
