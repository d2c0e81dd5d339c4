package dispatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/ragerr"
)

// Embed returns a single embedding vector for text under model, routed
// according to the dispatcher's configured strategy.
func (d *Dispatcher) Embed(ctx context.Context, op Op, text, model string) ([]float32, error) {
	if text == "" {
		return nil, ragerr.New(ragerr.InvalidInput, "Embed", fmt.Errorf("text must not be empty"))
	}
	if d.strategy == StrategyDualVerification {
		return d.embedDualVerification(ctx, model, text)
	}
	candidates, err := d.candidateOrder(ctx, true, model, text)
	if err != nil {
		return nil, err
	}
	return callWithFailover(d, ctx, candidates, func(ctx context.Context, p provider.Provider) ([]float32, error) {
		vecs, err := p.Embed(ctx, model, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("provider %q returned no embedding", p.Name())
		}
		return vecs[0], nil
	})
}

// EmbedBatch returns one vector per input text, in order. The ≤10-per-batch
// cap (spec.md §4.5) is embedctx's responsibility, not the dispatcher's.
func (d *Dispatcher) EmbedBatch(ctx context.Context, op Op, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragerr.New(ragerr.InvalidInput, "EmbedBatch", fmt.Errorf("texts must not be empty"))
	}
	if d.strategy == StrategyDualVerification {
		return d.embedBatchDualVerification(ctx, model, texts)
	}
	candidates, err := d.candidateOrder(ctx, true, model, strings.Join(texts, " "))
	if err != nil {
		return nil, err
	}
	return callWithFailover(d, ctx, candidates, func(ctx context.Context, p provider.Provider) ([][]float32, error) {
		return p.Embed(ctx, model, texts)
	})
}

// Complete generates a single completion from a system+user prompt pair.
func (d *Dispatcher) Complete(ctx context.Context, system, user, model string, params provider.Params) (string, error) {
	if user == "" {
		return "", ragerr.New(ragerr.InvalidInput, "Complete", fmt.Errorf("user prompt must not be empty"))
	}
	messages := buildMessages(system, user)

	if d.strategy == StrategyDualVerification {
		return d.completeDualVerification(ctx, model, messages, params, user)
	}

	candidates, err := d.candidateOrder(ctx, false, model, user)
	if err != nil {
		return "", err
	}
	return callWithFailover(d, ctx, candidates, func(ctx context.Context, p provider.Provider) (string, error) {
		return p.Complete(ctx, model, messages, params)
	})
}

func buildMessages(system, user string) []provider.Message {
	var messages []provider.Message
	if system != "" {
		messages = append(messages, provider.Message{Role: "system", Content: system})
	}
	messages = append(messages, provider.Message{Role: "user", Content: user})
	return messages
}

// candidateOrder resolves the routing candidates per spec.md §4.4, excluding
// DUAL_VERIFICATION which callers handle separately (it always runs on both
// 0 and 1).
func (d *Dispatcher) candidateOrder(ctx context.Context, isEmbedding bool, model, routingText string) ([]int, error) {
	n := d.providerCount()
	if n == 0 {
		return nil, ragerr.New(ragerr.ProviderUnavailable, "candidateOrder", fmt.Errorf("no providers configured"))
	}
	switch d.strategy {
	case StrategyFailover:
		idxs := make([]int, n)
		for i := range idxs {
			idxs[i] = i
		}
		return idxs, nil
	case StrategyRoundRobin:
		c := atomic.AddInt64(&d.counter, 1) - 1
		return []int{int(c % int64(n))}, nil
	case StrategySpecialized:
		if isEmbedding || n == 1 {
			return []int{0}, nil
		}
		return []int{1}, nil
	case StrategySmartRouting:
		if n > 1 && smartRoutingTriggers(routingText) {
			return []int{1}, nil
		}
		return []int{0}, nil
	case StrategyModelBased:
		idx, err := d.FindProviderByModel(ctx, model)
		if err != nil {
			return []int{0}, nil
		}
		return []int{idx}, nil
	case StrategyPrimaryOnly:
		fallthrough
	default:
		return []int{0}, nil
	}
}

func smartRoutingTriggers(text string) bool {
	if len(text) > smartRoutingLengthThreshold {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range smartRoutingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// callWithFailover tries each candidate index in order, advancing (and
// recording a failover event) whenever a provider exhausts its retries.
func callWithFailover[T any](d *Dispatcher, ctx context.Context, candidates []int, call func(context.Context, provider.Provider) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, idx := range candidates {
		if i > 0 {
			d.recordFailover()
		}
		d.recordRequest(idx)
		result, err := callWithRetry(d, ctx, idx, call)
		if err == nil {
			return result, nil
		}
		lastErr = err
		d.logger.Warn("dispatch: provider exhausted retries", "provider", d.providers[idx].Name(), "error", err)
	}
	return zero, ragerr.New(ragerr.ProviderUnavailable, "dispatch", lastErr)
}

// callWithRetry applies the spec.md §4.4 retry policy to a single provider.
func callWithRetry[T any](d *Dispatcher, ctx context.Context, idx int, call func(context.Context, provider.Provider) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := d.retry.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.retry.Timeout)
		result, err := call(attemptCtx, d.providers[idx])
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < attempts-1 {
			delay := backoffDelay(d.retry.BaseDelay, d.retry.MaxDelay, i)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// embedDualVerification executes Embed on providers 0 and 1, returns
// provider 0's result, and logs a warning if their cosine similarity falls
// below dualVerificationMinSimilarity (spec.md §4.4).
func (d *Dispatcher) embedDualVerification(ctx context.Context, model, text string) ([]float32, error) {
	if d.providerCount() < 2 {
		return d.embedSingleProvider(ctx, model, text)
	}
	d.recordRequest(0)
	primary, err := callWithRetry(d, ctx, 0, func(ctx context.Context, p provider.Provider) ([]float32, error) {
		vecs, err := p.Embed(ctx, model, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("provider %q returned no embedding", p.Name())
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, ragerr.New(ragerr.ProviderUnavailable, "embedDualVerification", err)
	}

	d.recordRequest(1)
	secondary, err := callWithRetry(d, ctx, 1, func(ctx context.Context, p provider.Provider) ([]float32, error) {
		vecs, err := p.Embed(ctx, model, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("provider %q returned no embedding", p.Name())
		}
		return vecs[0], nil
	})
	if err != nil {
		d.logger.Warn("dispatch: dual verification secondary provider failed", "error", err)
		return primary, nil
	}

	sim, simErr := cosineSimilarity32(primary, secondary)
	if simErr == nil && sim < dualVerificationMinSimilarity {
		d.logger.Warn("dispatch: dual verification similarity below threshold", "similarity", sim, "threshold", dualVerificationMinSimilarity)
	}
	return primary, nil
}

// embedBatchDualVerification runs the real batch embedding against provider
// 0, and — if a second provider is configured — also embeds the first text
// against provider 1 purely to sample an agreement check (spec.md §4.4);
// provider 0's batch is always what is returned, matching the single-call
// DUAL_VERIFICATION contract.
func (d *Dispatcher) embedBatchDualVerification(ctx context.Context, model string, texts []string) ([][]float32, error) {
	d.recordRequest(0)
	primary, err := callWithRetry(d, ctx, 0, func(ctx context.Context, p provider.Provider) ([][]float32, error) {
		return p.Embed(ctx, model, texts)
	})
	if err != nil {
		return nil, ragerr.New(ragerr.ProviderUnavailable, "embedBatchDualVerification", err)
	}
	if d.providerCount() < 2 || len(primary) == 0 {
		return primary, nil
	}

	d.recordRequest(1)
	secondary, err := callWithRetry(d, ctx, 1, func(ctx context.Context, p provider.Provider) ([]float32, error) {
		vecs, err := p.Embed(ctx, model, texts[:1])
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("provider %q returned no embedding", p.Name())
		}
		return vecs[0], nil
	})
	if err != nil {
		d.logger.Warn("dispatch: dual verification secondary provider failed", "error", err)
		return primary, nil
	}

	sim, simErr := cosineSimilarity32(primary[0], secondary)
	if simErr == nil && sim < dualVerificationMinSimilarity {
		d.logger.Warn("dispatch: dual verification similarity below threshold", "similarity", sim, "threshold", dualVerificationMinSimilarity)
	}
	return primary, nil
}

// embedSingleProvider is the single-provider fallback used when
// DUAL_VERIFICATION is configured but only one provider is registered.
func (d *Dispatcher) embedSingleProvider(ctx context.Context, model, text string) ([]float32, error) {
	d.recordRequest(0)
	return callWithRetry(d, ctx, 0, func(ctx context.Context, p provider.Provider) ([]float32, error) {
		vecs, err := p.Embed(ctx, model, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("provider %q returned no embedding", p.Name())
		}
		return vecs[0], nil
	})
}

// completeDualVerification executes Complete on providers 0 and 1, returns
// provider 0's result, and logs a warning if their token-Jaccard similarity
// falls below the threshold (spec.md §4.4: "cosine of vectors (or token
// Jaccard for text)").
func (d *Dispatcher) completeDualVerification(ctx context.Context, model string, messages []provider.Message, params provider.Params, routingText string) (string, error) {
	if d.providerCount() < 2 {
		d.recordRequest(0)
		return callWithRetry(d, ctx, 0, func(ctx context.Context, p provider.Provider) (string, error) {
			return p.Complete(ctx, model, messages, params)
		})
	}

	d.recordRequest(0)
	primary, err := callWithRetry(d, ctx, 0, func(ctx context.Context, p provider.Provider) (string, error) {
		return p.Complete(ctx, model, messages, params)
	})
	if err != nil {
		return "", ragerr.New(ragerr.ProviderUnavailable, "completeDualVerification", err)
	}

	d.recordRequest(1)
	secondary, err := callWithRetry(d, ctx, 1, func(ctx context.Context, p provider.Provider) (string, error) {
		return p.Complete(ctx, model, messages, params)
	})
	if err != nil {
		d.logger.Warn("dispatch: dual verification secondary provider failed", "error", err)
		return primary, nil
	}

	sim := tokenJaccard(primary, secondary)
	if sim < dualVerificationMinSimilarity {
		d.logger.Warn("dispatch: dual verification similarity below threshold", "similarity", sim, "threshold", dualVerificationMinSimilarity)
	}
	return primary, nil
}

// cosineSimilarity32 mirrors the teacher's embedding.CosineSimilarity, typed
// for []float32 since providers exchange vectors as float32 (pgvector's
// native element type, spec.md §9).
func cosineSimilarity32(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have same length: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vectors must not be empty")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("vectors must not be zero vectors")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// tokenJaccard computes the Jaccard similarity of two texts' whitespace-split
// token sets, the spec.md §4.4 fallback metric for DUAL_VERIFICATION on
// completion text.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
