// Package dispatch routes embedding and completion calls across heterogeneous
// provider.Provider backends (spec.md §4.4), using one of seven configurable
// strategies, with retry/backoff and thread-safe statistics. Strategy
// selection is new code with no direct teacher analogue (the teacher runs a
// single provider at a time), grounded structurally on the teacher's
// dispatch-by-enum pattern in agent/react.go and on embedding/similarity.go's
// CosineSimilarity for DUAL_VERIFICATION's agreement check.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/ragerr"
)

// Op is the advisory embedding-operation hint (spec.md §4.4): some providers
// adjust the embedding they produce based on how it will be used.
type Op string

const (
	OpQuery          Op = "QUERY"
	OpDocument       Op = "DOCUMENT"
	OpClassification Op = "CLASSIFICATION"
	OpClustering     Op = "CLUSTERING"
)

// Strategy selects which provider(s) a call is routed to.
type Strategy string

const (
	StrategyPrimaryOnly      Strategy = "PRIMARY_ONLY"
	StrategyFailover         Strategy = "FAILOVER"
	StrategyRoundRobin       Strategy = "ROUND_ROBIN"
	StrategySpecialized      Strategy = "SPECIALIZED"
	StrategyDualVerification Strategy = "DUAL_VERIFICATION"
	StrategySmartRouting     Strategy = "SMART_ROUTING"
	StrategyModelBased       Strategy = "MODEL_BASED"
)

// smartRoutingKeywords is the §4.4 SMART_ROUTING trigger set.
var smartRoutingKeywords = []string{"explain", "analyse", "compare"}

// smartRoutingLengthThreshold is the §4.4 SMART_ROUTING prompt-length trigger.
const smartRoutingLengthThreshold = 1000

// dualVerificationMinSimilarity is the §4.4 agreement threshold below which a
// warning is logged (the call still returns provider 0's result).
const dualVerificationMinSimilarity = 0.8

// Stats is a point-in-time snapshot of dispatcher statistics (spec.md §4.4).
type Stats struct {
	PrimaryRequests   int64
	SecondaryRequests int64
	FailoverEvents    int64
	TotalRequests     int64
	// PercentSplit is SecondaryRequests / TotalRequests, 0 when TotalRequests
	// is 0.
	PercentSplit float64
}

// RetryPolicy configures the per-call backoff (spec.md §4.4): attempts =
// MaxRetries, exponential backoff BaseDelay*2^i capped at MaxDelay, a
// per-attempt timeout of Timeout.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
}

// DefaultRetryPolicy matches spec.md §6's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second, Timeout: 30 * time.Second}
}

// Dispatcher routes calls across an ordered list of providers. Provider 0 is
// "primary", provider 1 (if present) is "secondary"; strategies beyond
// PRIMARY_ONLY/ROUND_ROBIN generally only look at the first two.
type Dispatcher struct {
	providers []provider.Provider
	strategy  Strategy
	retry     RetryPolicy
	logger    Logger

	counter int64 // ROUND_ROBIN cursor, mutated via sync/atomic

	mu    sync.Mutex
	stats Stats
}

// Logger is the narrow logging capability Dispatcher needs; *slog.Logger
// satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New builds a Dispatcher. providers must be non-empty; providers[0] is
// primary.
func New(providers []provider.Provider, strategy Strategy, retry RetryPolicy, logger Logger) *Dispatcher {
	return &Dispatcher{providers: providers, strategy: strategy, retry: retry, logger: logger}
}

func (d *Dispatcher) recordRequest(idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.TotalRequests++
	if idx == 0 {
		d.stats.PrimaryRequests++
	} else {
		d.stats.SecondaryRequests++
	}
}

func (d *Dispatcher) recordFailover() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.FailoverEvents++
}

// Stats returns a consistent snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	if s.TotalRequests > 0 {
		s.PercentSplit = float64(s.SecondaryRequests) / float64(s.TotalRequests)
	}
	return s
}

// ResetStats zeroes all counters.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = Stats{}
}

// Healthy reports whether provider index is currently reachable.
func (d *Dispatcher) Healthy(ctx context.Context, index int) bool {
	if index < 0 || index >= len(d.providers) {
		return false
	}
	return d.providers[index].IsOnline(ctx)
}

// ListAllModels aggregates ListModels across every configured provider.
func (d *Dispatcher) ListAllModels(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range d.providers {
		models, err := p.ListModels(ctx)
		if err != nil {
			d.logger.Warn("dispatch: list models failed", "provider", p.Name(), "error", err)
			continue
		}
		for _, m := range models {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// FindProviderByModel resolves a model name to a provider index using
// exact → substring → case-insensitive matching, in that priority order
// (spec.md §4.4).
func (d *Dispatcher) FindProviderByModel(ctx context.Context, model string) (int, error) {
	for i, p := range d.providers {
		models, err := p.ListModels(ctx)
		if err != nil {
			continue
		}
		for _, m := range models {
			if m == model {
				return i, nil
			}
		}
	}
	for i, p := range d.providers {
		models, err := p.ListModels(ctx)
		if err != nil {
			continue
		}
		for _, m := range models {
			if strings.Contains(m, model) {
				return i, nil
			}
		}
	}
	lower := strings.ToLower(model)
	for i, p := range d.providers {
		models, err := p.ListModels(ctx)
		if err != nil {
			continue
		}
		for _, m := range models {
			if strings.ToLower(m) == lower {
				return i, nil
			}
		}
	}
	return -1, ragerr.New(ragerr.ModelNotFound, "FindProviderByModel", fmt.Errorf("no provider advertises model %q", model))
}

func (d *Dispatcher) providerCount() int {
	return len(d.providers)
}
