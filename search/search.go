// Package search implements spec.md §4.9's hybrid search (C9): reciprocal
// rank fusion over a semantic pass and a lexical pass, weighted per library.
// Grounded on the teacher's postprocessor.RankGPTRerank for the general
// "collect candidates from an external call, score, sort, truncate to k"
// shape, and on other_examples' sweetpotato0-ai-allin hybrid.Engine for the
// two-modality weighted-merge structure — adapted here from that engine's ad
// hoc score addition to spec.md's exact reciprocal-rank-fusion formula and
// per-library weight resolution.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

const maxK = 100

// ScoredChunk is one candidate returned by a single-modality searcher,
// carrying its 1-based rank within that modality's result list.
type ScoredChunk struct {
	Chunk model.Chunk
	Rank  int
}

// VectorSearcher returns the top `limit` chunks across libraryIDs ordered by
// ascending cosine distance to vec (closest first).
type VectorSearcher interface {
	SearchByVector(ctx context.Context, libraryIDs []uuid.UUID, vec []float32, limit int) ([]ScoredChunk, error)
}

// TextSearcher returns the top `limit` chunks across libraryIDs ordered by
// descending lexical rank (ts_rank_cd or an equivalent) against query.
type TextSearcher interface {
	SearchByText(ctx context.Context, libraryIDs []uuid.UUID, query ParsedQuery, limit int) ([]ScoredChunk, error)
}

// QueryEmbedder embeds the search query into the library's vector space.
// Satisfied structurally by *embedctx.Context.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string, op dispatch.Op) ([]float32, error)
}

// Result is one ranked hit returned to the caller.
type Result struct {
	Chunk model.Chunk
	Score float64
}

// Engine implements search_hybrid/search_semantic/search_textual.
type Engine struct {
	Vectors VectorSearcher
	Text    TextSearcher
	Embed   QueryEmbedder
	Logger  *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func validateK(k int) error {
	if k <= 0 || k > maxK {
		return ragerr.New(ragerr.InvalidInput, "search", fmt.Errorf("k must be in (0, %d], got %d", maxK, k))
	}
	return nil
}

func libraryIDs(libs []model.Library) []uuid.UUID {
	ids := make([]uuid.UUID, len(libs))
	for i, l := range libs {
		ids[i] = l.ID
	}
	return ids
}

func libraryByID(libs []model.Library) map[uuid.UUID]model.Library {
	m := make(map[uuid.UUID]model.Library, len(libs))
	for _, l := range libs {
		m[l.ID] = l
	}
	return m
}

// resolveWeights returns the semantic/lexical weights to use for a library,
// honoring a per-call override (spec.md §4.9: "overridable per call"). Both
// override values must be supplied together, and must satisfy the same
// w_sem+w_lex=1.0 tolerance as a library's stored defaults.
func resolveWeights(lib model.Library, wSemOverride, wLexOverride *float64) (float64, float64, error) {
	wSem, wLex := lib.WeightSemantic, lib.WeightLexical
	if wSemOverride != nil || wLexOverride != nil {
		if wSemOverride == nil || wLexOverride == nil {
			return 0, 0, ragerr.New(ragerr.InvalidInput, "search", fmt.Errorf("w_sem and w_lex must be supplied together"))
		}
		wSem, wLex = *wSemOverride, *wLexOverride
	}
	candidate := model.Library{WeightSemantic: wSem, WeightLexical: wLex}
	if err := candidate.ValidateWeights(); err != nil {
		return 0, 0, ragerr.New(ragerr.InvalidInput, "search", err)
	}
	return wSem, wLex, nil
}

// rrfScore is spec.md §4.9's reciprocal-rank-fusion term: 1/(k+rank), using
// the caller's requested top-k as the fusion constant rather than a fixed
// RRF constant.
func rrfScore(k, rank int) float64 {
	return 1 / float64(k+rank)
}

// SearchHybrid fuses the semantic and lexical passes per spec.md §4.9's
// algorithm and returns the top k chunks by combined score.
func (e *Engine) SearchHybrid(ctx context.Context, q string, libs []model.Library, k int, wSemOverride, wLexOverride *float64) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	parsed, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}
	ids := libraryIDs(libs)
	byID := libraryByID(libs)

	qVec, err := e.Embed.EmbedOne(ctx, q, dispatch.OpQuery)
	if err != nil {
		return nil, ragerr.New(ragerr.ProviderUnavailable, "SearchHybrid", err)
	}

	limit := 2 * k
	semantic, err := e.Vectors.SearchByVector(ctx, ids, qVec, limit)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "SearchHybrid", err)
	}
	lexical, err := e.Text.SearchByText(ctx, ids, parsed, limit)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "SearchHybrid", err)
	}

	type fused struct {
		chunk model.Chunk
		s, l  float64
	}
	byChunk := map[uuid.UUID]*fused{}
	for _, sc := range semantic {
		f, ok := byChunk[sc.Chunk.ID]
		if !ok {
			f = &fused{chunk: sc.Chunk}
			byChunk[sc.Chunk.ID] = f
		}
		f.s = rrfScore(k, sc.Rank)
	}
	for _, sc := range lexical {
		f, ok := byChunk[sc.Chunk.ID]
		if !ok {
			f = &fused{chunk: sc.Chunk}
			byChunk[sc.Chunk.ID] = f
		}
		f.l = rrfScore(k, sc.Rank)
	}

	results := make([]Result, 0, len(byChunk))
	for _, f := range byChunk {
		lib, ok := byID[f.chunk.LibraryID]
		if !ok {
			continue
		}
		wSem, wLex, err := resolveWeights(lib, wSemOverride, wLexOverride)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Chunk: f.chunk, Score: wSem*f.s + wLex*f.l})
	}

	sortResultsDesc(results)
	if len(results) > k {
		results = results[:k]
	}
	e.logger().Debug("search: hybrid query complete", "semantic_candidates", len(semantic), "lexical_candidates", len(lexical), "returned", len(results))
	return results, nil
}

// SearchSemantic runs only the cosine-distance pass.
func (e *Engine) SearchSemantic(ctx context.Context, q string, libs []model.Library, k int) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	if _, err := ParseQuery(q); err != nil {
		return nil, err
	}
	qVec, err := e.Embed.EmbedOne(ctx, q, dispatch.OpQuery)
	if err != nil {
		return nil, ragerr.New(ragerr.ProviderUnavailable, "SearchSemantic", err)
	}
	candidates, err := e.Vectors.SearchByVector(ctx, libraryIDs(libs), qVec, k)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "SearchSemantic", err)
	}
	return scoredToResults(candidates, k), nil
}

// SearchTextual runs only the lexical pass.
func (e *Engine) SearchTextual(ctx context.Context, q string, libs []model.Library, k int) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	parsed, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}
	candidates, err := e.Text.SearchByText(ctx, libraryIDs(libs), parsed, k)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "SearchTextual", err)
	}
	return scoredToResults(candidates, k), nil
}

func scoredToResults(candidates []ScoredChunk, k int) []Result {
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Result{Chunk: c.Chunk, Score: rrfScore(k, c.Rank)})
	}
	sortResultsDesc(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func sortResultsDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID.String() < results[j].Chunk.ID.String()
	})
}
