package memstore

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/search"
)

var (
	_ search.VectorSearcher = (*ChunkRepository)(nil)
	_ search.TextSearcher   = (*ChunkRepository)(nil)
)

// SearchByVector delegates to the backing chromem collection's
// QueryEmbedding, which already ranks by cosine similarity — the closest
// match first, matching the ascending-cosine-distance contract.
func (r *ChunkRepository) SearchByVector(ctx context.Context, libraryIDs []uuid.UUID, vec []float32, limit int) ([]search.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	want := toSet(libraryIDs)

	res, err := r.collection.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.SearchByVector", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []search.ScoredChunk
	for _, doc := range res {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			continue
		}
		c, ok := r.byID[id]
		if !ok || (len(want) > 0 && !want[c.LibraryID]) {
			continue
		}
		out = append(out, search.ScoredChunk{Chunk: c, Rank: len(out) + 1})
	}
	return out, nil
}

// tokenRegex mirrors the tokenizer other_examples' sweetpotato0-ai-allin BM25
// index uses: runs of letters (with combining marks) or digits.
var tokenRegex = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*|\p{N}+`)

func tokenize(text string) []string {
	return tokenRegex.FindAllString(strings.ToLower(text), -1)
}

// SearchByText ranks chunks by a BM25 score over an inverted index built on
// demand from the chunks currently held, approximating ts_rank_cd for tests
// and zero-dependency local use (pgstore is the source of truth for real
// full-text ranking, per spec.md §6). Excluded terms drop a chunk entirely.
func (r *ChunkRepository) SearchByText(ctx context.Context, libraryIDs []uuid.UUID, q search.ParsedQuery, limit int) ([]search.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	want := toSet(libraryIDs)

	r.mu.Lock()
	defer r.mu.Unlock()

	terms := make([]string, 0, len(q.Terms)+len(q.Phrases))
	terms = append(terms, q.Terms...)
	for _, phrase := range q.Phrases {
		terms = append(terms, tokenize(phrase)...)
	}
	excluded := make(map[string]bool, len(q.Excluded))
	for _, t := range q.Excluded {
		excluded[t] = true
	}

	idx := buildBM25Index(r.byID, want)

	type scored struct {
		id    uuid.UUID
		score float64
	}
	var candidates []scored
	for id, doc := range idx.docs {
		skip := false
		for term := range excluded {
			if doc.termFreq[term] > 0 {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		score := idx.score(id, terms)
		if score > 0 {
			candidates = append(candidates, scored{id: id, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id.String() < candidates[j].id.String()
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]search.ScoredChunk, len(candidates))
	for i, c := range candidates {
		out[i] = search.ScoredChunk{Chunk: r.byID[c.id], Rank: i + 1}
	}
	return out, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// bm25Doc holds one chunk's term frequencies and length for scoring.
type bm25Doc struct {
	termFreq map[string]int
	length   int
}

// bm25Index is a minimal Okapi BM25 implementation over the chunks currently
// in memory, grounded on other_examples' sweetpotato0-ai-allin hybrid.bm25Index
// (same k1=1.6, b=0.75 constants and idf formula).
type bm25Index struct {
	docs    map[uuid.UUID]bm25Doc
	docFreq map[string]int
	avgLen  float64
}

const (
	bm25K1 = 1.6
	bm25B  = 0.75
)

func buildBM25Index(byID map[uuid.UUID]model.Chunk, want map[uuid.UUID]bool) *bm25Index {
	idx := &bm25Index{docs: map[uuid.UUID]bm25Doc{}, docFreq: map[string]int{}}
	var totalLen int
	for id, c := range byID {
		if len(want) > 0 && !want[c.LibraryID] {
			continue
		}
		terms := tokenize(c.Text)
		tf := map[string]int{}
		for _, t := range terms {
			tf[t]++
		}
		idx.docs[id] = bm25Doc{termFreq: tf, length: len(terms)}
		totalLen += len(terms)
		for t := range tf {
			idx.docFreq[t]++
		}
	}
	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

func (idx *bm25Index) score(id uuid.UUID, terms []string) float64 {
	doc, ok := idx.docs[id]
	if !ok || idx.avgLen == 0 {
		return 0
	}
	n := float64(len(idx.docs))
	var score float64
	for _, term := range terms {
		tf := doc.termFreq[term]
		if tf == 0 {
			continue
		}
		df := float64(idx.docFreq[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		numerator := float64(tf) * (bm25K1 + 1)
		denominator := float64(tf) + bm25K1*(1-bm25B+bm25B*(float64(doc.length)/idx.avgLen))
		score += idf * (numerator / denominator)
	}
	return score
}
