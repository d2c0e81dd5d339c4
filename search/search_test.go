package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/model"
)

type fakeVectorSearcher struct {
	chunks []ScoredChunk
}

func (f fakeVectorSearcher) SearchByVector(ctx context.Context, libraryIDs []uuid.UUID, vec []float32, limit int) ([]ScoredChunk, error) {
	if limit < len(f.chunks) {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeTextSearcher struct {
	chunks []ScoredChunk
}

func (f fakeTextSearcher) SearchByText(ctx context.Context, libraryIDs []uuid.UUID, query ParsedQuery, limit int) ([]ScoredChunk, error) {
	if limit < len(f.chunks) {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedOne(ctx context.Context, text string, op dispatch.Op) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestSearchHybridFusesScoresAndRespectsLibraryWeights(t *testing.T) {
	lib := model.Library{ID: uuid.New(), WeightSemantic: 0.7, WeightLexical: 0.3}
	onlySemantic := model.Chunk{ID: uuid.New(), LibraryID: lib.ID, Text: "semantic only"}
	onlyLexical := model.Chunk{ID: uuid.New(), LibraryID: lib.ID, Text: "lexical only"}
	both := model.Chunk{ID: uuid.New(), LibraryID: lib.ID, Text: "both"}

	engine := &Engine{
		Vectors: fakeVectorSearcher{chunks: []ScoredChunk{{Chunk: both, Rank: 1}, {Chunk: onlySemantic, Rank: 2}}},
		Text:    fakeTextSearcher{chunks: []ScoredChunk{{Chunk: both, Rank: 1}, {Chunk: onlyLexical, Rank: 2}}},
		Embed:   fakeEmbedder{},
	}

	results, err := engine.SearchHybrid(context.Background(), "some query", []model.Library{lib}, 5, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, both.ID, results[0].Chunk.ID, "a chunk present in both passes should outrank either alone")
}

func TestSearchHybridRejectsKOutOfRange(t *testing.T) {
	lib := model.Library{ID: uuid.New(), WeightSemantic: 0.5, WeightLexical: 0.5}
	engine := &Engine{Vectors: fakeVectorSearcher{}, Text: fakeTextSearcher{}, Embed: fakeEmbedder{}}

	_, err := engine.SearchHybrid(context.Background(), "q", []model.Library{lib}, 0, nil, nil)
	assert.Error(t, err)

	_, err = engine.SearchHybrid(context.Background(), "q", []model.Library{lib}, 101, nil, nil)
	assert.Error(t, err)
}

func TestSearchHybridRejectsMismatchedWeightOverride(t *testing.T) {
	lib := model.Library{ID: uuid.New(), WeightSemantic: 0.5, WeightLexical: 0.5}
	engine := &Engine{Vectors: fakeVectorSearcher{}, Text: fakeTextSearcher{}, Embed: fakeEmbedder{}}

	wSem := 0.6
	_, err := engine.SearchHybrid(context.Background(), "q", []model.Library{lib}, 5, &wSem, nil)
	assert.Error(t, err)
}

func TestSearchHybridRejectsWeightOverrideNotSummingToOne(t *testing.T) {
	lib := model.Library{ID: uuid.New(), WeightSemantic: 0.5, WeightLexical: 0.5}
	engine := &Engine{Vectors: fakeVectorSearcher{}, Text: fakeTextSearcher{}, Embed: fakeEmbedder{}}

	wSem, wLex := 0.9, 0.5
	_, err := engine.SearchHybrid(context.Background(), "q", []model.Library{lib}, 5, &wSem, &wLex)
	assert.Error(t, err)
}

func TestSearchSemanticRejectsEmptyQuery(t *testing.T) {
	lib := model.Library{ID: uuid.New(), WeightSemantic: 0.5, WeightLexical: 0.5}
	engine := &Engine{Vectors: fakeVectorSearcher{}, Text: fakeTextSearcher{}, Embed: fakeEmbedder{}}

	_, err := engine.SearchSemantic(context.Background(), "   ", []model.Library{lib}, 5)
	assert.Error(t, err)
}

func TestParseQueryParsesTermsPhrasesAndExclusions(t *testing.T) {
	pq, err := ParseQuery(`contract law "force majeure" -arbitration`)
	require.NoError(t, err)
	assert.Equal(t, []string{"contract", "law"}, pq.Terms)
	assert.Equal(t, []string{"force majeure"}, pq.Phrases)
	assert.Equal(t, []string{"arbitration"}, pq.Excluded)
}

func TestParseQueryRejectsBareBooleanOperators(t *testing.T) {
	_, err := ParseQuery("cats AND dogs")
	assert.Error(t, err)
}

func TestParseQueryRejectsEmptyQuery(t *testing.T) {
	_, err := ParseQuery("   ")
	assert.Error(t, err)
}

func TestParseQueryAllowsOrAsAnOrdinaryWordInsideAPhrase(t *testing.T) {
	pq, err := ParseQuery(`"cats or dogs"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"cats or dogs"}, pq.Phrases)
}
