package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/embedctx"
	"github.com/stratarag/stratarag/llmctx"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/router"
	"github.com/stratarag/stratarag/splitter"
	"github.com/stratarag/stratarag/store/memstore"
	"github.com/stratarag/stratarag/tokencount"
)

// fakeProvider embeds every text as a constant unit vector and completes
// with a canned string, so Process/Enrich exercise the real
// embedctx/llmctx/dispatch stack without a network call.
type fakeProvider struct{}

func (fakeProvider) Name() string                                     { return "p0" }
func (fakeProvider) IsOnline(ctx context.Context) bool                { return true }
func (fakeProvider) ListModels(ctx context.Context) ([]string, error) { return []string{"m"}, nil }
func (fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (fakeProvider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	return "1. What happened?\n2. Why did it happen?\n", nil
}

type fixedTokenizer struct{}

func (fixedTokenizer) CountTokens(ctx context.Context, text, model string) (int, error) {
	return len(strings.Fields(text)), nil
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

type memChunkRepo struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]model.Chunk
}

func newMemChunkRepo() *memChunkRepo { return &memChunkRepo{byID: map[uuid.UUID]model.Chunk{}} }

func (r *memChunkRepo) InsertBatch(ctx context.Context, chunks []model.Chunk) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		id := uuid.New()
		c.ID = id
		r.byID[id] = c
		ids[i] = id
	}
	return ids, nil
}

func (r *memChunkRepo) UpdateVector(ctx context.Context, id uuid.UUID, vec []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return assertNotFound
	}
	c.Vector = vec
	r.byID[id] = c
	return nil
}

func (r *memChunkRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return assertNotFound
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		c.Metadata[k] = v
	}
	r.byID[id] = c
	return nil
}

func (r *memChunkRepo) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Chunk
	for _, c := range r.byID {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChunkRepo) FindByLibrary(ctx context.Context, libraryIDs []uuid.UUID) ([]model.Chunk, error) {
	return nil, nil
}

var assertNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "chunk not found" }

type memChapterRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Chapter
}

func newMemChapterRepo() *memChapterRepo { return &memChapterRepo{byID: map[uuid.UUID]model.Chapter{}} }

func (r *memChapterRepo) InsertBatch(ctx context.Context, chapters []model.Chapter) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, len(chapters))
	for i, c := range chapters {
		id := uuid.New()
		c.ID = id
		r.byID[id] = c
		ids[i] = id
	}
	return ids, nil
}

func newTestService(chunkRepo *memChunkRepo, chapterRepo *memChapterRepo) *Service {
	d := dispatch.New([]provider.Provider{fakeProvider{}}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	counter := tokencount.New(fixedTokenizer{}, noopLogger())
	sp := splitter.New(splitter.DefaultConfig(), counter, nil)
	r := router.New(nil, noopLogger())

	return &Service{
		Router:   r,
		Splitter: sp,
		Chapters: chapterRepo,
		Chunks:   chunkRepo,
		EmbedCtx: func(lib model.Library) (*embedctx.Context, error) {
			return embedctx.New(d, lib.EmbeddingModel, 2, 8192, counter), nil
		},
		LLMCtx: func(lib model.Library) (*llmctx.Context, error) {
			return llmctx.New(d, lib.CompletionModel, noopLogger()), nil
		},
		Logger:                 noopLogger(),
		BatchSize:              5,
		SummaryThresholdTokens: 2500,
		SummaryMaxTokens:       2048,
	}
}

func testLibrary() model.Library {
	return model.Library{ID: uuid.New(), EmbeddingModel: "embed-m", EmbeddingDimension: 2, CompletionModel: "complete-m"}
}

func TestProcessShortDocumentProducesSingleChapterChunk(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)

	doc := model.Document{ID: uuid.New(), RawText: "A short document with only a few words in it."}
	lib := testLibrary()

	stats, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chapters)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
}

func TestProcessLongChapterProducesSummaryAndExcerptChunks(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)
	svc.SummaryThresholdTokens = 50

	longBody := strings.Repeat("word ", 3000)
	doc := model.Document{ID: uuid.New(), RawText: longBody}
	lib := testLibrary()

	stats, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Chunks, 2)
	assert.Equal(t, stats.Chunks, stats.Processed)

	foundSummary := false
	for _, c := range chunkRepo.byID {
		if c.Kind == model.ChunkKindSummary {
			foundSummary = true
		}
	}
	assert.True(t, foundSummary)
}

// Oversized-text markers (spec.md §4.5, §4.7) must reach the repository, not
// just the in-memory chunk value embedAndUpdate mutates before the
// UpdateVector call has already fired.
func TestProcessPersistsOversizedTextMetadataMarkers(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)

	d := dispatch.New([]provider.Provider{fakeProvider{}}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	counter := tokencount.New(fixedTokenizer{}, noopLogger())
	// contextLength=5 against a 10-word chunk body: overage is 50%, past the
	// 5% threshold, and no Summarizer is configured, so prepareText falls
	// back to truncation and reports TextTruncated.
	svc.EmbedCtx = func(lib model.Library) (*embedctx.Context, error) {
		return embedctx.New(d, lib.EmbeddingModel, 2, 5, counter), nil
	}

	doc := model.Document{ID: uuid.New(), RawText: "A short document with only a few words in it."}
	lib := testLibrary()

	stats, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	var found model.Chunk
	for _, c := range chunkRepo.byID {
		found = c
	}
	assert.Equal(t, true, found.Metadata["texto_truncado"])
}

func TestProcessRecordsReadyStateOnSuccess(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)
	docs := memstore.NewDocumentRepository()
	svc.Documents = docs

	doc := model.Document{ID: uuid.New(), RawText: "A short document with only a few words in it."}
	lib := testLibrary()

	_, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStateReady, docs.State(doc.ID))
}

func TestProcessRecordsFailedStateWhenSplittingProducesNoChapters(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)
	docs := memstore.NewDocumentRepository()
	svc.Documents = docs

	doc := model.Document{ID: uuid.New(), RawText: ""}
	lib := testLibrary()

	_, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	require.Error(t, err)
	assert.Equal(t, model.DocumentStateFailed, docs.State(doc.ID))
}

func TestProcessRejectsEmptyDocument(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)

	doc := model.Document{ID: uuid.New(), RawText: ""}
	lib := testLibrary()

	_, err := svc.Process(context.Background(), doc, lib, GenFlagOnlyText, router.Hint{})
	assert.Error(t, err)
}

func TestEnrichGeneratesQuestionAnswerPairsAndSummary(t *testing.T) {
	chunkRepo := newMemChunkRepo()
	chapterRepo := newMemChapterRepo()
	svc := newTestService(chunkRepo, chapterRepo)

	doc := model.Document{ID: uuid.New()}
	lib := testLibrary()
	chapter := model.Chapter{ID: uuid.New(), DocumentID: doc.ID, Body: "some chapter content about a topic"}

	stats, err := svc.Enrich(context.Background(), doc, lib, []model.Chapter{chapter}, GenFlagOnlyText, EnrichOptions{
		QA: true, NQA: 2, Summary: true, MaxSummaryTokens: 200, ContinueOnError: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChaptersProcessed)
	assert.Equal(t, 0, stats.ChaptersFailed)
	// 2 questions * 2 chunks (question+answer) + 1 summary chunk.
	assert.Equal(t, 5, stats.ChunksCreated)
}

func TestEnrichRejectsWhenNoTypeEnabled(t *testing.T) {
	svc := newTestService(newMemChunkRepo(), newMemChapterRepo())
	_, err := svc.Enrich(context.Background(), model.Document{}, testLibrary(), nil, GenFlagOnlyText, EnrichOptions{})
	assert.Error(t, err)
}

func TestEnrichRejectsNQAOutOfRange(t *testing.T) {
	svc := newTestService(newMemChunkRepo(), newMemChapterRepo())
	_, err := svc.Enrich(context.Background(), model.Document{}, testLibrary(), nil, GenFlagOnlyText, EnrichOptions{QA: true, NQA: 21})
	assert.Error(t, err)
}

func TestEnrichRejectsMaxSummaryOutOfRange(t *testing.T) {
	svc := newTestService(newMemChunkRepo(), newMemChapterRepo())
	_, err := svc.Enrich(context.Background(), model.Document{}, testLibrary(), nil, GenFlagOnlyText, EnrichOptions{Summary: true, MaxSummaryTokens: 50})
	assert.Error(t, err)
}

func TestBuildMetadataBlockFiltersSuppressedKeysAndSorts(t *testing.T) {
	meta := map[string]any{"crc": "abc", "title": "Intro", "author": "Ada"}
	block := buildMetadataBlock(meta)
	assert.Equal(t, "author: Ada\ntitle: Intro", block)
}

func TestEmbedTextRespectsGenFlag(t *testing.T) {
	c := model.Chunk{Text: "body text", Metadata: map[string]any{"title": "T"}}
	assert.Equal(t, "body text", embedText(c, GenFlagOnlyText))
	assert.Equal(t, "title: T", embedText(c, GenFlagOnlyMetadata))
	assert.Equal(t, "title: T\n\nbody text", embedText(c, GenFlagFullTextMetadata))
}
