package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/model"
)

func TestChunkRepositoryInsertBatchAssignsIDs(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	docID := uuid.New()
	ids, err := repo.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: docID, Kind: model.ChunkKindChapter, Text: "a"},
		{DocumentID: docID, Kind: model.ChunkKindChapter, Text: "b"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEqual(t, uuid.Nil, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestChunkRepositoryUpdateVectorRejectsUnknownID(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	err = repo.UpdateVector(context.Background(), uuid.New(), []float32{1, 2})
	assert.Error(t, err)
}

func TestChunkRepositoryUpdateVectorMakesChunkQueryable(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	docID := uuid.New()
	ids, err := repo.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: docID, Kind: model.ChunkKindChapter, Text: "hello world"},
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateVector(context.Background(), ids[0], []float32{1, 0, 0}))

	res, err := repo.Collection().QueryEmbedding(context.Background(), []float32{1, 0, 0}, 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, ids[0].String(), res[0].ID)
}

func TestChunkRepositoryUpdateMetadataMergesIntoExisting(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	docID := uuid.New()
	ids, err := repo.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: docID, Kind: model.ChunkKindExcerpt, Text: "hello world", Metadata: map[string]any{"title": "Intro"}},
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateMetadata(context.Background(), ids[0], map[string]any{"texto_truncado": true}))

	chunks, err := repo.FindByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Intro", chunks[0].Metadata["title"])
	assert.Equal(t, true, chunks[0].Metadata["texto_truncado"])
}

func TestChunkRepositoryUpdateMetadataRejectsUnknownID(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	err = repo.UpdateMetadata(context.Background(), uuid.New(), map[string]any{"texto_truncado": true})
	assert.Error(t, err)
}

func TestChunkRepositoryFindByDocumentFiltersAndOrders(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	docA, docB := uuid.New(), uuid.New()
	orderOne, orderTwo := 1, 2
	_, err = repo.InsertBatch(context.Background(), []model.Chunk{
		{DocumentID: docA, OrderInChapter: &orderTwo, Text: "second"},
		{DocumentID: docA, OrderInChapter: &orderOne, Text: "first"},
		{DocumentID: docB, Text: "other document"},
	})
	require.NoError(t, err)

	chunks, err := repo.FindByDocument(context.Background(), docA)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
}

func TestChunkRepositoryFindByLibraryFiltersAcrossMultipleLibraries(t *testing.T) {
	repo, err := NewChunkRepository()
	require.NoError(t, err)

	libA, libB, libC := uuid.New(), uuid.New(), uuid.New()
	_, err = repo.InsertBatch(context.Background(), []model.Chunk{
		{LibraryID: libA, Text: "a"},
		{LibraryID: libB, Text: "b"},
		{LibraryID: libC, Text: "c"},
	})
	require.NoError(t, err)

	chunks, err := repo.FindByLibrary(context.Background(), []uuid.UUID{libA, libB})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestChapterRepositoryInsertBatchAssignsIDs(t *testing.T) {
	repo := NewChapterRepository()
	ids, err := repo.InsertBatch(context.Background(), []model.Chapter{
		{Title: "One"},
		{Title: "Two"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}
