package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/search"
)

var (
	_ search.VectorSearcher = (*ChunkRepository)(nil)
	_ search.TextSearcher   = (*ChunkRepository)(nil)
)

// SearchByVector ranks chunks.vector by ascending cosine distance (the
// pgvector `<=>` operator), per spec.md §4.9's semantic pass. NULL vectors
// never match: an EMBEDDING/PARTIAL document's unfilled chunks are
// correctly excluded, per §4.10's state machine note.
func (r *ChunkRepository) SearchByVector(ctx context.Context, libraryIDs []uuid.UUID, vec []float32, limit int) ([]search.ScoredChunk, error) {
	const query = `
		SELECT id, library_id, document_id, chapter_id, kind, text, order_in_chapter, vector, metadata, created_at, updated_at
		FROM chunks
		WHERE library_id = ANY($1) AND vector IS NOT NULL
		ORDER BY vector <=> $2
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, libraryIDs, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.SearchByVector", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	return rankChunks(chunks), nil
}

// SearchByText ranks chunks.text_search by descending ts_rank_cd against a
// websearch_to_tsquery('simple_unaccent', ...) built from the already
// validated query string, per spec.md §4.9's lexical pass and §6's
// simple_unaccent search configuration.
func (r *ChunkRepository) SearchByText(ctx context.Context, libraryIDs []uuid.UUID, q search.ParsedQuery, limit int) ([]search.ScoredChunk, error) {
	const query = `
		SELECT id, library_id, document_id, chapter_id, kind, text, order_in_chapter, vector, metadata, created_at, updated_at
		FROM chunks
		WHERE library_id = ANY($1) AND text_search @@ websearch_to_tsquery('simple_unaccent', $2)
		ORDER BY ts_rank_cd(text_search, websearch_to_tsquery('simple_unaccent', $2)) DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, libraryIDs, q.Raw, limit)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.SearchByText", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	return rankChunks(chunks), nil
}

func rankChunks(chunks []model.Chunk) []search.ScoredChunk {
	out := make([]search.ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = search.ScoredChunk{Chunk: c, Rank: i + 1}
	}
	return out
}
