package pgstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

var _ store.ChapterRepository = (*ChapterRepository)(nil)

// ChapterRepository is the Postgres implementation of
// store.ChapterRepository.
type ChapterRepository struct {
	db *DB
}

func NewChapterRepository(db *DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// InsertBatch persists chapters inside a single transaction, mirroring
// ChunkRepository.InsertBatch's batched-transaction shape.
func (r *ChapterRepository) InsertBatch(ctx context.Context, chapters []model.Chapter) ([]uuid.UUID, error) {
	if len(chapters) == 0 {
		return nil, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChapterRepository.InsertBatch", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO chapters (document_id, title, body, order_in_document, token_start, token_end, token_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	ids := make([]uuid.UUID, len(chapters))
	for i, c := range chapters {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, ragerr.New(ragerr.InvalidInput, "ChapterRepository.InsertBatch", err)
		}
		row := tx.QueryRow(ctx, query, c.DocumentID, c.Title, c.Body, c.OrderInDocument, c.TokenStart, c.TokenEnd, c.TokenCount, metadata)
		if err := row.Scan(&ids[i]); err != nil {
			return nil, ragerr.New(ragerr.PersistenceError, "ChapterRepository.InsertBatch", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChapterRepository.InsertBatch", err)
	}
	return ids, nil
}
