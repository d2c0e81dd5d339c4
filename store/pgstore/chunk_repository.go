package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

var _ store.ChunkRepository = (*ChunkRepository)(nil)

// ChunkRepository is the Postgres/pgvector implementation of
// store.ChunkRepository.
type ChunkRepository struct {
	db *DB
}

func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// InsertBatch persists chunks with a null vector column (spec.md §4.7 (iii):
// the null-vector commit must precede embedding) inside a single transaction,
// mirroring the teacher's CreateBatch shape.
func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []model.Chunk) ([]uuid.UUID, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.InsertBatch", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO chunks (library_id, document_id, chapter_id, kind, text, order_in_chapter, vector, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
		RETURNING id
	`

	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, ragerr.New(ragerr.InvalidInput, "ChunkRepository.InsertBatch", err)
		}
		row := tx.QueryRow(ctx, query, c.LibraryID, c.DocumentID, c.ChapterID, string(c.Kind), c.Text, c.OrderInChapter, metadata)
		if err := row.Scan(&ids[i]); err != nil {
			return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.InsertBatch", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.InsertBatch", err)
	}
	return ids, nil
}

// UpdateVector binds vec as a native pgvector.Vector parameter rather than a
// formatted string, so Postgres handles the float32 payload directly through
// the registered vector codec.
func (r *ChunkRepository) UpdateVector(ctx context.Context, id uuid.UUID, vec []float32) error {
	const query = `UPDATE chunks SET vector = $1, updated_at = now() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, pgvector.NewVector(vec), id)
	if err != nil {
		return ragerr.New(ragerr.PersistenceError, "ChunkRepository.UpdateVector", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.New(ragerr.NotFound, "ChunkRepository.UpdateVector", fmt.Errorf("chunk %s", id))
	}
	return nil
}

// UpdateMetadata merges metadata into the chunk's existing metadata jsonb
// column via Postgres's own `||` merge operator, so a concurrent UpdateVector
// call on the same row never clobbers this write (and vice versa).
func (r *ChunkRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	merge, err := json.Marshal(metadata)
	if err != nil {
		return ragerr.New(ragerr.InvalidInput, "ChunkRepository.UpdateMetadata", err)
	}
	const query = `UPDATE chunks SET metadata = coalesce(metadata, '{}'::jsonb) || $1::jsonb, updated_at = now() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, merge, id)
	if err != nil {
		return ragerr.New(ragerr.PersistenceError, "ChunkRepository.UpdateMetadata", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.New(ragerr.NotFound, "ChunkRepository.UpdateMetadata", fmt.Errorf("chunk %s", id))
	}
	return nil
}

func (r *ChunkRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	const query = `
		SELECT id, library_id, document_id, chapter_id, kind, text, order_in_chapter, vector, metadata, created_at, updated_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chapter_id, order_in_chapter
	`
	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.FindByDocument", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (r *ChunkRepository) FindByLibrary(ctx context.Context, libraryIDs []uuid.UUID) ([]model.Chunk, error) {
	const query = `
		SELECT id, library_id, document_id, chapter_id, kind, text, order_in_chapter, vector, metadata, created_at, updated_at
		FROM chunks
		WHERE library_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, libraryIDs)
	if err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "ChunkRepository.FindByLibrary", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows pgx.Rows) ([]model.Chunk, error) {
	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var kind string
		var vec *pgvector.Vector
		var metadata []byte

		if err := rows.Scan(&c.ID, &c.LibraryID, &c.DocumentID, &c.ChapterID, &kind, &c.Text,
			&c.OrderInChapter, &vec, &metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, ragerr.New(ragerr.PersistenceError, "scanChunks", err)
		}
		c.Kind = model.ChunkKind(kind)
		if vec != nil {
			c.Vector = vec.Slice()
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, ragerr.New(ragerr.PersistenceError, "scanChunks", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.New(ragerr.PersistenceError, "scanChunks", err)
	}
	return out, nil
}
