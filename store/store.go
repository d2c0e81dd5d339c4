// Package store defines the chunk persistence port (spec.md §4.8).
// ingest.Service and search.Engine both depend on this interface rather than
// a concrete backend; store/pgstore and store/memstore provide the two
// implementations this module ships. Grounded structurally on the teacher's
// docstore.DocStore / vectorstore.VectorStore ports (small, consumer-facing
// interfaces in their own package, implementations in sibling packages named
// after the backend).
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
)

// ChunkRepository is the persistence port for model.Chunk (spec.md §4.8).
// UpdateVector MUST bind vec as a native vector parameter; a string-encoded
// vector is the exact anti-pattern spec.md §9 calls out.
type ChunkRepository interface {
	// InsertBatch persists chunks in one transaction and returns their
	// assigned ids, in the same order as chunks. Vectors may be nil at
	// insert time (spec.md §4.7's null-vector commit-before-embed step).
	InsertBatch(ctx context.Context, chunks []model.Chunk) ([]uuid.UUID, error)
	// UpdateVector sets a single chunk's vector in one statement. A failure
	// here must not roll back any other chunk's update.
	UpdateVector(ctx context.Context, id uuid.UUID, vec []float32) error
	// UpdateMetadata merges the given key/value pairs into a chunk's existing
	// metadata, e.g. the §4.5 oversized-text markers (resumo_gerado,
	// tokens_originais, texto_truncado) the embedding-context text
	// preparation step produces alongside the vector it embeds.
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error)
	FindByLibrary(ctx context.Context, libraryIDs []uuid.UUID) ([]model.Chunk, error)
}

// ChapterRepository is the persistence port for model.Chapter, used by
// ingest.Service to commit chapters (with assigned ids) ahead of chunks,
// per spec.md §4.7's "persist(chapters); bind_chapter_ids(chunks, chapters)"
// step.
type ChapterRepository interface {
	InsertBatch(ctx context.Context, chapters []model.Chapter) ([]uuid.UUID, error)
}

// DocumentRepository is the persistence port for model.Document, including
// the §4.10 document state machine. ingest.Service is the only writer of a
// document's state; the document package (C10's document-side counterpart
// to library.Service) is the only writer of Save, enforcing the §3/§7
// "at most one current=true per (library, title)" invariant ahead of it.
type DocumentRepository interface {
	// Save inserts a new document when doc.ID is the zero UUID, or updates
	// the existing row otherwise, mirroring library.Repository.Save's
	// insert-or-update shape.
	Save(ctx context.Context, doc model.Document) (uuid.UUID, error)
	// FindCurrentByTitle returns the document currently marked current=true
	// for (libraryID, title), if any; ok is false when none exists.
	FindCurrentByTitle(ctx context.Context, libraryID uuid.UUID, title string) (model.Document, bool, error)
	UpdateState(ctx context.Context, id uuid.UUID, state model.DocumentState) error
}
