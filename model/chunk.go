package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChunkKind is the §3 chunk kind enum.
type ChunkKind string

const (
	ChunkKindDocument     ChunkKind = "DOCUMENT"
	ChunkKindChapter      ChunkKind = "CHAPTER"
	ChunkKindExcerpt      ChunkKind = "EXCERPT"
	ChunkKindQuestionAns  ChunkKind = "QUESTION_ANSWER"
	ChunkKindSummary      ChunkKind = "SUMMARY"
	ChunkKindMetadata     ChunkKind = "METADATA"
	ChunkKindOther        ChunkKind = "OTHER"
)

// Chunk is the embedding-bearing leaf of the hierarchy.
type Chunk struct {
	ID             uuid.UUID
	SurrogateID    int64
	LibraryID      uuid.UUID
	DocumentID     uuid.UUID
	ChapterID      *uuid.UUID
	Kind           ChunkKind
	Text           string
	OrderInChapter *int
	Vector         []float32
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ErrInvalidChunkKind is returned by ValidateChunkKind when a chunk's
// chapter/order fields violate the §3 kind invariants.
var ErrInvalidChunkKind = errors.New("model: chunk kind/chapter/order invariant violated")

// ValidateChunkKind enforces:
//
//	DOCUMENT ⇒ chapter is nil ∧ order is nil
//	CHAPTER  ⇒ chapter is set ∧ order is nil
//	other    ⇒ chapter is set ∧ order is set
func ValidateChunkKind(c Chunk) error {
	switch c.Kind {
	case ChunkKindDocument:
		if c.ChapterID != nil || c.OrderInChapter != nil {
			return ErrInvalidChunkKind
		}
	case ChunkKindChapter:
		if c.ChapterID == nil || c.OrderInChapter != nil {
			return ErrInvalidChunkKind
		}
	default:
		if c.ChapterID == nil || c.OrderInChapter == nil {
			return ErrInvalidChunkKind
		}
	}
	return nil
}

// HasVector reports whether the chunk's vector backfill has completed.
func (c Chunk) HasVector() bool {
	return c.Vector != nil
}
