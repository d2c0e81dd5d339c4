package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentState is the ingest lifecycle state of a Document (spec.md §4.10).
type DocumentState string

const (
	DocumentStateNew       DocumentState = "NEW"
	DocumentStateSplitting DocumentState = "SPLITTING"
	DocumentStateChunking  DocumentState = "CHUNKING"
	DocumentStateEmbedding DocumentState = "EMBEDDING"
	DocumentStatePartial   DocumentState = "PARTIAL"
	DocumentStateReady     DocumentState = "READY"
	DocumentStateFailed    DocumentState = "FAILED"
)

// Document is a whole work owned by exactly one library.
type Document struct {
	ID          uuid.UUID
	SurrogateID int64
	LibraryID   uuid.UUID
	Title       string
	RawText     string
	Current     bool
	State       DocumentState
	PublishedAt *time.Time
	TokenCount  int
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Deleted reports whether the document has been soft-deleted.
func (d Document) Deleted() bool {
	return d.DeletedAt != nil
}
