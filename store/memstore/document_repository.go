package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

var _ store.DocumentRepository = (*DocumentRepository)(nil)

// DocumentRepository is an in-process implementation of store.DocumentRepository,
// mirroring library/memregistry's mutex-guarded map pattern, for tests and
// single-process deployments that skip Postgres entirely.
type DocumentRepository struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]model.Document
	nextSurID int64
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{byID: map[uuid.UUID]model.Document{}}
}

func (r *DocumentRepository) Save(_ context.Context, doc model.Document) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
		r.nextSurID++
		doc.SurrogateID = r.nextSurID
		if doc.State == "" {
			doc.State = model.DocumentStateNew
		}
	} else if _, ok := r.byID[doc.ID]; !ok {
		return uuid.Nil, ragerr.New(ragerr.NotFound, "DocumentRepository.Save", nil)
	}
	r.byID[doc.ID] = doc
	return doc.ID, nil
}

// FindCurrentByTitle backs document.Service.Save's conflict check (spec.md
// §3, §7 Conflict, Testable Property P3).
func (r *DocumentRepository) FindCurrentByTitle(_ context.Context, libraryID uuid.UUID, title string) (model.Document, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.byID {
		if doc.LibraryID == libraryID && doc.Title == title && doc.Current && !doc.Deleted() {
			return doc, true, nil
		}
	}
	return model.Document{}, false, nil
}

// UpdateState records a document's lifecycle transition (spec.md §4.10). An
// id with no prior Save creates a minimal entry, since ingest.Service writes
// state for documents it did not itself create via document.Service.
func (r *DocumentRepository) UpdateState(_ context.Context, id uuid.UUID, state model.DocumentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.byID[id]
	if !ok {
		doc = model.Document{ID: id}
	}
	doc.State = state
	r.byID[id] = doc
	return nil
}

// State returns the last state recorded for id, or "" if none was ever
// written.
func (r *DocumentRepository) State(id uuid.UUID) model.DocumentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].State
}
