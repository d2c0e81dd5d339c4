// Package document implements the Document side of C10's registry:
// CRUD over model.Document plus the spec.md §3 "at most one current=true per
// (library, title)" invariant. Grounded structurally on the library package
// — the same narrow Repository port plus a Service that validates ahead of
// every write, with concrete implementations in store/pgstore and
// store/memstore rather than a sibling package, since model.Document's
// persistence already lives under store to sit next to ChunkRepository and
// ChapterRepository.
package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

// Service wraps a store.DocumentRepository and enforces the current/title
// invariant on every write, mirroring library.Service.Save validating
// ValidateWeights() before ever calling into its Repository.
type Service struct {
	Repo store.DocumentRepository
}

func New(repo store.DocumentRepository) *Service {
	return &Service{Repo: repo}
}

// Save validates doc before delegating to the repository. When doc.Current
// is true, Save looks up the document already current for (doc.LibraryID,
// doc.Title) and returns ragerr.Conflict if one exists and it isn't doc
// itself (spec.md §3, §7, Testable Property P3). Save never clears a prior
// current document on the caller's behalf — the caller must do that first,
// e.g. by saving it with Current set to false.
func (s *Service) Save(ctx context.Context, doc model.Document) (uuid.UUID, error) {
	if doc.Title == "" {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "document.Save", fmt.Errorf("title must not be empty"))
	}
	if doc.LibraryID == uuid.Nil {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "document.Save", fmt.Errorf("library id must not be empty"))
	}

	if doc.Current {
		existing, ok, err := s.Repo.FindCurrentByTitle(ctx, doc.LibraryID, doc.Title)
		if err != nil {
			return uuid.Nil, ragerr.New(ragerr.PersistenceError, "document.Save", err)
		}
		if ok && existing.ID != doc.ID {
			return uuid.Nil, ragerr.New(ragerr.Conflict, "document.Save", fmt.Errorf(
				"document %q is already current for library %s; clear it before marking another current",
				doc.Title, doc.LibraryID))
		}
	}

	id, err := s.Repo.Save(ctx, doc)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.PersistenceError, "document.Save", err)
	}
	return id, nil
}

// FindCurrentByTitle returns the document currently marked current=true for
// (libraryID, title), if any.
func (s *Service) FindCurrentByTitle(ctx context.Context, libraryID uuid.UUID, title string) (model.Document, bool, error) {
	doc, ok, err := s.Repo.FindCurrentByTitle(ctx, libraryID, title)
	if err != nil {
		return model.Document{}, false, ragerr.New(ragerr.PersistenceError, "document.FindCurrentByTitle", err)
	}
	return doc, ok, nil
}
