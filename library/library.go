// Package library implements the Library Registry (C10): CRUD over
// model.Library plus its weight invariant. Grounded structurally on the
// teacher's storage/docstore package — a narrow Repository port in its own
// package, validation applied before any write reaches the backend, with
// concrete implementations (library/pgregistry, library/memregistry) living
// in sibling packages, the same split store/{pgstore,memstore} follows for C8.
package library

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

// Repository is the persistence port for libraries.
type Repository interface {
	Save(ctx context.Context, lib model.Library) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Library, error)
	FindByName(ctx context.Context, name string) (model.Library, error)
}

// Service wraps a Repository and enforces the weight invariant on every
// write, mirroring the teacher's KVDocumentStore.AddDocuments validating
// doc_id before ever calling into the kvstore.
type Service struct {
	Repo Repository
}

func New(repo Repository) *Service {
	return &Service{Repo: repo}
}

// Save validates lib.ValidateWeights() before delegating to the repository.
func (s *Service) Save(ctx context.Context, lib model.Library) (uuid.UUID, error) {
	if lib.Name == "" {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "library.Save", fmt.Errorf("name must not be empty"))
	}
	if err := lib.ValidateWeights(); err != nil {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "library.Save", err)
	}
	id, err := s.Repo.Save(ctx, lib)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.PersistenceError, "library.Save", err)
	}
	return id, nil
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (model.Library, error) {
	lib, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return model.Library{}, ragerr.New(ragerr.NotFound, "library.FindByID", err)
	}
	return lib, nil
}

func (s *Service) FindByName(ctx context.Context, name string) (model.Library, error) {
	lib, err := s.Repo.FindByName(ctx, name)
	if err != nil {
		return model.Library{}, ragerr.New(ragerr.NotFound, "library.FindByName", err)
	}
	return lib, nil
}
