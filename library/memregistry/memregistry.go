// Package memregistry is an in-process implementation of library.Repository,
// mirroring store/memstore's mutex-guarded map pattern for C8's in-memory
// backend. Useful for tests and single-process deployments that skip
// Postgres entirely.
package memregistry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/library"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

type Registry struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]model.Library
	nextSurID int64
}

func New() *Registry {
	return &Registry{byID: map[uuid.UUID]model.Library{}}
}

var _ library.Repository = (*Registry)(nil)

func (r *Registry) Save(_ context.Context, lib model.Library) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lib.ID == uuid.Nil {
		lib.ID = uuid.New()
		r.nextSurID++
		lib.SurrogateID = r.nextSurID
	} else if _, ok := r.byID[lib.ID]; !ok {
		return uuid.Nil, ragerr.New(ragerr.NotFound, "Registry.Save", nil)
	}
	r.byID[lib.ID] = lib
	return lib.ID, nil
}

func (r *Registry) FindByID(_ context.Context, id uuid.UUID) (model.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lib, ok := r.byID[id]
	if !ok {
		return model.Library{}, ragerr.New(ragerr.NotFound, "Registry.FindByID", nil)
	}
	return lib, nil
}

func (r *Registry) FindByName(_ context.Context, name string) (model.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lib := range r.byID {
		if lib.Name == name {
			return lib, nil
		}
	}
	return model.Library{}, ragerr.New(ragerr.NotFound, "Registry.FindByName", nil)
}
