package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/store"
)

var _ store.ChapterRepository = (*ChapterRepository)(nil)

// ChapterRepository is a plain in-memory map. Chapters carry no vector, so
// unlike ChunkRepository there is no chromem collection to keep in sync.
type ChapterRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Chapter
}

func NewChapterRepository() *ChapterRepository {
	return &ChapterRepository{byID: map[uuid.UUID]model.Chapter{}}
}

func (r *ChapterRepository) InsertBatch(ctx context.Context, chapters []model.Chapter) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, len(chapters))
	for i, c := range chapters {
		id := uuid.New()
		c.ID = id
		r.byID[id] = c
		ids[i] = id
	}
	return ids, nil
}
