// Package memstore is an in-process implementation of store.ChunkRepository
// and store.ChapterRepository backed by chromem-go, used for local
// development and tests where standing up Postgres is unwanted. Grounded on
// the teacher's rag/store/chromem.ChromemStore: same
// db.GetOrCreateCollection(name, nil, nil) call (embedding function left
// nil because embeddings are always supplied by the caller), the same
// string-keyed metadata map, and the same AddDocuments/QueryEmbedding calls.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

var _ store.ChunkRepository = (*ChunkRepository)(nil)

// ChunkRepository holds the authoritative copy of every field model.Chunk
// carries (including chunks with a nil vector, which chromem-go's
// AddDocuments refuses to accept) in an in-memory map, and mirrors each
// chunk into a chromem collection once its vector is known so it becomes
// queryable by embedding similarity.
type ChunkRepository struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]model.Chunk
	collection *chromem.Collection
}

// NewChunkRepository creates an empty, purely in-memory chunk store.
func NewChunkRepository() (*ChunkRepository, error) {
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection("chunks", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memstore: create collection: %w", err)
	}
	return &ChunkRepository{
		byID:       map[uuid.UUID]model.Chunk{},
		collection: collection,
	}, nil
}

// Collection exposes the backing chromem collection so a search
// implementation can run QueryEmbedding directly against it.
func (r *ChunkRepository) Collection() *chromem.Collection { return r.collection }

func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []model.Chunk) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		id := uuid.New()
		c.ID = id
		r.byID[id] = c
		ids[i] = id
	}
	return ids, nil
}

// UpdateVector sets the chunk's vector and, now that an embedding exists,
// upserts it into the chromem collection so it participates in similarity
// search.
func (r *ChunkRepository) UpdateVector(ctx context.Context, id uuid.UUID, vec []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return ragerr.New(ragerr.NotFound, "ChunkRepository.UpdateVector", fmt.Errorf("chunk %s", id))
	}
	c.Vector = vec
	r.byID[id] = c

	doc := chromem.Document{
		ID:        id.String(),
		Content:   c.Text,
		Metadata:  chunkMetadata(c),
		Embedding: vec,
	}
	if err := r.collection.AddDocument(ctx, doc); err != nil {
		return ragerr.New(ragerr.PersistenceError, "ChunkRepository.UpdateVector", err)
	}
	return nil
}

// UpdateMetadata merges metadata into the chunk's existing metadata map and,
// if the chunk has already been embedded, refreshes its mirrored chromem
// document so a later query reflects the merged metadata too.
func (r *ChunkRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return ragerr.New(ragerr.NotFound, "ChunkRepository.UpdateMetadata", fmt.Errorf("chunk %s", id))
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		c.Metadata[k] = v
	}
	r.byID[id] = c

	if c.Vector == nil {
		return nil
	}
	doc := chromem.Document{
		ID:        id.String(),
		Content:   c.Text,
		Metadata:  chunkMetadata(c),
		Embedding: c.Vector,
	}
	if err := r.collection.AddDocument(ctx, doc); err != nil {
		return ragerr.New(ragerr.PersistenceError, "ChunkRepository.UpdateMetadata", err)
	}
	return nil
}

func (r *ChunkRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Chunk
	for _, c := range r.byID {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sortChunks(out)
	return out, nil
}

func (r *ChunkRepository) FindByLibrary(ctx context.Context, libraryIDs []uuid.UUID) ([]model.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[uuid.UUID]bool, len(libraryIDs))
	for _, id := range libraryIDs {
		want[id] = true
	}

	var out []model.Chunk
	for _, c := range r.byID {
		if want[c.LibraryID] {
			out = append(out, c)
		}
	}
	sortChunks(out)
	return out, nil
}

func sortChunks(chunks []model.Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID.String() < chunks[j].DocumentID.String()
		}
		oi, oj := 0, 0
		if chunks[i].OrderInChapter != nil {
			oi = *chunks[i].OrderInChapter
		}
		if chunks[j].OrderInChapter != nil {
			oj = *chunks[j].OrderInChapter
		}
		return oi < oj
	})
}

// chunkMetadata flattens the chunk's identifying fields into chromem's
// map[string]string metadata, following the teacher's "stringify every
// value, tag the discriminator under a leading-underscore key" convention
// (ChromemStore.Add's "_node_type" key).
func chunkMetadata(c model.Chunk) map[string]string {
	meta := map[string]string{
		"_kind":       string(c.Kind),
		"library_id":  c.LibraryID.String(),
		"document_id": c.DocumentID.String(),
	}
	if c.ChapterID != nil {
		meta["chapter_id"] = c.ChapterID.String()
	}
	if c.OrderInChapter != nil {
		meta["order_in_chapter"] = strconv.Itoa(*c.OrderInChapter)
	}
	for k, v := range c.Metadata {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return meta
}
