// Package pgregistry is the Postgres implementation of library.Repository,
// sharing the same *pgstore.DB pool wrapper C8 uses. Grounded on the
// teacher's storage/docstore/kv_docstore.go KVDocumentStore: existence is
// checked before deciding insert vs. update (docToJSON/jsonToDoc's
// allowUpdate path), with the metadata blob serialized the same way
// store/pgstore persists chunk metadata, via encoding/json into jsonb.
package pgregistry

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stratarag/stratarag/library"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store/pgstore"
)

type Registry struct {
	db *pgstore.DB
}

func New(db *pgstore.DB) *Registry {
	return &Registry{db: db}
}

var _ library.Repository = (*Registry)(nil)

// Save inserts a new library when lib.ID is the zero UUID, or updates the
// existing row otherwise, mirroring KVDocumentStore.AddDocuments' insert-or-
// overwrite shape.
func (r *Registry) Save(ctx context.Context, lib model.Library) (uuid.UUID, error) {
	metadata, err := json.Marshal(lib.Metadata)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "Registry.Save", err)
	}

	if lib.ID == uuid.Nil {
		const insert = `
			INSERT INTO libraries (name, area, weight_semantic, weight_lexical, embedding_model, embedding_dimension, completion_model, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		var id uuid.UUID
		err := r.db.QueryRow(ctx, insert,
			lib.Name, lib.Area, lib.WeightSemantic, lib.WeightLexical,
			lib.EmbeddingModel, lib.EmbeddingDimension, lib.CompletionModel, metadata,
		).Scan(&id)
		if err != nil {
			return uuid.Nil, ragerr.New(ragerr.PersistenceError, "Registry.Save", err)
		}
		return id, nil
	}

	const update = `
		UPDATE libraries
		SET name = $2, area = $3, weight_semantic = $4, weight_lexical = $5,
		    embedding_model = $6, embedding_dimension = $7, completion_model = $8,
		    metadata = $9, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, update,
		lib.ID, lib.Name, lib.Area, lib.WeightSemantic, lib.WeightLexical,
		lib.EmbeddingModel, lib.EmbeddingDimension, lib.CompletionModel, metadata,
	)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.PersistenceError, "Registry.Save", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, ragerr.New(ragerr.NotFound, "Registry.Save", nil)
	}
	return lib.ID, nil
}

func (r *Registry) FindByID(ctx context.Context, id uuid.UUID) (model.Library, error) {
	const query = `
		SELECT id, surrogate_id, name, area, weight_semantic, weight_lexical,
		       embedding_model, embedding_dimension, completion_model, metadata, created_at, updated_at
		FROM libraries
		WHERE id = $1
	`
	return scanLibrary(r.db.QueryRow(ctx, query, id))
}

func (r *Registry) FindByName(ctx context.Context, name string) (model.Library, error) {
	const query = `
		SELECT id, surrogate_id, name, area, weight_semantic, weight_lexical,
		       embedding_model, embedding_dimension, completion_model, metadata, created_at, updated_at
		FROM libraries
		WHERE name = $1
	`
	return scanLibrary(r.db.QueryRow(ctx, query, name))
}

func scanLibrary(row pgx.Row) (model.Library, error) {
	var lib model.Library
	var metadata []byte
	err := row.Scan(
		&lib.ID, &lib.SurrogateID, &lib.Name, &lib.Area, &lib.WeightSemantic, &lib.WeightLexical,
		&lib.EmbeddingModel, &lib.EmbeddingDimension, &lib.CompletionModel, &metadata,
		&lib.CreatedAt, &lib.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Library{}, ragerr.New(ragerr.NotFound, "Registry.scanLibrary", err)
		}
		return model.Library{}, ragerr.New(ragerr.PersistenceError, "Registry.scanLibrary", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &lib.Metadata); err != nil {
			return model.Library{}, ragerr.New(ragerr.PersistenceError, "Registry.scanLibrary", err)
		}
	}
	return lib, nil
}
