package pgstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
	"github.com/stratarag/stratarag/store"
)

var _ store.DocumentRepository = (*DocumentRepository)(nil)

// DocumentRepository is the Postgres implementation of the persistence port
// for model.Document, covering both document.Service's Save (and the
// current=true conflict check it runs ahead of it) and the §4.10 document
// state machine's single write path.
type DocumentRepository struct {
	db *DB
}

func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Save inserts a new document when doc.ID is the zero UUID, or updates the
// existing row otherwise, the same insert-or-update shape as
// library/pgregistry.Registry.Save.
func (r *DocumentRepository) Save(ctx context.Context, doc model.Document) (uuid.UUID, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.InvalidInput, "DocumentRepository.Save", err)
	}
	state := doc.State
	if state == "" {
		state = model.DocumentStateNew
	}

	if doc.ID == uuid.Nil {
		const insert = `
			INSERT INTO documents (library_id, title, raw_text, current, state, published_at, token_count, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		var id uuid.UUID
		err := r.db.QueryRow(ctx, insert,
			doc.LibraryID, doc.Title, doc.RawText, doc.Current, string(state), doc.PublishedAt, doc.TokenCount, metadata,
		).Scan(&id)
		if err != nil {
			return uuid.Nil, ragerr.New(ragerr.PersistenceError, "DocumentRepository.Save", err)
		}
		return id, nil
	}

	const update = `
		UPDATE documents
		SET library_id = $2, title = $3, raw_text = $4, current = $5, state = $6,
		    published_at = $7, token_count = $8, metadata = $9, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, update,
		doc.ID, doc.LibraryID, doc.Title, doc.RawText, doc.Current, string(state), doc.PublishedAt, doc.TokenCount, metadata,
	)
	if err != nil {
		return uuid.Nil, ragerr.New(ragerr.PersistenceError, "DocumentRepository.Save", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, ragerr.New(ragerr.NotFound, "DocumentRepository.Save", nil)
	}
	return doc.ID, nil
}

// FindCurrentByTitle backs document.Service.Save's conflict check (spec.md
// §3, §7 Conflict, Testable Property P3): at most one document may have
// current=true for a given (library_id, title).
func (r *DocumentRepository) FindCurrentByTitle(ctx context.Context, libraryID uuid.UUID, title string) (model.Document, bool, error) {
	const query = `
		SELECT id, surrogate_id, library_id, title, raw_text, current, state, published_at, token_count, metadata, created_at, updated_at, deleted_at
		FROM documents
		WHERE library_id = $1 AND title = $2 AND current = true AND deleted_at IS NULL
	`
	doc, err := scanDocument(r.db.QueryRow(ctx, query, libraryID, title))
	if err != nil {
		if kind, ok := ragerr.Of(err); ok && kind == ragerr.NotFound {
			return model.Document{}, false, nil
		}
		return model.Document{}, false, err
	}
	return doc, true, nil
}

func (r *DocumentRepository) UpdateState(ctx context.Context, id uuid.UUID, state model.DocumentState) error {
	const query = `UPDATE documents SET state = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, state)
	if err != nil {
		return ragerr.New(ragerr.PersistenceError, "DocumentRepository.UpdateState", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.New(ragerr.NotFound, "DocumentRepository.UpdateState", nil)
	}
	return nil
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var doc model.Document
	var state string
	var metadata []byte
	err := row.Scan(
		&doc.ID, &doc.SurrogateID, &doc.LibraryID, &doc.Title, &doc.RawText, &doc.Current, &state,
		&doc.PublishedAt, &doc.TokenCount, &metadata, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Document{}, ragerr.New(ragerr.NotFound, "scanDocument", err)
		}
		return model.Document{}, ragerr.New(ragerr.PersistenceError, "scanDocument", err)
	}
	doc.State = model.DocumentState(state)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return model.Document{}, ragerr.New(ragerr.PersistenceError, "scanDocument", err)
		}
	}
	return doc, nil
}
