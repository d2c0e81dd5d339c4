// Package pgstore is the Postgres implementation of store.ChunkRepository
// and store.ChapterRepository (spec.md §4.8), grounded on the teacher pack's
// LucasBadico-Story-Engine ingestion-service Postgres adapter
// (platform/database.DB wrapping pgxpool.Pool, chunk_repository.go's
// batched-transaction InsertBatch shape). The one deliberate deviation from
// that grounding source is the vector binding itself: chunk_repository.go
// formats vectors as "[0.1,0.2,...]" strings (formatVector/parseVector),
// which spec.md §9 names as the most common source of silent vector
// corruption. pgstore instead binds pgvector.Vector, a native parameter type,
// registered against the pgx type map once per connection.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DB wraps a pgxpool.Pool, mirroring the teacher's platform/database.DB.
type DB struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn and registers the pgvector type on
// every connection via AfterConnect, so `vector` columns bind directly to
// []float32 through pgvector.Vector without any per-query string formatting.
func New(ctx context.Context, dsn string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.pool.Close() }

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) { return db.pool.Begin(ctx) }

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}
