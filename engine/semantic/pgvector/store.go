// Package pgvector stores chunk vectors in PostgreSQL with the pgvector
// extension. Records of all collections share one table keyed by
// (collection, id); similarity is cosine via the <=> operator.
package pgvector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/WessleyAI/pdfqa/engine/semantic"
)

const schema = `
CREATE TABLE IF NOT EXISTS pdfqa_collection (
    name          TEXT PRIMARY KEY,
    embedding_tag TEXT NOT NULL,
    dimensions    INTEGER NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pdfqa_embedding (
    collection TEXT NOT NULL REFERENCES pdfqa_collection(name) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    document   TEXT NOT NULL,
    embedding  vector NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
    PRIMARY KEY (collection, id)
);`

const upsertSQL = `
INSERT INTO pdfqa_embedding (collection, id, document, embedding, metadata)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (collection, id) DO UPDATE SET
    document  = EXCLUDED.document,
    embedding = EXCLUDED.embedding,
    metadata  = EXCLUDED.metadata`

const searchSQL = `
SELECT id, document, metadata, embedding <=> $2 AS distance
FROM pdfqa_embedding
WHERE collection = $1
ORDER BY distance, id
LIMIT $3`

// Store implements semantic.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ semantic.Store    = (*Store)(nil)
	_ semantic.Replacer = (*Store)(nil)
)

// Open connects to dsn, creates the vector extension and schema, and returns
// a pooled Store whose connections know the vector type.
func Open(ctx context.Context, dsn string) (*Store, error) {
	// The extension must exist before AfterConnect can register its type.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	_, err = conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgvector: create extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, c)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// EnsureCollection creates c if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, c semantic.Collection) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pdfqa_collection (name, embedding_tag, dimensions) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		c.Name, c.EmbeddingTag, c.Dimensions)
	if err != nil {
		return fmt.Errorf("pgvector: create collection %s: %w", c.Name, err)
	}
	stored, err := s.Collection(ctx, c.Name)
	if err != nil {
		return err
	}
	return stored.Compatible(c)
}

// Collection returns the stored description of name.
func (s *Store) Collection(ctx context.Context, name string) (*semantic.Collection, error) {
	c := semantic.Collection{Name: name}
	err := s.pool.QueryRow(ctx,
		`SELECT embedding_tag, dimensions FROM pdfqa_collection WHERE name = $1`, name,
	).Scan(&c.EmbeddingTag, &c.Dimensions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, semantic.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgvector: collection %s: %w", name, err)
	}
	return &c, nil
}

// DeleteCollection drops the collection; its records cascade.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM pdfqa_collection WHERE name = $1`, name); err != nil {
		return fmt.Errorf("pgvector: delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes all records in one transaction using a single batch.
func (s *Store) Upsert(ctx context.Context, collection string, records []semantic.Record) error {
	if len(records) == 0 {
		return nil
	}
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return err
	}
	if err := semantic.CheckRecords(records, c.Dimensions); err != nil {
		return err
	}

	batch, err := upsertBatch(collection, records)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("pgvector: upsert %d records: %w", len(records), err)
	}
	return nil
}

// Replace recreates c with exactly records in one transaction.
func (s *Store) Replace(ctx context.Context, c semantic.Collection, records []semantic.Record) error {
	if err := semantic.CheckRecords(records, c.Dimensions); err != nil {
		return err
	}
	batch, err := upsertBatch(c.Name, records)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM pdfqa_collection WHERE name = $1`, c.Name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO pdfqa_collection (name, embedding_tag, dimensions) VALUES ($1, $2, $3)`,
			c.Name, c.EmbeddingTag, c.Dimensions); err != nil {
			return err
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("pgvector: replace %s: %w", c.Name, err)
	}
	return nil
}

func upsertBatch(collection string, records []semantic.Record) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, r := range records {
		md, err := semantic.EncodeMetadata(r.Metadata)
		if err != nil {
			return nil, err
		}
		batch.Queue(upsertSQL, collection, r.ID, r.Document, pgv.NewVector(r.Embedding), md)
	}
	return batch, nil
}

// Search returns the k nearest records by cosine distance.
func (s *Store) Search(ctx context.Context, collection string, embedding []float32, k int) ([]semantic.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, searchSQL, collection, pgv.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var results []semantic.SearchResult
	for rows.Next() {
		var (
			r        semantic.SearchResult
			metadata []byte
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		if r.Metadata, err = semantic.DecodeMetadata(metadata); err != nil {
			return nil, err
		}
		r.Score = float32(1 - distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: rows: %w", err)
	}
	return semantic.Rank(results, k), nil
}
