// Package sqlite is a single-file vector store on modernc.org/sqlite.
// Similarity is brute-force cosine over every record of the collection, which
// is plenty for one document.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WessleyAI/pdfqa/engine/semantic"
)

const schema = `
CREATE TABLE IF NOT EXISTS pdfqa_collection (
    name          TEXT PRIMARY KEY,
    embedding_tag TEXT NOT NULL,
    dimensions    INTEGER NOT NULL,
    created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pdfqa_embedding (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    document   TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (collection, id)
);
`

// Store implements semantic.Store.
type Store struct {
	db *sql.DB
}

var (
	_ semantic.Store    = (*Store)(nil)
	_ semantic.Replacer = (*Store)(nil)
)

// Open opens (creating if needed) the database file at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureCollection creates c if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, c semantic.Collection) error {
	existing, err := s.Collection(ctx, c.Name)
	switch {
	case err == nil:
		return existing.Compatible(c)
	case !errors.Is(err, semantic.ErrCollectionNotFound):
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pdfqa_collection(name, embedding_tag, dimensions, created_at) VALUES(?, ?, ?, ?)`,
		c.Name, c.EmbeddingTag, c.Dimensions, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlite: create collection %s: %w", c.Name, err)
	}
	return nil
}

// Collection returns the stored description of name.
func (s *Store) Collection(ctx context.Context, name string) (*semantic.Collection, error) {
	c := semantic.Collection{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_tag, dimensions FROM pdfqa_collection WHERE name = ?`, name,
	).Scan(&c.EmbeddingTag, &c.Dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, semantic.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: collection %s: %w", name, err)
	}
	return &c, nil
}

// DeleteCollection removes the collection and its records.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pdfqa_embedding WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("sqlite: delete records %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pdfqa_collection WHERE name = ?`, name); err != nil {
		return fmt.Errorf("sqlite: delete collection %s: %w", name, err)
	}
	return tx.Commit()
}

// Upsert writes all records in one transaction.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := writeRecords(ctx, tx, collection, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %d records: %w", len(records), err)
	}
	return nil
}

// Replace recreates c with exactly records in one transaction.
func (s *Store) Replace(ctx context.Context, c semantic.Collection, records []semantic.Record) error {
	if err := semantic.CheckRecords(records, c.Dimensions); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pdfqa_embedding WHERE collection = ?`, c.Name); err != nil {
		return fmt.Errorf("sqlite: delete records %s: %w", c.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pdfqa_collection WHERE name = ?`, c.Name); err != nil {
		return fmt.Errorf("sqlite: delete collection %s: %w", c.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pdfqa_collection(name, embedding_tag, dimensions, created_at) VALUES(?, ?, ?, ?)`,
		c.Name, c.EmbeddingTag, c.Dimensions, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("sqlite: create collection %s: %w", c.Name, err)
	}
	if err := writeRecords(ctx, tx, c.Name, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit replace %s: %w", c.Name, err)
	}
	return nil
}

func writeRecords(ctx context.Context, tx *sql.Tx, collection string, records []semantic.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO pdfqa_embedding(collection, id, document, embedding, metadata)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
    document = excluded.document,
    embedding = excluded.embedding,
    metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		md, err := semantic.EncodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Document, encodeEmbedding(r.Embedding), string(md)); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search scores every record in the collection and returns the best k.
func (s *Store) Search(ctx context.Context, collection string, embedding []float32, k int) ([]semantic.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, embedding, metadata FROM pdfqa_embedding WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()

	var results []semantic.SearchResult
	for rows.Next() {
		var (
			r        semantic.SearchResult
			blob     []byte
			metadata string
		)
		if err := rows.Scan(&r.ID, &r.Content, &blob, &metadata); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		if r.Metadata, err = semantic.DecodeMetadata([]byte(metadata)); err != nil {
			return nil, err
		}
		r.Score = semantic.Cosine(embedding, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return semantic.Rank(results, k), nil
}
