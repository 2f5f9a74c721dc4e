// Package semantic defines the vector store contract shared by the pgvector,
// sqlite, qdrant and chroma backends, plus the ranking helpers they use.
package semantic

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollectionNotFound is returned by Store.Collection for unknown names.
var ErrCollectionNotFound = errors.New("semantic: collection not found")

// Store persists records per collection and answers k-NN queries.
type Store interface {
	// EnsureCollection creates c if missing. An existing collection with a
	// different tag or dimension yields a *domain.MismatchError.
	EnsureCollection(ctx context.Context, c Collection) error
	Collection(ctx context.Context, name string) (*Collection, error)
	// DeleteCollection drops the collection and its records. Missing is not an error.
	DeleteCollection(ctx context.Context, name string) error
	// Upsert writes all records as one unit of work, overwriting equal ids.
	Upsert(ctx context.Context, collection string, records []Record) error
	// Search returns at most k results by descending score, ties by id.
	Search(ctx context.Context, collection string, embedding []float32, k int) ([]SearchResult, error)
	Close() error
}

// Replacer is implemented by stores that can swap a collection's contents
// in one transaction. Readers see either the old records or the new ones.
type Replacer interface {
	// Replace drops any existing collection named c.Name, recreates it as c
	// and writes records, all or nothing.
	Replace(ctx context.Context, c Collection, records []Record) error
}

// CheckRecords validates vector dimensions and id presence before a write.
func CheckRecords(records []Record, dims int) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("semantic: record %d: empty id", i)
		}
		if len(r.Embedding) != dims {
			return fmt.Errorf("semantic: record %s: %d dims, collection has %d", r.ID, len(r.Embedding), dims)
		}
	}
	return nil
}
