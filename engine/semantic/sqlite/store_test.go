package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pdfqa.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func coll() semantic.Collection {
	return semantic.Collection{Name: "docs", EmbeddingTag: "openai/test", Dimensions: 3}
}

func TestEncoding(t *testing.T) {
	in := []float32{0.25, -1, 3.5}
	out, err := decodeEmbedding(encodeEmbedding(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("pos %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for odd blob")
	}
}

func TestCollectionLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.Collection(ctx, "docs"); !errors.Is(err, semantic.ErrCollectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.EnsureCollection(ctx, coll()); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := s.EnsureCollection(ctx, coll()); err != nil {
		t.Fatal(err)
	}
	got, err := s.Collection(ctx, "docs")
	if err != nil || got.EmbeddingTag != "openai/test" || got.Dimensions != 3 {
		t.Fatalf("got %+v %v", got, err)
	}

	other := coll()
	other.EmbeddingTag = "ollama/nomic"
	if err := s.EnsureCollection(ctx, other); !errors.Is(err, domain.ErrEmbeddingMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	if err := s.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Collection(ctx, "docs"); !errors.Is(err, semantic.ErrCollectionNotFound) {
		t.Fatal("collection should be gone")
	}
	if err := s.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("deleting a missing collection: %v", err)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, coll()); err != nil {
		t.Fatal(err)
	}
	recs := []semantic.Record{
		{ID: "doc-enriched-0", Document: "alpha", Embedding: []float32{1, 0, 0}, Metadata: domain.Metadata{"page": 0}},
		{ID: "doc-enriched-1", Document: "beta", Embedding: []float32{0, 1, 0}},
		{ID: "doc-enriched-2", Document: "gamma", Embedding: []float32{0.9, 0.1, 0}},
	}
	if err := s.Upsert(ctx, "docs", recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("fewer than k records should return all of them, got %d", len(got))
	}
	if got[0].ID != "doc-enriched-0" || got[1].ID != "doc-enriched-2" || got[2].ID != "doc-enriched-1" {
		t.Fatalf("wrong order: %+v", got)
	}
	if got[0].Score < got[1].Score || got[1].Score < got[2].Score {
		t.Fatal("scores not descending")
	}
	if got[0].Metadata["page"] != 0 {
		t.Fatalf("metadata lost: %v", got[0].Metadata)
	}

	top, _ := s.Search(ctx, "docs", []float32{1, 0, 0}, 1)
	if len(top) != 1 {
		t.Fatalf("k=1 returned %d", len(top))
	}
}

func TestUpsertOverwrites(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, coll())
	rec := semantic.Record{ID: "doc-enriched-0", Document: "old", Embedding: []float32{1, 0, 0}}
	if err := s.Upsert(ctx, "docs", []semantic.Record{rec}); err != nil {
		t.Fatal(err)
	}
	rec.Document = "new"
	if err := s.Upsert(ctx, "docs", []semantic.Record{rec}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if len(got) != 1 || got[0].Content != "new" {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestUpsertIsAtomic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, coll())
	recs := []semantic.Record{
		{ID: "a", Document: "ok", Embedding: []float32{1, 0, 0}},
		{ID: "b", Document: "bad", Embedding: []float32{1, 0}},
	}
	if err := s.Upsert(ctx, "docs", recs); err == nil {
		t.Fatal("expected dimension error")
	}
	got, _ := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if len(got) != 0 {
		t.Fatalf("partial write leaked %d records", len(got))
	}
}

func TestUpsertMissingCollection(t *testing.T) {
	s := openTest(t)
	err := s.Upsert(context.Background(), "nope", []semantic.Record{{ID: "a", Embedding: []float32{1}}})
	if !errors.Is(err, semantic.ErrCollectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchEmpty(t *testing.T) {
	s := openTest(t)
	got, err := s.Search(context.Background(), "nope", []float32{1, 0, 0}, 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty store: %v %v", got, err)
	}
}

func TestDeleteCollectionRemovesRecords(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, coll())
	_ = s.Upsert(ctx, "docs", []semantic.Record{{ID: "a", Document: "x", Embedding: []float32{1, 0, 0}}})
	if err := s.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if len(got) != 0 {
		t.Fatal("records should be removed with the collection")
	}
}

func TestReplaceSwapsCollection(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, coll())
	_ = s.Upsert(ctx, "docs", []semantic.Record{
		{ID: "old-0", Document: "stale", Embedding: []float32{1, 0, 0}},
		{ID: "old-1", Document: "stale", Embedding: []float32{0, 1, 0}},
	})

	next := semantic.Collection{Name: "docs", EmbeddingTag: "ollama/other", Dimensions: 2}
	if err := s.Replace(ctx, next, []semantic.Record{{ID: "new-0", Document: "fresh", Embedding: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	c, err := s.Collection(ctx, "docs")
	if err != nil || c.EmbeddingTag != "ollama/other" || c.Dimensions != 2 {
		t.Fatalf("collection not replaced: %+v %v", c, err)
	}
	got, _ := s.Search(ctx, "docs", []float32{1, 0}, 10)
	if len(got) != 1 || got[0].ID != "new-0" {
		t.Fatalf("expected only new records, got %+v", got)
	}
}

func TestReplaceFailureKeepsOldCollection(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.EnsureCollection(ctx, coll())
	_ = s.Upsert(ctx, "docs", []semantic.Record{{ID: "a", Document: "kept", Embedding: []float32{1, 0, 0}}})

	bad := []semantic.Record{{ID: "b", Embedding: []float32{1, 0}}}
	if err := s.Replace(ctx, coll(), bad); err == nil {
		t.Fatal("expected dimension error")
	}
	got, _ := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if len(got) != 1 || got[0].Content != "kept" {
		t.Fatalf("old records lost: %+v", got)
	}
}
