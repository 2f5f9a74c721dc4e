package ingest

import (
	"context"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// Loader reads a source document into pages.
type Loader interface {
	Load(ctx context.Context, path string) ([]domain.Page, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Notifier is told about every successful ingestion.
type Notifier interface {
	Completed(ctx context.Context, r Result) error
}

// LoadedDoc is a source document after page extraction.
type LoadedDoc struct {
	Path  string
	Pages []domain.Page
}

// ChunkedDoc is a loaded document split into embeddable chunks.
type ChunkedDoc struct {
	Path   string
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked document with one vector per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// Result summarises one ingestion run.
type Result struct {
	Collection   string `json:"collection"`
	Source       string `json:"source"`
	Chunks       int    `json:"chunks"`
	EmbeddingTag string `json:"embedding_tag"`
}
