package semantic

import (
	"fmt"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// Record is one stored chunk: id, text, vector and cleaned metadata.
type Record struct {
	ID        string          `json:"id"`
	Document  string          `json:"document"`
	Embedding []float32       `json:"-"`
	Metadata  domain.Metadata `json:"metadata,omitempty"`
}

// SearchResult is a single similarity hit. Score is cosine similarity,
// higher is closer.
type SearchResult struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Score    float32         `json:"score"`
	Metadata domain.Metadata `json:"metadata,omitempty"`
}

// Collection describes a named set of records and the embedding space
// they were written in.
type Collection struct {
	Name         string `json:"name"`
	EmbeddingTag string `json:"embedding_tag"`
	Dimensions   int    `json:"dimensions"`
}

// Signature renders the tag and dimension for comparison and error messages.
func (c Collection) Signature() string {
	return fmt.Sprintf("%s@%d", c.EmbeddingTag, c.Dimensions)
}

// Compatible returns a *domain.MismatchError when want was produced by a
// different embedder than the stored collection c.
func (c Collection) Compatible(want Collection) error {
	if c.EmbeddingTag == want.EmbeddingTag && c.Dimensions == want.Dimensions {
		return nil
	}
	return &domain.MismatchError{
		Collection: c.Name,
		Stored:     c.Signature(),
		Configured: want.Signature(),
	}
}
