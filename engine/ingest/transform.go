package ingest

import (
	"fmt"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// IDPrefix precedes the zero-based chunk index in stored record ids.
const IDPrefix = "doc-enriched-"

// ChunkID returns the stored id for the i-th chunk.
func ChunkID(i int) string {
	return fmt.Sprintf("%s%d", IDPrefix, i)
}

// CleanMetadata returns a copy of c whose metadata has no empty-string or nil
// values. The input chunk is not modified.
func CleanMetadata(c domain.Chunk) domain.Chunk {
	out := c
	out.Metadata = make(domain.Metadata, len(c.Metadata))
	for k, v := range c.Metadata {
		if domain.IsEmptyValue(v) {
			continue
		}
		out.Metadata[k] = v
	}
	return out
}

// Enrich cleans metadata and assigns sequential ids in chunk order.
func Enrich(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c = CleanMetadata(c)
		c.Index = i
		c.ID = ChunkID(i)
		out[i] = c
	}
	return out
}
