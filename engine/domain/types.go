// Package domain defines the core types and error values shared by the pdfqa
// pipeline: pages loaded from the source document, the chunks cut from them,
// and the validation applied at pipeline entry points.
package domain

// Metadata maps metadata keys to scalar values (string, int, float64, bool).
// A nil value and the empty string both mean "absent".
type Metadata map[string]any

// Page is the text of one source page plus page-level metadata.
type Page struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded span of page text ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Index    int
	Metadata Metadata
}

// Clone returns a deep copy of the metadata map. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value stored under key if it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}
