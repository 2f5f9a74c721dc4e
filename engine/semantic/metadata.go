package semantic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// EncodeMetadata serialises metadata as a JSON object. Nil encodes as "{}".
func EncodeMetadata(md domain.Metadata) ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("semantic: encode metadata: %w", err)
	}
	return b, nil
}

// DecodeMetadata parses a JSON object produced by EncodeMetadata. Top-level
// whole numbers come back as int, others as float64, so int values survive
// a round trip unchanged. JSON drops the int/float distinction: a float64
// with no fractional part, such as 2.0, also decodes as int.
func DecodeMetadata(b []byte) (domain.Metadata, error) {
	if len(b) == 0 {
		return domain.Metadata{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("semantic: decode metadata: %w", err)
	}
	md := make(domain.Metadata, len(raw))
	for k, v := range raw {
		md[k] = normalizeNumber(v)
	}
	return md, nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
