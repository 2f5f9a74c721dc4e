package ingest

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

const (
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize = 1000
	// ChunkOverlap is the number of runes shared by consecutive chunks of a page.
	ChunkOverlap = 150
)

// Splitter cuts one page of text into chunk texts.
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// WindowSplitter slides a fixed rune window of Size with step Size-Overlap.
// Every chunk after the first shares exactly Overlap runes with the previous one.
type WindowSplitter struct {
	Size    int
	Overlap int
}

// SplitText implements Splitter. Blank text yields no chunks.
func (w WindowSplitter) SplitText(text string) ([]string, error) {
	if w.Size <= 0 || w.Overlap < 0 || w.Overlap >= w.Size {
		return nil, fmt.Errorf("ingest: invalid window size=%d overlap=%d", w.Size, w.Overlap)
	}
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	step := w.Size - w.Overlap
	var out []string
	for start := 0; ; start += step {
		end := min(start+w.Size, n)
		out = append(out, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return out, nil
}

// NewSplitter returns the splitter for a strategy name: "window" (default)
// or "recursive".
func NewSplitter(strategy string) (Splitter, error) {
	switch strategy {
	case "", "window":
		return WindowSplitter{Size: ChunkSize, Overlap: ChunkOverlap}, nil
	case "recursive":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
		), nil
	default:
		return nil, fmt.Errorf("ingest: unknown chunk strategy %q", strategy)
	}
}

// SplitPages chunks every page with the default window splitter.
func SplitPages(pages []domain.Page) ([]domain.Chunk, error) {
	return SplitPagesWith(WindowSplitter{Size: ChunkSize, Overlap: ChunkOverlap}, pages)
}

// SplitPagesWith chunks each page independently; chunks never span pages and
// carry a copy of their page's metadata. Index is assigned across the whole
// document in order.
func SplitPagesWith(s Splitter, pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		texts, err := s.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("ingest: split: %w", err)
		}
		for _, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Text:     t,
				Index:    len(chunks),
				Metadata: p.Metadata.Clone(),
			})
		}
	}
	return chunks, nil
}
