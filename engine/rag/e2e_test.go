package rag

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/ingest"
	"github.com/WessleyAI/pdfqa/engine/semantic/sqlite"
)

const wordDims = 16

// wordEmbedder hashes lowercase words into a fixed-size bag-of-words vector.
type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, wordDims)
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%wordDims]++
	}
	return v
}

func (e wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e wordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

type textLoader string

func (l textLoader) Load(_ context.Context, path string) ([]domain.Page, error) {
	return []domain.Page{{Text: string(l), Metadata: domain.Metadata{"source": path, "page": 0, "title": ""}}}, nil
}

func ingestText(t *testing.T, text string) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "pdfqa.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	p := ingest.NewPipeline(ingest.Deps{
		Loader:   textLoader(text),
		Embedder: wordEmbedder{},
		Store:    store,
	}, ingest.Options{Collection: "docs", EmbeddingTag: testTag})
	if _, err := p.Run(ctx, "doc.pdf"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return store
}

func TestEndToEnd_SkyIsBlue(t *testing.T) {
	store := ingestText(t, "The sky is blue.")
	g := &mockGenerator{reply: "The sky is blue."}
	svc := newService(wordEmbedder{}, g, store)

	ans, err := svc.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].ID != "doc-enriched-0" {
		t.Fatalf("sources = %+v", ans.Sources)
	}
	if _, ok := ans.Sources[0].Metadata["title"]; ok {
		t.Error("empty metadata survived ingestion")
	}
	head := g.prompt[:strings.Index(g.prompt, "RULES:")]
	if !strings.Contains(head, "The sky is blue.") {
		t.Errorf("CONTEXT slot lacks the chunk:\n%s", g.prompt)
	}
}

func TestEndToEnd_UnrelatedQuestion(t *testing.T) {
	store := ingestText(t, "Photosynthesis converts light into chemical energy in plants.")
	g := &mockGenerator{reply: Refusal}
	svc := newService(wordEmbedder{}, g, store)

	q := "What is the capital of France?"
	if _, err := svc.Query(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(g.prompt, "respond:\n  \""+Refusal+"\"") {
		t.Errorf("prompt lacks the refusal instruction:\n%s", g.prompt)
	}
	if !strings.Contains(g.prompt, "USER QUESTION:\n"+q+"\n") {
		t.Errorf("prompt lacks the verbatim question:\n%s", g.prompt)
	}
}

func TestEndToEnd_ModelSwitchDetected(t *testing.T) {
	store := ingestText(t, "The sky is blue.")
	svc := New(wordEmbedder{}, &mockGenerator{}, store, DefaultOptions("docs", "ollama/nomic-embed-text"), nil, nil)
	if _, err := svc.Query(context.Background(), "What color is the sky?"); err == nil {
		t.Fatal("expected embedding mismatch")
	}
}
