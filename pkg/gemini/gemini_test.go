package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type mockModels struct {
	embedResp *genai.EmbedContentResponse
	genResp   *genai.GenerateContentResponse
	err       error

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (m *mockModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.lastModel, m.lastContents, m.lastConfig = model, contents, config
	return m.genResp, m.err
}

func (m *mockModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	m.lastModel, m.lastContents = model, contents
	return m.embedResp, m.err
}

func TestEmbedBatch(t *testing.T) {
	m := &mockModels{embedResp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
		{Values: []float32{1, 0}},
		{Values: []float32{0, 1}},
	}}}
	vecs, err := NewEmbedClient(m, "text-embedding-004").EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if m.lastModel != "text-embedding-004" || len(m.lastContents) != 2 {
		t.Errorf("model=%q contents=%d", m.lastModel, len(m.lastContents))
	}
	if m.lastContents[1].Parts[0].Text != "b" {
		t.Errorf("content order changed")
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	m := &mockModels{embedResp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}}}}
	if _, err := NewEmbedClient(m, "m").EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbed_Error(t *testing.T) {
	boom := errors.New("quota")
	m := &mockModels{err: boom}
	if _, err := NewEmbedClient(m, "m").Embed(context.Background(), "q"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	m := &mockModels{genResp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText("Blue.", genai.RoleModel),
	}}}}
	out, err := NewChatClient(m).Generate(context.Background(), "gemini-2.5-flash", "PROMPT", 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Blue." {
		t.Errorf("out = %q", out)
	}
	if m.lastConfig == nil || m.lastConfig.Temperature == nil || *m.lastConfig.Temperature != 0 {
		t.Errorf("temperature not set to 0: %+v", m.lastConfig)
	}
	if m.lastContents[0].Parts[0].Text != "PROMPT" {
		t.Errorf("prompt not sent verbatim")
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	m := &mockModels{genResp: &genai.GenerateContentResponse{}}
	if _, err := NewChatClient(m).Generate(context.Background(), "m", "p", 0); err == nil {
		t.Fatal("expected error")
	}
}
