// Package gemini adapts the Google Gen AI SDK to the embedder and generator
// shapes the engine uses.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ModelsAPI is the part of genai.Models the clients call.
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the SDK client.
type Config struct {
	APIKey     string
	BaseURL    string // optional endpoint override
	HTTPClient *http.Client
}

// New creates a Gemini API client and returns its Models service.
func New(ctx context.Context, cfg Config) (ModelsAPI, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client.Models, nil
}

// EmbedClient embeds texts with one content per text.
type EmbedClient struct {
	models ModelsAPI
	model  string
}

// NewEmbedClient creates an embedder for model.
func NewEmbedClient(models ModelsAPI, model string) *EmbedClient {
	return &EmbedClient{models: models, model: model}
}

// EmbedBatch embeds texts in a single call, returning vectors in input order.
func (e *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini: embed: empty vector at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// Embed embeds one text.
func (e *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// ChatClient generates text with GenerateContent.
type ChatClient struct {
	models ModelsAPI
}

// NewChatClient creates a generator.
func NewChatClient(models ModelsAPI) *ChatClient {
	return &ChatClient{models: models}
}

// Generate sends prompt as a single user turn.
func (c *ChatClient) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: generate: no candidates returned")
	}
	return resp.Text(), nil
}
