package openai

import (
	"context"
	"fmt"
	"sort"
)

// EmbedClient calls /embeddings with a fixed model.
type EmbedClient struct {
	c     *Client
	model string
}

// NewEmbedClient creates an embeddings client for model.
func NewEmbedClient(c *Client, model string) *EmbedClient {
	return &EmbedClient{c: c, model: model}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in one request. Vectors come back in input order.
func (e *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := e.c.post(ctx, "/embeddings", embedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if d.Index != i {
			return nil, fmt.Errorf("openai: embeddings: missing index %d", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Embed embeds a single text.
func (e *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
