// Package rag answers questions from the ingested document. A question is
// embedded, the nearest chunks are fetched from the vector store, joined into
// a context block, rendered into the fixed prompt and sent to the chat model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WessleyAI/pdfqa/engine/config"
	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
	"github.com/WessleyAI/pdfqa/pkg/metrics"
)

const tracerName = "github.com/WessleyAI/pdfqa/engine/rag"

// Fixed retrieval and generation parameters.
const (
	TopK        = 10
	Temperature = 0.0
)

// Embedder turns a question into a vector in the collection's space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator sends a rendered prompt to a chat model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, temperature float64) (string, error)
}

// Index is the read side of a semantic.Store.
type Index interface {
	Collection(ctx context.Context, name string) (*semantic.Collection, error)
	Search(ctx context.Context, collection string, embedding []float32, k int) ([]semantic.SearchResult, error)
}

// Options configures the query pipeline.
type Options struct {
	Collection   string
	EmbeddingTag string
	TopK         int
	Temperature  float64
	Model        string
}

// DefaultOptions returns the fixed parameters for collection and tag.
func DefaultOptions(collection, embeddingTag string) Options {
	return Options{
		Collection:   collection,
		EmbeddingTag: embeddingTag,
		TopK:         TopK,
		Temperature:  Temperature,
		Model:        config.DefaultChatModel,
	}
}

// Service is the RAG query service. It keeps no state between questions.
type Service struct {
	embed   Embedder
	gen     Generator
	index   Index
	opts    Options
	metrics *queryMetrics
	logger  *slog.Logger
}

// New creates a Service. reg and logger may be nil.
func New(embed Embedder, gen Generator, index Index, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = TopK
	}
	return &Service{
		embed:   embed,
		gen:     gen,
		index:   index,
		opts:    opts,
		metrics: newQueryMetrics(reg),
		logger:  logger,
	}
}

// Answer is the model's reply together with the chunks it was given.
type Answer struct {
	Text    string                  `json:"text"`
	Sources []semantic.SearchResult `json:"sources"`
	Model   string                  `json:"model"`
}

// Retrieve embeds question and returns up to TopK nearest chunks, closest
// first. A missing or empty collection yields an empty slice.
func (s *Service) Retrieve(ctx context.Context, question string) ([]semantic.SearchResult, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	vec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	stored, err := s.index.Collection(ctx, s.opts.Collection)
	if errors.Is(err, semantic.ErrCollectionNotFound) {
		s.logger.Warn("rag: collection not found", "collection", s.opts.Collection)
		return []semantic.SearchResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rag: collection: %w", err)
	}
	want := semantic.Collection{Name: s.opts.Collection, EmbeddingTag: s.opts.EmbeddingTag, Dimensions: len(vec)}
	if err := stored.Compatible(want); err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	results, err := s.index.Search(ctx, s.opts.Collection, vec, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	if results == nil {
		results = []semantic.SearchResult{}
	}
	s.logger.Debug("rag: retrieved", "results", len(results))
	return results, nil
}

// BuildContext joins chunk texts in order with a blank line between them.
func BuildContext(results []semantic.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

// Query runs retrieve, render and generate for one question.
func (s *Service) Query(ctx context.Context, question string) (_ *Answer, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.Query")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.observe(err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.logger.Info("rag query start", "question_len", len(question), "collection", s.opts.Collection)

	results, err := s.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.results", len(results)))

	prompt := RenderPrompt(BuildContext(results), question)
	text, err := s.gen.Generate(ctx, s.opts.Model, prompt, s.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	s.logger.Info("rag query done", "results", len(results), "answer_len", len(text))
	return &Answer{Text: text, Sources: results, Model: s.opts.Model}, nil
}
