// Package app wires a validated Config into the concrete store, providers,
// event notifier and services used by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/WessleyAI/pdfqa/engine/config"
	"github.com/WessleyAI/pdfqa/engine/events"
	"github.com/WessleyAI/pdfqa/engine/ingest"
	"github.com/WessleyAI/pdfqa/engine/pdfload"
	"github.com/WessleyAI/pdfqa/engine/rag"
	"github.com/WessleyAI/pdfqa/engine/semantic"
	"github.com/WessleyAI/pdfqa/engine/semantic/chroma"
	"github.com/WessleyAI/pdfqa/engine/semantic/pgvector"
	"github.com/WessleyAI/pdfqa/engine/semantic/qdrant"
	"github.com/WessleyAI/pdfqa/engine/semantic/sqlite"
	"github.com/WessleyAI/pdfqa/pkg/gemini"
	"github.com/WessleyAI/pdfqa/pkg/metrics"
	"github.com/WessleyAI/pdfqa/pkg/natsutil"
	"github.com/WessleyAI/pdfqa/pkg/ollama"
	"github.com/WessleyAI/pdfqa/pkg/openai"
)

// Store backends selected by DATABASE_URL scheme.
const (
	KindPGVector = "pgvector"
	KindSQLite   = "sqlite"
	KindQdrant   = "qdrant"
	KindChroma   = "chroma"
)

// Embedder serves both ingestion (batches) and queries (single text).
type Embedder interface {
	ingest.Embedder
	rag.Embedder
}

// App is the wired object graph. Close releases everything Build opened.
type App struct {
	Config    *config.Config
	Store     semantic.Store
	Embedder  Embedder
	Generator rag.Generator
	Metrics   *metrics.Registry
	Notifier  ingest.Notifier
	NATS      *nats.Conn // nil unless NATS_URL is set
	RAG       *rag.Service
	Logger    *slog.Logger

	closers []func() error
}

// Target is a parsed DATABASE_URL.
type Target struct {
	Kind   string
	Addr   string // what the backend's opener takes
	APIKey string // qdrant only
}

// StoreKind maps a DATABASE_URL onto a backend.
//
//	postgres://… postgresql://…   pgvector
//	sqlite://path file:path        sqlite
//	qdrant://host:port?api_key=…   qdrant (gRPC)
//	chroma://host:port chromas://… chroma (HTTP)
func StoreKind(dsn string) (Target, error) {
	scheme, rest, ok := strings.Cut(dsn, ":")
	if !ok {
		return Target{}, fmt.Errorf("app: database url %q has no scheme", dsn)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return Target{Kind: KindPGVector, Addr: dsn}, nil
	case "sqlite":
		path := strings.TrimPrefix(rest, "//")
		if path == "" {
			return Target{}, fmt.Errorf("app: sqlite url %q has no path", dsn)
		}
		return Target{Kind: KindSQLite, Addr: path}, nil
	case "file":
		return Target{Kind: KindSQLite, Addr: dsn}, nil
	case "qdrant":
		u, err := url.Parse(dsn)
		if err != nil {
			return Target{}, fmt.Errorf("app: parse qdrant url: %w", err)
		}
		if u.Host == "" {
			return Target{}, fmt.Errorf("app: qdrant url %q has no host", dsn)
		}
		return Target{Kind: KindQdrant, Addr: u.Host, APIKey: u.Query().Get("api_key")}, nil
	case "chroma", "chromas":
		if _, err := chroma.BaseURL(dsn); err != nil {
			return Target{}, err
		}
		return Target{Kind: KindChroma, Addr: dsn}, nil
	default:
		return Target{}, fmt.Errorf("app: unsupported database scheme %q", scheme)
	}
}

// OpenStore connects to the backend named by dsn.
func OpenStore(ctx context.Context, dsn string) (semantic.Store, error) {
	t, err := StoreKind(dsn)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindPGVector:
		return pgvector.Open(ctx, t.Addr)
	case KindSQLite:
		return sqlite.Open(ctx, t.Addr)
	case KindQdrant:
		return qdrant.New(t.Addr, t.APIKey)
	default:
		return chroma.Open(t.Addr)
	}
}

// Build wires cfg. It performs no provider calls; the store connection is
// the only network I/O before the first request.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Metrics: metrics.New(), Logger: logger, Notifier: events.Nop{}}

	var err error
	a.Embedder, err = newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Generator, err = newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Store, err = OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "pdfqa", logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.NATS = nc
		a.Notifier = events.NewNATSNotifier(nc, logger)
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
	}

	opts := rag.DefaultOptions(cfg.Collection, cfg.EmbeddingTag())
	opts.Model = cfg.ChatModel
	if opts.Model == "" {
		opts.Model = config.DefaultChatModelFor(cfg.ChatProvider)
	}
	a.RAG = rag.New(a.Embedder, a.Generator, a.Store, opts, a.Metrics, logger)

	logger.Debug("app: wired",
		"store", mustKind(cfg.DatabaseURL),
		"embedding_tag", cfg.EmbeddingTag(),
		"chat_provider", cfg.ChatProvider,
		"chat_model", opts.Model,
		"nats", a.NATS != nil,
	)
	return a, nil
}

func mustKind(dsn string) string {
	t, _ := StoreKind(dsn)
	return t.Kind
}

// Pipeline builds an ingestion pipeline over the app's store and embedder.
func (a *App) Pipeline(reset bool) (*ingest.Pipeline, error) {
	splitter, err := ingest.NewSplitter(a.Config.ChunkStrategy)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return ingest.NewPipeline(ingest.Deps{
		Loader:   pdfload.New(a.Logger),
		Splitter: splitter,
		Embedder: a.Embedder,
		Store:    a.Store,
		Notifier: a.Notifier,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	}, ingest.Options{
		Collection:   a.Config.Collection,
		EmbeddingTag: a.Config.EmbeddingTag(),
		Reset:        reset,
	}), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func tracedClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func openaiClient(cfg *config.Config) *openai.Client {
	return openai.New(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.HTTPTimeout,
		RPS:     cfg.ProviderRPS,
	})
}

func newEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	var e Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		e = openai.NewEmbedClient(openaiClient(cfg), cfg.EmbeddingModel)
	case config.ProviderOllama:
		e = ollama.NewEmbedClient(ollama.NewWithHTTPClient(cfg.OllamaURL, tracedClient(cfg)), cfg.EmbeddingModel)
	case config.ProviderGemini:
		models, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, HTTPClient: tracedClient(cfg)})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		e = gemini.NewEmbedClient(models, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("app: unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return e, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (rag.Generator, error) {
	var g rag.Generator
	switch cfg.ChatProvider {
	case config.ProviderOpenAI:
		g = openai.NewChatClient(openaiClient(cfg))
	case config.ProviderOllama:
		g = ollama.NewChatClient(ollama.NewWithHTTPClient(cfg.OllamaURL, tracedClient(cfg)))
	case config.ProviderGemini:
		models, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, HTTPClient: tracedClient(cfg)})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		g = gemini.NewChatClient(models)
	default:
		return nil, fmt.Errorf("app: unknown chat provider %q", cfg.ChatProvider)
	}
	return g, nil
}
