// Package ingest provides the ingestion pipeline that turns a PDF into stored
// vectors through load, split, enrich, embed and store stages.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
	"github.com/WessleyAI/pdfqa/pkg/fn"
	"github.com/WessleyAI/pdfqa/pkg/metrics"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Loader   Loader
	Splitter Splitter // nil uses the default window splitter
	Embedder Embedder
	Store    semantic.Store
	Notifier Notifier // optional
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Options are the per-pipeline settings.
type Options struct {
	Collection   string
	EmbeddingTag string
	// Reset replaces the collection after embedding succeeded. It also
	// allows switching embedding models. Stores implementing
	// semantic.Replacer swap it in one transaction; on the others the
	// delete and the write are separate calls, so a failed write leaves
	// the collection empty.
	Reset bool
}

// --- Pipeline Stages ---

// NewLoad creates the stage that reads pages from the source path.
func NewLoad(l Loader) fn.Stage[string, LoadedDoc] {
	return func(ctx context.Context, path string) fn.Result[LoadedDoc] {
		pages, err := l.Load(ctx, path)
		if err != nil {
			return fn.Err[LoadedDoc](fmt.Errorf("ingest: load: %w", err))
		}
		return fn.Ok(LoadedDoc{Path: path, Pages: pages})
	}
}

// NewSplit creates the chunking stage. Zero chunks fail with domain.ErrNoChunks.
func NewSplit(s Splitter) fn.Stage[LoadedDoc, ChunkedDoc] {
	return func(_ context.Context, doc LoadedDoc) fn.Result[ChunkedDoc] {
		chunks, err := SplitPagesWith(s, doc.Pages)
		if err != nil {
			return fn.Err[ChunkedDoc](err)
		}
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](fmt.Errorf("ingest: %s: %w", doc.Path, domain.ErrNoChunks))
		}
		return fn.Ok(ChunkedDoc{Path: doc.Path, Chunks: chunks})
	}
}

// EnrichDoc cleans metadata and assigns doc-enriched ids.
var EnrichDoc = fn.MapStage(func(doc ChunkedDoc) ChunkedDoc {
	return ChunkedDoc{Path: doc.Path, Chunks: Enrich(doc.Chunks)}
})

// NewPreflight fails early when the target collection was built with another
// embedding model, so no embedding calls are spent on a write that would be
// rejected. Reset skips the check.
func NewPreflight(store semantic.Store, opts Options) fn.Stage[ChunkedDoc, ChunkedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[ChunkedDoc] {
		if opts.Reset {
			return fn.Ok(doc)
		}
		c, err := store.Collection(ctx, opts.Collection)
		if errors.Is(err, semantic.ErrCollectionNotFound) {
			return fn.Ok(doc)
		}
		if err != nil {
			return fn.Err[ChunkedDoc](fmt.Errorf("ingest: collection: %w", err))
		}
		if c.EmbeddingTag != opts.EmbeddingTag {
			return fn.Err[ChunkedDoc](&domain.MismatchError{
				Collection: c.Name,
				Stored:     c.EmbeddingTag,
				Configured: opts.EmbeddingTag,
			})
		}
		return fn.Ok(doc)
	}
}

// NewEmbed creates the Embed stage. Chunks are sent sequentially in batches
// of EmbedBatchSize.
func NewEmbed(e Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Text })
		embeddings := make([][]float32, 0, len(texts))

		for i, batch := range fn.Chunk(texts, EmbedBatchSize) {
			vecs, err := e.EmbedBatch(ctx, batch)
			if err != nil {
				return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed batch %d: %w", i, err))
			}
			if len(vecs) != len(batch) {
				return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed batch %d: got %d vectors for %d texts", i, len(vecs), len(batch)))
			}
			embeddings = append(embeddings, vecs...)
		}

		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// NewStore creates the stage that writes every chunk in one Upsert, or one
// Replace when resetting.
func NewStore(store semantic.Store, opts Options, log *slog.Logger) fn.Stage[EmbeddedDoc, Result] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Result] {
		coll := semantic.Collection{
			Name:         opts.Collection,
			EmbeddingTag: opts.EmbeddingTag,
			Dimensions:   len(doc.Embeddings[0]),
		}
		records := make([]semantic.Record, len(doc.Chunks))
		for i, c := range doc.Chunks {
			records[i] = semantic.Record{
				ID:        c.ID,
				Document:  c.Text,
				Embedding: doc.Embeddings[i],
				Metadata:  c.Metadata,
			}
		}

		if r, ok := store.(semantic.Replacer); ok && opts.Reset {
			if err := r.Replace(ctx, coll, records); err != nil {
				return fn.Err[Result](fmt.Errorf("ingest: replace: %w", err))
			}
			log.Info("ingest: collection replaced", "collection", coll.Name)
		} else {
			if opts.Reset {
				if err := store.DeleteCollection(ctx, coll.Name); err != nil {
					return fn.Err[Result](fmt.Errorf("ingest: reset: %w", err))
				}
				log.Info("ingest: collection reset", "collection", coll.Name)
			}
			if err := store.EnsureCollection(ctx, coll); err != nil {
				return fn.Err[Result](fmt.Errorf("ingest: ensure collection: %w", err))
			}
			if err := store.Upsert(ctx, coll.Name, records); err != nil {
				return fn.Err[Result](fmt.Errorf("ingest: store: %w", err))
			}
		}

		return fn.Ok(Result{
			Collection:   coll.Name,
			Source:       doc.Path,
			Chunks:       len(records),
			EmbeddingTag: coll.EmbeddingTag,
		})
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// Pipeline runs ingestion for one document at a time.
type Pipeline struct {
	run      fn.Stage[string, Result]
	notifier Notifier
	metrics  *pipelineMetrics
	logger   *slog.Logger
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps, opts Options) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	splitter := deps.Splitter
	if splitter == nil {
		splitter = WindowSplitter{Size: ChunkSize, Overlap: ChunkOverlap}
	}

	// Compose: Load → Split → Enrich → Preflight → Embed → Store
	// with logging taps and spans around each stage.
	loaded := fn.Then(LoggedTap[string]("load", log), fn.TracedStage("ingest.load", NewLoad(deps.Loader)))
	split := fn.Then(loaded, fn.Then(LoggedTap[LoadedDoc]("split", log), fn.TracedStage("ingest.split", NewSplit(splitter))))
	enriched := fn.Then(split, fn.Then(LoggedTap[ChunkedDoc]("enrich", log), EnrichDoc))
	checked := fn.Then(enriched, fn.TracedStage("ingest.preflight", NewPreflight(deps.Store, opts)))
	embedded := fn.Then(checked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder))))
	stored := fn.Then(embedded, fn.Then(LoggedTap[EmbeddedDoc]("store", log), fn.TracedStage("ingest.store", NewStore(deps.Store, opts, log))))

	return &Pipeline{
		run:      fn.TracedStage("ingest.run", stored),
		notifier: deps.Notifier,
		metrics:  newPipelineMetrics(deps.Metrics),
		logger:   log,
	}
}

// Run ingests the document at path. An empty document returns an error
// matching domain.ErrNoChunks and nothing is written.
func (p *Pipeline) Run(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res, err := p.run(ctx, path).Unwrap()
	p.metrics.observe(res, err, time.Since(start))
	if err != nil {
		return Result{}, err
	}

	p.logger.Info("ingest: success",
		"collection", res.Collection,
		"chunks", res.Chunks,
		"embedding_tag", res.EmbeddingTag,
		"duration", time.Since(start),
	)
	if p.notifier != nil {
		if nerr := p.notifier.Completed(ctx, res); nerr != nil {
			p.logger.Warn("ingest: notify failed", "error", nerr)
		}
	}
	return res, nil
}
