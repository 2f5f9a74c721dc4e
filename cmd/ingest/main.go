// Command ingest loads a PDF, embeds its chunks and writes them to the
// configured vector store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/pdfqa/engine/app"
	"github.com/WessleyAI/pdfqa/engine/config"
	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/ingest"
)

type flags struct {
	configFile string
	reset      bool
	watch      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "ingest [pdf]",
		Short: "Ingest a PDF into the vector store",
		Long: `Ingest reads the PDF named by the argument or PDF_PATH, splits it into
overlapping chunks, embeds them and stores them in the collection named by
PG_VECTOR_COLLECTION_NAME. Re-running with the same document overwrites it.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pdf string
			if len(args) == 1 {
				pdf = args[0]
			}
			return run(cmd.Context(), f, pdf, os.LookupEnv)
		},
	}
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "YAML or TOML config file")
	cmd.Flags().BoolVar(&f.reset, "reset", false, "drop the collection before writing (required to change embedding model)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "re-ingest whenever the file changes")
	return cmd
}

// withPDF lets a positional argument stand in for PDF_PATH.
func withPDF(lookup func(string) (string, bool), pdf string) func(string) (string, bool) {
	if pdf == "" {
		return lookup
	}
	return func(key string) (string, bool) {
		if key == config.EnvPDFPath {
			return pdf, true
		}
		return lookup(key)
	}
}

func run(ctx context.Context, f flags, pdf string, lookup func(string) (string, bool)) error {
	cfg, err := app.LoadConfig(config.Options{File: f.configFile, Lookup: withPDF(lookup, pdf), RequirePDF: true})
	if err != nil {
		slog.Error("ingest: configuration", "error", err)
		return err
	}
	logger := app.NewLogger(cfg, os.Stderr, false)
	slog.SetDefault(logger)
	logger.Debug("ingest: config", "config", fmt.Sprintf("%+v", cfg.Redacted()))

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("ingest: setup failed", "error", err)
		return err
	}
	defer a.Close()
	a.ServeMetrics(ctx)

	p, err := a.Pipeline(f.reset)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, cfg.PDFPath)
	if err := report(logger, res, err); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}

	// Later runs replace the document so chunks that disappeared from it go too.
	again, err := a.Pipeline(true)
	if err != nil {
		return err
	}
	return ingest.Watch(ctx, cfg.PDFPath, ingest.DefaultDebounce, func(ctx context.Context) error {
		res, err := again.Run(ctx, cfg.PDFPath)
		return report(logger, res, err)
	}, logger)
}

// report logs the outcome. An empty document is a warning, not a failure.
func report(logger *slog.Logger, res ingest.Result, err error) error {
	switch {
	case errors.Is(err, domain.ErrNoChunks):
		logger.Warn("ingest: no text extracted, nothing written", "error", err)
		return nil
	case err != nil:
		logger.Error("ingest: failed", "error", err)
		return err
	}
	fmt.Fprintf(os.Stdout, "Ingested %d chunks into %q (%s)\n", res.Chunks, res.Collection, res.EmbeddingTag)
	return nil
}
