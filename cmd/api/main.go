// Command api serves questions about the ingested PDF over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/pdfqa/engine/app"
	"github.com/WessleyAI/pdfqa/engine/config"
	"github.com/WessleyAI/pdfqa/engine/events"
	"github.com/WessleyAI/pdfqa/pkg/mid"
)

const maxBodyBytes = 64 << 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:          "api",
		Short:        "Serve PDF questions over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML or TOML config file")
	return cmd
}

func run(ctx context.Context, configFile string) error {
	cfg, err := app.LoadConfig(config.Options{File: configFile})
	if err != nil {
		slog.Error("api: configuration", "error", err)
		return err
	}
	logger := app.NewLogger(cfg, os.Stdout, true)
	slog.SetDefault(logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("api: setup failed", "error", err)
		return err
	}
	defer a.Close()

	s := newServer(a.RAG, cfg.Collection, cfg.EmbeddingTag(), a.Metrics, logger)
	if a.NATS != nil {
		sub, err := events.Subscribe(a.NATS, s.onIngest)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	handler := mid.Chain(s.routes(),
		mid.Recover(logger),
		mid.RequestID(),
		mid.OTel("pdfqa-api"),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBody(maxBodyBytes),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
