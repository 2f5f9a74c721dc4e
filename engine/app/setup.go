package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/pdfqa/engine/config"
)

// LoadConfig reads .env (when present, never overriding the real
// environment) and then resolves the configuration. Nothing here touches
// the network.
func LoadConfig(opts config.Options) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return config.Load(opts)
}

// NewLogger builds the process logger. Servers log JSON, interactive
// binaries log text to stderr so stdout stays readable.
func NewLogger(cfg *config.Config, w io.Writer, json bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg != nil {
		opts.Level = cfg.SlogLevel()
	}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ServeMetrics exposes the registry on METRICS_PORT in the background when
// it is set.
func (a *App) ServeMetrics(ctx context.Context) {
	if a.Config.MetricsPort == "" {
		return
	}
	go func() {
		if err := a.Metrics.Serve(ctx, ":"+a.Config.MetricsPort, a.Logger); err != nil {
			a.Logger.Error("metrics server failed", "error", err)
		}
	}()
}
