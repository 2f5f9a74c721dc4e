// Command chat answers questions about the ingested PDF, as a line REPL by
// default or as a full-screen terminal UI with --tui.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/pdfqa/engine/app"
	"github.com/WessleyAI/pdfqa/engine/chat"
	"github.com/WessleyAI/pdfqa/engine/config"
)

type flags struct {
	configFile string
	tui        bool
	logFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Ask questions about the ingested PDF",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, in, out, os.LookupEnv)
		},
	}
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "YAML or TOML config file")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "full-screen terminal UI")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write logs here instead of stderr (the TUI discards them otherwise)")
	return cmd
}

func logSink(f flags) (io.Writer, func(), error) {
	switch {
	case f.logFile != "":
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("chat: open log file: %w", err)
		}
		return file, func() { file.Close() }, nil
	case f.tui:
		return io.Discard, func() {}, nil
	default:
		return os.Stderr, func() {}, nil
	}
}

func run(ctx context.Context, f flags, in io.Reader, out io.Writer, lookup func(string) (string, bool)) error {
	cfg, err := app.LoadConfig(config.Options{File: f.configFile, Lookup: lookup})
	if err != nil {
		slog.Error("chat: configuration", "error", err)
		return err
	}
	sink, closeSink, err := logSink(f)
	if err != nil {
		return err
	}
	defer closeSink()
	logger := app.NewLogger(cfg, sink, false)
	slog.SetDefault(logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("chat: setup failed", "error", err)
		return err
	}
	defer a.Close()
	a.ServeMetrics(ctx)

	if f.tui {
		return chat.RunTUI(ctx, a.RAG)
	}
	return chat.NewSession(a.RAG, in, out, logger).Run(ctx)
}
