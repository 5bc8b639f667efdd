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

	"github.com/chatport/chatport/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "chatport",
	Short: "Convert chat exports into Open WebUI imports",
	Long: `chatport converts chat export files (ChatGPT, Claude, Grok) into
Open WebUI conversations.

Exports can be turned into importable chat JSON documents (convert),
into idempotent SQL scripts (run, sql), or pushed straight into a live
database (apply). Media referenced by the conversations is resolved from
the export directory and either inlined or copied alongside the output.`,
	SilenceUsage: true,
}

// Execute runs the CLI. SIGINT/SIGTERM cancel the command context so long
// runs can stop cleanly and save their state.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		cfg = config.Load()
		setupLogging(cfg.LogLevel)
	})
}

// setupLogging writes JSON logs to stderr; stdout is reserved for emitted
// SQL when no output file is given.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// openOutput opens the SQL destination. "-" or empty means stdout, which the
// returned close func leaves open.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}
