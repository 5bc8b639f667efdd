package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatport/chatport/internal/store"
)

var applyCmd = &cobra.Command{
	Use:   "apply [script.sql]",
	Short: "Apply a generated SQL script to a live database",
	Long: `Apply executes an emitted script against an Open WebUI database:
sqlite via --db, Postgres via --database-url (or DATABASE_URL). The
scripts are idempotent, so re-applying after a partial failure is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var applyFlags struct {
	sqlitePath  string
	databaseURL string
}

func init() {
	applyCmd.Flags().StringVar(&applyFlags.sqlitePath, "db", "", "path to the sqlite webui.db")
	applyCmd.Flags().StringVar(&applyFlags.databaseURL, "database-url", "", "Postgres connection URL")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	sqlitePath := applyFlags.sqlitePath
	if sqlitePath == "" {
		sqlitePath = cfg.SQLitePath
	}
	databaseURL := applyFlags.databaseURL
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}

	var s store.Store
	switch {
	case sqlitePath != "":
		s, err = store.OpenSQLite(cmd.Context(), sqlitePath)
	case databaseURL != "":
		s, err = store.OpenPostgres(cmd.Context(), databaseURL)
	default:
		return fmt.Errorf("no destination: set --db or --database-url")
	}
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Apply(cmd.Context(), string(script)); err != nil {
		return fmt.Errorf("apply script: %w", err)
	}

	slog.Info("script applied", "script", args[0], "bytes", len(script))
	return nil
}
