package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatport/chatport/internal/pipeline"
)

var sqlCmd = &cobra.Command{
	Use:   "sql [chat JSON files or dirs...]",
	Short: "Emit SQL for already-converted chat documents",
	Long: `Sql reads chat JSON documents produced by convert (or exported from
Open WebUI) and emits the idempotent SQL to import them. Media files
still sitting in a media/ directory next to a document are inlined as
data URIs first. Both the import envelope and bare chat blobs are
accepted; bare documents must carry a userId or be given --userid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

var sqlFlags struct {
	userID string
	tags   []string
	schema string
	output string
}

func init() {
	sqlCmd.Flags().StringVar(&sqlFlags.userID, "userid", "", "fallback user id for documents without one")
	sqlCmd.Flags().StringSliceVar(&sqlFlags.tags, "tags", nil, "extra tags to apply to imported chats")
	sqlCmd.Flags().StringVar(&sqlFlags.schema, "schema", "main", "destination schema qualifier (empty for none)")
	sqlCmd.Flags().StringVarP(&sqlFlags.output, "output", "o", "-", "output SQL file (- for stdout)")
	rootCmd.AddCommand(sqlCmd)
}

func runSQL(cmd *cobra.Command, args []string) error {
	out, closeOut, err := openOutput(sqlFlags.output)
	if err != nil {
		return err
	}
	defer closeOut()

	files, err := pipeline.GatherFiles(args)
	if err != nil {
		return fmt.Errorf("gather inputs: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found")
	}

	r := pipeline.NewRunner(pipeline.Config{
		UserID: sqlFlags.userID,
		Tags:   sqlFlags.tags,
		Schema: sqlFlags.schema,
	}, out, nil, slog.Default())

	for _, path := range files {
		if err := r.ProcessChatFile(path); err != nil {
			slog.Error("document failed", "path", path, "error", err)
		}
	}
	if err := r.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	conversations, statements, errCount := r.Stats()
	slog.Info("sql generation complete",
		"documents", conversations,
		"statements", statements,
		"errors", errCount,
	)
	return nil
}
