package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatport/chatport/internal/events"
	"github.com/chatport/chatport/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [export files or dirs...]",
	Short: "Convert exports straight into an idempotent SQL script",
	Long: `Run streams export files record by record and emits delete-then-insert
SQL for each conversation, plus tag upserts per user. The script can be
replayed safely: applying it twice leaves the same rows.

Non-image media is copied into the uploads directory and emitted as file
rows; images are inlined unless --embed-images=false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var runFlags struct {
	userID      string
	tags        []string
	schema      string
	output      string
	uploadsDir  string
	mediaPrefix string
	flushEvery  int
	embedImages bool
	eventsURL   string
	statePath   string
	model       string
	modelName   string
}

func init() {
	runCmd.Flags().StringVar(&runFlags.userID, "userid", "", "destination user id (required)")
	runCmd.Flags().StringSliceVar(&runFlags.tags, "tags", nil, "extra tags to apply to imported chats")
	runCmd.Flags().StringVar(&runFlags.schema, "schema", "main", "destination schema qualifier (empty for none)")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "-", "output SQL file (- for stdout)")
	runCmd.Flags().StringVar(&runFlags.uploadsDir, "uploads-dir", "", "directory for copied media artifacts")
	runCmd.Flags().StringVar(&runFlags.mediaPrefix, "media-prefix", "", "path prefix recorded for copied media")
	runCmd.Flags().IntVar(&runFlags.flushEvery, "flush-every", 0, "flush output every N conversations")
	runCmd.Flags().BoolVar(&runFlags.embedImages, "embed-images", true, "inline images as data URIs")
	runCmd.Flags().StringVar(&runFlags.eventsURL, "events-url", "", "NATS URL for progress events")
	runCmd.Flags().StringVar(&runFlags.statePath, "state", "", "state file for resumable runs")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "model id stamped on imported messages")
	runCmd.Flags().StringVar(&runFlags.modelName, "model-name", "", "model display name")
	_ = runCmd.MarkFlagRequired("userid")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	out, closeOut, err := openOutput(runFlags.output)
	if err != nil {
		return err
	}
	defer closeOut()

	pcfg := pipeline.Config{
		UserID:         runFlags.userID,
		Tags:           runFlags.tags,
		Schema:         runFlags.schema,
		UploadsDir:     runFlags.uploadsDir,
		MediaURLPrefix: runFlags.mediaPrefix,
		EmbedImages:    runFlags.embedImages,
		FlushEvery:     runFlags.flushEvery,
		Model:          runFlags.model,
		ModelName:      runFlags.modelName,
		StatePath:      runFlags.statePath,
	}
	if pcfg.UploadsDir == "" {
		pcfg.UploadsDir = cfg.UploadsDir
	}
	if pcfg.MediaURLPrefix == "" {
		pcfg.MediaURLPrefix = cfg.MediaURLPrefix
	}
	if pcfg.FlushEvery <= 0 {
		pcfg.FlushEvery = cfg.FlushEvery
	}
	if pcfg.Model == "" {
		pcfg.Model, pcfg.ModelName = cfg.Model, cfg.ModelName
	}

	var pub *events.Publisher
	eventsURL := runFlags.eventsURL
	if eventsURL == "" {
		eventsURL = cfg.NatsURL
	}
	if eventsURL != "" {
		pub, err = events.NewPublisher(eventsURL, slog.Default())
		if err != nil {
			slog.Warn("events disabled, broker unreachable", "url", eventsURL, "error", err)
		} else {
			defer pub.Close()
		}
	}

	r := pipeline.NewRunner(pcfg, out, pub, slog.Default())
	if err := r.Run(cmd.Context(), args); err != nil {
		return err
	}

	conversations, statements, errCount := r.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n=== Import Summary ===\n")
	fmt.Fprintf(cmd.ErrOrStderr(), "Conversations: %d\n", conversations)
	fmt.Fprintf(cmd.ErrOrStderr(), "Statements: %d\n", statements)
	fmt.Fprintf(cmd.ErrOrStderr(), "Errors: %d\n", errCount)
	return nil
}
