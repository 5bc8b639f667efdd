// Package pipeline wires the conversion stages together: discover input
// files, stream records, linearize, resolve and embed media, and emit SQL.
// Failures are isolated at the record level where possible and at the file
// level otherwise; one bad export never aborts a run.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatport/chatport/internal/assets"
	"github.com/chatport/chatport/internal/events"
	"github.com/chatport/chatport/internal/export"
	"github.com/chatport/chatport/internal/linearize"
	"github.com/chatport/chatport/internal/sqlgen"
	"github.com/chatport/chatport/internal/stream"
	"github.com/chatport/chatport/internal/webui"
)

// Config holds the run command configuration.
type Config struct {
	UserID         string
	Tags           []string
	Schema         string
	UploadsDir     string
	MediaURLPrefix string
	EmbedImages    bool
	FlushEvery     int
	Model          string
	ModelName      string
	StatePath      string // optional: resumable state file
}

// Runner converts export files into SQL written to out.
type Runner struct {
	cfg     Config
	out     *bufio.Writer
	emitter *sqlgen.Emitter
	builder *webui.Builder
	events  *events.Publisher // nil when no broker is configured
	logger  *slog.Logger

	tags          []sqlgen.Tag
	seenUsers     map[string]bool
	conversations int
	statements    int
	errCount      int
	sinceFlush    int // records since the last flush
}

// NewRunner creates a pipeline runner writing statements to out. pub may be
// nil to disable progress events.
func NewRunner(cfg Config, out io.Writer, pub *events.Publisher, logger *slog.Logger) *Runner {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 25
	}
	b := webui.NewBuilder(logger)
	if cfg.Model != "" {
		b.Model = cfg.Model
	}
	if cfg.ModelName != "" {
		b.ModelName = cfg.ModelName
	}

	return &Runner{
		cfg:       cfg,
		out:       bufio.NewWriter(out),
		emitter:   sqlgen.New(cfg.Schema),
		builder:   b,
		events:    pub,
		logger:    logger,
		tags:      sqlgen.TagSet(cfg.Tags),
		seenUsers: make(map[string]bool),
	}
}

// Run processes every input path end to end and flushes the output. Export
// files require a configured user id; chat documents carry their own.
func (r *Runner) Run(ctx context.Context, paths []string) error {
	if r.cfg.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	files, err := GatherFiles(paths)
	if err != nil {
		return fmt.Errorf("gather inputs: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found")
	}
	r.logger.Info("files discovered", "count", len(files))

	var state *ImportState
	if r.cfg.StatePath != "" {
		state, err = LoadState(r.cfg.StatePath)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
	}

	for _, path := range files {
		select {
		case <-ctx.Done():
			r.logger.Info("run interrupted")
			if state != nil {
				_ = state.Save()
			}
			_ = r.out.Flush()
			return ctx.Err()
		default:
		}

		if state != nil && state.IsProcessed(path) {
			r.logger.Info("skipping already processed file", "path", path)
			continue
		}

		convs, fileRows, errs, err := r.ProcessExportFile(ctx, path)
		if err != nil {
			r.logger.Error("file failed", "path", path, "error", err)
			r.errCount++
			if state != nil {
				state.AddError(fmt.Sprintf("%s: %v", path, err))
			}
			if ctx.Err() != nil {
				_ = r.out.Flush()
				return ctx.Err()
			}
			continue
		}

		r.publishFileDone(path, convs, fileRows, errs)

		if state != nil {
			state.MarkProcessed(path)
			state.RecordsProcessed += convs
			state.StatementsWritten = r.statements
			_ = state.Save()
		}
	}

	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	r.publishRunDone(len(files))
	r.logger.Info("run complete",
		"files", len(files),
		"conversations", r.conversations,
		"statements", r.statements,
		"errors", r.errCount,
	)
	return nil
}

// ProcessExportFile streams one export document and emits SQL for each record
// in it. It returns the number of conversations emitted, the number of file
// rows they carried, and the number of record-level errors. A document that
// cannot be tokenized at all is a file-level error.
func (r *Runner) ProcessExportFile(ctx context.Context, path string) (convs, fileRows, errs int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	reader, err := stream.NewRecordReader(f)
	if err != nil {
		return 0, 0, 0, err
	}

	exportDir := filepath.Dir(path)
	lin := &linearize.Linearizer{
		Attach: &assets.Embedder{
			Resolver:       assets.NewResolver(exportDir, r.logger),
			UploadsDir:     r.cfg.UploadsDir,
			MediaURLPrefix: r.cfg.MediaURLPrefix,
			EmbedImages:    r.cfg.EmbedImages,
			Logger:         r.logger,
		},
		Logger: r.logger,
	}

	scope := filepath.Base(path)
	r.logger.Info("processing file", "path", path)

	for idx := 0; ; idx++ {
		select {
		case <-ctx.Done():
			return convs, fileRows, errs, ctx.Err()
		default:
		}

		var rec linearize.Record
		if nerr := reader.Next(&rec); nerr == io.EOF {
			break
		} else if nerr != nil {
			return convs, fileRows, errs, nerr
		}

		rows, eerr := r.emitRecord(lin, &rec, scope, idx)
		if eerr != nil {
			r.logger.Warn("record skipped", "title", rec.DisplayTitle(), "error", eerr)
			r.errCount++
			errs++
			continue
		}
		convs++
		fileRows += rows
	}
	return convs, fileRows, errs, nil
}

// emitRecord converts one record and writes its statements. scope and ordinal
// identify the record's position within its own document; derived ids must
// not depend on anything run-wide, or resumed and subset runs would stop
// converging.
func (r *Runner) emitRecord(lin *linearize.Linearizer, rec *linearize.Record, scope string, ordinal int) (int, error) {
	ts := rec.CreatedAt(time.Now().UTC())
	msgs := lin.Linearize(rec, ts)

	conv := export.Conversation{
		ID:        export.ConversationID(rec.SourceID(), scope, rec.DisplayTitle(), rec.RawCreateTime(), ordinal),
		Title:     rec.DisplayTitle(),
		CreatedAt: ts,
		Messages:  msgs,
	}
	doc := r.builder.Build(conv, r.cfg.UserID)

	r.emitTagsFor(r.cfg.UserID)

	stmts, err := r.emitter.ConversationStatements(doc, conv.ID, r.tags)
	if err != nil {
		return 0, err
	}
	if err := r.writeStatements(stmts); err != nil {
		return 0, err
	}
	if err := r.recordDone(); err != nil {
		return 0, err
	}

	r.conversations++
	r.logger.Debug("conversation emitted", "id", conv.ID, "title", conv.Title, "messages", len(msgs))
	return len(doc.FileRows()), nil
}

// ProcessChatFile emits SQL for an already-converted chat document: either a
// bare chat blob or the import envelope wrapping one or more of them. Media
// files still sitting next to the document are inlined first.
func (r *Runner) ProcessChatFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var envelopes []struct {
			ID     string         `json:"id"`
			UserID string         `json:"user_id"`
			Title  string         `json:"title"`
			Chat   map[string]any `json:"chat"`
		}
		if err := json.Unmarshal(data, &envelopes); err != nil {
			return fmt.Errorf("parse envelope: %w", err)
		}
		for i, env := range envelopes {
			if env.Chat == nil {
				r.logger.Warn("envelope entry has no chat document", "path", path, "index", i)
				r.errCount++
				continue
			}
			if err := r.emitChatDoc(env.Chat, env.ID, env.UserID, path, i); err != nil {
				r.logger.Warn("chat document skipped", "path", path, "index", i, "error", err)
				r.errCount++
			}
		}
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse chat document: %w", err)
	}
	return r.emitChatDoc(doc, "", "", path, 0)
}

// emitChatDoc inlines local media into one chat blob and writes its
// statements. Ids and user ids fall back from the envelope to the blob itself
// to the run configuration; a document with no user id anywhere is skipped.
// ordinal is the entry's index within its own file.
func (r *Runner) emitChatDoc(doc map[string]any, id, userID, path string, ordinal int) error {
	webui.EmbedLocalMedia(doc, filepath.Dir(path), r.logger)

	if userID == "" {
		userID, _ = doc["userId"].(string)
	}
	if userID == "" {
		userID = r.cfg.UserID
	}
	if userID == "" {
		return fmt.Errorf("no user id in document or configuration")
	}

	title, _ := doc["title"].(string)
	if title == "" {
		title = "Untitled"
	}

	var createdAt int64
	if ms, ok := doc["timestamp"].(float64); ok {
		createdAt = int64(ms) / 1000
	}

	if id == "" {
		id = chatDocID(path, title, createdAt, ordinal)
	}

	chatJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal chat document: %w", err)
	}

	r.emitTagsFor(userID)

	stmts := r.emitter.ChatStatements(id, userID, title, createdAt, string(chatJSON), sqlgen.ChatMeta(r.tags))
	if err := r.writeStatements(stmts); err != nil {
		return err
	}
	if err := r.recordDone(); err != nil {
		return err
	}
	r.conversations++
	return nil
}

// chatDocID recovers the chat id for a bare document: converted files are
// named {slug}_{uuid}.json, so the trailing filename segment is tried first
// before falling back to a derived id.
func chatDocID(path, title string, createdAt int64, ordinal int) string {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	if i := strings.LastIndex(base, "_"); i >= 0 {
		if parsed, err := uuid.Parse(base[i+1:]); err == nil {
			return parsed.String()
		}
	}
	return export.ConversationID("", filepath.Base(path), title, fmt.Sprintf("%d", createdAt), ordinal)
}

// emitTagsFor writes the tag upserts the first time a user id is seen.
func (r *Runner) emitTagsFor(userID string) {
	if r.seenUsers[userID] {
		return
	}
	r.seenUsers[userID] = true
	if err := r.writeStatements(r.emitter.TagUpserts(userID, r.tags)); err != nil {
		r.logger.Warn("failed to write tag upserts", "user", userID, "error", err)
	}
}

func (r *Runner) writeStatements(stmts []string) error {
	for _, s := range stmts {
		if _, err := r.out.WriteString(s + "\n"); err != nil {
			return fmt.Errorf("write statement: %w", err)
		}
		r.statements++
	}
	return nil
}

// recordDone advances the flush cadence, which counts records rather than
// statements so a record's statements always land together.
func (r *Runner) recordDone() error {
	r.sinceFlush++
	if r.sinceFlush < r.cfg.FlushEvery {
		return nil
	}
	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	r.sinceFlush = 0
	r.logger.Debug("output flushed", "statements", r.statements)
	return nil
}

// Flush forces out any buffered statements. Callers using ProcessChatFile
// directly call this once at the end.
func (r *Runner) Flush() error {
	return r.out.Flush()
}

// Stats returns counters for the run so far.
func (r *Runner) Stats() (conversations, statements, errors int) {
	return r.conversations, r.statements, r.errCount
}

func (r *Runner) publishFileDone(path string, convs, fileRows, errs int) {
	if r.events == nil {
		return
	}
	err := r.events.Publish(events.SubjectFileDone, events.FileSummary{
		Path:          path,
		Conversations: convs,
		Files:         fileRows,
		Errors:        errs,
	})
	if err != nil {
		r.logger.Warn("failed to publish file event", "path", path, "error", err)
	}
}

func (r *Runner) publishRunDone(files int) {
	if r.events == nil {
		return
	}
	err := r.events.Publish(events.SubjectRunDone, events.RunSummary{
		Files:         files,
		Conversations: r.conversations,
		Statements:    r.statements,
		Errors:        r.errCount,
		FinishedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		r.logger.Warn("failed to publish run event", "error", err)
	}
}
