package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chatport/chatport/internal/assets"
	"github.com/chatport/chatport/internal/export"
	"github.com/chatport/chatport/internal/linearize"
	"github.com/chatport/chatport/internal/stream"
	"github.com/chatport/chatport/internal/webui"
)

// Converter turns export files into one importable chat JSON per
// conversation, written to OutDir as {slug}_{id}.json. Non-inline media lands
// under OutDir/media so the documents stay portable alongside their files.
type Converter struct {
	UserID      string
	OutDir      string
	MediaPrefix string // subdirectory of OutDir that receives copied media
	EmbedImages bool

	builder *webui.Builder
	logger  *slog.Logger
}

// NewConverter creates a converter writing into outDir.
func NewConverter(userID, outDir, model, modelName string, embedImages bool, logger *slog.Logger) *Converter {
	b := webui.NewBuilder(logger)
	if model != "" {
		b.Model = model
	}
	if modelName != "" {
		b.ModelName = modelName
	}
	return &Converter{
		UserID:      userID,
		OutDir:      outDir,
		MediaPrefix: "media",
		EmbedImages: embedImages,
		builder:     b,
		logger:      logger,
	}
}

// Run converts every input path.
func (c *Converter) Run(ctx context.Context, paths []string) (written int, err error) {
	files, err := GatherFiles(paths)
	if err != nil {
		return 0, fmt.Errorf("gather inputs: %w", err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no input files found")
	}

	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	for _, path := range files {
		n, err := c.ConvertFile(ctx, path)
		written += n
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			c.logger.Error("file failed", "path", path, "error", err)
		}
	}
	return written, nil
}

// ConvertFile streams one export document and writes one chat JSON per
// record. It returns the number of documents written.
func (c *Converter) ConvertFile(ctx context.Context, path string) (written int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	reader, err := stream.NewRecordReader(f)
	if err != nil {
		return 0, err
	}

	exportDir := filepath.Dir(path)
	lin := &linearize.Linearizer{
		Attach: &assets.Embedder{
			Resolver:       assets.NewResolver(exportDir, c.logger),
			UploadsDir:     filepath.Join(c.OutDir, c.MediaPrefix),
			MediaURLPrefix: c.MediaPrefix,
			EmbedImages:    c.EmbedImages,
			Logger:         c.logger,
		},
		Logger: c.logger,
	}

	scope := filepath.Base(path)
	c.logger.Info("converting file", "path", path)

	for idx := 0; ; idx++ {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		var rec linearize.Record
		if nerr := reader.Next(&rec); nerr == io.EOF {
			break
		} else if nerr != nil {
			return written, nerr
		}

		if werr := c.writeRecord(lin, &rec, scope, idx); werr != nil {
			c.logger.Warn("record skipped", "title", rec.DisplayTitle(), "error", werr)
			continue
		}
		written++
	}
	return written, nil
}

func (c *Converter) writeRecord(lin *linearize.Linearizer, rec *linearize.Record, scope string, ordinal int) error {
	ts := rec.CreatedAt(time.Now().UTC())
	msgs := lin.Linearize(rec, ts)

	conv := export.Conversation{
		ID:        export.ConversationID(rec.SourceID(), scope, rec.DisplayTitle(), rec.RawCreateTime(), ordinal),
		Title:     rec.DisplayTitle(),
		CreatedAt: ts,
		Messages:  msgs,
	}
	doc := c.builder.Build(conv, c.UserID)

	envelope := []webui.Envelope{{
		ID:     conv.ID,
		UserID: c.UserID,
		Title:  conv.Title,
		Chat:   doc,
	}}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	name := export.SlugTitle(conv.Title) + "_" + conv.ID + ".json"
	dst := filepath.Join(c.OutDir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	c.logger.Debug("document written", "path", dst, "messages", len(msgs))
	return nil
}
