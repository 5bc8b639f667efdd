package webui

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/chatport/chatport/internal/assets"
	"github.com/chatport/chatport/internal/export"
)

// Default model attribution stamped onto imported messages.
const (
	DefaultModel     = "openai/GPT-5"
	DefaultModelName = "OpenAI: GPT-5"
)

// Builder turns a normalized conversation into the consumer's chat document.
// This is also the final serialization pass: pending inline media is read and
// base64-encoded here, not earlier, so discarded entries never pay for
// encoding.
type Builder struct {
	Model     string
	ModelName string
	Logger    *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{Model: DefaultModel, ModelName: DefaultModelName, Logger: logger}
}

// Build produces the chat document for one conversation. Message ids are
// derived from the conversation id and position, so the same input always
// yields the same document.
func (b *Builder) Build(conv export.Conversation, userID string) *Document {
	doc := &Document{
		ID:        "",
		Title:     conv.Title,
		Models:    []string{b.Model},
		Params:    map[string]any{},
		History:   History{Messages: make(map[string]*Message)},
		Messages:  []*Message{},
		Tags:      []string{},
		Timestamp: conv.CreatedAt.UnixMilli(),
		Files:     []*File{},
		UserID:    userID,
	}

	var prev *Message
	for i, m := range conv.Messages {
		msg := &Message{
			ID:          export.MessageID(conv.ID, i),
			ChildrenIDs: []string{},
			Role:        m.Role,
			Content:     m.Text,
			Timestamp:   m.Timestamp.Unix(),
			Files:       []*File{},
		}

		for _, ref := range m.Files {
			file := b.buildFile(ref, userID, conv.CreatedAt.Unix())
			if file == nil {
				continue
			}
			msg.Files = append(msg.Files, file)
			if ref.Mode == export.EmbedInline {
				// The media now renders from the attachment; drop any
				// leftover markdown reference so it cannot show twice.
				msg.Content = assets.StripReference(msg.Content, ref.ID)
			}
		}

		if m.Role == export.RoleUser {
			msg.Models = []string{b.Model}
		} else {
			idx := 0
			done := true
			last := export.LastSentence(msg.Content)
			msg.Model = b.Model
			msg.ModelName = b.ModelName
			msg.ModelIdx = &idx
			msg.LastSentence = &last
			msg.Usage = &Usage{}
			msg.Done = &done
		}

		if prev != nil {
			id := prev.ID
			msg.ParentID = &id
			prev.ChildrenIDs = append(prev.ChildrenIDs, msg.ID)
		}

		doc.History.Messages[msg.ID] = msg
		doc.Messages = append(doc.Messages, msg)
		prev = msg
	}

	if prev != nil {
		doc.History.CurrentID = prev.ID
	}
	return doc
}

// buildFile converts a FileRef into its document form. Unreadable inline
// media degrades to a bare reference with a warning; the message survives.
func (b *Builder) buildFile(ref export.FileRef, userID string, createdAt int64) *File {
	switch ref.Mode {
	case export.EmbedInline:
		data, err := os.ReadFile(ref.SourcePath)
		if err != nil {
			b.Logger.Warn("failed to read inline media", "path", ref.SourcePath, "error", err)
			return &File{ID: ref.ID, Name: ref.Name}
		}
		return &File{
			ID:   ref.ID,
			Name: ref.Name,
			Type: "image",
			URL:  fmt.Sprintf("data:%s;base64,%s", ref.MIME, base64.StdEncoding.EncodeToString(data)),
			Meta: &FileMeta{Name: ref.Name, ContentType: ref.MIME, Size: ref.Size},
			Data: &FileData{Status: "completed"},
		}

	case export.EmbedUpload:
		row := &FileRow{
			ID:       ref.ID,
			UserID:   userID,
			Hash:     ref.Hash,
			Filename: ref.Name,
			Data:     FileData{Status: "completed"},
			Meta:     FileMeta{Name: ref.Name, ContentType: ref.MIME, Size: ref.Size},
			Path:     ref.StorePath,
			// Import time would differ run to run; the conversation's own
			// timestamp keeps emitted statements reproducible.
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		return &File{
			ID:     ref.ID,
			Name:   ref.Name,
			Type:   "file",
			URL:    "/api/v1/files/" + ref.ID,
			Status: "uploaded",
			Size:   ref.Size,
			File:   row,
		}

	case export.EmbedUnresolved:
		return &File{ID: ref.ID, Name: ref.Name}
	}
	return nil
}
