package linearize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/chatport/chatport/internal/export"
)

// Record is one raw conversation from an export document. Shape varies by
// dialect: Claude-style exports carry a flat chat_messages array, ChatGPT
// exports a parent/child node mapping (with or without a current_node
// pointer). Fields not needed for shape detection stay raw.
type Record struct {
	Title          string          `json:"title"`
	Name           string          `json:"name"`
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	CreateTime     json.RawMessage `json:"create_time"`
	UpdateTime     json.RawMessage `json:"update_time"`
	CurrentNode    string          `json:"current_node"`
	ChatMessages   json.RawMessage `json:"chat_messages"`
	Mapping        json.RawMessage `json:"mapping"`
}

// DisplayTitle returns the record's title, falling back to name, then a
// constant.
func (r *Record) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	if r.Name != "" {
		return r.Name
	}
	return "Untitled"
}

// SourceID returns the export-supplied conversation id, if any.
func (r *Record) SourceID() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return r.ID
}

// CreatedAt returns the record's creation time, falling back to the update
// time and then def.
func (r *Record) CreatedAt(def time.Time) time.Time {
	if t := export.ParseTimestamp(r.CreateTime, time.Time{}); !t.IsZero() {
		return t
	}
	if t := export.ParseTimestamp(r.UpdateTime, time.Time{}); !t.IsZero() {
		return t
	}
	return def
}

// RawCreateTime returns the raw creation timestamp text, used as part of the
// seed for derived conversation ids.
func (r *Record) RawCreateTime() string {
	return strings.TrimSpace(string(r.CreateTime))
}

// firstByte returns the first non-whitespace byte of raw, or 0.
func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func isArray(raw json.RawMessage) bool  { return firstByte(raw) == '[' }
func isObject(raw json.RawMessage) bool { return firstByte(raw) == '{' }
