package export

import (
	"encoding/json"
	"time"
)

// Role values recognized in source exports. Anything else is dropped during
// linearization, except "tool" which active-path walks fold into assistant.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// EmbedMode says how a referenced media asset ends up in the destination.
type EmbedMode int

const (
	// EmbedInline marks an image that will be serialized as a base64 data
	// URI. The bytes are not read until final serialization.
	EmbedInline EmbedMode = iota
	// EmbedUpload marks an asset copied into the uploads area, carried as a
	// full artifact descriptor plus a file-table row.
	EmbedUpload
	// EmbedUnresolved marks an asset whose source file could not be read.
	// The reference stays in the file list so nothing silently vanishes.
	EmbedUnresolved
)

// FileRef is one media asset attached to a message.
type FileRef struct {
	ID   string // deterministic, derived from the asset pointer
	Name string // original display name

	Mode EmbedMode

	// SourcePath is the resolved on-disk location in the export tree.
	// For EmbedInline it is read during final serialization.
	SourcePath string
	// StorePath is the canonical destination path for uploaded artifacts,
	// e.g. "uploads/{id}_{name}".
	StorePath string

	Size int64
	MIME string
	Hash string // hex SHA-256 of the content, uploads only
}

// Message is one turn of a conversation after linearization. The source tree
// is gone at this point; ordering is the chosen chronological path.
type Message struct {
	Role      string
	Text      string
	Timestamp time.Time
	Files     []FileRef
}

// Conversation is the unit of import. ID is stable across repeated runs on
// the same input so re-import converges instead of duplicating.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Messages  []Message
}

// ParseTimestamp coerces a raw JSON timestamp value (numeric epoch seconds or
// an ISO-8601 string) into a time. Falls back to def when it cannot.
func ParseTimestamp(raw json.RawMessage, def time.Time) time.Time {
	if len(raw) == 0 {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		// Exports write both offset-carrying and bare ISO-8601 strings.
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return def
}
