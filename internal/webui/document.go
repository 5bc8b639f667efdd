// Package webui builds Open WebUI chat documents. Field names match the
// consumer's import schema exactly; do not rename tags.
package webui

// Document is the chat blob stored in the chat table's "chat" column.
type Document struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Models    []string       `json:"models"`
	Params    map[string]any `json:"params"`
	History   History        `json:"history"`
	Messages  []*Message     `json:"messages"`
	Tags      []string       `json:"tags"`
	Timestamp int64          `json:"timestamp"` // milliseconds
	Files     []*File        `json:"files"`
	UserID    string         `json:"userId,omitempty"`
}

// History is the threading view: the full message map plus the id of the
// currently selected leaf.
type History struct {
	Messages  map[string]*Message `json:"messages"`
	CurrentID string              `json:"currentId"`
}

// Message is one entry in the history map. User and assistant messages carry
// different extra fields; optional ones use pointers so a zero value (e.g.
// modelIdx 0) still serializes for the role that owns it.
type Message struct {
	ID          string   `json:"id"`
	ParentID    *string  `json:"parentId"`
	ChildrenIDs []string `json:"childrenIds"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"` // seconds
	Files       []*File  `json:"files"`

	// User messages only.
	Models []string `json:"models,omitempty"`

	// Assistant messages only.
	Model        string  `json:"model,omitempty"`
	ModelName    string  `json:"modelName,omitempty"`
	ModelIdx     *int    `json:"modelIdx,omitempty"`
	UserContext  any     `json:"userContext,omitempty"`
	LastSentence *string `json:"lastSentence,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
	Done         *bool   `json:"done,omitempty"`
}

// Usage mirrors the token accounting block; imports have no real counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// File is a message attachment: either an inline data URI (images) or a full
// artifact descriptor wrapping a file-table row.
type File struct {
	ID     string    `json:"id,omitempty"`
	Name   string    `json:"name,omitempty"`
	Type   string    `json:"type,omitempty"` // "image" or "file"
	URL    string    `json:"url,omitempty"`  // data URI or /api/v1/files/{id}
	Status string    `json:"status,omitempty"`
	Size   int64     `json:"size,omitempty"`
	Meta   *FileMeta `json:"meta,omitempty"`
	Data   *FileData `json:"data,omitempty"`
	File   *FileRow  `json:"file,omitempty"`
}

// FileMeta describes the original upload.
type FileMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// FileData is the processing-status block.
type FileData struct {
	Status string `json:"status"`
}

// FileRow mirrors the destination file table; it is both nested into the chat
// document and emitted as its own row.
type FileRow struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Hash      string   `json:"hash"`
	Filename  string   `json:"filename"`
	Data      FileData `json:"data"`
	Meta      FileMeta `json:"meta"`
	Path      string   `json:"path"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// Envelope is the wrapper written by the convert command, matching the Open
// WebUI JSON import format (a single-element array of these).
type Envelope struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Chat   *Document `json:"chat"`
}

// FileRows returns the file-table rows referenced by the document, in message
// order. Inline images produce no row.
func (d *Document) FileRows() []*FileRow {
	var rows []*FileRow
	seen := make(map[string]bool)
	for _, m := range d.Messages {
		for _, f := range m.Files {
			if f.File == nil || seen[f.File.ID] {
				continue
			}
			seen[f.File.ID] = true
			rows = append(rows, f.File)
		}
	}
	return rows
}
