// Package linearize converts one raw conversation record into an ordered,
// role-tagged message sequence. Tree-shaped histories are collapsed to the
// single active path; branches that were never shown to the user are dropped.
package linearize

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/chatport/chatport/internal/export"
)

// Attacher resolves an asset pointer referenced by a message part, returning
// the text fragment for the message content and an optional file reference.
type Attacher interface {
	Attach(pointer, contentType string) (string, *export.FileRef)
}

// Linearizer turns raw records into message sequences, delegating asset
// resolution to an Attacher.
type Linearizer struct {
	Attach Attacher
	Logger *slog.Logger
}

type node struct {
	Parent   string          `json:"parent"`
	Children []string        `json:"children"`
	Message  json.RawMessage `json:"message"`
}

type nodeMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	Content struct {
		Parts []json.RawMessage `json:"parts"`
	} `json:"content"`
	CreateTime json.RawMessage `json:"create_time"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

type flatMessage struct {
	Text    string            `json:"text"`
	Content []json.RawMessage `json:"content"`
}

// Linearize produces the ordered message sequence for one record. defaultTS
// is used for messages lacking their own timestamp. A record matching no
// known shape degenerates to a single user turn carrying the title, so every
// record yields at least one message. Malformed nodes terminate the walk
// early; whatever was collected so far is returned.
func (l *Linearizer) Linearize(rec *Record, defaultTS time.Time) []export.Message {
	switch {
	case isArray(rec.ChatMessages):
		return l.fromFlatArray(rec, defaultTS)
	case isObject(rec.Mapping):
		return l.fromMapping(rec, defaultTS)
	default:
		return l.degenerate(rec, defaultTS)
	}
}

// fromFlatArray handles exports that store one turn per array element. Roles
// alternate strictly, user first, indexed on the source array.
func (l *Linearizer) fromFlatArray(rec *Record, defaultTS time.Time) []export.Message {
	var flat []flatMessage
	if err := json.Unmarshal(rec.ChatMessages, &flat); err != nil {
		l.Logger.Warn("malformed chat_messages array", "title", rec.DisplayTitle(), "error", err)
		return nil
	}

	var msgs []export.Message
	for idx, fm := range flat {
		text := fm.Text
		var files []export.FileRef
		if text == "" && len(fm.Content) > 0 {
			text, files = l.partsToText(fm.Content)
		}
		text = export.SanitizeText(text)
		if text == "" {
			continue
		}
		role := export.RoleUser
		if idx%2 == 1 {
			role = export.RoleAssistant
		}
		msgs = append(msgs, export.Message{Role: role, Text: text, Timestamp: defaultTS, Files: files})
	}
	return msgs
}

func (l *Linearizer) fromMapping(rec *Record, defaultTS time.Time) []export.Message {
	var mapping map[string]json.RawMessage
	if err := json.Unmarshal(rec.Mapping, &mapping); err != nil {
		l.Logger.Warn("malformed mapping", "title", rec.DisplayTitle(), "error", err)
		return l.degenerate(rec, defaultTS)
	}

	if raw, ok := mapping[rec.CurrentNode]; ok && rec.CurrentNode != "" && isObject(raw) {
		return l.walkActivePath(mapping, rec.CurrentNode, defaultTS)
	}
	return l.walkFromRoot(mapping, defaultTS)
}

// walkActivePath follows parent links backward from the terminal node to the
// root, then reverses the collected turns into chronological order. Only user
// and assistant turns survive; a "tool" role is folded into assistant.
func (l *Linearizer) walkActivePath(mapping map[string]json.RawMessage, terminal string, defaultTS time.Time) []export.Message {
	var stack []export.Message
	visited := make(map[string]bool)

	current := terminal
	for current != "" && !visited[current] {
		visited[current] = true
		raw, ok := mapping[current]
		if !ok {
			break
		}
		var n node
		if err := json.Unmarshal(raw, &n); err != nil {
			break // malformed node: keep the partial walk
		}

		if m, ok := l.turnFromNode(n.Message, defaultTS, true); ok {
			stack = append(stack, m)
		}
		current = n.Parent
	}

	// Reverse: the walk collected terminal-first.
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return stack
}

// walkFromRoot handles mappings without a terminal pointer: find the root and
// descend by always taking the first recorded child. Ties among siblings go
// to the first child; that matches the export's own ordering and is not
// otherwise disambiguated.
func (l *Linearizer) walkFromRoot(mapping map[string]json.RawMessage, defaultTS time.Time) []export.Message {
	rootRaw, ok := mapping["client-created-root"]
	if !ok || !isObject(rootRaw) {
		for _, raw := range mapping {
			var n node
			if err := json.Unmarshal(raw, &n); err != nil {
				continue
			}
			if n.Parent == "" {
				rootRaw = raw
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil
	}

	var root node
	if err := json.Unmarshal(rootRaw, &root); err != nil {
		return nil
	}

	var msgs []export.Message
	visited := make(map[string]bool)

	next := root.Children
	for len(next) > 0 {
		id := next[0]
		if visited[id] {
			break
		}
		visited[id] = true

		raw, ok := mapping[id]
		if !ok {
			break
		}
		var n node
		if err := json.Unmarshal(raw, &n); err != nil {
			break
		}

		if m, ok := l.turnFromNode(n.Message, defaultTS, false); ok {
			msgs = append(msgs, m)
		}
		next = n.Children
	}

	return msgs
}

// turnFromNode extracts a message from a node payload. coerceTool folds the
// "tool" role into assistant (active-path walks only).
func (l *Linearizer) turnFromNode(raw json.RawMessage, defaultTS time.Time, coerceTool bool) (export.Message, bool) {
	if len(raw) == 0 {
		return export.Message{}, false
	}
	var nm nodeMessage
	if err := json.Unmarshal(raw, &nm); err != nil {
		return export.Message{}, false
	}
	if len(nm.Content.Parts) == 0 {
		return export.Message{}, false
	}

	role := nm.Author.Role
	if role == "" {
		role = export.RoleAssistant
	}
	if coerceTool && role == export.RoleTool {
		role = export.RoleAssistant
	}
	if role != export.RoleUser && role != export.RoleAssistant {
		return export.Message{}, false
	}

	text, files := l.partsToText(nm.Content.Parts)
	text = export.SanitizeText(text)
	if text == "" {
		return export.Message{}, false
	}

	ts := export.ParseTimestamp(nm.CreateTime, time.Time{})
	if ts.IsZero() {
		ts = export.ParseTimestamp(nm.Timestamp, defaultTS)
	}
	return export.Message{Role: role, Text: text, Timestamp: ts, Files: files}, true
}

func (l *Linearizer) degenerate(rec *Record, defaultTS time.Time) []export.Message {
	return []export.Message{{
		Role:      export.RoleUser,
		Text:      export.SanitizeText(rec.DisplayTitle()),
		Timestamp: defaultTS,
	}}
}
