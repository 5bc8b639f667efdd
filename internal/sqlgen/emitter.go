// Package sqlgen turns the normalized conversation model into idempotent SQL
// statements. Owning rows are emitted as delete-then-insert keyed by stable
// id; small reference rows (tags) use insert-with-update-on-conflict. Running
// the pipeline twice over the same input therefore converges instead of
// tripping unique constraints.
package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatport/chatport/internal/export"
	"github.com/chatport/chatport/internal/webui"
)

// Emitter generates statements for one destination schema. Schema is the
// qualifier prefix ("main" for the sqlite database Open WebUI ships with);
// empty means unqualified table names.
type Emitter struct {
	Schema string
}

func New(schema string) *Emitter {
	return &Emitter{Schema: schema}
}

// EscapeString escapes a value for inclusion in a single-quoted SQL literal.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (e *Emitter) table(name string) string {
	if e.Schema == "" {
		return `"` + name + `"`
	}
	return `"` + e.Schema + `"."` + name + `"`
}

// Tag is one tag reference row.
type Tag struct {
	ID   string
	Name string
}

// TagSet returns the tags to upsert for an import: the built-in source tags
// first, then the user-supplied ones, slugified and deduplicated by id with
// the first occurrence winning.
func TagSet(userTags []string) []Tag {
	tags := []Tag{
		{ID: "imported-grok", Name: "imported-grok"},
		{ID: "imported-chatgpt", Name: "imported-chatgpt"},
		{ID: "imported-claude", Name: "imported-claude"},
	}
	for _, t := range userTags {
		if slug := export.SlugTag(t); slug != "" {
			tags = append(tags, Tag{ID: slug, Name: t})
		}
	}

	seen := make(map[string]bool, len(tags))
	unique := tags[:0]
	for _, t := range tags {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		unique = append(unique, t)
	}
	return unique
}

// TagUpserts emits one upsert per tag for a user.
func (e *Emitter) TagUpserts(userID string, tags []Tag) []string {
	stmts := make([]string, 0, len(tags))
	for _, t := range tags {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO %s ("id","name","user_id","meta") VALUES ('%s','%s','%s','null') ON CONFLICT("id","user_id") DO UPDATE SET "name"=excluded."name";`,
			e.table("tag"), EscapeString(t.ID), EscapeString(t.Name), EscapeString(userID),
		))
	}
	return stmts
}

// FileStatements emits the delete-then-insert pair for one file row.
func (e *Emitter) FileStatements(row *webui.FileRow) []string {
	meta, _ := json.Marshal(row.Meta)
	data, _ := json.Marshal(row.Data)

	return []string{
		fmt.Sprintf(`DELETE FROM %s WHERE "id" = '%s';`, e.table("file"), EscapeString(row.ID)),
		fmt.Sprintf(
			`INSERT INTO %s ("id","user_id","hash","filename","data","meta","path","created_at","updated_at")`+"\n"+
				`VALUES ('%s','%s','%s','%s','%s','%s','%s',%d,%d);`,
			e.table("file"),
			EscapeString(row.ID), EscapeString(row.UserID), EscapeString(row.Hash),
			EscapeString(row.Filename), EscapeString(string(data)), EscapeString(string(meta)),
			EscapeString(row.Path), row.CreatedAt, row.UpdatedAt,
		),
	}
}

// ChatMeta serializes the chat row's meta column: the tag ids applied to the
// conversation. Ids, not display names; consumers resolve them against the
// tag table.
func ChatMeta(tags []Tag) string {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	meta, _ := json.Marshal(map[string][]string{"tags": ids})
	return string(meta)
}

// ChatStatements emits the delete-then-insert pair for one chat row. chatJSON
// is the serialized chat document; it references file and tag ids, which is
// why file and tag statements must precede it in the output.
func (e *Emitter) ChatStatements(id, userID, title string, createdAt int64, chatJSON, meta string) []string {
	return []string{
		fmt.Sprintf(`DELETE FROM %s WHERE "id" = '%s';`, e.table("chat"), EscapeString(id)),
		fmt.Sprintf(
			`INSERT INTO %s ("id","user_id","title","share_id","archived","created_at","updated_at","chat","pinned","meta","folder_id")`+"\n"+
				`VALUES ('%s','%s','%s',NULL,0,%d,%d,'%s',0,'%s',NULL);`,
			e.table("chat"),
			EscapeString(id), EscapeString(userID), EscapeString(title),
			createdAt, createdAt, EscapeString(chatJSON), EscapeString(meta),
		),
	}
}

// ConversationStatements emits everything for one converted conversation in
// dependency order: file rows, then the owning chat row. Tag upserts are
// per-user, not per-conversation; callers emit them once via TagUpserts.
func (e *Emitter) ConversationStatements(doc *webui.Document, convID string, tags []Tag) ([]string, error) {
	chatJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal chat document: %w", err)
	}

	var stmts []string
	for _, row := range doc.FileRows() {
		stmts = append(stmts, e.FileStatements(row)...)
	}
	stmts = append(stmts, e.ChatStatements(
		convID, doc.UserID, doc.Title, doc.Timestamp/1000, string(chatJSON), ChatMeta(tags),
	)...)
	return stmts, nil
}
