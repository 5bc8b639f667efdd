package linearize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/chatport/chatport/internal/export"
)

// nopAttacher satisfies Attacher without touching the filesystem.
type nopAttacher struct{}

func (nopAttacher) Attach(pointer, contentType string) (string, *export.FileRef) {
	return "\n[Media: " + pointer + "]\n", nil
}

// recordingAttacher captures every pointer it sees.
type recordingAttacher struct {
	pointers []string
}

func (r *recordingAttacher) Attach(pointer, contentType string) (string, *export.FileRef) {
	r.pointers = append(r.pointers, pointer)
	return "", &export.FileRef{ID: pointer, Mode: export.EmbedUpload}
}

func newLinearizer(a Attacher) *Linearizer {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &Linearizer{Attach: a, Logger: logger}
}

func defTS() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestLinearize_FlatArrayAlternatesRoles(t *testing.T) {
	rec := &Record{
		Title:        "flat",
		ChatMessages: json.RawMessage(`[{"text":"q1"},{"text":"a1"},{"text":"q2"},{"text":"a2"},{"text":"q3"}]`),
	}

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 5 {
		t.Fatalf("got %d messages", len(msgs))
	}
	want := []string{"user", "assistant", "user", "assistant", "user"}
	for i, m := range msgs {
		if m.Role != want[i] {
			t.Errorf("msg %d role = %q, want %q", i, m.Role, want[i])
		}
	}
}

func TestLinearize_ActivePathOrder(t *testing.T) {
	// Chain root→A→B→leaf; map iteration order in Go is randomized by
	// construction, so insertion order cannot leak into the result.
	mapping := map[string]any{
		"leaf": mappingNode("B", "user", "leaf text"),
		"A":    mappingNode("root", "user", "A text"),
		"B":    mappingNode("A", "assistant", "B text"),
		"root": mappingNode("", "user", "root text"),
	}
	rec := recordWithMapping(t, mapping, "leaf")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 4 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	want := []string{"root text", "A text", "B text", "leaf text"}
	for i, m := range msgs {
		if m.Text != want[i] {
			t.Errorf("msg %d text = %q, want %q", i, m.Text, want[i])
		}
	}
}

func TestLinearize_ActivePathCoercesToolRole(t *testing.T) {
	mapping := map[string]any{
		"n1": mappingNode("", "user", "question"),
		"n2": mappingNode("n1", "tool", "tool output"),
	}
	rec := recordWithMapping(t, mapping, "n2")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[1].Role != export.RoleAssistant {
		t.Errorf("tool role not coerced: %q", msgs[1].Role)
	}
}

func TestLinearize_ActivePathSkipsSystemAndEmpty(t *testing.T) {
	mapping := map[string]any{
		"n1": mappingNode("", "system", "system prompt"),
		"n2": mappingNode("n1", "user", "hello"),
		"n3": mappingNode("n2", "assistant", ""),
		"n4": mappingNode("n3", "assistant", "hi"),
	}
	rec := recordWithMapping(t, mapping, "n4")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Text != "hello" || msgs[1].Text != "hi" {
		t.Errorf("texts = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestLinearize_ActivePathCycleTerminates(t *testing.T) {
	mapping := map[string]any{
		"a": mappingNode("b", "user", "a"),
		"b": mappingNode("a", "assistant", "b"),
	}
	rec := recordWithMapping(t, mapping, "a")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	// The walk must stop; both nodes visited once.
	if len(msgs) != 2 {
		t.Fatalf("cycle walk yielded %d messages", len(msgs))
	}
}

func TestLinearize_ActivePathMalformedNodeKeepsPartial(t *testing.T) {
	rec := &Record{
		Title:       "partial",
		CurrentNode: "n2",
		Mapping: json.RawMessage(`{
			"n2": {"parent":"n1","message":{"author":{"role":"assistant"},"content":{"parts":["answer"]}}},
			"n1": 42
		}`),
	}

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 1 || msgs[0].Text != "answer" {
		t.Fatalf("partial walk = %+v", msgs)
	}
}

func TestLinearize_RootDescentFirstChildWins(t *testing.T) {
	mapping := map[string]any{
		"client-created-root": map[string]any{"children": []string{"q"}},
		"q":                   mappingNodeChildren("", "user", "question", "a1", "a2"),
		"a1":                  mappingNode("q", "assistant", "first branch"),
		"a2":                  mappingNode("q", "assistant", "second branch"),
	}
	rec := recordWithMapping(t, mapping, "")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[1].Text != "first branch" {
		t.Errorf("tie not broken by first child: %q", msgs[1].Text)
	}
}

func TestLinearize_RootDescentWithoutExplicitRoot(t *testing.T) {
	mapping := map[string]any{
		"r": mappingNodeChildren("", "user", "", "m1"),
		"m1": map[string]any{
			"parent":   "r",
			"children": []string{},
			"message": map[string]any{
				"author":  map[string]any{"role": "user"},
				"content": map[string]any{"parts": []any{"only turn"}},
			},
		},
	}
	rec := recordWithMapping(t, mapping, "")

	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 1 || msgs[0].Text != "only turn" {
		t.Fatalf("msgs = %+v", msgs)
	}
}

func TestLinearize_DegenerateRecord(t *testing.T) {
	rec := &Record{Title: "just a title"}
	msgs := newLinearizer(nopAttacher{}).Linearize(rec, defTS())
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Role != export.RoleUser || msgs[0].Text != "just a title" {
		t.Errorf("degenerate turn = %+v", msgs[0])
	}
}

func TestPartsToText_PointerVariants(t *testing.T) {
	a := &recordingAttacher{}
	l := newLinearizer(a)

	parts := []json.RawMessage{
		json.RawMessage(`"plain "`),
		json.RawMessage(`{"text":"text part"}`),
		json.RawMessage(`{"content_type":"image_asset_pointer","asset_pointer":"sediment://p1"}`),
		json.RawMessage(`{"content_type":"multimodal_text","image_asset_pointer":{"asset_pointer":"sediment://p2"}}`),
		json.RawMessage(`{"asset_pointer":"file-service://p3"}`),
	}
	text, files := l.partsToText(parts)

	if text != "plain text part" {
		t.Errorf("text = %q", text)
	}
	if len(files) != 3 {
		t.Fatalf("files = %d", len(files))
	}
	want := []string{"sediment://p1", "sediment://p2", "file-service://p3"}
	for i, p := range want {
		if a.pointers[i] != p {
			t.Errorf("pointer %d = %q, want %q", i, a.pointers[i], p)
		}
	}
}

func mappingNode(parent, role, text string) map[string]any {
	return mappingNodeChildren(parent, role, text)
}

func mappingNodeChildren(parent, role, text string, children ...string) map[string]any {
	n := map[string]any{}
	if parent != "" {
		n["parent"] = parent
	}
	if children == nil {
		children = []string{}
	}
	n["children"] = children
	parts := []any{}
	if text != "" {
		parts = append(parts, text)
	}
	n["message"] = map[string]any{
		"author":  map[string]any{"role": role},
		"content": map[string]any{"parts": parts},
	}
	return n
}

func recordWithMapping(t *testing.T, mapping map[string]any, current string) *Record {
	t.Helper()
	raw, err := json.Marshal(mapping)
	if err != nil {
		t.Fatal(err)
	}
	return &Record{
		Title:       fmt.Sprintf("conv-%s", t.Name()),
		CurrentNode: current,
		Mapping:     raw,
	}
}
