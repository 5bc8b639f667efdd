package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatport/chatport/internal/webui"
)

func TestConverter_WritesOneDocumentPerConversation(t *testing.T) {
	root := t.TempDir()
	path := writeExportFixture(t, filepath.Join(root, "export"))
	outDir := filepath.Join(root, "out")

	c := NewConverter("u1", outDir, "", "", false, testLogger())
	written, err := c.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	var docs []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			docs = append(docs, e.Name())
		}
	}
	if len(docs) != 2 {
		t.Fatalf("output documents = %v, want 2", docs)
	}

	var flat string
	for _, name := range docs {
		if strings.HasPrefix(name, "Flat_chat_") {
			flat = name
		}
	}
	if flat == "" {
		t.Fatalf("no document named after the flat conversation in %v", docs)
	}

	data, err := os.ReadFile(filepath.Join(outDir, flat))
	if err != nil {
		t.Fatal(err)
	}
	var envelope []webui.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope) != 1 {
		t.Fatalf("envelope entries = %d, want 1", len(envelope))
	}
	env := envelope[0]
	if env.UserID != "u1" {
		t.Errorf("user id = %q", env.UserID)
	}
	if env.Title != "Flat chat" {
		t.Errorf("title = %q", env.Title)
	}
	if env.Chat == nil || len(env.Chat.Messages) != 2 {
		t.Fatalf("expected 2 messages in converted chat")
	}
	if env.Chat.Messages[0].Role != "user" || env.Chat.Messages[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", env.Chat.Messages[0].Role, env.Chat.Messages[1].Role)
	}
	if !strings.HasSuffix(flat, env.ID+".json") {
		t.Errorf("filename %q does not end with chat id %q", flat, env.ID)
	}
}

func TestConverter_MediaLandsBesideDocuments(t *testing.T) {
	root := t.TempDir()
	path := writeExportFixture(t, filepath.Join(root, "export"))
	outDir := filepath.Join(root, "out")

	c := NewConverter("u1", outDir, "", "", false, testLogger())
	if _, err := c.Run(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(outDir, "media"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_file-ABC123-notes.txt") {
		t.Errorf("media entries = %v", entries)
	}
}

func TestGatherFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(root, "notes.txt")

	files, err := GatherFiles([]string{root, single})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(root, "a.json"),
		filepath.Join(root, "b.json"),
		single,
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestGatherFiles_MissingPath(t *testing.T) {
	if _, err := GatherFiles([]string{"/does/not/exist"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
