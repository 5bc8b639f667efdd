package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatport/chatport/internal/export"
)

func newTestEmbedder(t *testing.T, exportDir string, embedImages bool) *Embedder {
	t.Helper()
	return &Embedder{
		Resolver:       &Resolver{ExportDir: exportDir, Logger: testLogger()},
		UploadsDir:     filepath.Join(t.TempDir(), "uploads"),
		MediaURLPrefix: "media",
		EmbedImages:    embedImages,
		Logger:         testLogger(),
	}
}

func TestAttach_ImageInlineDeferred(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file-img1.png"), "fake png bytes")

	e := newTestEmbedder(t, dir, true)
	text, ref := e.Attach("sediment://file-img1", "image_asset_pointer")

	if text != "" {
		t.Errorf("inline image should add no text, got %q", text)
	}
	if ref == nil || ref.Mode != export.EmbedInline {
		t.Fatalf("ref = %+v", ref)
	}
	if ref.MIME != "image/png" {
		t.Errorf("mime = %q", ref.MIME)
	}
	if ref.SourcePath == "" {
		t.Error("inline ref must carry the source path for deferred encoding")
	}
	// No artifact copied for inline images.
	entries, _ := os.ReadDir(e.UploadsDir)
	if len(entries) != 0 {
		t.Errorf("uploads dir should be empty, has %d entries", len(entries))
	}
}

func TestAttach_NonImageCopiedAndHashed(t *testing.T) {
	dir := t.TempDir()
	content := "pdf-ish content for hashing"
	writeFile(t, filepath.Join(dir, "docs", "file-doc1_report.pdf"), content)

	e := newTestEmbedder(t, dir, true)
	text, ref := e.Attach("sediment://file-doc1", "multimodal_text")

	if ref == nil || ref.Mode != export.EmbedUpload {
		t.Fatalf("ref = %+v", ref)
	}

	sum := sha256.Sum256([]byte(content))
	if ref.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("hash = %q, want independent sha256", ref.Hash)
	}
	if ref.Size != int64(len(content)) {
		t.Errorf("size = %d", ref.Size)
	}

	wantName := ref.ID + "_file-doc1_report.pdf"
	if !strings.Contains(text, "[Media: file-doc1_report.pdf](media/"+wantName+")") {
		t.Errorf("text = %q", text)
	}
	if _, err := os.Stat(filepath.Join(e.UploadsDir, wantName)); err != nil {
		t.Errorf("artifact not copied: %v", err)
	}
}

func TestAttach_AudioLabel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file-aud1_voice.mp3"), "mp3")

	e := newTestEmbedder(t, dir, true)
	text, _ := e.Attach("sediment://file-aud1", "audio_asset_pointer")
	if !strings.Contains(text, "[Audio: file-aud1_voice.mp3]") {
		t.Errorf("text = %q", text)
	}
}

func TestAttach_UnresolvedPointer(t *testing.T) {
	e := newTestEmbedder(t, t.TempDir(), true)
	text, ref := e.Attach("sediment://gone", "")
	if text != "\n[Media: sediment://gone]\n" {
		t.Errorf("text = %q", text)
	}
	if ref != nil {
		t.Errorf("expected no ref, got %+v", ref)
	}
}

func TestAttach_ResolvedButMissingFile(t *testing.T) {
	e := newTestEmbedder(t, t.TempDir(), true)
	e.Resolver.Table = map[string]string{"sediment://x": "gone/away.bin"}

	text, ref := e.Attach("sediment://x", "")
	if !strings.Contains(text, "[Media not found: ") {
		t.Errorf("text = %q", text)
	}
	if ref == nil || ref.Mode != export.EmbedUnresolved {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestAttach_RerunDoesNotRecopy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file-d2_data.csv"), "a,b,c")

	e := newTestEmbedder(t, dir, true)
	_, ref1 := e.Attach("sediment://file-d2", "")
	if ref1 == nil || ref1.Mode != export.EmbedUpload {
		t.Fatalf("first attach: %+v", ref1)
	}

	dst := filepath.Join(e.UploadsDir, ref1.ID+"_file-d2_data.csv")
	info1, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}

	_, ref2 := e.Attach("sediment://file-d2", "")
	info2, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info1.ModTime()) {
		t.Error("rerun rewrote an already-copied artifact")
	}
	if ref2.Hash != ref1.Hash || ref2.ID != ref1.ID {
		t.Error("rerun produced a different ref")
	}
}

func TestStripReference(t *testing.T) {
	id := "abc-123"
	content := "before\n![report.pdf](media/abc-123_report.pdf)\nafter"
	got := StripReference(content, id)
	if strings.Contains(got, "abc-123") {
		t.Errorf("reference not stripped: %q", got)
	}
	if !strings.Contains(got, "before") || !strings.Contains(got, "after") {
		t.Errorf("surrounding text damaged: %q", got)
	}

	// Plain (non-image) links are matched too.
	content = "[doc](uploads/abc-123_x)"
	if got := StripReference(content, id); got != "" {
		t.Errorf("plain link not stripped: %q", got)
	}

	// Unrelated links survive.
	content = "[other](media/zzz.pdf)"
	if got := StripReference(content, id); got != content {
		t.Errorf("unrelated link modified: %q", got)
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.bin")
	writeFile(t, p, "hash me")

	got, err := HashFile(p)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("hash me"))
	if got != hex.EncodeToString(sum[:]) {
		t.Errorf("hash = %q", got)
	}
}
