package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/chatport/chatport/internal/export"
)

const hashChunkSize = 256 * 1024

// Embedder decides inline-vs-copy for each resolved asset and produces the
// FileRef plus the text fragment (markdown link or placeholder) that belongs
// in the message content.
type Embedder struct {
	Resolver       *Resolver
	UploadsDir     string
	MediaURLPrefix string
	EmbedImages    bool
	Logger         *slog.Logger
}

// Attach resolves an asset pointer and attaches it. It returns the text
// fragment to append to the message content and the FileRef for the file
// list; either may be empty. Attach never fails the message: unresolvable or
// unreadable assets degrade to a visible placeholder.
func (e *Embedder) Attach(pointer, contentType string) (string, *export.FileRef) {
	rel, ok := e.Resolver.Resolve(pointer)
	if !ok {
		return fmt.Sprintf("\n[Media: %s]\n", pointer), nil
	}

	src := filepath.Join(e.Resolver.ExportDir, rel)
	info, err := os.Stat(src)
	if err != nil {
		e.Logger.Warn("resolved asset missing on disk", "pointer", pointer, "path", src)
		return fmt.Sprintf("\n[Media not found: %s]\n", rel), &export.FileRef{
			ID:   export.FileID(pointer),
			Name: filepath.Base(rel),
			Mode: export.EmbedUnresolved,
		}
	}

	ref := export.FileRef{
		ID:         export.FileID(pointer),
		Name:       filepath.Base(rel),
		SourcePath: src,
		Size:       info.Size(),
		MIME:       TypeOf(src),
	}

	if IsImage(ref.MIME) && e.EmbedImages {
		// Encoding is deferred to final serialization; no copy, no file row.
		ref.Mode = export.EmbedInline
		return "", &ref
	}

	artifactName := ref.ID + "_" + ref.Name
	dst := filepath.Join(e.UploadsDir, artifactName)

	if err := e.copyArtifact(src, dst, info.Size()); err != nil {
		e.Logger.Warn("failed to copy asset, keeping unresolved reference",
			"pointer", pointer, "path", src, "error", err)
		ref.Mode = export.EmbedUnresolved
		ref.SourcePath = ""
		return fmt.Sprintf("\n[Media not found: %s]\n", rel), &ref
	}

	hash, err := HashFile(dst)
	if err != nil {
		e.Logger.Warn("failed to hash asset, keeping unresolved reference",
			"pointer", pointer, "path", dst, "error", err)
		ref.Mode = export.EmbedUnresolved
		ref.SourcePath = ""
		return fmt.Sprintf("\n[Media not found: %s]\n", rel), &ref
	}

	ref.Mode = export.EmbedUpload
	ref.Hash = hash
	ref.StorePath = e.MediaURLPrefix + "/" + artifactName

	label := "Media"
	if contentType == "audio_asset_pointer" {
		label = "Audio"
	}
	return fmt.Sprintf("\n[%s: %s](%s)\n", label, ref.Name, ref.StorePath), &ref
}

// copyArtifact copies src to dst. A destination that already exists with the
// expected size is left alone so reruns do not rewrite artifacts.
func (e *Embedder) copyArtifact(src, dst string, size int64) error {
	if info, err := os.Stat(dst); err == nil && info.Size() == size {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir uploads: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	return nil
}

// HashFile computes the hex SHA-256 digest of a file using fixed-size chunked
// reads, so large artifacts never need one giant allocation.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StripReference removes markdown-style references to an embedded asset id
// from content: an optional leading "!", a bracketed label, and a
// parenthesized target containing the id. Without this, inlined media would
// render twice.
func StripReference(content, id string) string {
	pattern := `\!?\[[^\]]*\]\([^)]*` + regexp.QuoteMeta(id) + `[^)]*\)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return content
	}
	return re.ReplaceAllString(content, "")
}
