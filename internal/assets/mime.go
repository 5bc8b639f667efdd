package assets

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// TypeOf returns the MIME type of the file at path: extension lookup first,
// content sniffing when the extension says nothing.
func TypeOf(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		// TypeByExtension may include parameters, e.g. "text/plain; charset=utf-8".
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		return mt
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}

// IsImage reports whether a MIME type denotes an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
