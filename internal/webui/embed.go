package webui

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatport/chatport/internal/assets"
)

// EmbedLocalMedia rewrites an already-converted chat document in place,
// inlining media files that still live next to it on disk (under
// {baseDir}/media) as data URIs and dropping the markdown references that
// pointed at them. Entries that are already data URIs or already carry a full
// artifact descriptor pass through untouched, so running this over its own
// output changes nothing. Missing or unreadable media keeps the original
// entry and logs a warning.
func EmbedLocalMedia(doc map[string]any, baseDir string, logger *slog.Logger) {
	history, _ := doc["history"].(map[string]any)
	messages, _ := history["messages"].(map[string]any)

	for _, v := range messages {
		msg, ok := v.(map[string]any)
		if !ok {
			continue
		}
		files, ok := msg["files"].([]any)
		if !ok || len(files) == 0 {
			continue
		}
		content, _ := msg["content"].(string)

		rewritten := make([]any, 0, len(files))
		for _, fv := range files {
			entry, ok := fv.(map[string]any)
			if !ok {
				rewritten = append(rewritten, fv)
				continue
			}

			// Already fully resolved: inline data URI or nested artifact
			// descriptor. Leave alone.
			if url, _ := entry["url"].(string); strings.HasPrefix(url, "data:") {
				rewritten = append(rewritten, entry)
				continue
			}
			if _, ok := entry["file"]; ok {
				rewritten = append(rewritten, entry)
				continue
			}

			id, _ := entry["id"].(string)
			name, _ := entry["name"].(string)
			if id == "" || name == "" {
				rewritten = append(rewritten, entry)
				continue
			}

			mediaPath := filepath.Join(baseDir, "media", id+"_"+name)
			if _, err := os.Stat(mediaPath); err != nil {
				alt := filepath.Join(baseDir, "media", name)
				if _, altErr := os.Stat(alt); altErr == nil {
					mediaPath = alt
				} else {
					logger.Warn("media file not found", "path", mediaPath)
					rewritten = append(rewritten, entry)
					continue
				}
			}

			data, err := os.ReadFile(mediaPath)
			if err != nil {
				logger.Warn("failed to read media file", "path", mediaPath, "error", err)
				rewritten = append(rewritten, entry)
				continue
			}

			mimeType := assets.TypeOf(mediaPath)
			kind := "file"
			if assets.IsImage(mimeType) {
				kind = "image"
			}
			rewritten = append(rewritten, map[string]any{
				"type": kind,
				"url":  fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
				"name": name,
			})
			content = assets.StripReference(content, id)
		}

		msg["files"] = rewritten
		msg["content"] = strings.TrimSpace(content)
	}
}
