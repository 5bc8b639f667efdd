package assets

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Pointer scheme prefixes seen in ChatGPT exports.
var schemePrefixes = []string{"sediment://", "file-service://"}

// Resolver maps an opaque asset pointer to a path relative to the export
// directory. A precomputed pointer→filename table (from the export's
// chat.html) is consulted first, then the export tree is scanned for any
// filename containing the bare asset id.
type Resolver struct {
	ExportDir string
	Table     map[string]string
	Logger    *slog.Logger
}

// NewResolver builds a resolver for one export directory, loading the asset
// table from chat.html when present.
func NewResolver(exportDir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		ExportDir: exportDir,
		Table:     LoadAssetTable(exportDir, logger),
		Logger:    logger,
	}
}

// LoadAssetTable extracts the assetsJson pointer→filename map embedded in the
// export's chat.html. Missing file or unparseable content yields an empty map.
func LoadAssetTable(exportDir string, logger *slog.Logger) map[string]string {
	const marker = "var assetsJson = "

	data, err := os.ReadFile(filepath.Join(exportDir, "chat.html"))
	if err != nil {
		return nil
	}

	idx := strings.Index(string(data), marker)
	if idx < 0 {
		return nil
	}

	var table map[string]string
	dec := json.NewDecoder(strings.NewReader(string(data[idx+len(marker):])))
	if err := dec.Decode(&table); err != nil {
		if logger != nil {
			logger.Warn("failed to parse assetsJson from chat.html", "error", err)
		}
		return nil
	}
	return table
}

// Resolve returns the export-relative path for pointer, or false when nothing
// matches. Lookup order: exact table match, then a recursive filename scan
// for the bare asset id. When several files contain the id, the first one in
// traversal order wins; with colliding id substrings the choice is arbitrary.
func (r *Resolver) Resolve(pointer string) (string, bool) {
	if rel, ok := r.Table[pointer]; ok && rel != "" {
		return rel, true
	}
	if r.ExportDir == "" {
		return "", false
	}

	id := pointer
	for _, p := range schemePrefixes {
		id = strings.TrimPrefix(id, p)
	}
	if id == "" {
		return "", false
	}

	var found string
	_ = filepath.WalkDir(r.ExportDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep scanning
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), id) {
			if rel, relErr := filepath.Rel(r.ExportDir, path); relErr == nil {
				found = rel
			}
			return fs.SkipAll
		}
		return nil
	})

	if found == "" {
		return "", false
	}
	return found, true
}
