package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GatherFiles expands the given paths into the list of input files to process.
// Directories contribute their .json entries in name order; files are taken
// as-is. Order is preserved so reruns over the same arguments see the same
// sequence.
func GatherFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	return files, nil
}
