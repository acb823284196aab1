package video

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ListAssets returns the playable files directly under dir, sorted by name.
// A missing directory yields an empty pool and no error.
func ListAssets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read video directory %s: %w", dir, err)
	}

	var assets []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		assets = append(assets, filepath.Join(dir, e.Name()))
	}
	sort.Strings(assets)
	return assets, nil
}
