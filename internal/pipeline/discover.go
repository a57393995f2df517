package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"

	"opusify/internal/config"
)

// Discover walks the source tree and returns every regular file whose name
// matches the scan pattern, sorted for deterministic job order.
func Discover(cfg *config.Config) ([]string, error) {
	matcher, err := regexp.Compile("(?i)" + cfg.Scan.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile scan pattern: %w", err)
	}

	var files []string
	err = filepath.WalkDir(cfg.Paths.SourceDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if matcher.MatchString(entry.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source tree: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
