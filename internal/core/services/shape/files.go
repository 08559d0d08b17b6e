package shape

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

// MusicFiles returns every supported audio file under folder, recursively,
// sorted for deterministic tag-aggregation sampling.
func MusicFiles(folder string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
