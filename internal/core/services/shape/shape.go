// Package shape builds a domain.FolderShape by walking a directory on disk,
// the same structural survey a classifier prompt (or the heuristic
// fallback) needs before it can guess whether a folder is one album, a
// multi-disc release, or a collection.
package shape

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

// maxTreeDepth bounds how deep the rendered directory tree descends, so a
// deeply nested or huge folder doesn't blow up the prompt.
const maxTreeDepth = 3

// Build walks path and returns its FolderShape: music file counts, the
// immediate subdirectories with their own music counts, and a rendered
// directory tree for the classifier prompt.
func Build(path string) (domain.FolderShape, error) {
	s := domain.FolderShape{
		Name: filepath.Base(path),
		Path: path,
	}

	var lines []string
	if err := walk(path, &lines, "", 0, &s); err != nil {
		return domain.FolderShape{}, fmt.Errorf("shape: build %s: %w", path, err)
	}
	s.TreeText = strings.Join(lines, "\n")
	return s, nil
}

type dirEntry struct {
	name  string
	isDir bool
}

func walk(path string, lines *[]string, prefix string, depth int, s *domain.FolderShape) error {
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}

	raw, err := os.ReadDir(path)
	if err != nil {
		*lines = append(*lines, prefix+"├── [Permission Denied]")
		return nil
	}

	entries := make([]dirEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, dirEntry{name: e.Name(), isDir: e.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return !entries[i].isDir
		}
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})

	for i, e := range entries {
		isLast := i == len(entries)-1
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		*lines = append(*lines, prefix+connector+e.name)

		childPath := filepath.Join(path, e.name)
		if !e.isDir {
			if domain.SupportedExtensions[strings.ToLower(filepath.Ext(e.name))] {
				s.TotalMusicFiles++
				if depth == 0 {
					s.DirectMusicFiles++
				}
			}
			continue
		}

		sub := domain.Subdirectory{Name: e.name, Path: childPath}
		sub.MusicFiles, sub.MusicBaseNames = musicFilesIn(childPath)

		if depth == 0 {
			s.Subdirectories = append(s.Subdirectories, sub)
		}

		if depth < maxTreeDepth {
			nextPrefix := prefix + "│   "
			if isLast {
				nextPrefix = prefix + "    "
			}
			if err := walk(childPath, lines, nextPrefix, depth+1, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// musicFilesIn counts every music file under dir, recursively, and
// collects their base names for downstream duplicate-detection or
// disc-track comparisons.
func musicFilesIn(dir string) (int, []string) {
	count := 0
	var names []string
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			count++
			names = append(names, d.Name())
		}
		return nil
	})
	return count, names
}
