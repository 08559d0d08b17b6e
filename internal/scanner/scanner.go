// Package scanner walks a source directory and enqueues analyze jobs for
// whatever looks like an album, a multi-disc release, or an artist
// collection, mirroring a music collection's real folder conventions.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

// IgnoreDirNames are child directories the scanner never treats as a
// release or artist folder: scan scratch space, artwork, booklets, logs.
var IgnoreDirNames = map[string]bool{
	"scans":   true,
	"scan":    true,
	"artwork": true,
	"covers":  true,
	"cover":   true,
	"booklet": true,
	"extras":  true,
	"logs":    true,
	"log":     true,
}

// Scanner walks a root directory, classifying each immediate child as a
// single album, a multi-disc album, or an artist collection, and enqueues
// the resulting analyze jobs onto store.
type Scanner struct {
	store  ports.JobStore
	logger *zap.Logger
}

// New builds a Scanner over store.
func New(store ports.JobStore, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{store: store, logger: logger}
}

// Scan inspects every immediate child directory of base and enqueues
// analyze jobs for the folders it decides are releases. Folders already
// tracked by any prior job (of any status), or holding a tracker mark, are
// skipped.
func (s *Scanner) Scan(ctx context.Context, base string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return fmt.Errorf("scanner: read %s: %w", base, err)
	}

	var children []string
	for _, e := range entries {
		if e.IsDir() {
			children = append(children, e.Name())
		}
	}
	sort.Strings(children)

	for _, name := range children {
		childPath := filepath.Join(base, name)
		if err := s.scanChild(ctx, childPath); err != nil {
			s.logger.Warn("skipping folder after scan error", zap.String("path", childPath), zap.Error(err))
		}
	}
	return nil
}

func (s *Scanner) scanChild(ctx context.Context, path string) error {
	s.logger.Info("scanning", zap.String("path", path))

	already, err := s.store.HasAnyForFolder(ctx, path)
	if err != nil {
		return fmt.Errorf("has any for folder: %w", err)
	}
	if already {
		s.logger.Info("already tracked", zap.String("path", path))
		return nil
	}
	if _, err := os.Stat(filepath.Join(path, domain.TrackerMarkFileName)); err == nil {
		s.logger.Info("already organized", zap.String("path", path))
		return nil
	}

	subdirs, err := trackedSubdirs(path)
	if err != nil {
		return fmt.Errorf("list subdirs: %w", err)
	}
	directMusic, err := dirHasMusicDirect(path)
	if err != nil {
		return fmt.Errorf("check direct music: %w", err)
	}

	if len(subdirs) > 0 {
		discLike := filterDiscLike(subdirs)
		if directMusic && len(discLike) >= 1 {
			rootTracks, err := countDirectMusic(path)
			if err != nil {
				return err
			}
			discTracks := 0
			for _, d := range discLike {
				n, err := countMusicAnywhere(filepath.Join(path, d))
				if err != nil {
					continue
				}
				discTracks += n
			}

			if len(discLike) >= 2 && discTracks > rootTracks && len(discLike) >= max(2, int(0.5*float64(len(subdirs)))) {
				sort.Strings(discLike)
				for _, d := range discLike {
					discPath := filepath.Join(path, d)
					exists, err := s.store.HasAnyForFolder(ctx, discPath)
					if err != nil || exists {
						continue
					}
					if err := s.enqueueAnalyze(ctx, discPath, filepath.Base(path)); err != nil {
						s.logger.Warn("enqueue disc folder failed", zap.String("path", discPath), zap.Error(err))
					}
				}
				return nil
			}
			return s.enqueueAnalyze(ctx, path, "")
		}
		if !directMusic && len(discLike) >= 2 && len(discLike) >= max(1, int(0.5*float64(len(subdirs)))) {
			return s.enqueueAnalyze(ctx, path, "")
		}
	}

	if directMusic && (len(subdirs) == 0 || noneLookLikeDisc(subdirs)) {
		return s.enqueueAnalyze(ctx, path, "")
	}

	s.logger.Info("enqueuing as artist collection", zap.String("path", path))
	enqueuedAny := false
	sortedSubdirs := append([]string(nil), subdirs...)
	sort.Strings(sortedSubdirs)
	for _, d := range sortedSubdirs {
		albumPath := filepath.Join(path, d)
		hasMusic, err := dirHasMusicAnywhere(albumPath)
		if err != nil || !hasMusic {
			continue
		}
		exists, err := s.store.HasAnyForFolder(ctx, albumPath)
		if err != nil || exists {
			continue
		}
		if err := s.enqueueAnalyze(ctx, albumPath, filepath.Base(path)); err != nil {
			s.logger.Warn("enqueue album folder failed", zap.String("path", albumPath), zap.Error(err))
			continue
		}
		enqueuedAny = true
	}

	if !enqueuedAny {
		hasMusic, err := dirHasMusicAnywhere(path)
		if err == nil && hasMusic {
			return s.enqueueAnalyze(ctx, path, "")
		}
	}
	return nil
}

func (s *Scanner) enqueueAnalyze(ctx context.Context, path, artistHint string) error {
	_, err := s.store.Enqueue(ctx, domain.Job{
		FolderPath:   path,
		JobType:      domain.JobTypeAnalyze,
		MetadataJSON: fmt.Sprintf(`{"folder_name":%q}`, filepath.Base(path)),
		ArtistHint:   artistHint,
	})
	return err
}

func trackedSubdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if IgnoreDirNames[strings.ToLower(e.Name())] {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func dirHasMusicDirect(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			return true, nil
		}
	}
	return false, nil
}

func countDirectMusic(path string) (int, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			count++
		}
	}
	return count, nil
}

func dirHasMusicAnywhere(path string) (bool, error) {
	found := false
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && IgnoreDirNames[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}

func countMusicAnywhere(path string) (int, error) {
	count := 0
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && IgnoreDirNames[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if domain.SupportedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			count++
		}
		return nil
	})
	return count, err
}

func looksLikeDiscFolder(name string) bool {
	lowered := strings.ToLower(name)
	if IgnoreDirNames[lowered] {
		return false
	}
	for _, prefix := range []string{"cd", "disc", "disk", "vol", "volume"} {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

func filterDiscLike(names []string) []string {
	var out []string
	for _, n := range names {
		if looksLikeDiscFolder(n) {
			out = append(out, n)
		}
	}
	return out
}

func noneLookLikeDisc(names []string) bool {
	for _, n := range names {
		if looksLikeDiscFolder(n) {
			return false
		}
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
