// Package filemover copies an accepted folder into its canonical
// Artist/Album (Year) location and leaves a hidden tracker mark behind so
// the folder is never re-organized.
package filemover

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

var invalidFilenameChars = `<>:"/\|?*`

const maxSanitizedLength = 120

// Mover copies accepted folders under targetDir using the Artist/Album
// (Year) layout.
type Mover struct {
	mu        sync.RWMutex
	targetDir string
	logger    *zap.Logger
}

// New builds a Mover rooted at targetDir.
func New(targetDir string, logger *zap.Logger) *Mover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mover{targetDir: targetDir, logger: logger}
}

// SetTargetDir repoints the mover at a new root, used when the control
// plane confirms a staged path change.
func (m *Mover) SetTargetDir(targetDir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetDir = targetDir
}

// TargetDir returns the mover's current root.
func (m *Mover) TargetDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.targetDir
}

// SanitizeFilename strips characters that are illegal in a path segment on
// common filesystems and truncates to a conservative length.
func SanitizeFilename(name string) string {
	sanitized := name
	for _, c := range invalidFilenameChars {
		sanitized = strings.ReplaceAll(sanitized, string(c), "_")
	}
	if len(sanitized) > maxSanitizedLength {
		sanitized = sanitized[:maxSanitizedLength]
	}
	return strings.TrimSpace(sanitized)
}

// AlbumDir returns the destination directory for a proposal, relative to
// the mover's target root: Artist/Album (Year).
func (m *Mover) AlbumDir(p domain.Proposal) string {
	artist := SanitizeFilename(p.Artist)
	album := SanitizeFilename(p.Album)
	year := p.Year
	if year == "" {
		year = "Unknown"
	}
	return filepath.Join(m.TargetDir(), artist, fmt.Sprintf("%s (%s)", album, year))
}

// OrganizeFolder copies every supported audio file under sourceFolder into
// the proposal's canonical album directory, preserving sourceFolder's
// internal relative layout (so a multi-disc folder's CD1/CD2 structure
// survives the move). Returns the number of files copied.
func (m *Mover) OrganizeFolder(sourceFolder string, p domain.Proposal) (int, error) {
	albumDir := m.AlbumDir(p)
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return 0, fmt.Errorf("filemover: create album dir %s: %w", albumDir, err)
	}

	copied := 0
	err := filepath.WalkDir(sourceFolder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !domain.SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(sourceFolder, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		target := filepath.Join(albumDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", target, err)
		}
		if err := copyFile(path, target); err != nil {
			m.logger.Error("error copying file", zap.String("file", filepath.Base(path)), zap.Error(err))
			return nil
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("filemover: walk %s: %w", sourceFolder, err)
	}

	m.logger.Info("organized folder",
		zap.Int("copied", copied),
		zap.String("destination", strings.TrimPrefix(albumDir, m.TargetDir()+string(filepath.Separator))))
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if info, err := in.Stat(); err == nil {
		_ = os.Chtimes(dst, time.Now(), info.ModTime())
	}
	return nil
}

// trackerMarkFileName is the marker this package writes into sourceFolder
// once organization succeeds.
const trackerMarkFileName = domain.TrackerMarkFileName

// WriteSingleAlbumMark writes the tracker mark for a folder organized as
// one album.
func (m *Mover) WriteSingleAlbumMark(sourceFolder string, p domain.Proposal, now time.Time) error {
	mark := domain.TrackerMark{
		Proposal:           &p,
		FolderName:         filepath.Base(sourceFolder),
		OrganizedTimestamp: now.UTC().Format(time.RFC3339),
	}
	return writeTrackerMark(sourceFolder, mark)
}

// WriteCollectionMark writes the tracker mark for an artist-collection
// folder whose albums were each organized individually.
func (m *Mover) WriteCollectionMark(sourceFolder string, albums []domain.Proposal, now time.Time) error {
	mark := domain.TrackerMark{
		CollectionType:     "artist_collection",
		FolderName:         filepath.Base(sourceFolder),
		Albums:             albums,
		OrganizedTimestamp: now.UTC().Format(time.RFC3339),
	}
	return writeTrackerMark(sourceFolder, mark)
}

func writeTrackerMark(sourceFolder string, mark domain.TrackerMark) error {
	data, err := json.MarshalIndent(mark, "", "  ")
	if err != nil {
		return fmt.Errorf("filemover: marshal tracker mark: %w", err)
	}
	path := filepath.Join(sourceFolder, trackerMarkFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("filemover: write tracker mark: %w", err)
	}
	return nil
}

// IsAlreadyOrganized reports whether sourceFolder already carries a
// tracker mark.
func IsAlreadyOrganized(sourceFolder string) bool {
	_, err := os.Stat(filepath.Join(sourceFolder, trackerMarkFileName))
	return err == nil
}
