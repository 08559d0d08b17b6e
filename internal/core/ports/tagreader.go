package ports

import "github.com/ewilliams-labs/soundsorter/internal/core/domain"

// TagReader extracts per-file metadata and aggregates it across a folder.
// Real tag parsing (ID3, Vorbis comments, MP4 atoms) is outside this
// system's scope; see internal/adapters/tagstub for the shipped adapter.
type TagReader interface {
	ReadFile(path string) (domain.FileTags, error)
	AggregateFolder(shape domain.FolderShape, files []domain.FileTags) domain.FolderSummary
}
