// Package tagstub is a filename-only stand-in for real audio tag parsing.
// Real ID3/Vorbis/MP4 tag extraction is outside this system's scope: the
// stub recovers only what a conventional "NN - Artist - Title.ext" or
// "NN Title.ext" filename already encodes, and leaves everything else
// blank so downstream code falls through to its folder-name and oracle
// based heuristics.
package tagstub

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

var _ ports.TagReader = (*Reader)(nil)

// Reader is the default, dependency-free ports.TagReader implementation.
type Reader struct{}

// New returns a ready-to-use Reader.
func New() *Reader { return &Reader{} }

var trackPrefixPattern = regexp.MustCompile(`^(\d{1,3})[\s._-]+(.*)$`)
var artistTitlePattern = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)

// ReadFile derives whatever FileTags it can from path's filename alone.
func (r *Reader) ReadFile(path string) (domain.FileTags, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	tags := domain.FileTags{Path: path, Filename: base}

	rest := name
	if m := trackPrefixPattern.FindStringSubmatch(name); m != nil {
		tags.TrackNumber = strings.TrimLeft(m[1], "0")
		if tags.TrackNumber == "" {
			tags.TrackNumber = "0"
		}
		rest = strings.TrimSpace(m[2])
	}

	if m := artistTitlePattern.FindStringSubmatch(rest); m != nil {
		tags.Artist = strings.TrimSpace(m[1])
		tags.Title = strings.TrimSpace(m[2])
	} else {
		tags.Title = strings.TrimSpace(rest)
	}

	return tags, nil
}

// AggregateFolder rolls per-file FileTags up into a FolderSummary,
// picking the dominant artist/album/year by majority vote. Common album
// and common artist each require >70% agreement and common year >50%
// (the folder is flagged a likely compilation once more than 5 distinct
// artists appear), mirroring the thresholds a folder's worth of tags is
// expected to satisfy to count as "one release."
func (r *Reader) AggregateFolder(shape domain.FolderShape, files []domain.FileTags) domain.FolderSummary {
	summary := domain.FolderSummary{
		FolderName: shape.Name,
		TotalFiles: len(files),
	}
	if len(files) == 0 {
		return summary
	}

	artistCounts := map[string]int{}
	albumCounts := map[string]int{}
	yearCounts := map[string]int{}

	for _, f := range files {
		if f.Artist != "" {
			artistCounts[f.Artist]++
		}
		if f.Album != "" {
			albumCounts[f.Album]++
		}
		if y := yearPrefix(f.Year); y != "" {
			yearCounts[y]++
		}
	}

	if artist, count := mode(artistCounts); artist != "" {
		if float64(count) > float64(len(files))*0.7 {
			summary.CommonArtist = artist
		} else if len(artistCounts) > 5 {
			summary.LikelyCompilation = true
		}
	}
	if album, count := mode(albumCounts); album != "" && float64(count) > float64(len(files))*0.7 {
		summary.CommonAlbum = album
	}
	if year, count := mode(yearCounts); year != "" && float64(count) > float64(len(files))*0.5 {
		summary.CommonYear = year
	}

	sampleCount := len(files)
	if sampleCount > 10 {
		sampleCount = 10
	}
	summary.Samples = append(summary.Samples, files[:sampleCount]...)

	return summary
}

func yearPrefix(year string) string {
	if len(year) < 4 {
		return ""
	}
	prefix := year[:4]
	if _, err := strconv.Atoi(prefix); err != nil {
		return ""
	}
	return prefix
}

func mode(counts map[string]int) (string, int) {
	var best string
	var bestCount int
	for value, count := range counts {
		if count > bestCount {
			best, bestCount = value, count
		}
	}
	return best, bestCount
}
