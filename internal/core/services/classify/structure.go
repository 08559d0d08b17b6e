// Package classify turns a FolderShape and its aggregated tags into a
// shape classification and, ultimately, an organization Proposal. Both
// steps prefer an oracle opinion and fall back to deterministic
// heuristics when the oracle is unavailable, times out, or answers with
// something unusable.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

// Shape is the structural classification of a folder.
type Shape string

const (
	ShapeSingleAlbum      Shape = "single_album"
	ShapeMultiDiscAlbum   Shape = "multi_disc_album"
	ShapeArtistCollection Shape = "artist_collection"
	ShapeUnknown          Shape = "unknown"
)

var validShapes = map[Shape]bool{
	ShapeSingleAlbum:      true,
	ShapeMultiDiscAlbum:   true,
	ShapeArtistCollection: true,
}

var multiDiscTokens = []string{
	"cd1", "cd2", "disc1", "disc2", "volume1", "volume2",
	"part1", "part2", "vol1", "vol2", "disk1", "disk2", "set1", "set2",
}

// ClassifyShape asks oracle to classify shape, falling back to heuristics
// on error, timeout, or an unrecognized answer. oracle may be nil, in
// which case heuristics run directly.
func ClassifyShape(ctx context.Context, oracle ports.Oracle, shape domain.FolderShape) Shape {
	if oracle != nil {
		prompt := buildClassificationPrompt(shape)
		if text, err := oracle.Generate(ctx, prompt); err == nil {
			classification := Shape(strings.ToLower(strings.TrimSpace(text)))
			if validShapes[classification] {
				return classification
			}
		}
	}
	return heuristicClassification(shape)
}

func buildClassificationPrompt(shape domain.FolderShape) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a music collection organization expert. Analyze the following directory structure and classify it into one of these types:\n\n")
	sb.WriteString("1. \"single_album\" - All music files are in the root directory or it's clearly a single album\n")
	sb.WriteString("2. \"multi_disc_album\" - Multiple subdirectories that appear to be discs of the same album (e.g., \"CD1\", \"CD2\", \"Disc 1\", \"Disc 2\"). This includes if there are tracks at the top level and then a subdir with some bonus content.\n")
	sb.WriteString("3. \"artist_collection\" - Multiple subdirectories that appear to be different albums by the same artist\n")
	sb.WriteString("4. \"unknown\" - The structure is not clear or not enough information to classify\n\n")
	fmt.Fprintf(&sb, "Directory Analysis:\n- Folder Name: %s\n- Total Music Files: %d\n- Direct Music Files (in root): %d\n- Number of Subdirectories: %d\n- Max Depth: %d\n\n",
		shape.Name, shape.TotalMusicFiles, shape.DirectMusicFiles, len(shape.Subdirectories), shape.MaxDepth)
	sb.WriteString("Subdirectories:\n")
	sb.WriteString(formatSubdirectories(shape.Subdirectories))
	fmt.Fprintf(&sb, "\n\nDirectory Tree:\n%s\n\n", shape.TreeText)
	sb.WriteString("Based on this structure, classify it as exactly one of: single_album, multi_disc_album, artist_collection, or unknown\n\n")
	sb.WriteString("Respond with ONLY the classification (one of the four options above).")
	return sb.String()
}

func formatSubdirectories(subdirs []domain.Subdirectory) string {
	if len(subdirs) == 0 {
		return "None"
	}
	limit := len(subdirs)
	if limit > 10 {
		limit = 10
	}
	var lines []string
	for _, s := range subdirs[:limit] {
		lines = append(lines, fmt.Sprintf("- %s: %d music files", s.Name, s.MusicFiles))
	}
	if len(subdirs) > 10 {
		lines = append(lines, fmt.Sprintf("... and %d more subdirectories", len(subdirs)-10))
	}
	return strings.Join(lines, "\n")
}

func heuristicClassification(shape domain.FolderShape) Shape {
	if shape.DirectMusicFiles > 0 && len(shape.Subdirectories) <= 1 {
		return ShapeSingleAlbum
	}
	if hasMultiDiscPattern(shape.Subdirectories) {
		return ShapeMultiDiscAlbum
	}
	// Subdirectories all named with a one- or two-digit index ("1 - ...",
	// "2 - ...") and no root audio are discs of one release; four-digit
	// year prefixes do not match.
	if shape.DirectMusicFiles == 0 && len(shape.Subdirectories) >= 2 {
		numbered := true
		for _, s := range shape.Subdirectories {
			n := 0
			for n < len(s.Name) && s.Name[n] >= '0' && s.Name[n] <= '9' {
				n++
			}
			if n == 0 || n > 2 || n == len(s.Name) || !strings.ContainsRune(" ._-", rune(s.Name[n])) {
				numbered = false
				break
			}
		}
		if numbered {
			return ShapeMultiDiscAlbum
		}
	}
	if len(shape.Subdirectories) >= 2 {
		return ShapeArtistCollection
	}
	return ShapeUnknown
}

func hasMultiDiscPattern(subdirs []domain.Subdirectory) bool {
	for _, s := range subdirs {
		name := strings.ReplaceAll(strings.ToLower(s.Name), " ", "")
		for _, pattern := range multiDiscTokens {
			if strings.Contains(name, pattern) {
				return true
			}
		}
	}
	return false
}
