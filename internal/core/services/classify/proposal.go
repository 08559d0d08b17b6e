package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/textmatch"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// GenerateProposal asks oracle for an organization proposal, falling back
// to a metadata-only proposal when oracle is nil, errors, or its response
// can't be parsed into a well-formed Proposal. A non-empty artistHint
// replaces the oracle's artist unless textmatch.Contradicts reports the
// two names as clearly different.
func GenerateProposal(ctx context.Context, oracle ports.Oracle, summary domain.FolderSummary, userFeedback, artistHint string) domain.Proposal {
	if oracle != nil {
		prompt := buildProposalPrompt(summary, userFeedback, artistHint)
		if text, err := oracle.Generate(ctx, prompt); err == nil {
			if p, perr := parseProposalResponse(text); perr == nil {
				if artistHint != "" && !textmatch.Contradicts(artistHint, p.Artist) {
					p.Artist = artistHint
				}
				return p
			}
		}
	}
	return fallbackProposal(summary, artistHint)
}

func buildProposalPrompt(summary domain.FolderSummary, userFeedback, artistHint string) string {
	var sb strings.Builder
	sb.WriteString("You are a music organization expert. Analyze the following music folder and suggest how to organize it.\n\n")
	sb.WriteString("IMPORTANT: Use the detected metadata below as your PRIMARY source of information.\n\n")
	fmt.Fprintf(&sb, "Folder Information:\n- Folder Name: %s\n- Total Files: %d\n- **DETECTED ARTIST: %s** <- USE THIS\n- **DETECTED ALBUM: %s** <- USE THIS\n- **DETECTED YEAR: %s** <- USE THIS\n- Is Compilation: %s\n",
		valueOr(summary.FolderName, "Unknown"),
		summary.TotalFiles,
		valueOr(summary.CommonArtist, "Unknown"),
		valueOr(summary.CommonAlbum, "Unknown"),
		valueOr(summary.CommonYear, "Unknown"),
		yesNo(summary.LikelyCompilation),
	)
	if artistHint != "" {
		fmt.Fprintf(&sb, "\n- **ARTIST HINT: %s** <- This folder is part of an artist collection, USE THIS ARTIST NAME\n", artistHint)
	}

	sb.WriteString("\nSample Files (showing consistent artist/title pattern):\n")
	limit := len(summary.Samples)
	if limit > 5 {
		limit = 5
	}
	for _, f := range summary.Samples[:limit] {
		fmt.Fprintf(&sb, "- %s: %s - %s\n", valueOr(f.Filename, "Unknown"), valueOr(f.Artist, "Unknown"), valueOr(f.Title, "Unknown"))
	}

	if userFeedback != "" {
		fmt.Fprintf(&sb, "\nUser Feedback: %s\nPlease reconsider your proposal based on this feedback.\n", userFeedback)
	}

	sb.WriteString(`
INSTRUCTIONS:
- PRIORITIZE the detected artist, album, and year shown above
- The sample files confirm the artist pattern
- Only deviate from detected metadata if there's a clear error

Based on this information, provide a JSON response with your best guess for:
1. artist - Use the DETECTED ARTIST unless clearly wrong
2. album - Use the DETECTED ALBUM unless clearly wrong
3. year - Use the DETECTED YEAR unless clearly wrong
4. release_type - One of: Album, EP, Single, Compilation, Live, Remix, Bootleg
5. confidence - Your confidence level (low, medium, high)
6. reasoning - Brief explanation of your decision

Response format:
{
    "artist": "Artist Name",
    "album": "Album Title",
    "year": "2023",
    "release_type": "Album",
    "confidence": "high",
    "reasoning": "Based on metadata and folder structure..."
}

Provide ONLY the JSON response.`)
	return sb.String()
}

func parseProposalResponse(text string) (domain.Proposal, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return domain.Proposal{}, &domain.ProposalParseError{Raw: text, Err: fmt.Errorf("no JSON object found")}
	}
	p, err := domain.ParseProposal(match)
	if err != nil {
		return domain.Proposal{}, &domain.ProposalParseError{Raw: text, Err: err}
	}
	return p, nil
}

func fallbackProposal(summary domain.FolderSummary, artistHint string) domain.Proposal {
	artist := artistHint
	if artist == "" {
		artist = summary.CommonArtist
	}
	if artist == "" {
		artist = valueOr(summary.FolderName, "Unknown Artist")
	}

	album := summary.CommonAlbum
	if album == "" {
		album = valueOr(summary.FolderName, "Unknown Album")
	}

	year := summary.CommonYear
	if year == "" {
		year = "2023"
	}

	releaseType := domain.ReleaseAlbum
	if summary.LikelyCompilation {
		releaseType = domain.ReleaseCompilation
	}

	return domain.Proposal{
		Artist:      artist,
		Album:       album,
		Year:        year,
		ReleaseType: releaseType,
		Confidence:  domain.ConfidenceLow,
		Reasoning:   "Based on metadata analysis only (oracle unavailable)",
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
