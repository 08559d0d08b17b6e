package tagstub

import (
	"testing"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
)

func TestReader_ReadFile(t *testing.T) {
	tests := []struct {
		name            string
		path            string
		wantTrack       string
		wantArtist      string
		wantTitle       string
	}{
		{
			name:       "track number artist title",
			path:       "/music/Weezer/Raditude/03 - Weezer - Can't Stop Partying.mp3",
			wantTrack:  "3",
			wantArtist: "Weezer",
			wantTitle:  "Can't Stop Partying",
		},
		{
			name:      "track number title only",
			path:      "/music/Compilation/07 Sunny Afternoon.flac",
			wantTrack: "7",
			wantTitle: "Sunny Afternoon",
		},
		{
			name:      "no track prefix",
			path:      "/music/Loose/Interlude.mp3",
			wantTitle: "Interlude",
		},
	}

	r := New()
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tags, err := r.ReadFile(tc.path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if tags.TrackNumber != tc.wantTrack {
				t.Errorf("TrackNumber = %q, want %q", tags.TrackNumber, tc.wantTrack)
			}
			if tags.Artist != tc.wantArtist {
				t.Errorf("Artist = %q, want %q", tags.Artist, tc.wantArtist)
			}
			if tags.Title != tc.wantTitle {
				t.Errorf("Title = %q, want %q", tags.Title, tc.wantTitle)
			}
		})
	}
}

func TestReader_AggregateFolder(t *testing.T) {
	r := New()
	shape := domain.FolderShape{Name: "Raditude"}
	files := []domain.FileTags{
		{Artist: "Weezer", Album: "Raditude", Year: "2009"},
		{Artist: "Weezer", Album: "Raditude", Year: "2009"},
		{Artist: "Weezer", Album: "Raditude", Year: "2009"},
		{Artist: "Weezer", Album: "Raditude", Year: "2009"},
	}

	summary := r.AggregateFolder(shape, files)
	if summary.CommonArtist != "Weezer" {
		t.Errorf("CommonArtist = %q, want Weezer", summary.CommonArtist)
	}
	if summary.CommonAlbum != "Raditude" {
		t.Errorf("CommonAlbum = %q, want Raditude", summary.CommonAlbum)
	}
	if summary.CommonYear != "2009" {
		t.Errorf("CommonYear = %q, want 2009", summary.CommonYear)
	}
	if summary.LikelyCompilation {
		t.Errorf("expected LikelyCompilation = false for a single-artist folder")
	}
}

func TestReader_AggregateFolder_Compilation(t *testing.T) {
	r := New()
	shape := domain.FolderShape{Name: "Best Of 2001"}
	var files []domain.FileTags
	for _, artist := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		files = append(files, domain.FileTags{Artist: artist, Album: "Best Of 2001"})
	}

	summary := r.AggregateFolder(shape, files)
	if summary.CommonArtist != "" {
		t.Errorf("expected no common artist for a compilation, got %q", summary.CommonArtist)
	}
	if !summary.LikelyCompilation {
		t.Errorf("expected LikelyCompilation = true")
	}
}
