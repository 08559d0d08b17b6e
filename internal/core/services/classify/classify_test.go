package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

type stubOracle struct {
	text string
	err  error
}

func (s stubOracle) Generate(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

func TestClassifyShape(t *testing.T) {
	tests := []struct {
		name   string
		oracle *stubOracle
		shape  domain.FolderShape
		want   Shape
	}{
		{
			name:   "oracle answers single_album",
			oracle: &stubOracle{text: "single_album"},
			shape:  domain.FolderShape{DirectMusicFiles: 10},
			want:   ShapeSingleAlbum,
		},
		{
			name:   "oracle error falls back to heuristics",
			oracle: &stubOracle{err: errors.New("timeout")},
			shape:  domain.FolderShape{DirectMusicFiles: 10, Subdirectories: nil},
			want:   ShapeSingleAlbum,
		},
		{
			name:   "oracle returns unknown falls back to heuristics",
			oracle: &stubOracle{text: "unknown"},
			shape: domain.FolderShape{
				Subdirectories: []domain.Subdirectory{{Name: "CD1"}, {Name: "CD2"}},
			},
			want: ShapeMultiDiscAlbum,
		},
		{
			name: "no oracle, numeric-prefixed discs classify as multi disc",
			shape: domain.FolderShape{
				Subdirectories: []domain.Subdirectory{
					{Name: "1 - Disc One"}, {Name: "2 - Disc Two"},
				},
			},
			want: ShapeMultiDiscAlbum,
		},
		{
			name: "no oracle, several unrelated subdirs look like a collection",
			shape: domain.FolderShape{
				Subdirectories: []domain.Subdirectory{
					{Name: "OK Computer"}, {Name: "Kid A"},
				},
			},
			want: ShapeArtistCollection,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var o ports.Oracle
			if tc.oracle != nil {
				o = *tc.oracle
			}
			got := ClassifyShape(context.Background(), o, tc.shape)
			if got != tc.want {
				t.Fatalf("ClassifyShape() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGenerateProposal_OracleSuccess(t *testing.T) {
	oracle := stubOracle{text: `Here you go: {"artist":"Weezer","album":"Raditude","year":"2009","release_type":"Album","confidence":"high"}`}
	summary := domain.FolderSummary{FolderName: "Raditude"}

	p := GenerateProposal(context.Background(), oracle, summary, "", "")
	if p.Artist != "Weezer" || p.Album != "Raditude" {
		t.Fatalf("unexpected proposal: %+v", p)
	}
}

func TestGenerateProposal_FallbackOnUnparsableResponse(t *testing.T) {
	oracle := stubOracle{text: "I cannot help with that."}
	summary := domain.FolderSummary{FolderName: "Unknown Artist/Boxset", CommonArtist: "The Mystery Band", CommonYear: "2001"}

	p := GenerateProposal(context.Background(), oracle, summary, "", "")
	if p.Confidence != domain.ConfidenceLow {
		t.Fatalf("expected low confidence fallback, got %+v", p)
	}
	if p.Artist != "The Mystery Band" {
		t.Fatalf("expected fallback to use common artist, got %q", p.Artist)
	}
}

func TestGenerateProposal_ArtistHintOverridesWhenNoCommonArtist(t *testing.T) {
	summary := domain.FolderSummary{FolderName: "OK Computer"}
	p := GenerateProposal(context.Background(), nil, summary, "", "Radiohead")
	if p.Artist != "Radiohead" {
		t.Fatalf("expected artist hint to be used, got %q", p.Artist)
	}
}

func TestGenerateProposal_CompilationFallback(t *testing.T) {
	summary := domain.FolderSummary{FolderName: "Best Of 2001", LikelyCompilation: true}
	p := GenerateProposal(context.Background(), nil, summary, "", "")
	if p.ReleaseType != domain.ReleaseCompilation {
		t.Fatalf("expected compilation release type, got %s", p.ReleaseType)
	}
}
