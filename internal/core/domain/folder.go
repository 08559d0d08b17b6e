package domain

// Subdirectory summarizes one immediate child directory discovered while
// building a FolderShape.
type Subdirectory struct {
	Name           string
	Path           string
	MusicFiles     int
	MusicBaseNames []string
}

// FolderShape is the in-memory, never-persisted summary of a directory the
// Scanner or Classifier is looking at. Invariant: TotalMusicFiles is always
// at least DirectMusicFiles.
type FolderShape struct {
	Name             string
	Path             string
	TotalMusicFiles  int
	DirectMusicFiles int
	Subdirectories   []Subdirectory
	MaxDepth         int
	TreeText         string
}

// FileTags is the per-file record the TagReader returns. All fields are
// best-effort; real tag parsing is outside this system's scope.
type FileTags struct {
	Path        string
	Filename    string
	Title       string
	Artist      string
	Album       string
	Year        string
	TrackNumber string
	DiscNumber  string
	Error       string
}

// FolderSummary aggregates FileTags across a folder into the dominant
// artist/album/year, the signal ProposalGenerator folds into its prompt
// and the basis for the metadata-only fallback proposal.
type FolderSummary struct {
	FolderName        string
	TotalFiles        int
	CommonArtist      string
	CommonAlbum       string
	CommonYear        string
	LikelyCompilation bool
	Samples           []FileTags
}
