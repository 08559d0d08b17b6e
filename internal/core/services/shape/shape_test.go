package shape

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuild_SingleAlbum(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "01 - Track One.mp3"))
	touch(t, filepath.Join(root, "02 - Track Two.mp3"))
	touch(t, filepath.Join(root, "cover.jpg"))

	s, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.TotalMusicFiles != 2 || s.DirectMusicFiles != 2 {
		t.Fatalf("expected 2 direct music files, got total=%d direct=%d", s.TotalMusicFiles, s.DirectMusicFiles)
	}
	if len(s.Subdirectories) != 0 {
		t.Fatalf("expected no subdirectories, got %+v", s.Subdirectories)
	}
}

func TestBuild_MultiDisc(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "CD1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "CD2"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(root, "CD1", "01 - Track.mp3"))
	touch(t, filepath.Join(root, "CD2", "01 - Track.mp3"))

	s, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(s.Subdirectories) != 2 {
		t.Fatalf("expected 2 subdirectories, got %d", len(s.Subdirectories))
	}
	if s.DirectMusicFiles != 0 {
		t.Fatalf("expected no direct music files, got %d", s.DirectMusicFiles)
	}
	if s.TotalMusicFiles != 2 {
		t.Fatalf("expected 2 total music files, got %d", s.TotalMusicFiles)
	}
	for _, sub := range s.Subdirectories {
		if sub.MusicFiles != 1 {
			t.Errorf("subdir %s: expected 1 music file, got %d", sub.Name, sub.MusicFiles)
		}
	}
}
