package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListAudioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"radiohead-karma-police.mp3",
		"cover.jpg",
		"track.FLAC",
		"notes.txt",
		"song.ogg",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.mp3"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListAudioFiles(dir)
	if err != nil {
		t.Fatalf("ListAudioFiles() error = %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("len(files) = %d, want 3 (got %v)", len(files), files)
	}
	for _, f := range files {
		if f == "cover.jpg" || f == "notes.txt" || f == "nested.mp3" {
			t.Errorf("unexpected file in result: %s", f)
		}
	}
}

func TestListAudioFilesMissingDir(t *testing.T) {
	files, err := ListAudioFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("missing directory should not be an error, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("len(files) = %d, want 0", len(files))
	}
}

func TestListAudioFilesEmptyDir(t *testing.T) {
	files, err := ListAudioFiles(t.TempDir())
	if err != nil {
		t.Fatalf("ListAudioFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("len(files) = %d, want 0", len(files))
	}
}
