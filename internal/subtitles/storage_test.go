package subtitles

import (
	"path/filepath"
	"strings"
	"testing"

	"mediaindex/internal/media"
)

func TestStorageSaveLaysOutPerMovieTree(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}

	data := []byte("1\n00:00:01,000 --> 00:00:02,000\nHello.\n")
	relative, err := storage.Save("movie-1", "en", "v42", media.FormatSRT, data)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	wantDir := filepath.Join("movie-1", "subtitles", "en")
	if filepath.Dir(relative) != wantDir {
		t.Fatalf("unexpected directory: %q", relative)
	}
	name := filepath.Base(relative)
	if !strings.HasPrefix(name, "v42_") || !strings.HasSuffix(name, ".srt") {
		t.Fatalf("unexpected file name: %q", name)
	}

	got, err := storage.Read(relative)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if string(got) != string(data) {
		t.Fatal("payload round trip mismatch")
	}
}

func TestStorageSaveSameContentSamePath(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	data := []byte("subtitle body")
	first, err := storage.Save("movie-1", "en", "v1", media.FormatSRT, data)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := storage.Save("movie-1", "en", "v1", media.FormatSRT, data)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Fatalf("same content mapped to different paths: %q vs %q", first, second)
	}
}

func TestStorageRejectsEmptyPayload(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	if _, err := storage.Save("movie-1", "en", "v1", media.FormatSRT, nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash([]byte("same"))
	b := ContentHash([]byte("same"))
	c := ContentHash([]byte("different"))
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if a == c {
		t.Fatal("distinct content collided")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256, got length %d", len(a))
	}
}
