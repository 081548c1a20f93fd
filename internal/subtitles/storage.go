package subtitles

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediaindex/internal/media"
)

// Storage writes subtitle payloads under a root directory, one tree per
// movie: <root>/<movie_id>/subtitles/<language>/<version>_<hash>.<format>.
type Storage struct {
	root string
}

// NewStorage creates a Storage rooted at dir.
func NewStorage(dir string) (*Storage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("subtitle storage root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create subtitle root: %w", err)
	}
	return &Storage{root: dir}, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// ContentHash returns the hex SHA-256 of a subtitle payload. The hash keys
// duplicate detection, so the same content re-downloaded is never stored
// twice for a movie and language.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes a subtitle payload and returns its path relative to the root.
// The file name embeds the version and a hash prefix so repeated versions of
// the same release never collide.
func (s *Storage) Save(movieID, language, version string, format media.SubtitleFormat, data []byte) (string, error) {
	if movieID == "" {
		return "", errors.New("movie id is required")
	}
	if language == "" {
		return "", errors.New("language is required")
	}
	if len(data) == 0 {
		return "", errors.New("subtitle payload is empty")
	}
	if version == "" {
		version = "1"
	}

	hash := ContentHash(data)
	relative := filepath.Join(movieID, "subtitles", language, fmt.Sprintf("%s_%s.%s", version, hash[:12], format))
	full := filepath.Join(s.root, relative)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create subtitle directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	return relative, nil
}

// Read loads a stored subtitle payload by its relative path.
func (s *Storage) Read(relative string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, relative))
	if err != nil {
		return nil, fmt.Errorf("read subtitle file: %w", err)
	}
	return data, nil
}
