package media

import (
	"testing"
	"time"
)

func TestParseSubtitleFormat(t *testing.T) {
	cases := map[string]SubtitleFormat{
		"srt":     FormatSRT,
		".vtt":    FormatVTT,
		"ASS":     FormatASS,
		"ssa":     FormatSSA,
		"txt":     FormatSRT,
		"":        FormatSRT,
		" .SRT  ": FormatSRT,
	}
	for input, want := range cases {
		if got := ParseSubtitleFormat(input); got != want {
			t.Errorf("ParseSubtitleFormat(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMovieYear(t *testing.T) {
	movie := &Movie{ReleaseDate: time.Date(1994, 9, 23, 0, 0, 0, 0, time.UTC)}
	if movie.Year() != 1994 {
		t.Fatalf("unexpected year: %d", movie.Year())
	}
	if (&Movie{}).Year() != 0 {
		t.Fatal("zero release date should yield year 0")
	}
}
