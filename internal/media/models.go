package media

import (
	"encoding/json"
	"strings"
	"time"
)

// Movie is a catalog entry keyed by its TMDB identifier.
type Movie struct {
	ID               string
	TMDBID           int64
	Title            string
	OriginalTitle    string
	Language         string
	OriginalLanguage string
	ReleaseDate      time.Time
	Genres           []string
	Runtime          *int
	Overview         string
	PosterURL        string
	BackdropURL      string
	VoteAverage      float64
	VoteCount        int64
	Difficulty       *float64
	Author           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Year returns the release year, or 0 when the date is unset.
func (m *Movie) Year() int {
	if m.ReleaseDate.IsZero() {
		return 0
	}
	return m.ReleaseDate.Year()
}

// SyncStatus tracks the lifecycle of one year sync run.
type SyncStatus string

const (
	SyncPending    SyncStatus = "PENDING"
	SyncInProgress SyncStatus = "IN_PROGRESS"
	SyncCompleted  SyncStatus = "COMPLETED"
	SyncFailed     SyncStatus = "FAILED"
)

// SyncRecord tracks one (year, language) TMDB sync run.
type SyncRecord struct {
	ID              string
	Year            int
	Language        string
	JobID           string
	Priority        int
	Status          SyncStatus
	Attempts        int
	LastAttempt     *time.Time
	ErrorMessage    string
	MoviesProcessed int
	MoviesFailed    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProcessingStatus tracks linguistic processing of a subtitle.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingDone       ProcessingStatus = "processed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// SubtitleFormat is the stored file format of a subtitle.
type SubtitleFormat string

const (
	FormatSRT SubtitleFormat = "srt"
	FormatVTT SubtitleFormat = "vtt"
	FormatASS SubtitleFormat = "ass"
	FormatSSA SubtitleFormat = "ssa"
)

// ParseSubtitleFormat maps a file extension to a known format,
// defaulting to srt for anything unrecognized.
func ParseSubtitleFormat(value string) SubtitleFormat {
	switch SubtitleFormat(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, ".")))) {
	case FormatVTT:
		return FormatVTT
	case FormatASS:
		return FormatASS
	case FormatSSA:
		return FormatSSA
	default:
		return FormatSRT
	}
}

// Subtitle is a stored subtitle file and its processing state.
type Subtitle struct {
	ID                    string
	MovieID               string
	Path                  string
	Source                string
	Format                SubtitleFormat
	Version               string
	Language              string
	ContentHash           string
	QualityScore          *float64
	Metadata              json.RawMessage
	IsActive              bool
	ProcessingStatus      ProcessingStatus
	ProcessingError       string
	ProcessingAttempts    int
	LastProcessingAttempt *time.Time
	ProcessedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AnalysisResult stores one linguistic profile for a movie subtitle.
type AnalysisResult struct {
	ID              string
	MovieID         string
	Version         string
	Kind            string
	SubtitleID      string
	SubtitleVersion string
	LexicalAnalysis json.RawMessage
	IsLatest        bool
	CreatedAt       time.Time
}

// Suggestion is one search result for the suggest endpoint.
type Suggestion struct {
	Kind       string   `json:"type"`
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Difficulty *float64 `json:"difficulty,omitempty"`
	Author     string   `json:"author,omitempty"`
	PosterURL  string   `json:"image_url,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}
