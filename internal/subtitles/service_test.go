package subtitles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mediaindex/internal/media"
	"mediaindex/internal/subtitles/opensubtitles"
)

type fakeCatalog struct {
	movies      map[int64]*media.Movie
	missing     map[string][]*media.Movie
	inserted    []*media.Subtitle
	deactivated []string
	insertErr   error
}

func newSubtitleCatalog() *fakeCatalog {
	return &fakeCatalog{
		movies:  map[int64]*media.Movie{},
		missing: map[string][]*media.Movie{},
	}
}

func (f *fakeCatalog) MovieByTMDBID(_ context.Context, tmdbID int64) (*media.Movie, error) {
	return f.movies[tmdbID], nil
}

func (f *fakeCatalog) MoviesMissingSubtitles(_ context.Context, language string, page, limit int) ([]*media.Movie, int64, error) {
	movies := f.missing[language]
	start := (page - 1) * limit
	if start >= len(movies) {
		return nil, int64(len(movies)), nil
	}
	end := start + limit
	if end > len(movies) {
		end = len(movies)
	}
	return movies[start:end], int64(len(movies)), nil
}

func (f *fakeCatalog) InsertSubtitle(_ context.Context, subtitle *media.Subtitle) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if subtitle.ID == "" {
		subtitle.ID = fmt.Sprintf("sub-%d", len(f.inserted)+1)
	}
	f.inserted = append(f.inserted, subtitle)
	return nil
}

func (f *fakeCatalog) DeactivateOtherSubtitles(_ context.Context, movieID, language, keepID string) error {
	f.deactivated = append(f.deactivated, movieID+"/"+language+"/"+keepID)
	return nil
}

type fakeSearcher struct {
	results   map[int64][]opensubtitles.Subtitle
	payloads  map[int64][]byte
	searchErr error
}

func (f *fakeSearcher) Search(_ context.Context, req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error) {
	if f.searchErr != nil {
		return opensubtitles.SearchResponse{}, f.searchErr
	}
	subs := f.results[req.TMDBID]
	return opensubtitles.SearchResponse{Subtitles: subs, Total: len(subs)}, nil
}

func (f *fakeSearcher) Download(_ context.Context, fileID int64) (opensubtitles.DownloadResult, error) {
	data, ok := f.payloads[fileID]
	if !ok {
		return opensubtitles.DownloadResult{}, fmt.Errorf("unknown file %d", fileID)
	}
	return opensubtitles.DownloadResult{Data: data, FileName: "sub.srt", Language: "en"}, nil
}

func testMovie(id string, tmdbID int64) *media.Movie {
	return &media.Movie{
		ID:          id,
		TMDBID:      tmdbID,
		Title:       "Movie",
		ReleaseDate: time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func newSubtitleService(t *testing.T, catalog *fakeCatalog, searcher *fakeSearcher) *Service {
	t.Helper()
	storage, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	return NewService(catalog, searcher, storage, []string{"en"}, nil)
}

func TestDownloadForMovieStoresBestCandidate(t *testing.T) {
	catalog := newSubtitleCatalog()
	searcher := &fakeSearcher{
		results: map[int64][]opensubtitles.Subtitle{
			603: {
				{ID: "ai", FileID: 1, Downloads: 100000, AITranslated: true},
				{ID: "best", FileID: 2, Downloads: 5000, FromTrusted: true, HD: true, Ratings: 9},
			},
		},
		payloads: map[int64][]byte{2: []byte("1\n00:00:01,000 --> 00:00:02,000\nHi.\n")},
	}
	svc := newSubtitleService(t, catalog, searcher)

	movie := testMovie("movie-1", 603)
	stored, err := svc.DownloadForMovie(context.Background(), movie, nil)
	if err != nil {
		t.Fatalf("DownloadForMovie returned error: %v", err)
	}
	if stored != 1 {
		t.Fatalf("expected 1 stored subtitle, got %d", stored)
	}
	if len(catalog.inserted) != 1 {
		t.Fatalf("expected 1 inserted record, got %d", len(catalog.inserted))
	}

	sub := catalog.inserted[0]
	if sub.MovieID != "movie-1" || sub.Language != "en" || sub.Source != "opensubtitles" {
		t.Fatalf("unexpected record: %+v", sub)
	}
	if sub.Version != "best" {
		t.Fatalf("expected the trusted candidate, got version %q", sub.Version)
	}
	if sub.ContentHash == "" || !sub.IsActive {
		t.Fatalf("record missing hash or active flag: %+v", sub)
	}
	if sub.QualityScore == nil || *sub.QualityScore <= 0.5 {
		t.Fatalf("expected a high quality score, got %v", sub.QualityScore)
	}
	if len(catalog.deactivated) != 1 {
		t.Fatal("other subtitles not deactivated")
	}
}

func TestDownloadForMovieSkipsDuplicateContent(t *testing.T) {
	catalog := newSubtitleCatalog()
	catalog.insertErr = media.ErrDuplicateSubtitle
	searcher := &fakeSearcher{
		results:  map[int64][]opensubtitles.Subtitle{603: {{ID: "s", FileID: 2, Downloads: 10}}},
		payloads: map[int64][]byte{2: []byte("body")},
	}
	svc := newSubtitleService(t, catalog, searcher)

	stored, err := svc.DownloadForMovie(context.Background(), testMovie("movie-1", 603), nil)
	if err != nil {
		t.Fatalf("DownloadForMovie returned error: %v", err)
	}
	if stored != 0 {
		t.Fatalf("duplicate should not count as stored, got %d", stored)
	}
}

func TestDownloadMissingHonorsCap(t *testing.T) {
	catalog := newSubtitleCatalog()
	catalog.missing["en"] = []*media.Movie{
		testMovie("movie-1", 1),
		testMovie("movie-2", 2),
		testMovie("movie-3", 3),
	}
	searcher := &fakeSearcher{
		results: map[int64][]opensubtitles.Subtitle{
			1: {{ID: "a", FileID: 10, Downloads: 10}},
			2: {{ID: "b", FileID: 20, Downloads: 10}},
			3: {{ID: "c", FileID: 30, Downloads: 10}},
		},
		payloads: map[int64][]byte{10: []byte("a"), 20: []byte("b"), 30: []byte("c")},
	}
	svc := newSubtitleService(t, catalog, searcher)

	stats, err := svc.DownloadMissing(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("DownloadMissing returned error: %v", err)
	}
	if stats.Downloaded != 2 {
		t.Fatalf("expected 2 downloads, got %+v", stats)
	}
	if stats.Attempted != 2 {
		t.Fatalf("cap should stop further attempts, got %+v", stats)
	}
}

func TestDownloadMissingCountsFailures(t *testing.T) {
	catalog := newSubtitleCatalog()
	catalog.missing["en"] = []*media.Movie{testMovie("movie-1", 1), testMovie("movie-2", 2)}
	searcher := &fakeSearcher{
		results: map[int64][]opensubtitles.Subtitle{
			1: {{ID: "a", FileID: 10, Downloads: 10}},
			2: {{ID: "b", FileID: 99, Downloads: 10}}, // payload missing, download fails
		},
		payloads: map[int64][]byte{10: []byte("a")},
	}
	svc := newSubtitleService(t, catalog, searcher)

	stats, err := svc.DownloadMissing(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("DownloadMissing returned error: %v", err)
	}
	if stats.Downloaded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDownloadMissingNoCandidatesIsSkip(t *testing.T) {
	catalog := newSubtitleCatalog()
	catalog.missing["en"] = []*media.Movie{testMovie("movie-1", 1)}
	searcher := &fakeSearcher{results: map[int64][]opensubtitles.Subtitle{}}
	svc := newSubtitleService(t, catalog, searcher)

	stats, err := svc.DownloadMissing(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("DownloadMissing returned error: %v", err)
	}
	if stats.Skipped != 1 || stats.Downloaded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestIngestUploadStoresSubtitle(t *testing.T) {
	catalog := newSubtitleCatalog()
	catalog.movies[603] = testMovie("movie-1", 603)
	svc := newSubtitleService(t, catalog, &fakeSearcher{})

	sub, err := svc.IngestUpload(context.Background(), 603, "fr", "movie.vtt", []byte("WEBVTT\n"))
	if err != nil {
		t.Fatalf("IngestUpload returned error: %v", err)
	}
	if sub.Source != "upload" || sub.Language != "fr" {
		t.Fatalf("unexpected record: %+v", sub)
	}
	if sub.Format != media.FormatVTT {
		t.Fatalf("format not derived from file name: %q", sub.Format)
	}
}

func TestIngestUploadUnknownMovie(t *testing.T) {
	svc := newSubtitleService(t, newSubtitleCatalog(), &fakeSearcher{})
	if _, err := svc.IngestUpload(context.Background(), 999, "en", "x.srt", []byte("body")); err == nil {
		t.Fatal("expected error for unknown movie")
	}
}
