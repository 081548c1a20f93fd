package media_test

import (
	"context"
	"os"
	"testing"
	"time"

	"mediaindex/internal/media"
)

// openStore connects to the database named by MEDIAINDEX_TEST_DATABASE_URL
// and skips when it is unset. These are contract tests against a real
// Postgres, so each test uses distinct TMDB IDs.
func openStore(t *testing.T) *media.Store {
	t.Helper()

	dsn := os.Getenv("MEDIAINDEX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MEDIAINDEX_TEST_DATABASE_URL not set; skipping Postgres contract tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := media.Open(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func sampleMovie(tmdbID int64, title string) *media.Movie {
	return &media.Movie{
		TMDBID:      tmdbID,
		Title:       title,
		Language:    "en",
		ReleaseDate: time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC),
		Genres:      []string{"Action", "Science Fiction"},
		VoteAverage: 8.2,
		VoteCount:   25000,
		Author:      "Lana Wachowski, Lilly Wachowski",
		PosterURL:   "https://image.tmdb.org/t/p/original/poster.jpg",
	}
}

func TestUpsertMovieInsertsThenUpdates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	movie := sampleMovie(603001, "The Matrix Contract Test")
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("UpsertMovie returned error: %v", err)
	}
	firstID := movie.ID

	movie.VoteCount = 26000
	movie.ID = ""
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("second UpsertMovie returned error: %v", err)
	}
	if movie.ID != firstID {
		t.Fatalf("upsert created a second row: %q vs %q", movie.ID, firstID)
	}

	got, err := store.MovieByTMDBID(ctx, 603001)
	if err != nil {
		t.Fatalf("MovieByTMDBID returned error: %v", err)
	}
	if got == nil || got.VoteCount != 26000 {
		t.Fatalf("unexpected movie: %+v", got)
	}
}

func TestUpsertMovieRejectsMissingReleaseDate(t *testing.T) {
	store := openStore(t)

	movie := sampleMovie(603002, "No Date")
	movie.ReleaseDate = time.Time{}
	if err := store.UpsertMovie(context.Background(), movie); err == nil {
		t.Fatal("expected error for missing release date")
	}
}

func TestSearchSuggestionsRejectsShortQuery(t *testing.T) {
	store := openStore(t)

	if _, err := store.SearchSuggestions(context.Background(), "ab"); err != media.ErrQueryTooShort {
		t.Fatalf("expected ErrQueryTooShort, got %v", err)
	}
}

func TestSearchSuggestionsHybridMatching(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	movie := sampleMovie(603010, "Clockwork Meridian Contract Test")
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("UpsertMovie returned error: %v", err)
	}

	results, err := store.SearchSuggestions(ctx, "Clockwork Meridian")
	if err != nil {
		t.Fatalf("SearchSuggestions returned error: %v", err)
	}
	found := false
	for _, suggestion := range results {
		if suggestion.ID == movie.TMDBID {
			found = true
		}
	}
	if !found {
		t.Fatalf("full-text search missed the title: %+v", results)
	}

	// Below the trigram similarity floor nothing should come back.
	none, err := store.SearchSuggestions(ctx, "zzq")
	if err != nil {
		t.Fatalf("SearchSuggestions returned error: %v", err)
	}
	for _, suggestion := range none {
		if suggestion.ID == movie.TMDBID {
			t.Fatalf("dissimilar query matched the title: %+v", suggestion)
		}
	}
}

func TestInsertSubtitleRejectsDuplicateContent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	movie := sampleMovie(603003, "Subtitle Dup Test")
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("UpsertMovie returned error: %v", err)
	}

	subtitle := &media.Subtitle{
		MovieID:     movie.ID,
		Path:        "media/x/subtitles/en/1_abc.srt",
		Source:      "opensubtitles",
		Language:    "en",
		ContentHash: "abc123",
		IsActive:    true,
	}
	if err := store.InsertSubtitle(ctx, subtitle); err != nil {
		t.Fatalf("InsertSubtitle returned error: %v", err)
	}

	dup := *subtitle
	dup.ID = ""
	if err := store.InsertSubtitle(ctx, &dup); err != media.ErrDuplicateSubtitle {
		t.Fatalf("expected ErrDuplicateSubtitle, got %v", err)
	}
}

func TestClaimSubtitlesFlipsToProcessing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	movie := sampleMovie(603004, "Claim Test")
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("UpsertMovie returned error: %v", err)
	}
	subtitle := &media.Subtitle{
		MovieID:     movie.ID,
		Path:        "media/y/subtitles/en/1_claim.srt",
		Language:    "en",
		ContentHash: "claim-hash",
		IsActive:    true,
	}
	if err := store.InsertSubtitle(ctx, subtitle); err != nil {
		t.Fatalf("InsertSubtitle returned error: %v", err)
	}

	claimed, err := store.ClaimSubtitlesForProcessing(ctx, 100, 10, time.Hour)
	if err != nil {
		t.Fatalf("ClaimSubtitlesForProcessing returned error: %v", err)
	}
	var found *media.Subtitle
	for _, c := range claimed {
		if c.ID == subtitle.ID {
			found = c
		}
	}
	if found == nil {
		t.Fatal("expected subtitle to be claimed")
	}
	if found.ProcessingStatus != media.ProcessingInProgress || found.ProcessingAttempts != 1 {
		t.Fatalf("unexpected claimed state: %+v", found)
	}

	// A second claim pass must not return the same in-flight subtitle.
	claimed, err = store.ClaimSubtitlesForProcessing(ctx, 100, 10, time.Hour)
	if err != nil {
		t.Fatalf("second claim returned error: %v", err)
	}
	for _, c := range claimed {
		if c.ID == subtitle.ID {
			t.Fatal("subtitle claimed twice within the timeout")
		}
	}
}

func TestSyncRecordLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	record, err := store.UpsertSyncRecord(ctx, 1987, "en", "year_sync_1987_en", 3)
	if err != nil {
		t.Fatalf("UpsertSyncRecord returned error: %v", err)
	}
	if record.Status != media.SyncPending {
		t.Fatalf("expected pending status, got %q", record.Status)
	}

	if err := store.MarkSyncStarted(ctx, record.ID); err != nil {
		t.Fatalf("MarkSyncStarted returned error: %v", err)
	}
	if err := store.CompleteSync(ctx, record.ID, 42, 1); err != nil {
		t.Fatalf("CompleteSync returned error: %v", err)
	}

	got, err := store.SyncRecordByJobID(ctx, "year_sync_1987_en")
	if err != nil {
		t.Fatalf("SyncRecordByJobID returned error: %v", err)
	}
	if got == nil || got.Status != media.SyncCompleted || got.MoviesProcessed != 42 || got.Attempts != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestInsertAnalysisResultDemotesEarlier(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	movie := sampleMovie(603005, "Analysis Test")
	if err := store.UpsertMovie(ctx, movie); err != nil {
		t.Fatalf("UpsertMovie returned error: %v", err)
	}

	difficulty := 3.5
	first := &media.AnalysisResult{
		MovieID:         movie.ID,
		Version:         "0.1",
		LexicalAnalysis: []byte(`{"sentences_count": 10}`),
	}
	if err := store.InsertAnalysisResult(ctx, first, &difficulty); err != nil {
		t.Fatalf("InsertAnalysisResult returned error: %v", err)
	}

	second := &media.AnalysisResult{
		MovieID:         movie.ID,
		Version:         "0.1",
		LexicalAnalysis: []byte(`{"sentences_count": 12}`),
	}
	if err := store.InsertAnalysisResult(ctx, second, &difficulty); err != nil {
		t.Fatalf("second InsertAnalysisResult returned error: %v", err)
	}

	latest, err := store.LatestAnalysis(ctx, movie.ID)
	if err != nil {
		t.Fatalf("LatestAnalysis returned error: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("unexpected latest analysis: %+v", latest)
	}

	updated, err := store.MovieByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("MovieByID returned error: %v", err)
	}
	if updated.Difficulty == nil || *updated.Difficulty != difficulty {
		t.Fatalf("expected difficulty %v, got %+v", difficulty, updated.Difficulty)
	}
}
