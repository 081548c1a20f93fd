package tmdbsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
	"mediaindex/internal/tmdb"
)

// Sync counters are flushed to the tracking record every progressInterval
// movies so observers see movement on long runs.
const progressInterval = 25

// HandleYearSync executes one year sync job: walk the discover stream for the
// year, fetch full details per movie, and upsert each into the catalog.
// Per-movie failures are counted and logged but do not abort the run. A
// failure of the discover stream itself marks the run failed and is returned
// so the broker records the job as failed.
func (s *Service) HandleYearSync(ctx context.Context, job *jobs.Job) error {
	var payload YearSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode year sync payload: %w", err)
	}

	record, err := s.catalog.SyncRecordByJobID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record == nil {
		record, err = s.catalog.UpsertSyncRecord(ctx, payload.Year, payload.Language, job.ID, job.Priority)
		if err != nil {
			return err
		}
	}
	if err := s.catalog.MarkSyncStarted(ctx, record.ID); err != nil {
		return err
	}

	logger := s.logger.With(
		logging.Int("year", payload.Year),
		logging.String(logging.FieldLanguage, payload.Language),
		logging.String(logging.FieldJobID, job.ID))
	logger.Info("year sync started", logging.Int("max_results", payload.MaxResults))

	processed := 0
	failed := 0
	err = s.tmdb.ForEachMovieInYear(ctx, payload.Year, payload.MaxResults, func(discovered tmdb.DiscoverMovie) error {
		if err := s.syncMovie(ctx, discovered, payload.Language); err != nil {
			failed++
			logger.Warn("movie sync failed",
				logging.Int64(logging.FieldTMDBID, discovered.ID),
				logging.String("title", discovered.Title),
				logging.Error(err))
		} else {
			processed++
		}
		if (processed+failed)%progressInterval == 0 {
			if err := s.catalog.UpdateSyncProgress(ctx, record.ID, processed, failed); err != nil {
				logger.Warn("progress update failed", logging.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		if failErr := s.catalog.FailSync(ctx, record.ID, err.Error()); failErr != nil {
			logger.Error("recording sync failure failed", logging.Error(failErr))
		}
		return fmt.Errorf("year sync %d: %w", payload.Year, err)
	}

	if err := s.catalog.CompleteSync(ctx, record.ID, processed, failed); err != nil {
		return err
	}
	logger.Info("year sync completed",
		logging.Int("movies_processed", processed),
		logging.Int("movies_failed", failed))
	return nil
}

func (s *Service) syncMovie(ctx context.Context, discovered tmdb.DiscoverMovie, language string) error {
	details, err := s.tmdb.MovieDetails(ctx, discovered.ID)
	if err != nil {
		return fmt.Errorf("fetch details: %w", err)
	}
	movie, err := buildMovie(details, language)
	if err != nil {
		return err
	}
	if err := s.catalog.UpsertMovie(ctx, movie); err != nil {
		return err
	}
	return nil
}

// buildMovie maps a TMDB details payload onto a catalog entry. Movies without
// a release date are rejected because the year index and the sync record
// semantics both hang off it.
func buildMovie(details *tmdb.MovieDetails, language string) (*media.Movie, error) {
	releaseDate := strings.TrimSpace(details.ReleaseDate)
	if releaseDate == "" {
		return nil, fmt.Errorf("movie %d has no release date", details.ID)
	}
	released, err := time.Parse("2006-01-02", releaseDate)
	if err != nil {
		return nil, fmt.Errorf("movie %d release date %q: %w", details.ID, releaseDate, err)
	}

	var runtime *int
	if details.Runtime > 0 {
		minutes := details.Runtime
		runtime = &minutes
	}

	return &media.Movie{
		TMDBID:           details.ID,
		Title:            details.Title,
		OriginalTitle:    details.OriginalTitle,
		Language:         language,
		OriginalLanguage: details.OriginalLanguage,
		ReleaseDate:      released,
		Genres:           details.GenreNames(),
		Runtime:          runtime,
		Overview:         details.Overview,
		PosterURL:        tmdb.ImageURL(details.PosterPath),
		BackdropURL:      tmdb.ImageURL(details.BackdropPath),
		VoteAverage:      details.VoteAverage,
		VoteCount:        details.VoteCount,
		Author:           details.Directors(),
	}, nil
}
