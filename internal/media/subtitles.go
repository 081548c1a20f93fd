package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const subtitleColumns = `id, movie_id, path, source, format, version, language,
    content_hash, quality_score, metadata, is_active, processing_status,
    processing_error, processing_attempts, last_processing_attempt,
    processed_at, created_at, updated_at`

// InsertSubtitle stores a new subtitle record. A duplicate
// (movie, language, content hash) returns ErrDuplicateSubtitle.
func (s *Store) InsertSubtitle(ctx context.Context, subtitle *Subtitle) error {
	if subtitle == nil {
		return errors.New("subtitle is nil")
	}
	if subtitle.MovieID == "" {
		return errors.New("subtitle movie id is required")
	}
	if subtitle.ContentHash == "" {
		return errors.New("subtitle content hash is required")
	}
	if subtitle.ID == "" {
		subtitle.ID = uuid.NewString()
	}
	if subtitle.Format == "" {
		subtitle.Format = FormatSRT
	}
	if subtitle.Version == "" {
		subtitle.Version = "1"
	}
	if subtitle.ProcessingStatus == "" {
		subtitle.ProcessingStatus = ProcessingPending
	}

	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO subtitles (
            id, movie_id, path, source, format, version, language,
            content_hash, quality_score, metadata, is_active, processing_status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		subtitle.ID,
		subtitle.MovieID,
		subtitle.Path,
		subtitle.Source,
		subtitle.Format,
		subtitle.Version,
		subtitle.Language,
		subtitle.ContentHash,
		subtitle.QualityScore,
		subtitle.Metadata,
		subtitle.IsActive,
		subtitle.ProcessingStatus,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSubtitle
		}
		return fmt.Errorf("insert subtitle: %w", err)
	}
	return nil
}

// SubtitleByID fetches one subtitle record, or nil when unknown.
func (s *Store) SubtitleByID(ctx context.Context, id string) (*Subtitle, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subtitleColumns+` FROM subtitles WHERE id = $1`, id)
	subtitle, err := scanSubtitle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subtitle: %w", err)
	}
	return subtitle, nil
}

// SubtitlesForMovie lists subtitle records for a movie, optionally filtered
// by language, newest first.
func (s *Store) SubtitlesForMovie(ctx context.Context, movieID, language string) ([]*Subtitle, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if language == "" {
		rows, err = s.pool.Query(
			ctx,
			`SELECT `+subtitleColumns+` FROM subtitles WHERE movie_id = $1 ORDER BY created_at DESC`,
			movieID,
		)
	} else {
		rows, err = s.pool.Query(
			ctx,
			`SELECT `+subtitleColumns+` FROM subtitles
             WHERE movie_id = $1 AND language = $2 ORDER BY created_at DESC`,
			movieID,
			language,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list subtitles: %w", err)
	}
	defer rows.Close()

	var subtitles []*Subtitle
	for rows.Next() {
		subtitle, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		subtitles = append(subtitles, subtitle)
	}
	return subtitles, rows.Err()
}

// ActiveSubtitle returns the active subtitle for a movie and language,
// or nil when none exists.
func (s *Store) ActiveSubtitle(ctx context.Context, movieID, language string) (*Subtitle, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT `+subtitleColumns+` FROM subtitles
         WHERE movie_id = $1 AND language = $2 AND is_active
         ORDER BY created_at DESC LIMIT 1`,
		movieID,
		language,
	)
	subtitle, err := scanSubtitle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active subtitle: %w", err)
	}
	return subtitle, nil
}

// DeactivateOtherSubtitles clears the active flag on every other subtitle
// for the same movie and language.
func (s *Store) DeactivateOtherSubtitles(ctx context.Context, movieID, language, keepID string) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE subtitles SET is_active = false, updated_at = now()
         WHERE movie_id = $1 AND language = $2 AND id <> $3 AND is_active`,
		movieID,
		language,
		keepID,
	)
	if err != nil {
		return fmt.Errorf("deactivate subtitles: %w", err)
	}
	return nil
}

// ClaimSubtitlesForProcessing atomically claims up to limit unprocessed
// subtitles: pending ones, failed ones under the attempt cap, and
// processing ones whose worker stalled past the timeout. Popular movies go
// first. The claimed rows are flipped to processing with the attempt
// counter bumped.
func (s *Store) ClaimSubtitlesForProcessing(ctx context.Context, limit, maxAttempts int, stuckAfter time.Duration) ([]*Subtitle, error) {
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().UTC().Add(-stuckAfter)

	rows, err := s.pool.Query(
		ctx,
		`UPDATE subtitles SET
            processing_status = $1,
            processing_attempts = processing_attempts + 1,
            last_processing_attempt = now(),
            updated_at = now()
         WHERE id IN (
            SELECT sub.id FROM subtitles sub
            JOIN movies m ON m.id = sub.movie_id
            WHERE sub.is_active
              AND sub.processing_attempts < $2
              AND (
                sub.processing_status = $3
                OR sub.processing_status = $4
                OR (sub.processing_status = $1 AND sub.last_processing_attempt < $5)
              )
            ORDER BY m.vote_count DESC, sub.processing_attempts, sub.created_at
            LIMIT $6
            FOR UPDATE OF sub SKIP LOCKED
         )
         RETURNING `+subtitleColumns,
		ProcessingInProgress,
		maxAttempts,
		ProcessingPending,
		ProcessingFailed,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim subtitles: %w", err)
	}
	defer rows.Close()

	var subtitles []*Subtitle
	for rows.Next() {
		subtitle, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		subtitles = append(subtitles, subtitle)
	}
	return subtitles, rows.Err()
}

// CountUnprocessedSubtitles reports how many active subtitles still need
// linguistic processing.
func (s *Store) CountUnprocessedSubtitles(ctx context.Context, maxAttempts int) (int64, error) {
	var count int64
	err := s.pool.QueryRow(
		ctx,
		`SELECT COUNT(1) FROM subtitles
         WHERE is_active AND processing_attempts < $1
           AND processing_status IN ($2, $3)`,
		maxAttempts,
		ProcessingPending,
		ProcessingFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed subtitles: %w", err)
	}
	return count, nil
}

// MarkSubtitleProcessed records a successful linguistic analysis.
func (s *Store) MarkSubtitleProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE subtitles
         SET processing_status = $1, processing_error = '', processed_at = now(), updated_at = now()
         WHERE id = $2`,
		ProcessingDone,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark subtitle processed: %w", err)
	}
	return nil
}

// MarkSubtitleProcessingFailed records a processing failure.
func (s *Store) MarkSubtitleProcessingFailed(ctx context.Context, id string, message string) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE subtitles
         SET processing_status = $1, processing_error = $2, updated_at = now()
         WHERE id = $3`,
		ProcessingFailed,
		message,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark subtitle failed: %w", err)
	}
	return nil
}

func scanSubtitle(scanner interface{ Scan(dest ...any) error }) (*Subtitle, error) {
	var subtitle Subtitle
	if err := scanner.Scan(
		&subtitle.ID,
		&subtitle.MovieID,
		&subtitle.Path,
		&subtitle.Source,
		&subtitle.Format,
		&subtitle.Version,
		&subtitle.Language,
		&subtitle.ContentHash,
		&subtitle.QualityScore,
		&subtitle.Metadata,
		&subtitle.IsActive,
		&subtitle.ProcessingStatus,
		&subtitle.ProcessingError,
		&subtitle.ProcessingAttempts,
		&subtitle.LastProcessingAttempt,
		&subtitle.ProcessedAt,
		&subtitle.CreatedAt,
		&subtitle.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &subtitle, nil
}
