package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const analysisColumns = `id, movie_id, version, kind, subtitle_id, subtitle_version,
    lexical_analysis, is_latest, created_at`

// InsertAnalysisResult stores a new analysis, demotes earlier results for
// the same movie and kind, and refreshes the movie difficulty, all in one
// transaction.
func (s *Store) InsertAnalysisResult(ctx context.Context, result *AnalysisResult, difficulty *float64) error {
	if result == nil {
		return errors.New("analysis result is nil")
	}
	if result.MovieID == "" {
		return errors.New("analysis movie id is required")
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.Kind == "" {
		result.Kind = "movie"
	}
	result.IsLatest = true

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin analysis tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(
		ctx,
		`UPDATE analysis_results SET is_latest = false
         WHERE movie_id = $1 AND kind = $2 AND is_latest`,
		result.MovieID,
		result.Kind,
	); err != nil {
		return fmt.Errorf("demote earlier analyses: %w", err)
	}

	var subtitleID any
	if result.SubtitleID != "" {
		subtitleID = result.SubtitleID
	}
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO analysis_results (
            id, movie_id, version, kind, subtitle_id, subtitle_version,
            lexical_analysis, is_latest
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, true)`,
		result.ID,
		result.MovieID,
		result.Version,
		result.Kind,
		subtitleID,
		result.SubtitleVersion,
		result.LexicalAnalysis,
	); err != nil {
		return fmt.Errorf("insert analysis result: %w", err)
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE movies SET difficulty = $1, updated_at = now() WHERE id = $2`,
		difficulty,
		result.MovieID,
	); err != nil {
		return fmt.Errorf("update movie difficulty: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit analysis tx: %w", err)
	}
	return nil
}

// LatestAnalysis returns the current analysis for a movie, or nil when none
// exists.
func (s *Store) LatestAnalysis(ctx context.Context, movieID string) (*AnalysisResult, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT `+analysisColumns+` FROM analysis_results
         WHERE movie_id = $1 AND kind = 'movie' AND is_latest
         ORDER BY created_at DESC LIMIT 1`,
		movieID,
	)
	result, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis: %w", err)
	}
	return result, nil
}

// AnalysisByVersion returns a specific analysis version for a movie, or nil.
func (s *Store) AnalysisByVersion(ctx context.Context, movieID, version string) (*AnalysisResult, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT `+analysisColumns+` FROM analysis_results
         WHERE movie_id = $1 AND kind = 'movie' AND version = $2
         ORDER BY created_at DESC LIMIT 1`,
		movieID,
		version,
	)
	result, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis by version: %w", err)
	}
	return result, nil
}

func scanAnalysis(scanner interface{ Scan(dest ...any) error }) (*AnalysisResult, error) {
	var (
		result     AnalysisResult
		subtitleID *string
	)
	if err := scanner.Scan(
		&result.ID,
		&result.MovieID,
		&result.Version,
		&result.Kind,
		&subtitleID,
		&result.SubtitleVersion,
		&result.LexicalAnalysis,
		&result.IsLatest,
		&result.CreatedAt,
	); err != nil {
		return nil, err
	}
	if subtitleID != nil {
		result.SubtitleID = *subtitleID
	}
	return &result, nil
}
