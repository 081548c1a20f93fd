package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Search tuning. Short queries match better on trigrams, longer ones on
// full text.
const (
	MinQueryLength      = 3
	MaxQueryLength      = 50
	MaxSearchResults    = 10
	shortQueryMax       = 8
	similarityFloor     = 0.1
	similarityThreshold = 0.7
)

// ErrQueryTooShort is returned when a suggestion query is below the minimum length.
var ErrQueryTooShort = errors.New("search query too short")

const movieColumns = `id, tmdb_id, title, original_title, language, original_language,
    release_date, genres, runtime, overview, poster_url, backdrop_url,
    vote_average, vote_count, difficulty, author, created_at, updated_at`

// UpsertMovie inserts a movie or refreshes its metadata when the TMDB ID is
// already known. The movie ID is populated on return.
func (s *Store) UpsertMovie(ctx context.Context, movie *Movie) error {
	if movie == nil {
		return errors.New("movie is nil")
	}
	if movie.TMDBID <= 0 {
		return errors.New("movie tmdb_id is required")
	}
	if strings.TrimSpace(movie.Title) == "" {
		return errors.New("movie title is required")
	}
	if movie.ReleaseDate.IsZero() {
		return errors.New("movie release date is required")
	}
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}

	err := s.pool.QueryRow(
		ctx,
		`INSERT INTO movies (
            id, tmdb_id, title, original_title, language, original_language,
            release_date, genres, runtime, overview, poster_url, backdrop_url,
            vote_average, vote_count, author
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (tmdb_id) DO UPDATE SET
            title = EXCLUDED.title,
            original_title = EXCLUDED.original_title,
            language = EXCLUDED.language,
            original_language = EXCLUDED.original_language,
            release_date = EXCLUDED.release_date,
            genres = EXCLUDED.genres,
            runtime = EXCLUDED.runtime,
            overview = EXCLUDED.overview,
            poster_url = EXCLUDED.poster_url,
            backdrop_url = EXCLUDED.backdrop_url,
            vote_average = EXCLUDED.vote_average,
            vote_count = EXCLUDED.vote_count,
            author = EXCLUDED.author,
            updated_at = now()
        RETURNING id`,
		movie.ID,
		movie.TMDBID,
		movie.Title,
		movie.OriginalTitle,
		movie.Language,
		movie.OriginalLanguage,
		movie.ReleaseDate,
		movie.Genres,
		movie.Runtime,
		movie.Overview,
		movie.PosterURL,
		movie.BackdropURL,
		movie.VoteAverage,
		movie.VoteCount,
		movie.Author,
	).Scan(&movie.ID)
	if err != nil {
		return fmt.Errorf("upsert movie %d: %w", movie.TMDBID, err)
	}
	return nil
}

// MovieByTMDBID fetches a movie by its TMDB identifier, or nil when unknown.
func (s *Store) MovieByTMDBID(ctx context.Context, tmdbID int64) (*Movie, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies WHERE tmdb_id = $1`, tmdbID)
	movie, err := scanMovie(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie by tmdb id: %w", err)
	}
	return movie, nil
}

// MovieByID fetches a movie by internal identifier, or nil when unknown.
func (s *Store) MovieByID(ctx context.Context, id string) (*Movie, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	movie, err := scanMovie(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie by id: %w", err)
	}
	return movie, nil
}

// SetMovieDifficulty stores the overall difficulty computed from the latest
// linguistic analysis.
func (s *Store) SetMovieDifficulty(ctx context.Context, id string, difficulty *float64) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE movies SET difficulty = $1, updated_at = now() WHERE id = $2`,
		difficulty,
		id,
	)
	if err != nil {
		return fmt.Errorf("set movie difficulty: %w", err)
	}
	return nil
}

// SearchSuggestions performs the hybrid title search. Queries up to eight
// characters rank by trigram distance with a similarity floor; longer
// queries blend full-text rank and word similarity, each boosted by
// log-scaled vote count, and keep the better of the two scores.
func (s *Store) SearchSuggestions(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	if len(query) > MaxQueryLength {
		query = query[:MaxQueryLength]
	}

	var (
		rows pgx.Rows
		err  error
	)
	if len(query) <= shortQueryMax {
		rows, err = s.pool.Query(
			ctx,
			`SELECT `+movieColumns+`
             FROM movies
             WHERE similarity(title, $1) >= $2
             ORDER BY (title <-> $1) ASC, vote_count DESC
             LIMIT $3`,
			query,
			similarityFloor,
			MaxSearchResults,
		)
	} else {
		rows, err = s.pool.Query(
			ctx,
			`SELECT `+movieColumns+` FROM (
                 SELECT m.*,
                     ts_rank(search_vector, websearch_to_tsquery('english', $1), 32)
                         * ln(greatest(vote_count, 1) + 1.0) AS rank_score,
                     word_similarity(lower(title), lower($1)) AS title_sim
                 FROM movies m
                 WHERE search_vector @@ websearch_to_tsquery('english', $1)
                    OR word_similarity(lower(title), lower($1)) > $2
             ) ranked
             WHERE rank_score > 0 OR title_sim > $2
             ORDER BY greatest(rank_score, title_sim * ln(greatest(vote_count, 1) + 1.0)) DESC,
                      vote_count DESC
             LIMIT $3`,
			query,
			similarityThreshold,
			MaxSearchResults,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	var suggestions []Suggestion
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, Suggestion{
			Kind:       "movie",
			ID:         movie.TMDBID,
			Title:      movie.Title,
			Year:       movie.Year(),
			Difficulty: movie.Difficulty,
			Author:     movie.Author,
			PosterURL:  movie.PosterURL,
			Tags:       movie.Genres,
		})
	}
	return suggestions, rows.Err()
}

// MoviesMissingSubtitles lists movies without an active processed subtitle
// in the given language, most popular first, with the total match count.
func (s *Store) MoviesMissingSubtitles(ctx context.Context, language string, page, limit int) ([]*Movie, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit

	filter := `NOT EXISTS (
        SELECT 1 FROM subtitles s
        WHERE s.movie_id = movies.id
          AND s.language = $1
          AND s.is_active
          AND s.processing_status = $2
    )`

	var total int64
	err := s.pool.QueryRow(
		ctx,
		`SELECT COUNT(1) FROM movies WHERE `+filter,
		language,
		ProcessingDone,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count missing subtitles: %w", err)
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT `+movieColumns+` FROM movies
         WHERE `+filter+`
         ORDER BY vote_count DESC, release_date DESC
         LIMIT $3 OFFSET $4`,
		language,
		ProcessingDone,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list missing subtitles: %w", err)
	}
	defer rows.Close()

	var movies []*Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		movies = append(movies, movie)
	}
	return movies, total, rows.Err()
}

func scanMovie(scanner interface{ Scan(dest ...any) error }) (*Movie, error) {
	var (
		movie       Movie
		releaseDate time.Time
	)
	if err := scanner.Scan(
		&movie.ID,
		&movie.TMDBID,
		&movie.Title,
		&movie.OriginalTitle,
		&movie.Language,
		&movie.OriginalLanguage,
		&releaseDate,
		&movie.Genres,
		&movie.Runtime,
		&movie.Overview,
		&movie.PosterURL,
		&movie.BackdropURL,
		&movie.VoteAverage,
		&movie.VoteCount,
		&movie.Difficulty,
		&movie.Author,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	); err != nil {
		return nil, err
	}
	movie.ReleaseDate = releaseDate
	return &movie, nil
}
