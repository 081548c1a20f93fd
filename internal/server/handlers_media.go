package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediaindex/internal/media"
)

type movieResponse struct {
	TMDBID           int64    `json:"tmdb_id"`
	Title            string   `json:"title"`
	OriginalTitle    string   `json:"original_title,omitempty"`
	Language         string   `json:"language"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	ReleaseDate      string   `json:"release_date"`
	Year             int      `json:"year"`
	Genres           []string `json:"genres,omitempty"`
	Runtime          *int     `json:"runtime,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	PosterURL        string   `json:"poster_url,omitempty"`
	BackdropURL      string   `json:"backdrop_url,omitempty"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int64    `json:"vote_count"`
	Difficulty       *float64 `json:"difficulty,omitempty"`
	Author           string   `json:"author,omitempty"`
}

func movieToResponse(movie *media.Movie) movieResponse {
	return movieResponse{
		TMDBID:           movie.TMDBID,
		Title:            movie.Title,
		OriginalTitle:    movie.OriginalTitle,
		Language:         movie.Language,
		OriginalLanguage: movie.OriginalLanguage,
		ReleaseDate:      movie.ReleaseDate.Format("2006-01-02"),
		Year:             movie.Year(),
		Genres:           movie.Genres,
		Runtime:          movie.Runtime,
		Overview:         movie.Overview,
		PosterURL:        movie.PosterURL,
		BackdropURL:      movie.BackdropURL,
		VoteAverage:      movie.VoteAverage,
		VoteCount:        movie.VoteCount,
		Difficulty:       movie.Difficulty,
		Author:           movie.Author,
	}
}

type syncRecordResponse struct {
	JobID           string     `json:"job_id"`
	Year            int        `json:"year"`
	Language        string     `json:"language"`
	Priority        int        `json:"priority"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	LastAttempt     *time.Time `json:"last_attempt,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	MoviesProcessed int        `json:"movies_processed"`
	MoviesFailed    int        `json:"movies_failed"`
}

func syncRecordToResponse(record *media.SyncRecord) syncRecordResponse {
	return syncRecordResponse{
		JobID:           record.JobID,
		Year:            record.Year,
		Language:        record.Language,
		Priority:        record.Priority,
		Status:          string(record.Status),
		Attempts:        record.Attempts,
		LastAttempt:     record.LastAttempt,
		ErrorMessage:    record.ErrorMessage,
		MoviesProcessed: record.MoviesProcessed,
		MoviesFailed:    record.MoviesFailed,
	}
}

func parseTMDBID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tmdbID"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleMovieGet(w http.ResponseWriter, r *http.Request) {
	tmdbID, ok := parseTMDBID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid tmdb id")
		return
	}
	movie, err := s.catalog.MovieByTMDBID(r.Context(), tmdbID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if movie == nil {
		s.writeError(w, http.StatusNotFound, "movie not found")
		return
	}
	s.writeJSON(w, http.StatusOK, movieToResponse(movie))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	suggestions, err := s.catalog.SearchSuggestions(r.Context(), query)
	if err != nil {
		if err == media.ErrQueryTooShort {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if suggestions == nil {
		suggestions = []media.Suggestion{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": suggestions})
}

type syncYearRequest struct {
	Year       int `json:"year"`
	MaxResults int `json:"max_results,omitempty"`
}

func (s *Server) handleSyncYear(w http.ResponseWriter, r *http.Request) {
	var req syncYearRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	record, err := s.sync.EnqueueYear(r.Context(), req.Year, req.MaxResults, 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, syncRecordToResponse(record))
}

type syncYearRangeRequest struct {
	StartYear  int `json:"start_year"`
	EndYear    int `json:"end_year"`
	MaxResults int `json:"max_results,omitempty"`
}

func (s *Server) handleSyncYearRange(w http.ResponseWriter, r *http.Request) {
	var req syncYearRangeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	records, err := s.sync.EnqueueYearRange(r.Context(), req.StartYear, req.EndYear, req.MaxResults)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload := make([]syncRecordResponse, 0, len(records))
	for _, record := range records {
		payload = append(payload, syncRecordToResponse(record))
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"jobs": payload})
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	retried, err := s.sync.RetryFailed(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]int{"retried": retried})
}

func (s *Server) handleSyncJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	record, err := s.sync.Status(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "sync job not found")
		return
	}

	payload := map[string]any{"record": syncRecordToResponse(record)}
	if job, err := s.broker.Fetch(r.Context(), jobID); err == nil && job != nil {
		payload["job"] = map[string]any{
			"id":          job.ID,
			"queue":       job.Queue,
			"status":      string(job.Status),
			"error":       job.Error,
			"enqueued_at": job.EnqueuedAt,
			"started_at":  job.StartedAt,
			"ended_at":    job.EndedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}
