package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mediaindex/internal/jobs"
	"mediaindex/internal/langanalysis"
)

type processRequest struct {
	SubtitleID string `json:"subtitle_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type analyzeTextRequest struct {
	Text string `json:"text"`
}

// handleAnalyzeText profiles ad-hoc text synchronously without persisting
// anything.
func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeTextRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	profile, err := s.linguistic.AnalyzeText(req.Text)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// handleProcessSubtitle analyzes one subtitle synchronously.
func (s *Server) handleProcessSubtitle(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SubtitleID == "" {
		s.writeError(w, http.StatusBadRequest, "subtitle_id is required")
		return
	}
	if err := s.linguistic.ProcessSubtitle(r.Context(), req.SubtitleID); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"subtitle_id": req.SubtitleID, "status": "processed"})
}

// handleProcessBulk queues a batch processing job.
func (s *Server) handleProcessBulk(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.enqueueProcessing(w, r, langanalysis.ProcessPayload{Limit: req.Limit})
}

func (s *Server) enqueueProcessing(w http.ResponseWriter, r *http.Request, payload langanalysis.ProcessPayload) {
	encoded, err := jobs.MarshalPayload(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	job := &jobs.Job{
		ID:      uuid.NewString(),
		Queue:   jobs.QueueSubtitles,
		Type:    langanalysis.JobTypeProcess,
		Payload: encoded,
	}
	if err := s.broker.Enqueue(r.Context(), job); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// handleProcessMovie analyzes the movie's active subtitle synchronously.
func (s *Server) handleProcessMovie(w http.ResponseWriter, r *http.Request) {
	tmdbID, ok := parseTMDBID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid tmdb id")
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = "en"
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
	subtitle := s.activeSubtitle(r, movie.ID, language)
	if subtitle == nil {
		s.writeError(w, http.StatusNotFound, "no active subtitle for movie")
		return
	}
	if err := s.linguistic.ProcessSubtitle(r.Context(), subtitle.ID); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"subtitle_id": subtitle.ID, "status": "processed"})
}

// handleMovieProfile returns the latest linguistic profile for a movie.
func (s *Server) handleMovieProfile(w http.ResponseWriter, r *http.Request) {
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
	analysis, err := s.catalog.LatestAnalysis(r.Context(), movie.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analysis == nil {
		s.writeError(w, http.StatusNotFound, "no analysis available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tmdb_id":          movie.TMDBID,
		"analysis_version": analysis.Version,
		"subtitle_id":      analysis.SubtitleID,
		"created_at":       analysis.CreatedAt.Format(time.RFC3339),
		"profile":          json.RawMessage(analysis.LexicalAnalysis),
	})
}
