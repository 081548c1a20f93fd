package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"mediaindex/internal/jobs"
	"mediaindex/internal/media"
	"mediaindex/internal/subtitles"
)

// maxUploadBytes bounds uploaded subtitle files. Subtitles are text; a few
// megabytes is already generous.
const maxUploadBytes = 10 << 20

type subtitleResponse struct {
	ID               string     `json:"id"`
	Language         string     `json:"language"`
	Format           string     `json:"format"`
	Version          string     `json:"version"`
	Source           string     `json:"source"`
	QualityScore     *float64   `json:"quality_score,omitempty"`
	IsActive         bool       `json:"is_active"`
	ProcessingStatus string     `json:"processing_status"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func subtitleToResponse(subtitle *media.Subtitle) subtitleResponse {
	return subtitleResponse{
		ID:               subtitle.ID,
		Language:         subtitle.Language,
		Format:           string(subtitle.Format),
		Version:          subtitle.Version,
		Source:           subtitle.Source,
		QualityScore:     subtitle.QualityScore,
		IsActive:         subtitle.IsActive,
		ProcessingStatus: string(subtitle.ProcessingStatus),
		ProcessedAt:      subtitle.ProcessedAt,
		CreatedAt:        subtitle.CreatedAt,
	}
}

func (s *Server) handleMissingSubtitles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	language := query.Get("language")
	if language == "" {
		language = "en"
	}
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	movies, total, err := s.catalog.MoviesMissingSubtitles(r.Context(), language, page, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results := make([]movieResponse, 0, len(movies))
	for _, movie := range movies {
		results = append(results, movieToResponse(movie))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results":  results,
		"total":    total,
		"language": language,
	})
}

func (s *Server) handleSubtitlesForMovie(w http.ResponseWriter, r *http.Request) {
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
	list, err := s.catalog.SubtitlesForMovie(r.Context(), movie.ID, r.URL.Query().Get("language"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results := make([]subtitleResponse, 0, len(list))
	for _, subtitle := range list {
		results = append(results, subtitleToResponse(subtitle))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSubtitleUpload(w http.ResponseWriter, r *http.Request) {
	tmdbID, ok := parseTMDBID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid tmdb id")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	language := r.FormValue("language")
	if language == "" {
		s.writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "subtitle file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	subtitle, err := s.subtitles.IngestUpload(r.Context(), tmdbID, language, header.Filename, data)
	if err != nil {
		if err == media.ErrDuplicateSubtitle {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, subtitleToResponse(subtitle))
}

// handleSubtitleSyncNow searches, downloads, and stores the best subtitle for
// one movie synchronously. When an active subtitle already exists for the
// language it is returned as-is.
func (s *Server) handleSubtitleSyncNow(w http.ResponseWriter, r *http.Request) {
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

	if existing := s.activeSubtitle(r, movie.ID, language); existing != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"subtitle": subtitleToResponse(existing), "downloaded": false})
		return
	}

	stored, err := s.subtitles.DownloadForMovie(r.Context(), movie, []string{language})
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if stored == 0 {
		s.writeError(w, http.StatusNotFound, "no usable subtitle found")
		return
	}
	subtitle := s.activeSubtitle(r, movie.ID, language)
	if subtitle == nil {
		s.writeError(w, http.StatusInternalServerError, "subtitle stored but not found")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"subtitle": subtitleToResponse(subtitle), "downloaded": true})
}

func (s *Server) activeSubtitle(r *http.Request, movieID, language string) *media.Subtitle {
	list, err := s.catalog.SubtitlesForMovie(r.Context(), movieID, language)
	if err != nil {
		return nil
	}
	for _, subtitle := range list {
		if subtitle.IsActive {
			return subtitle
		}
	}
	return nil
}

func (s *Server) handleSyncDebug(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.ListSyncRecords(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]syncRecordResponse, 0, len(records))
	for _, record := range records {
		payload = append(payload, syncRecordToResponse(record))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sync_records": payload})
}

type downloadStartRequest struct {
	TMDBID       int64    `json:"tmdb_id,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	MaxDownloads int      `json:"max_downloads,omitempty"`
}

func (s *Server) handleDownloadStart(w http.ResponseWriter, r *http.Request) {
	var req downloadStartRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	payload, err := jobs.MarshalPayload(subtitles.DownloadPayload{
		TMDBID:       req.TMDBID,
		Languages:    req.Languages,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	job := &jobs.Job{
		ID:      uuid.NewString(),
		Queue:   jobs.QueueSubtitles,
		Type:    subtitles.JobTypeDownload,
		Payload: payload,
	}
	if err := s.broker.Enqueue(r.Context(), job); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}
