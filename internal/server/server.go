package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mediaindex/internal/jobs"
	"mediaindex/internal/langanalysis"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
)

// Catalog is the slice of the media store the API reads.
type Catalog interface {
	MovieByTMDBID(ctx context.Context, tmdbID int64) (*media.Movie, error)
	SearchSuggestions(ctx context.Context, query string) ([]media.Suggestion, error)
	MoviesMissingSubtitles(ctx context.Context, language string, page, limit int) ([]*media.Movie, int64, error)
	SubtitlesForMovie(ctx context.Context, movieID, language string) ([]*media.Subtitle, error)
	ListSyncRecords(ctx context.Context) ([]*media.SyncRecord, error)
	LatestAnalysis(ctx context.Context, movieID string) (*media.AnalysisResult, error)
	Health(ctx context.Context) error
}

// SyncService queues TMDB year sync runs.
type SyncService interface {
	EnqueueYear(ctx context.Context, year, maxResults, priority int) (*media.SyncRecord, error)
	EnqueueYearRange(ctx context.Context, startYear, endYear, maxResults int) ([]*media.SyncRecord, error)
	RetryFailed(ctx context.Context) (int, error)
	Status(ctx context.Context, jobID string) (*media.SyncRecord, error)
}

// SubtitleService ingests uploaded subtitle files and downloads on demand.
type SubtitleService interface {
	IngestUpload(ctx context.Context, tmdbID int64, language, fileName string, data []byte) (*media.Subtitle, error)
	DownloadForMovie(ctx context.Context, movie *media.Movie, languages []string) (int, error)
}

// LinguisticService runs analysis synchronously and reports the backlog.
type LinguisticService interface {
	AnalyzeText(text string) (*langanalysis.Profile, error)
	ProcessSubtitle(ctx context.Context, subtitleID string) error
	Backlog(ctx context.Context) (int64, error)
}

// StatusFunc reports daemon state for GET /api/status.
type StatusFunc func(ctx context.Context) any

// Options bundle the dependencies of the API server.
type Options struct {
	Bind       string
	Token      string
	Catalog    Catalog
	Sync       SyncService
	Subtitles  SubtitleService
	Linguistic LinguisticService
	Broker     jobs.Broker
	Status     StatusFunc
	Logger     *slog.Logger
}

// Server is the HTTP API of the media index daemon.
type Server struct {
	bind       string
	token      string
	catalog    Catalog
	sync       SyncService
	subtitles  SubtitleService
	linguistic LinguisticService
	broker     jobs.Broker
	status     StatusFunc
	logger     *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New creates the API server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:       opts.Bind,
		token:      opts.Token,
		catalog:    opts.Catalog,
		sync:       opts.Sync,
		subtitles:  opts.Subtitles,
		linguistic: opts.Linguistic,
		broker:     opts.Broker,
		status:     opts.Status,
		logger:     logger.With(logging.String(logging.FieldComponent, "api")),
	}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/status", s.handleStatus)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Route("/media", func(r chi.Router) {
			r.Get("/get/{tmdbID}", s.handleMovieGet)
			r.Get("/suggest", s.handleSuggest)
			r.Post("/movie-cache/update/year", s.handleSyncYear)
			r.Post("/movie-cache/update/year-range", s.handleSyncYearRange)
			r.Post("/movie-cache/retry-failed", s.handleRetryFailed)
			r.Get("/movie-cache/update/{jobID}", s.handleSyncJobStatus)
		})

		r.Route("/subtitles", func(r chi.Router) {
			r.Get("/media/missing-subtitles", s.handleMissingSubtitles)
			r.Get("/media/subtitles/{tmdbID}", s.handleSubtitlesForMovie)
			r.Post("/media/subtitles/{tmdbID}", s.handleSubtitleUpload)
			r.Post("/media/subtitles/{tmdbID}/sync", s.handleSubtitleSyncNow)
			r.Get("/sync/debug", s.handleSyncDebug)
			r.Post("/download/start", s.handleDownloadStart)
		})

		r.Route("/linguistic", func(r chi.Router) {
			r.Post("/process", s.handleAnalyzeText)
			r.Get("/media/movie/{tmdbID}", s.handleMovieProfile)
			r.Post("/media/movie/{tmdbID}/process", s.handleProcessMovie)
		})

		r.Route("/process", func(r chi.Router) {
			r.Post("/subtitle", s.handleProcessSubtitle)
			r.Post("/bulk", s.handleProcessBulk)
		})
	})

	return r
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down and closes the listener.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requireToken validates the bearer token when one is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true
	if err := s.catalog.Health(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if err := s.broker.Health(r.Context()); err != nil {
		checks["broker"] = err.Error()
		healthy = false
	} else {
		checks["broker"] = "ok"
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if s.status != nil {
		payload["daemon"] = s.status(r.Context())
	}
	if stats, err := s.broker.Stats(r.Context()); err == nil {
		payload["queues"] = stats
	}
	if s.linguistic != nil {
		if backlog, err := s.linguistic.Backlog(r.Context()); err == nil {
			payload["processing_backlog"] = backlog
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}
