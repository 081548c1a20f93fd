package subtitles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
	"mediaindex/internal/subtitles/opensubtitles"
)

// JobTypeDownload identifies subtitle download jobs on the subtitles queue.
const JobTypeDownload = "download_subtitles"

// missingPageSize bounds one catalog page while walking movies that still
// need subtitles.
const missingPageSize = 50

// Searcher is the OpenSubtitles surface the download pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error)
	Download(ctx context.Context, fileID int64) (opensubtitles.DownloadResult, error)
}

// Catalog is the slice of the media store the subtitle pipeline touches.
type Catalog interface {
	MovieByTMDBID(ctx context.Context, tmdbID int64) (*media.Movie, error)
	MoviesMissingSubtitles(ctx context.Context, language string, page, limit int) ([]*media.Movie, int64, error)
	InsertSubtitle(ctx context.Context, subtitle *media.Subtitle) error
	DeactivateOtherSubtitles(ctx context.Context, movieID, language, keepID string) error
}

// Service searches, downloads, and stores subtitles for catalog movies.
type Service struct {
	catalog   Catalog
	client    Searcher
	storage   *Storage
	languages []string
	logger    *slog.Logger
}

// NewService creates the subtitle service. languages is the default set used
// when a request does not name any.
func NewService(catalog Catalog, client Searcher, storage *Storage, languages []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		catalog:   catalog,
		client:    client,
		storage:   storage,
		languages: languages,
		logger:    logger.With(logging.String(logging.FieldComponent, "subtitles")),
	}
}

// DownloadStats summarizes one download sweep.
type DownloadStats struct {
	Attempted  int `json:"attempted"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// DownloadPayload is the JSON payload carried by download jobs. A zero
// TMDBID means a sweep over every movie missing subtitles.
type DownloadPayload struct {
	TMDBID       int64    `json:"tmdb_id,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	MaxDownloads int      `json:"max_downloads,omitempty"`
}

// HandleDownload executes one download job.
func (s *Service) HandleDownload(ctx context.Context, job *jobs.Job) error {
	var payload DownloadPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode download payload: %w", err)
	}
	languages := payload.Languages
	if len(languages) == 0 {
		languages = s.languages
	}

	if payload.TMDBID > 0 {
		movie, err := s.catalog.MovieByTMDBID(ctx, payload.TMDBID)
		if err != nil {
			return err
		}
		if movie == nil {
			return fmt.Errorf("movie %d not in catalog", payload.TMDBID)
		}
		_, err = s.DownloadForMovie(ctx, movie, languages)
		return err
	}

	stats, err := s.DownloadMissing(ctx, languages, payload.MaxDownloads)
	if err != nil {
		return err
	}
	s.logger.Info("download sweep finished",
		logging.Int("attempted", stats.Attempted),
		logging.Int("downloaded", stats.Downloaded),
		logging.Int("skipped", stats.Skipped),
		logging.Int("failed", stats.Failed))
	return nil
}

// DownloadMissing sweeps movies without an active processed subtitle and
// downloads the best candidate for each, most popular movie first. A
// positive maxDownloads caps successful downloads across all languages.
func (s *Service) DownloadMissing(ctx context.Context, languages []string, maxDownloads int) (DownloadStats, error) {
	if len(languages) == 0 {
		languages = s.languages
	}
	var stats DownloadStats
	for _, language := range languages {
		page := 1
		for {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			movies, _, err := s.catalog.MoviesMissingSubtitles(ctx, language, page, missingPageSize)
			if err != nil {
				return stats, err
			}
			if len(movies) == 0 {
				break
			}
			for _, movie := range movies {
				if maxDownloads > 0 && stats.Downloaded >= maxDownloads {
					return stats, nil
				}
				stats.Attempted++
				downloaded, err := s.downloadLanguage(ctx, movie, language)
				switch {
				case err != nil:
					stats.Failed++
					s.logger.Warn("subtitle download failed",
						logging.Int64(logging.FieldTMDBID, movie.TMDBID),
						logging.String(logging.FieldLanguage, language),
						logging.Error(err))
				case downloaded:
					stats.Downloaded++
				default:
					stats.Skipped++
				}
			}
			page++
		}
	}
	return stats, nil
}

// DownloadForMovie downloads the best available subtitle for each language.
// Returns how many subtitles were stored.
func (s *Service) DownloadForMovie(ctx context.Context, movie *media.Movie, languages []string) (int, error) {
	if len(languages) == 0 {
		languages = s.languages
	}
	stored := 0
	for _, language := range languages {
		downloaded, err := s.downloadLanguage(ctx, movie, language)
		if err != nil {
			return stored, err
		}
		if downloaded {
			stored++
		}
	}
	return stored, nil
}

// downloadLanguage fetches the best candidate for one language. Returns
// false without error when nothing usable exists or the content is already
// stored.
func (s *Service) downloadLanguage(ctx context.Context, movie *media.Movie, language string) (bool, error) {
	if s.client == nil {
		return false, errors.New("subtitle search client not configured")
	}
	req := opensubtitles.SearchRequest{
		TMDBID:    movie.TMDBID,
		Languages: []string{language},
	}
	if year := movie.Year(); year > 0 {
		req.Year = strconv.Itoa(year)
	}
	resp, err := s.client.Search(ctx, req)
	if err != nil {
		return false, err
	}
	ranked := rankCandidates(resp.Subtitles)
	if len(ranked) == 0 {
		return false, nil
	}
	best := ranked[0]

	result, err := s.client.Download(ctx, best.FileID)
	if err != nil {
		return false, err
	}
	if len(result.Data) == 0 {
		return false, errors.New("empty subtitle payload")
	}

	format := media.ParseSubtitleFormat(fileExtension(result.FileName))
	path, err := s.storage.Save(movie.ID, language, best.ID, format, result.Data)
	if err != nil {
		return false, err
	}

	score := qualityScore(best)
	metadata, err := json.Marshal(map[string]any{
		"file_id":            best.FileID,
		"release":            best.Release,
		"downloads":          best.Downloads,
		"ratings":            best.Ratings,
		"votes":              best.Votes,
		"from_trusted":       best.FromTrusted,
		"hd":                 best.HD,
		"ai_translated":      best.AITranslated,
		"machine_translated": best.MachineTranslated,
		"file_name":          result.FileName,
	})
	if err != nil {
		return false, fmt.Errorf("encode subtitle metadata: %w", err)
	}

	subtitle := &media.Subtitle{
		MovieID:      movie.ID,
		Path:         path,
		Source:       "opensubtitles",
		Format:       format,
		Version:      best.ID,
		Language:     language,
		ContentHash:  ContentHash(result.Data),
		QualityScore: &score,
		Metadata:     metadata,
		IsActive:     true,
	}
	if err := s.catalog.InsertSubtitle(ctx, subtitle); err != nil {
		if errors.Is(err, media.ErrDuplicateSubtitle) {
			s.logger.Debug("subtitle content already stored",
				logging.Int64(logging.FieldTMDBID, movie.TMDBID),
				logging.String(logging.FieldLanguage, language))
			return false, nil
		}
		return false, err
	}
	if err := s.catalog.DeactivateOtherSubtitles(ctx, movie.ID, language, subtitle.ID); err != nil {
		return false, err
	}

	s.logger.Info("subtitle stored",
		logging.Int64(logging.FieldTMDBID, movie.TMDBID),
		logging.String(logging.FieldLanguage, language),
		logging.String("release", best.Release),
		logging.Int("downloads", best.Downloads))
	return true, nil
}

// IngestUpload stores a manually uploaded subtitle and makes it active.
func (s *Service) IngestUpload(ctx context.Context, tmdbID int64, language, fileName string, data []byte) (*media.Subtitle, error) {
	if len(data) == 0 {
		return nil, errors.New("subtitle payload is empty")
	}
	movie, err := s.catalog.MovieByTMDBID(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, fmt.Errorf("movie %d not in catalog", tmdbID)
	}

	format := media.ParseSubtitleFormat(fileExtension(fileName))
	path, err := s.storage.Save(movie.ID, language, "upload", format, data)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]any{"file_name": fileName})
	if err != nil {
		return nil, fmt.Errorf("encode subtitle metadata: %w", err)
	}
	subtitle := &media.Subtitle{
		MovieID:     movie.ID,
		Path:        path,
		Source:      "upload",
		Format:      format,
		Version:     "upload",
		Language:    language,
		ContentHash: ContentHash(data),
		Metadata:    metadata,
		IsActive:    true,
	}
	if err := s.catalog.InsertSubtitle(ctx, subtitle); err != nil {
		return nil, err
	}
	if err := s.catalog.DeactivateOtherSubtitles(ctx, movie.ID, language, subtitle.ID); err != nil {
		return nil, err
	}
	return subtitle, nil
}

func fileExtension(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		switch name[i] {
		case '.':
			return name[i+1:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
