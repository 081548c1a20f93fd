package tmdbsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
	"mediaindex/internal/tmdb"
)

// JobTypeYearSync identifies year sync jobs on the tmdb_sync queue.
const JobTypeYearSync = "sync_year"

// Catalog is the slice of the media store the sync pipeline writes to.
type Catalog interface {
	UpsertMovie(ctx context.Context, movie *media.Movie) error
	UpsertSyncRecord(ctx context.Context, year int, language, jobID string, priority int) (*media.SyncRecord, error)
	SyncRecordFor(ctx context.Context, year int, language string) (*media.SyncRecord, error)
	SyncRecordByJobID(ctx context.Context, jobID string) (*media.SyncRecord, error)
	MarkSyncStarted(ctx context.Context, id string) error
	UpdateSyncProgress(ctx context.Context, id string, processed, failed int) error
	CompleteSync(ctx context.Context, id string, processed, failed int) error
	FailSync(ctx context.Context, id string, message string) error
	FailedSyncRecords(ctx context.Context, maxAttempts int) ([]*media.SyncRecord, error)
}

// Service enqueues and executes TMDB year sync runs.
type Service struct {
	catalog  Catalog
	broker   jobs.Broker
	tmdb     tmdb.Discoverer
	language string
	settings config.Sync
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the sync service. The language comes from the TMDB section and
// scopes every sync record this service touches.
func New(catalog Catalog, broker jobs.Broker, discoverer tmdb.Discoverer, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		catalog:  catalog,
		broker:   broker,
		tmdb:     discoverer,
		language: cfg.TMDB.Language,
		settings: cfg.Sync,
		logger:   logger.With(logging.String(logging.FieldComponent, "tmdbsync")),
		now:      time.Now,
	}
}

// JobID builds the deterministic job identifier for a (year, language) run.
// Re-enqueueing a year reuses the identifier so at most one job per year and
// language is ever live.
func JobID(year int, language string) string {
	return fmt.Sprintf("year_sync_%d_%s", year, language)
}

// YearSyncPayload is the JSON payload carried by year sync jobs.
type YearSyncPayload struct {
	Year       int    `json:"year"`
	Language   string `json:"language"`
	MaxResults int    `json:"max_results,omitempty"`
}

// EnqueueYear queues a sync run for one year. The tracking record is reset to
// pending and the queued job reuses the deterministic job ID.
func (s *Service) EnqueueYear(ctx context.Context, year, maxResults, priority int) (*media.SyncRecord, error) {
	if err := tmdb.ValidateYear(year); err != nil {
		return nil, err
	}
	if priority == 0 {
		priority = s.settings.BasePriority
	}

	jobID := JobID(year, s.language)
	record, err := s.catalog.UpsertSyncRecord(ctx, year, s.language, jobID, priority)
	if err != nil {
		return nil, err
	}

	payload, err := jobs.MarshalPayload(YearSyncPayload{Year: year, Language: s.language, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal year sync payload: %w", err)
	}
	job := &jobs.Job{
		ID:             jobID,
		Queue:          jobs.QueueTMDBSync,
		Type:           JobTypeYearSync,
		Payload:        payload,
		Priority:       priority,
		TimeoutSeconds: s.settings.JobTimeoutSeconds,
	}
	if err := s.broker.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue year sync %d: %w", year, err)
	}

	s.logger.Info("year sync queued",
		logging.Int("year", year),
		logging.String(logging.FieldLanguage, s.language),
		logging.Int("priority", priority),
		logging.String(logging.FieldJobID, jobID))
	return record, nil
}

// EnqueueYearRange queues sync runs for every year in [startYear, endYear],
// newest year first. Recent years get a higher priority so they drain before
// the back catalog. A positive maxResults is split evenly across the years,
// with the remainder going to the oldest year.
func (s *Service) EnqueueYearRange(ctx context.Context, startYear, endYear, maxResults int) ([]*media.SyncRecord, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("start year %d after end year %d", startYear, endYear)
	}
	if err := tmdb.ValidateYear(startYear); err != nil {
		return nil, err
	}
	if err := tmdb.ValidateYear(endYear); err != nil {
		return nil, err
	}

	years := endYear - startYear + 1
	perYear := 0
	remainder := 0
	if maxResults > 0 {
		perYear = maxResults / years
		remainder = maxResults % years
	}

	currentYear := s.now().Year()
	records := make([]*media.SyncRecord, 0, years)
	for year := endYear; year >= startYear; year-- {
		budget := perYear
		if maxResults > 0 && year == startYear {
			budget += remainder
		}
		priority := s.settings.BasePriority + (currentYear - year)
		record, err := s.EnqueueYear(ctx, year, budget, priority)
		if err != nil {
			return records, fmt.Errorf("enqueue year %d: %w", year, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// RetryFailed re-queues failed sync runs that are still under the attempt cap
// and past their backoff window. The backoff doubles per attempt, starting at
// two minutes. Returns the number of runs re-queued.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	records, err := s.catalog.FailedSyncRecords(ctx, s.settings.MaxAttempts)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, record := range records {
		if record.LastAttempt != nil {
			backoff := time.Duration(1<<record.Attempts) * time.Minute
			if s.now().Sub(*record.LastAttempt) < backoff {
				continue
			}
		}
		if _, err := s.EnqueueYear(ctx, record.Year, 0, record.Priority+1); err != nil {
			return retried, fmt.Errorf("retry year %d: %w", record.Year, err)
		}
		retried++
	}
	return retried, nil
}

// Status returns the tracking record for a job ID.
func (s *Service) Status(ctx context.Context, jobID string) (*media.SyncRecord, error) {
	record, err := s.catalog.SyncRecordByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New("sync job not found")
	}
	return record, nil
}
