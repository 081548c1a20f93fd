package langanalysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
)

// JobTypeProcess identifies linguistic processing jobs on the subtitles
// queue.
const JobTypeProcess = "process_subtitles"

// defaultBatchSize bounds one processing claim when the job names no limit.
const defaultBatchSize = 10

// Catalog is the slice of the media store the processing pipeline touches.
type Catalog interface {
	ClaimSubtitlesForProcessing(ctx context.Context, limit, maxAttempts int, stuckAfter time.Duration) ([]*media.Subtitle, error)
	SubtitleByID(ctx context.Context, id string) (*media.Subtitle, error)
	MarkSubtitleProcessed(ctx context.Context, id string) error
	MarkSubtitleProcessingFailed(ctx context.Context, id string, message string) error
	InsertAnalysisResult(ctx context.Context, result *media.AnalysisResult, difficulty *float64) error
	CountUnprocessedSubtitles(ctx context.Context, maxAttempts int) (int64, error)
}

// FileReader loads stored subtitle payloads by their relative path.
type FileReader interface {
	Read(relative string) ([]byte, error)
}

// Processor runs linguistic analysis over stored subtitles.
type Processor struct {
	catalog     Catalog
	files       FileReader
	analyzer    *Analyzer
	maxAttempts int
	stuckAfter  time.Duration
	logger      *slog.Logger
}

// NewProcessor creates the processing pipeline. maxAttempts caps retries per
// subtitle; stuckAfter is the age at which an in-flight claim is considered
// abandoned and eligible again.
func NewProcessor(catalog Catalog, files FileReader, analyzer *Analyzer, maxAttempts int, stuckAfter time.Duration, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if analyzer == nil {
		analyzer = NewAnalyzer(DefaultMaxExamples)
	}
	return &Processor{
		catalog:     catalog,
		files:       files,
		analyzer:    analyzer,
		maxAttempts: maxAttempts,
		stuckAfter:  stuckAfter,
		logger:      logger.With(logging.String(logging.FieldComponent, "langanalysis")),
	}
}

// ProcessPayload is the JSON payload carried by processing jobs. A set
// SubtitleID processes exactly that subtitle; otherwise a batch is claimed.
type ProcessPayload struct {
	SubtitleID string `json:"subtitle_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ProcessStats summarizes one processing pass.
type ProcessStats struct {
	Claimed   int `json:"claimed"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// HandleProcess executes one processing job.
func (p *Processor) HandleProcess(ctx context.Context, job *jobs.Job) error {
	var payload ProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode process payload: %w", err)
	}
	if payload.SubtitleID != "" {
		return p.ProcessSubtitle(ctx, payload.SubtitleID)
	}
	stats, err := p.ProcessBatch(ctx, payload.Limit)
	if err != nil {
		return err
	}
	p.logger.Info("processing pass finished",
		logging.Int("claimed", stats.Claimed),
		logging.Int("processed", stats.Processed),
		logging.Int("failed", stats.Failed))
	return nil
}

// ProcessBatch claims up to limit unprocessed subtitles and analyzes each.
// Per-subtitle failures are recorded on the subtitle and do not abort the
// batch.
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (ProcessStats, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	var stats ProcessStats

	claimed, err := p.catalog.ClaimSubtitlesForProcessing(ctx, limit, p.maxAttempts, p.stuckAfter)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(claimed)

	for _, subtitle := range claimed {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.analyzeOne(ctx, subtitle); err != nil {
			stats.Failed++
			p.logger.Warn("subtitle processing failed",
				logging.String("subtitle_id", subtitle.ID),
				logging.Error(err))
			if markErr := p.catalog.MarkSubtitleProcessingFailed(ctx, subtitle.ID, err.Error()); markErr != nil {
				return stats, markErr
			}
			continue
		}
		stats.Processed++
	}
	return stats, nil
}

// ProcessSubtitle analyzes one subtitle by ID regardless of its processing
// state.
func (p *Processor) ProcessSubtitle(ctx context.Context, subtitleID string) error {
	subtitle, err := p.catalog.SubtitleByID(ctx, subtitleID)
	if err != nil {
		return err
	}
	if subtitle == nil {
		return fmt.Errorf("subtitle %s not found", subtitleID)
	}
	if err := p.analyzeOne(ctx, subtitle); err != nil {
		if markErr := p.catalog.MarkSubtitleProcessingFailed(ctx, subtitle.ID, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}
	return nil
}

// Backlog reports how many subtitles still need processing.
func (p *Processor) Backlog(ctx context.Context) (int64, error) {
	return p.catalog.CountUnprocessedSubtitles(ctx, p.maxAttempts)
}

// AnalyzeText builds a profile for ad-hoc text without touching the catalog.
func (p *Processor) AnalyzeText(text string) (*Profile, error) {
	return p.analyzer.Analyze(StripMarkup(text))
}

func (p *Processor) analyzeOne(ctx context.Context, subtitle *media.Subtitle) error {
	raw, err := p.files.Read(subtitle.Path)
	if err != nil {
		return err
	}
	text := StripMarkup(string(raw))
	profile, err := p.analyzer.Analyze(text)
	if err != nil {
		return fmt.Errorf("analyze subtitle: %w", err)
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	result := &media.AnalysisResult{
		MovieID:         subtitle.MovieID,
		Version:         profile.AnalysisVersion,
		Kind:            "movie",
		SubtitleID:      subtitle.ID,
		SubtitleVersion: subtitle.Version,
		LexicalAnalysis: encoded,
	}
	if err := p.catalog.InsertAnalysisResult(ctx, result, profile.Difficulty); err != nil {
		return err
	}
	if err := p.catalog.MarkSubtitleProcessed(ctx, subtitle.ID); err != nil {
		return err
	}
	concepts := 0
	for _, list := range profile.Concepts {
		concepts += len(list)
	}
	p.logger.Info("subtitle processed",
		logging.String("subtitle_id", subtitle.ID),
		logging.Int("concepts", concepts),
		logging.Int("sentences", profile.SentencesCount))
	return nil
}
