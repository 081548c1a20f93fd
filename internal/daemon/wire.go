package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
	"mediaindex/internal/langanalysis"
	"mediaindex/internal/logging"
	"mediaindex/internal/media"
	"mediaindex/internal/server"
	"mediaindex/internal/subtitles"
	"mediaindex/internal/subtitles/opensubtitles"
	"mediaindex/internal/tmdb"
	"mediaindex/internal/tmdbsync"
	"mediaindex/internal/workflow"
)

// Build wires the full service graph: catalog store, job broker, pipeline
// services, queue workers, and the HTTP API. The Redis broker is used when a
// Redis URL is configured; otherwise jobs live in an embedded SQLite
// database under the data directory.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := media.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	broker, err := openBroker(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	tmdbClient, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithRateLimit(
			cfg.TMDB.RequestsPerSecond,
			time.Duration(cfg.TMDB.BackoffBaseSeconds)*time.Second,
			time.Duration(cfg.TMDB.BackoffMaxSeconds)*time.Second,
		),
		tmdb.WithMaxRetries(cfg.TMDB.MaxRetries),
	)
	if err != nil {
		_ = broker.Close()
		store.Close()
		return nil, fmt.Errorf("build tmdb client: %w", err)
	}

	storage, err := subtitles.NewStorage(cfg.Paths.SubtitleDir)
	if err != nil {
		_ = broker.Close()
		store.Close()
		return nil, fmt.Errorf("open subtitle storage: %w", err)
	}

	// Subtitle downloads are optional. Without an OpenSubtitles key the
	// service still handles uploads and catalog queries.
	var searcher subtitles.Searcher
	if strings.TrimSpace(cfg.OpenSubtitles.APIKey) != "" {
		client, err := opensubtitles.New(opensubtitles.Config{
			APIKey:    cfg.OpenSubtitles.APIKey,
			UserAgent: cfg.OpenSubtitles.UserAgent,
			UserToken: cfg.OpenSubtitles.UserToken,
			BaseURL:   cfg.OpenSubtitles.BaseURL,
		})
		if err != nil {
			_ = broker.Close()
			store.Close()
			return nil, fmt.Errorf("build opensubtitles client: %w", err)
		}
		searcher = client
	} else {
		logger.Warn("opensubtitles api key not configured, subtitle downloads disabled",
			logging.String(logging.FieldComponent, "daemon"))
	}

	syncService := tmdbsync.New(store, broker, tmdbClient, cfg, logger)
	subtitleService := subtitles.NewService(store, searcher, storage, cfg.OpenSubtitles.Languages, logger)
	analyzer := langanalysis.NewAnalyzer(cfg.Analysis.MaxExamplesPerConcept)
	processor := langanalysis.NewProcessor(
		store,
		storage,
		analyzer,
		cfg.Analysis.MaxProcessingAttempts,
		time.Duration(cfg.Analysis.ProcessingTimeoutMinutes)*time.Minute,
		logger,
	)

	wf := workflow.NewManager(cfg, broker, logger)
	wf.Register(tmdbsync.JobTypeYearSync, syncService.HandleYearSync)
	wf.Register(subtitles.JobTypeDownload, subtitleService.HandleDownload)
	wf.Register(langanalysis.JobTypeProcess, processor.HandleProcess)

	var d *Daemon
	srv := server.New(server.Options{
		Bind:       cfg.Paths.APIBind,
		Token:      cfg.Paths.APIToken,
		Catalog:    store,
		Sync:       syncService,
		Subtitles:  subtitleService,
		Linguistic: processor,
		Broker:     broker,
		Status: func(ctx context.Context) any {
			if d == nil {
				return nil
			}
			return d.Status(ctx)
		},
		Logger: logger,
	})

	d, err = New(cfg, broker, wf, srv, logger)
	if err != nil {
		_ = broker.Close()
		store.Close()
		return nil, err
	}
	d.closers = append(d.closers, broker.Close, func() error {
		store.Close()
		return nil
	})
	return d, nil
}

func openBroker(ctx context.Context, cfg *config.Config) (jobs.Broker, error) {
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		broker, err := jobs.OpenRedis(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("open redis broker: %w", err)
		}
		return broker, nil
	}
	broker, err := jobs.OpenSQLite(cfg.BrokerDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open embedded broker: %w", err)
	}
	return broker, nil
}
