package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeRedis()
	c.normalizeTMDB()
	c.normalizeOpenSubtitles()
	c.normalizeSync()
	c.normalizeAnalysis()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SubtitleDir) == "" {
		c.Paths.SubtitleDir = defaultSubtitleDir
	}
	if c.Paths.SubtitleDir, err = expandPath(c.Paths.SubtitleDir); err != nil {
		return fmt.Errorf("paths.subtitle_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := os.LookupEnv("MEDIAINDEX_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = strings.TrimSpace(value)
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	if value, ok := os.LookupEnv("DATABASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Database.URL = strings.TrimSpace(value)
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = defaultDatabaseMaxConns
	}
}

func (c *Config) normalizeRedis() {
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	if value, ok := os.LookupEnv("REDIS_URL"); ok && strings.TrimSpace(value) != "" {
		c.Redis.URL = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if value, ok := os.LookupEnv("TMDB_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.TMDB.APIKey = strings.TrimSpace(value)
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.ToLower(strings.TrimSpace(c.TMDB.Language))
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		c.TMDB.RequestsPerSecond = defaultTMDBRequestsPerSec
	}
	if c.TMDB.MaxRetries <= 0 {
		c.TMDB.MaxRetries = defaultTMDBMaxRetries
	}
	if c.TMDB.BackoffBaseSeconds <= 0 {
		c.TMDB.BackoffBaseSeconds = defaultTMDBBackoffBase
	}
	if c.TMDB.BackoffMaxSeconds <= 0 {
		c.TMDB.BackoffMaxSeconds = defaultTMDBBackoffMax
	}
}

func (c *Config) normalizeOpenSubtitles() {
	c.OpenSubtitles.APIKey = strings.TrimSpace(c.OpenSubtitles.APIKey)
	if value, ok := os.LookupEnv("OPENSUBTITLES_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.OpenSubtitles.APIKey = strings.TrimSpace(value)
	}
	c.OpenSubtitles.BaseURL = strings.TrimSpace(c.OpenSubtitles.BaseURL)
	if c.OpenSubtitles.BaseURL == "" {
		c.OpenSubtitles.BaseURL = defaultOSBaseURL
	}
	c.OpenSubtitles.UserAgent = strings.TrimSpace(c.OpenSubtitles.UserAgent)
	if c.OpenSubtitles.UserAgent == "" {
		c.OpenSubtitles.UserAgent = defaultOSUserAgent
	}
	c.OpenSubtitles.UserToken = strings.TrimSpace(c.OpenSubtitles.UserToken)
	if c.OpenSubtitles.UserToken == "" {
		if value, ok := os.LookupEnv("OPENSUBTITLES_USER_TOKEN"); ok {
			c.OpenSubtitles.UserToken = strings.TrimSpace(value)
		}
	}
	if len(c.OpenSubtitles.Languages) == 0 {
		c.OpenSubtitles.Languages = []string{"en"}
		return
	}
	langs := make([]string, 0, len(c.OpenSubtitles.Languages))
	seen := make(map[string]struct{}, len(c.OpenSubtitles.Languages))
	for _, lang := range c.OpenSubtitles.Languages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.OpenSubtitles.Languages = langs
}

func (c *Config) normalizeSync() {
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = defaultSyncMaxAttempts
	}
	if c.Sync.JobTimeoutSeconds <= 0 {
		c.Sync.JobTimeoutSeconds = defaultSyncJobTimeout
	}
	if c.Sync.BasePriority < 0 {
		c.Sync.BasePriority = defaultSyncBasePriority
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.MaxExamplesPerConcept <= 0 {
		c.Analysis.MaxExamplesPerConcept = defaultAnalysisMaxExamples
	}
	if c.Analysis.MaxProcessingAttempts <= 0 {
		c.Analysis.MaxProcessingAttempts = defaultAnalysisMaxAttempts
	}
	if c.Analysis.ProcessingTimeoutMinutes <= 0 {
		c.Analysis.ProcessingTimeoutMinutes = defaultAnalysisTimeoutMin
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = 5
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = 10
	}
	if c.Workflow.LeaseTimeoutSeconds <= 0 {
		c.Workflow.LeaseTimeoutSeconds = 600
	}
	if c.Workflow.ReclaimInterval <= 0 {
		c.Workflow.ReclaimInterval = 60
	}
	if c.Workflow.WorkersPerQueue <= 0 {
		c.Workflow.WorkersPerQueue = 2
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
