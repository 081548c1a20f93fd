package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateOpenSubtitles(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mediaindex/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'mediaindex config init')", defaultPath)
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		return errors.New("tmdb.requests_per_second must be positive")
	}
	if c.TMDB.BackoffMaxSeconds < c.TMDB.BackoffBaseSeconds {
		return errors.New("tmdb.backoff_max_seconds must be >= tmdb.backoff_base_seconds")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url is required (or set DATABASE_URL)")
	}
	if c.Database.MaxConns <= 0 {
		return errors.New("database.max_conns must be positive")
	}
	return nil
}

func (c *Config) validateOpenSubtitles() error {
	// The OpenSubtitles key is optional: the sync pipeline works without it,
	// subtitle downloads fail at call time with a clear error.
	if c.OpenSubtitles.APIKey != "" {
		if strings.TrimSpace(c.OpenSubtitles.UserAgent) == "" {
			return errors.New("opensubtitles.user_agent must be set when opensubtitles.api_key is set")
		}
		if len(c.OpenSubtitles.Languages) == 0 {
			return errors.New("opensubtitles.languages must include at least one language")
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.lease_timeout_seconds": c.Workflow.LeaseTimeoutSeconds,
		"workflow.reclaim_interval":      c.Workflow.ReclaimInterval,
		"workflow.workers_per_queue":     c.Workflow.WorkersPerQueue,
	}); err != nil {
		return err
	}
	if c.Workflow.LeaseTimeoutSeconds <= c.Workflow.QueuePollInterval {
		return errors.New("workflow.lease_timeout_seconds must be greater than workflow.queue_poll_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
