package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	SubtitleDir string `toml:"subtitle_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Database contains the Postgres connection settings.
type Database struct {
	URL      string `toml:"url"`
	MaxConns int    `toml:"max_conns"`
}

// Redis contains the job broker connection settings. When the URL is empty
// the daemon falls back to the embedded SQLite broker.
type Redis struct {
	URL string `toml:"url"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	Language           string `toml:"language"`
	RequestsPerSecond  int    `toml:"requests_per_second"`
	MaxRetries         int    `toml:"max_retries"`
	BackoffBaseSeconds int    `toml:"backoff_base_seconds"`
	BackoffMaxSeconds  int    `toml:"backoff_max_seconds"`
}

// OpenSubtitles contains configuration for the OpenSubtitles REST API.
type OpenSubtitles struct {
	APIKey    string   `toml:"api_key"`
	BaseURL   string   `toml:"base_url"`
	UserAgent string   `toml:"user_agent"`
	UserToken string   `toml:"user_token"`
	Languages []string `toml:"languages"`
}

// Sync contains configuration for the TMDB year sync pipeline.
type Sync struct {
	MaxAttempts       int `toml:"max_attempts"`
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
	BasePriority      int `toml:"base_priority"`
}

// Analysis contains configuration for subtitle linguistic processing.
type Analysis struct {
	MaxExamplesPerConcept    int `toml:"max_examples_per_concept"`
	MaxProcessingAttempts    int `toml:"max_processing_attempts"`
	ProcessingTimeoutMinutes int `toml:"processing_timeout_minutes"`
}

// Workflow contains configuration for queue worker timing.
type Workflow struct {
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	LeaseTimeoutSeconds int `toml:"lease_timeout_seconds"`
	ReclaimInterval     int `toml:"reclaim_interval"`
	WorkersPerQueue     int `toml:"workers_per_queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the media index service.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address, and API token
//   - Database: Postgres catalog connection
//   - Redis: job broker connection (optional, embedded fallback otherwise)
//   - TMDB: metadata sync source and rate limiting
//   - OpenSubtitles: subtitle search and download source
//   - Sync: year sync retry and priority behavior
//   - Analysis: linguistic processing limits
//   - Workflow: worker polling intervals and lease handling
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Redis         Redis         `toml:"redis"`
	TMDB          TMDB          `toml:"tmdb"`
	OpenSubtitles OpenSubtitles `toml:"opensubtitles"`
	Sync          Sync          `toml:"sync"`
	Analysis      Analysis      `toml:"analysis"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaindex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/mediaindex/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaindex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.SubtitleDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BrokerDatabasePath returns the location of the embedded broker database
// used when no Redis URL is configured.
func (c *Config) BrokerDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
