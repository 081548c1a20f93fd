package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaindex/internal/config"
)

func TestLoadDefaultConfigUsesEnvOverridesAndExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://user:pw@localhost:5432/mediaindex")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mediaindex")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from environment, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Database.URL != "postgres://user:pw@localhost:5432/mediaindex" {
		t.Fatalf("expected DATABASE_URL override, got %q", cfg.Database.URL)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("expected REDIS_URL override, got %q", cfg.Redis.URL)
	}
	if cfg.TMDB.RequestsPerSecond != 40 {
		t.Fatalf("unexpected default rate limit: %d", cfg.TMDB.RequestsPerSecond)
	}
	if cfg.Sync.JobTimeoutSeconds != 28800 {
		t.Fatalf("unexpected default job timeout: %d", cfg.Sync.JobTimeoutSeconds)
	}
}

func TestLoadParsesFileAndNormalizesLanguages(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("OPENSUBTITLES_API_KEY", "")
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.toml")
	body := strings.Join([]string{
		`[paths]`,
		`data_dir = "` + filepath.Join(tempDir, "data") + `"`,
		`log_dir = "` + filepath.Join(tempDir, "logs") + `"`,
		`[database]`,
		`url = "postgres://localhost/mediaindex"`,
		`[tmdb]`,
		`api_key = "from-file"`,
		`[opensubtitles]`,
		`api_key = "os-key"`,
		`languages = ["EN", "en", " pt-br ", ""]`,
		`[logging]`,
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.TMDB.APIKey != "from-file" {
		t.Fatalf("unexpected api key: %q", cfg.TMDB.APIKey)
	}
	got := cfg.OpenSubtitles.Languages
	if len(got) != 2 || got[0] != "en" || got[1] != "pt-br" {
		t.Fatalf("unexpected languages: %v", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestEnvironmentKeysOverrideFileValues(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-tmdb")
	t.Setenv("OPENSUBTITLES_API_KEY", "env-os")
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.toml")
	body := strings.Join([]string{
		`[tmdb]`,
		`api_key = "from-file"`,
		`[opensubtitles]`,
		`api_key = "os-from-file"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TMDB.APIKey != "env-tmdb" {
		t.Fatalf("expected environment to win over file, got %q", cfg.TMDB.APIKey)
	}
	if cfg.OpenSubtitles.APIKey != "env-os" {
		t.Fatalf("expected environment to win over file, got %q", cfg.OpenSubtitles.APIKey)
	}
}

func TestValidateRejectsMissingDatabaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.TMDB.APIKey = "key"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing database url")
	} else if !strings.Contains(err.Error(), "database.url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMissingTMDBKey(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "postgres://localhost/mediaindex"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing tmdb key")
	} else if !strings.Contains(err.Error(), "tmdb.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[tmdb]") {
		t.Fatal("sample config missing tmdb section")
	}
}
