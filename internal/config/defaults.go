package config

const (
	defaultDataDir             = "~/.local/share/mediaindex"
	defaultLogDir              = "~/.local/share/mediaindex/logs"
	defaultSubtitleDir         = "~/.local/share/mediaindex/media"
	defaultAPIBind             = "127.0.0.1:8781"
	defaultDatabaseMaxConns    = 8
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "en"
	defaultTMDBRequestsPerSec  = 40
	defaultTMDBMaxRetries      = 5
	defaultTMDBBackoffBase     = 2
	defaultTMDBBackoffMax      = 300
	defaultOSBaseURL           = "https://api.opensubtitles.com/api/v1"
	defaultOSUserAgent         = "mediaindex/dev"
	defaultSyncMaxAttempts     = 5
	defaultSyncJobTimeout      = 28800
	defaultSyncBasePriority    = 0
	defaultAnalysisMaxExamples = 5
	defaultAnalysisMaxAttempts = 10
	defaultAnalysisTimeoutMin  = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SubtitleDir: defaultSubtitleDir,
			APIBind:     defaultAPIBind,
		},
		Database: Database{
			MaxConns: defaultDatabaseMaxConns,
		},
		TMDB: TMDB{
			BaseURL:            defaultTMDBBaseURL,
			Language:           defaultTMDBLanguage,
			RequestsPerSecond:  defaultTMDBRequestsPerSec,
			MaxRetries:         defaultTMDBMaxRetries,
			BackoffBaseSeconds: defaultTMDBBackoffBase,
			BackoffMaxSeconds:  defaultTMDBBackoffMax,
		},
		OpenSubtitles: OpenSubtitles{
			BaseURL:   defaultOSBaseURL,
			UserAgent: defaultOSUserAgent,
			Languages: []string{"en"},
		},
		Sync: Sync{
			MaxAttempts:       defaultSyncMaxAttempts,
			JobTimeoutSeconds: defaultSyncJobTimeout,
			BasePriority:      defaultSyncBasePriority,
		},
		Analysis: Analysis{
			MaxExamplesPerConcept:    defaultAnalysisMaxExamples,
			MaxProcessingAttempts:    defaultAnalysisMaxAttempts,
			ProcessingTimeoutMinutes: defaultAnalysisTimeoutMin,
		},
		Workflow: Workflow{
			QueuePollInterval:   5,
			ErrorRetryInterval:  10,
			LeaseTimeoutSeconds: 600,
			ReclaimInterval:     60,
			WorkersPerQueue:     2,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
