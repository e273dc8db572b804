package config

import (
	"fmt"
	"strings"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion string `mapstructure:"GENERAL_VERSION"`
	Environment    string `mapstructure:"ENVIRONMENT"`
	ServerPort     int    `mapstructure:"SERVER_PORT"`

	// Upstream source
	SourceBaseURL     string  `mapstructure:"SOURCE_BASE_URL"`
	ArtifactPrefix    string  `mapstructure:"ARTIFACT_PREFIX"`
	ArtifactExt       string  `mapstructure:"ARTIFACT_EXT"`
	UserAgent         string  `mapstructure:"USER_AGENT"`
	RequestTimeoutSec int     `mapstructure:"REQUEST_TIMEOUT_SEC"`
	RateLimitRPS      float64 `mapstructure:"RATE_LIMIT_RPS"`

	// Local storage
	DataDir      string `mapstructure:"DATA_DIR"`
	OutputPath   string `mapstructure:"OUTPUT_PATH"`
	SentinelPath string `mapstructure:"SENTINEL_PATH"`

	// Pipeline tuning
	RetentionYears      int    `mapstructure:"RETENTION_YEARS"`
	DownloadConcurrency int    `mapstructure:"DOWNLOAD_CONCURRENCY"`
	MaxRetries          int    `mapstructure:"MAX_RETRIES"`
	RetryBaseDelayMs    int    `mapstructure:"RETRY_BASE_DELAY_MS"`
	RetryJitterMinMs    int    `mapstructure:"RETRY_JITTER_MIN_MS"`
	RetryJitterMaxMs    int    `mapstructure:"RETRY_JITTER_MAX_MS"`
	Schedule            string `mapstructure:"SCHEDULE"`

	// Run history (optional)
	DatabaseHost     string `mapstructure:"DB_HOST"`
	DatabasePort     int    `mapstructure:"DB_PORT"`
	DatabaseName     string `mapstructure:"DB_NAME"`
	DatabaseUser     string `mapstructure:"DB_USER"`
	DatabasePassword string `mapstructure:"DB_PASSWORD"`

	// Progress events (optional)
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`

	// Remote object store (optional)
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3Prefix    string `mapstructure:"S3_PREFIX"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`

	// Directory mirror used instead of an object store (optional)
	RemoteDir string `mapstructure:"REMOTE_DIR"`
}

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"SOURCE_BASE_URL", "ARTIFACT_PREFIX", "ARTIFACT_EXT", "USER_AGENT", "REQUEST_TIMEOUT_SEC", "RATE_LIMIT_RPS",
	"DATA_DIR", "OUTPUT_PATH", "SENTINEL_PATH",
	"RETENTION_YEARS", "DOWNLOAD_CONCURRENCY", "MAX_RETRIES",
	"RETRY_BASE_DELAY_MS", "RETRY_JITTER_MIN_MS", "RETRY_JITTER_MAX_MS", "SCHEDULE",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
	"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_PREFIX", "S3_REGION", "S3_USE_SSL",
	"REMOTE_DIR",
}

var defaults = map[string]any{
	"GENERAL_VERSION":      "dev",
	"ENVIRONMENT":          "production",
	"SERVER_PORT":          8288,
	"SOURCE_BASE_URL":      "https://teledeclaration-dgi.cm/UploadedFiles/AttachedFiles/ArchiveListecontribuable",
	"ARTIFACT_PREFIX":      "FICHIER",
	"ARTIFACT_EXT":         "xlsx",
	"USER_AGENT":           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
	"REQUEST_TIMEOUT_SEC":  60,
	"RATE_LIMIT_RPS":       2.0,
	"DATA_DIR":             "/tmp/dgi_downloads",
	"OUTPUT_PATH":          "/tmp/dgi_output/contribuables.parquet",
	"SENTINEL_PATH":        "/tmp/dgi_output/last_ingested.txt",
	"RETENTION_YEARS":      5,
	"DOWNLOAD_CONCURRENCY": 3,
	"MAX_RETRIES":          5,
	"RETRY_BASE_DELAY_MS":  5000,
	"RETRY_JITTER_MIN_MS":  1000,
	"RETRY_JITTER_MAX_MS":  3000,
	"SCHEDULE":             "daily",
	"DB_PORT":              5432,
	"DB_CACHE_PORT":        6379,
	"S3_PREFIX":            "dgi",
}

// New loads the configuration from the process environment, layered over
// .env and .env.local files when present.
func New() (Config, error) {
	return Load(".env", ".env.local")
}

// Load reads configuration into a fresh viper instance so callers (and tests)
// never share global state.
func Load(envFile, overrideFile string) (Config, error) {
	log := logger.New("config").Function("Load")
	log.Info("Initializing config")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	// Exported variables win over both files since viper ranks env above config.
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Debug("Could not find env file", "file", envFile, "error", err)
		} else {
			log.Info("Loaded env file", "file", envFile)
		}
	}

	if overrideFile != "" {
		v.SetConfigFile(overrideFile)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No override file found", "file", overrideFile, "error", err)
		} else {
			log.Info("Loaded override file", "file", overrideFile)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	config.ArtifactExt = strings.TrimPrefix(config.ArtifactExt, ".")
	config.SourceBaseURL = strings.TrimSuffix(config.SourceBaseURL, "/")

	if err := Validate(config); err != nil {
		return Config{}, log.Err("Fatal error: invalid config", err)
	}

	log.Info("Successfully initialized config",
		"dataDir", config.DataDir,
		"outputPath", config.OutputPath,
		"retentionYears", config.RetentionYears,
		"concurrency", config.DownloadConcurrency)
	return config, nil
}

// Validate rejects configurations the pipeline cannot run with.
func Validate(config Config) error {
	switch {
	case config.ServerPort <= 0:
		return fmt.Errorf("invalid server port %d", config.ServerPort)
	case config.SourceBaseURL == "":
		return fmt.Errorf("SOURCE_BASE_URL is required")
	case config.ArtifactPrefix == "":
		return fmt.Errorf("ARTIFACT_PREFIX is required")
	case config.DataDir == "":
		return fmt.Errorf("DATA_DIR is required")
	case config.OutputPath == "":
		return fmt.Errorf("OUTPUT_PATH is required")
	case config.SentinelPath == "":
		return fmt.Errorf("SENTINEL_PATH is required")
	case config.RetentionYears < 0:
		return fmt.Errorf("RETENTION_YEARS must be >= 0, got %d", config.RetentionYears)
	case config.DownloadConcurrency <= 0:
		return fmt.Errorf("DOWNLOAD_CONCURRENCY must be > 0, got %d", config.DownloadConcurrency)
	case config.MaxRetries <= 0:
		return fmt.Errorf("MAX_RETRIES must be > 0, got %d", config.MaxRetries)
	case config.RetryJitterMaxMs < config.RetryJitterMinMs:
		return fmt.Errorf("RETRY_JITTER_MAX_MS must be >= RETRY_JITTER_MIN_MS")
	}

	if config.S3Endpoint != "" {
		if config.RemoteDir != "" {
			return fmt.Errorf("S3_ENDPOINT and REMOTE_DIR are mutually exclusive")
		}
		if config.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET required when S3_ENDPOINT is set")
		}
		if config.S3AccessKey == "" || config.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY required when S3_ENDPOINT is set")
		}
	}

	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c Config) HistoryEnabled() bool {
	return c.DatabaseHost != "" && c.DatabaseName != ""
}

func (c Config) EventsEnabled() bool {
	return c.DatabaseCacheAddress != "" && c.DatabaseCachePort != 0
}

// RemoteEnabled reports whether any remote mirror is configured.
func (c Config) RemoteEnabled() bool {
	return c.S3Endpoint != "" || c.RemoteDir != ""
}
