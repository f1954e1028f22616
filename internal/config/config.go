package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tickvault pipeline.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Feed      Feed      `yaml:"feed"`
	Ingest    Ingest    `yaml:"ingest"`
	Candles   Candles   `yaml:"candles"`
	Normalize Normalize `yaml:"normalize"`
	Watch     Watch     `yaml:"watch"`
	Logging   Logging   `yaml:"logging"`
}

// Storage holds the blob-store destinations. LocalDir is the primary sink;
// MirrorDir, when set, receives an identical copy of every batch.
type Storage struct {
	LocalDir  string `yaml:"local_dir"`
	MirrorDir string `yaml:"mirror_dir"`
}

// Feed configures the upstream tick provider.
type Feed struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Ingest controls the chunk scheduler and worker pool.
type Ingest struct {
	ChunkHours     int `yaml:"chunk_hours"`
	Concurrency    int `yaml:"concurrency"`
	DelaySeconds   int `yaml:"delay_seconds"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// Candles configures the candle layer consumed by verification and the
// relational materialization store.
type Candles struct {
	BucketMinutes int    `yaml:"bucket_minutes"`
	SQLitePath    string `yaml:"sqlite_path"`
}

// Normalize maps broker names to the IANA timezone their feeds are stamped
// in.
type Normalize struct {
	Brokers map[string]string `yaml:"brokers"`
}

// Watch configures the periodic catch-up daemon.
type Watch struct {
	Schedule     string   `yaml:"schedule"`
	Symbols      []string `yaml:"symbols"`
	FallbackDays int      `yaml:"fallback_days"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Timeout returns the feed request timeout as a duration.
func (f Feed) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// Delay returns the inter-chunk politeness delay as a duration.
func (i Ingest) Delay() time.Duration {
	return time.Duration(i.DelaySeconds) * time.Second
}

// Backoff returns the network-retry backoff as a duration; zero means the
// queue default.
func (i Ingest) Backoff() time.Duration {
	return time.Duration(i.BackoffSeconds) * time.Second
}

// Bucket returns the candle bucket width as a duration.
func (c Candles) Bucket() time.Duration {
	if c.BucketMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.BucketMinutes) * time.Minute
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would fail mid-run. Having no storage
// destination at all is caught here rather than after hours of fetching.
func (c *Config) Validate() error {
	if c.Storage.LocalDir == "" && c.Storage.MirrorDir == "" {
		return fmt.Errorf("no storage destination configured")
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Ingest.ChunkHours < 1 {
		return fmt.Errorf("ingest.chunk_hours must be at least 1, got %d", c.Ingest.ChunkHours)
	}
	for broker, tz := range c.Normalize.Brokers {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("normalize.brokers[%s]: invalid timezone %q: %w", broker, tz, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChunkHours == 0 {
		cfg.Ingest.ChunkHours = 24
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Candles.BucketMinutes == 0 {
		cfg.Candles.BucketMinutes = 5
	}
	if cfg.Watch.FallbackDays == 0 {
		cfg.Watch.FallbackDays = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TICKVAULT_DATA_DIR"); v != "" {
		cfg.Storage.LocalDir = v
	}
	if v := os.Getenv("TICKVAULT_MIRROR_DIR"); v != "" {
		cfg.Storage.MirrorDir = v
	}
	if v := os.Getenv("TICKVAULT_SQLITE_PATH"); v != "" {
		cfg.Candles.SQLitePath = v
	}
	if v := os.Getenv("TICKVAULT_FEED_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("TICKVAULT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Concurrency = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
