// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher modes.
const (
	FetcherHeadless = "headless"
	FetcherStatic   = "static"
	FetcherAuto     = "auto"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Snapshot backends.
const (
	SnapshotNone  = "none"
	SnapshotLocal = "local"
	SnapshotGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	StorageAPI StorageAPIConfig `mapstructure:"storage_api"`
	Retry      RetryConfig      `mapstructure:"retry"`
	DB         DBConfig         `mapstructure:"db"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig controls the storage API HTTP server.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CrawlerConfig names the listing page and the filtering rules of a crawl.
type CrawlerConfig struct {
	TargetURL     string `mapstructure:"target_url"`
	BaseDomain    string `mapstructure:"base_domain"`
	MinYear       int    `mapstructure:"min_year"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Mode              string        `mapstructure:"mode"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	MaxScrollAttempts int           `mapstructure:"max_scroll_attempts"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	// PromotionThreshold is the body size below which auto mode renders a
	// page that carries no PDF links.
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

// StorageAPIConfig points the crawler at the storage API.
type StorageAPIConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RetryConfig bounds retries at the fetch and submit boundaries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SnapshotConfig controls archiving of rendered listing pages.
type SnapshotConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for document-created notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IRDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("crawler.target_url", "https://www.meiji.com/global/investors/results-presentations/")
	v.SetDefault("crawler.base_domain", "https://www.meiji.com")
	v.SetDefault("crawler.min_year", 2022)
	v.SetDefault("crawler.user_agent", "ir-disclosure-crawler/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("fetcher.mode", FetcherHeadless)
	v.SetDefault("fetcher.navigation_timeout", 90*time.Second)
	v.SetDefault("fetcher.settle_delay", 2*time.Second)
	v.SetDefault("fetcher.max_scroll_attempts", 10)
	v.SetDefault("fetcher.requests_per_second", 1.0)
	v.SetDefault("fetcher.promotion_threshold", 2048)
	v.SetDefault("storage_api.endpoint", "http://127.0.0.1:8000")
	v.SetDefault("storage_api.timeout", 10*time.Second)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 250*time.Millisecond)
	v.SetDefault("retry.max_delay", 5*time.Second)
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "scraped_data.db")
	v.SetDefault("db.table", "documents")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("snapshot.backend", SnapshotNone)
	v.SetDefault("snapshot.dir", "snapshots")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "irdocs")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := requireAbsoluteURL("crawler.target_url", c.Crawler.TargetURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("crawler.base_domain", c.Crawler.BaseDomain); err != nil {
		return err
	}
	if err := requireAbsoluteURL("storage_api.endpoint", c.StorageAPI.Endpoint); err != nil {
		return err
	}
	if c.Crawler.MinYear < 0 {
		return fmt.Errorf("crawler.min_year must be >= 0")
	}
	switch c.Fetcher.Mode {
	case FetcherHeadless, FetcherStatic, FetcherAuto:
	default:
		return fmt.Errorf("fetcher.mode %q must be %q, %q or %q", c.Fetcher.Mode, FetcherHeadless, FetcherStatic, FetcherAuto)
	}
	if c.Fetcher.MaxScrollAttempts <= 0 {
		return fmt.Errorf("fetcher.max_scroll_attempts must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for driver %q", c.DB.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("db.driver %q is not supported", c.DB.Driver)
	}
	switch c.Snapshot.Backend {
	case SnapshotNone, "":
	case SnapshotLocal:
		if c.Snapshot.Dir == "" {
			return fmt.Errorf("snapshot.dir must be set for the local backend")
		}
	case SnapshotGCS:
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshot.backend %q is not supported", c.Snapshot.Backend)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

func requireAbsoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
