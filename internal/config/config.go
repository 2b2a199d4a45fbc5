// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/streamprice-crawler/internal/regions"
)

// EnvPrefix namespaces environment overrides, e.g. STREAMPRICE_SCRAPE_CONCURRENCY.
const EnvPrefix = "STREAMPRICE"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// MaxBodyBytes caps POST bodies (HTML uploads to /v1/parse).
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScrapeConfig governs the worker pool and fetch pipeline.
type ScrapeConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	Countries        []string `mapstructure:"countries"`
	Concurrency      int      `mapstructure:"concurrency"`
	QueueDepth       int      `mapstructure:"queue_depth"`
	MaxAttempts      int      `mapstructure:"max_attempts"`
	BackoffInitialMs int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int      `mapstructure:"backoff_max_ms"`
	UserAgent        string   `mapstructure:"user_agent"`
	IgnoreRobots     bool     `mapstructure:"ignore_robots"`
	RateLimitRPS     float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `mapstructure:"rate_limit_burst"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	// CountryTimeoutSeconds bounds one attempt over every regional URL of a country.
	CountryTimeoutSeconds int `mapstructure:"country_timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
	// FromAttempt delays headless promotion to a retry; zero or one allows it on the first try.
	FromAttempt int `mapstructure:"from_attempt"`
}

// ProxyConfig configures per-country proxy acquisition.
type ProxyConfig struct {
	APITemplate    string `mapstructure:"api_template"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
}

// StorageConfig selects where snapshots and reports are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the plan history database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	RunTable               string `mapstructure:"run_table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ExchangeConfig configures currency conversion.
type ExchangeConfig struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url"`
	Base   string `mapstructure:"base"`
	Target string `mapstructure:"target"`
	TopN   int    `mapstructure:"top_n"`
	// RatesFile replaces the live API with a static rates document.
	RatesFile string `mapstructure:"rates_file"`
}

// ScheduleConfig drives scrapes started by `serve`.
type ScheduleConfig struct {
	// Cron is a standard five-field expression; empty disables scheduled scrapes.
	Cron string `mapstructure:"cron"`
	// Convert builds a report after every scheduled scrape.
	Convert bool `mapstructure:"convert"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Load builds a Config from disk/environment. A .env file in the working directory is applied
// to the environment first; variables already set win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	cfg.Scrape.Countries = splitList(cfg.Scrape.Countries)
	if len(cfg.Scrape.Countries) > 0 {
		cfg.Scrape.Countries = regions.Normalize(cfg.Scrape.Countries)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// splitList accepts both YAML lists and the comma-separated form environment variables use.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.max_body_bytes", 8<<20)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("scrape.base_url", regions.DefaultBaseURL)
	v.SetDefault("scrape.countries", []string{})
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.queue_depth", 256)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.backoff_initial_ms", 1000)
	v.SetDefault("scrape.backoff_max_ms", 10000)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.ignore_robots", true)
	v.SetDefault("scrape.rate_limit_rps", 1.0)
	v.SetDefault("scrape.rate_limit_burst", 2)
	v.SetDefault("scrape.timeout_seconds", 45)
	v.SetDefault("scrape.country_timeout_seconds", 180)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.from_attempt", 1)
	v.SetDefault("proxy.api_template", "")
	v.SetDefault("proxy.timeout_seconds", 25)
	v.SetDefault("proxy.max_attempts", 3)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.table", "plan_prices")
	v.SetDefault("db.run_table", "scrape_runs")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("exchange.api_url", "https://openexchangerates.org/api/latest.json")
	v.SetDefault("exchange.base", "USD")
	v.SetDefault("exchange.target", "CNY")
	v.SetDefault("exchange.top_n", 10)
	v.SetDefault("schedule.cron", "")
	v.SetDefault("schedule.convert", true)
	v.SetDefault("tracing.service_name", "streamprice")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.MaxAttempts <= 0 {
		return fmt.Errorf("scrape.max_attempts must be > 0")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Scrape.RateLimitRPS < 0 {
		return fmt.Errorf("scrape.rate_limit_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	if c.Exchange.TopN <= 0 {
		return fmt.Errorf("exchange.top_n must be > 0")
	}
	if strings.TrimSpace(c.Exchange.Target) == "" {
		return fmt.Errorf("exchange.target is required")
	}
	return nil
}

// RetryBackoff returns the initial and maximum retry delays.
func (c Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Scrape.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.Scrape.BackoffMaxMs) * time.Millisecond
}

// FetchTimeout is the per-request probe timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}
