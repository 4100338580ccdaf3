// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Tree generation
	Generator GeneratorConfig `yaml:"generator"`

	// Matching and edit script generation
	Matcher MatcherConfig `yaml:"matcher"`
	Diff    DiffConfig    `yaml:"diff"`

	// Diff result cache
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	Metrics MetricsConfig `yaml:"metrics"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"HYPERAST_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"HYPERAST_LOG_FORMAT" yaml:"format"`
	File   string `envconfig:"HYPERAST_LOG_FILE" yaml:"file"`
}

// GeneratorConfig holds tree generation settings.
type GeneratorConfig struct {
	// IgnoreKinds are grammar kinds dropped from generated trees, their
	// children being attached to the parent.
	IgnoreKinds []string `envconfig:"HYPERAST_IGNORE_KINDS" yaml:"ignore_kinds"`
	MaxFileSize int64    `envconfig:"HYPERAST_MAX_FILE_SIZE" yaml:"max_file_size"`
	// MaxRevisions bounds the revisions tracked per path, 0 keeps all.
	MaxRevisions int `envconfig:"HYPERAST_MAX_REVISIONS" yaml:"max_revisions"`
}

// MatcherConfig holds the matcher pipeline thresholds.
type MatcherConfig struct {
	MinHeight     int     `envconfig:"HYPERAST_MIN_HEIGHT" yaml:"min_height"`
	SimThreshold  float64 `envconfig:"HYPERAST_SIM_THRESHOLD" yaml:"sim_threshold"`
	SizeThreshold int     `envconfig:"HYPERAST_SIZE_THRESHOLD" yaml:"size_threshold"`
	LabelAware    bool    `envconfig:"HYPERAST_LABEL_AWARE" yaml:"label_aware"`
	HideMapped    bool    `envconfig:"HYPERAST_HIDE_MAPPED" yaml:"hide_mapped"`
}

// DiffConfig holds diff query settings.
type DiffConfig struct {
	IgnoreSpaces bool          `envconfig:"HYPERAST_IGNORE_SPACES" yaml:"ignore_spaces"`
	Lazy         bool          `envconfig:"HYPERAST_LAZY" yaml:"lazy"`
	Timeout      time.Duration `envconfig:"HYPERAST_DIFF_TIMEOUT" yaml:"timeout"`
	Workers      int           `envconfig:"HYPERAST_DIFF_WORKERS" yaml:"workers"`
	// Verify replays every computed script and fails the query when it does
	// not reproduce the destination.
	Verify bool `envconfig:"HYPERAST_DIFF_VERIFY" yaml:"verify"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type     string        `envconfig:"HYPERAST_CACHE_TYPE" yaml:"type"`
	Size     int           `envconfig:"HYPERAST_CACHE_SIZE" yaml:"size"`
	TTL      time.Duration `envconfig:"HYPERAST_CACHE_TTL" yaml:"ttl"` // 0 = no expiry
	RedisURL string        `envconfig:"HYPERAST_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"HYPERAST_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"HYPERAST_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"HYPERAST_KAFKA_GROUP" yaml:"kafka_group"`
	// EventLog is a JSONL file every published event is appended to.
	EventLog string `envconfig:"HYPERAST_EVENT_LOG" yaml:"event_log"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled     bool   `envconfig:"HYPERAST_METRICS_ENABLED" yaml:"enabled"`
	Path        string `envconfig:"HYPERAST_METRICS_PATH" yaml:"path"`
	Persistence string `envconfig:"HYPERAST_METRICS_PERSISTENCE" yaml:"persistence"`
	RedisURL    string `envconfig:"HYPERAST_METRICS_REDIS_URL" yaml:"redis_url"`
	// HistoryTTL is how long history points persisted to Redis are kept.
	HistoryTTL time.Duration `envconfig:"HYPERAST_METRICS_HISTORY_TTL" yaml:"history_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `envconfig:"HYPERAST_HOST" yaml:"host"`
	Port         int           `envconfig:"HYPERAST_PORT" yaml:"port"`
	RateLimit    int           `envconfig:"HYPERAST_RATE_LIMIT" yaml:"rate_limit"` // requests per second, 0 = disabled
	Burst        int           `envconfig:"HYPERAST_RATE_BURST" yaml:"burst"`
	ReadTimeout  time.Duration `envconfig:"HYPERAST_READ_TIMEOUT" yaml:"read_timeout"`
	WriteTimeout time.Duration `envconfig:"HYPERAST_WRITE_TIMEOUT" yaml:"write_timeout"`
	MaxBodyBytes int64         `envconfig:"HYPERAST_MAX_BODY_BYTES" yaml:"max_body_bytes"`
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Debounce   time.Duration `envconfig:"HYPERAST_WATCH_DEBOUNCE" yaml:"debounce"`
	Extensions []string      `envconfig:"HYPERAST_WATCH_EXTENSIONS" yaml:"extensions"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `envconfig:"HYPERAST_TRACING_ENABLED" yaml:"enabled"`
	ServiceName string `envconfig:"HYPERAST_SERVICE_NAME" yaml:"service_name"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Generator = GeneratorConfig{
		MaxFileSize:  10 << 20,
		MaxRevisions: 32,
	}

	cfg.Matcher = MatcherConfig{
		MinHeight:     1,
		SimThreshold:  0.5,
		SizeThreshold: 1000,
		LabelAware:    true,
	}

	cfg.Diff = DiffConfig{
		IgnoreSpaces: true,
		Lazy:         true,
		Timeout:      30 * time.Second,
		Workers:      4,
	}

	cfg.Cache = CacheConfig{
		Type:     "memory",
		Size:     1000,
		RedisURL: "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type:       "memory",
		KafkaGroup: "hyperast",
	}

	cfg.Metrics = MetricsConfig{
		Enabled:     true,
		Path:        "/metrics",
		Persistence: "memory",
		RedisURL:    "redis://localhost:6379",
		HistoryTTL:  24 * time.Hour,
	}

	cfg.Server = ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Burst:        20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		MaxBodyBytes: 16 << 20,
	}

	cfg.Watch = WatchConfig{
		Debounce: 200 * time.Millisecond,
	}

	cfg.Tracing = TracingConfig{
		ServiceName: "hyperast",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Generator.MaxFileSize < 0 {
		errs = append(errs, "max_file_size must not be negative")
	}

	if c.Generator.MaxRevisions < 0 {
		errs = append(errs, "max_revisions must not be negative")
	}

	// Matcher validation
	if c.Matcher.MinHeight < 1 {
		errs = append(errs, "min_height must be at least 1")
	}

	if c.Matcher.SimThreshold < 0 || c.Matcher.SimThreshold > 1 {
		errs = append(errs, "sim_threshold must be between 0 and 1")
	}

	if c.Matcher.SizeThreshold < 0 {
		errs = append(errs, "size_threshold must not be negative")
	}

	if c.Diff.Workers < 1 {
		errs = append(errs, "diff workers must be positive")
	}

	if c.Diff.Timeout < 0 {
		errs = append(errs, "diff timeout must not be negative")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory, redis or none)", c.Cache.Type))
	}

	if c.Cache.Size < 1 {
		errs = append(errs, "cache size must be positive")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	validPersistence := map[string]bool{"memory": true, "redis": true}
	if !validPersistence[c.Metrics.Persistence] {
		errs = append(errs, fmt.Sprintf("invalid metrics persistence: %s (must be memory or redis)", c.Metrics.Persistence))
	}

	if c.Metrics.HistoryTTL < 0 {
		errs = append(errs, "metrics history_ttl must not be negative")
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}

	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, "burst must be positive when rate limiting")
	}

	if c.Watch.Debounce < 0 {
		errs = append(errs, "watch debounce must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
