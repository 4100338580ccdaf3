package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HYPERAST_PORT", "9090")
	t.Setenv("HYPERAST_LOG_LEVEL", "debug")
	t.Setenv("HYPERAST_IGNORE_KINDS", "comment,line_comment")
	t.Setenv("HYPERAST_DIFF_TIMEOUT", "5s")
	t.Setenv("HYPERAST_IGNORE_SPACES", "false")
	t.Setenv("HYPERAST_MAX_REVISIONS", "5")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if want := []string{"comment", "line_comment"}; !reflect.DeepEqual(cfg.Generator.IgnoreKinds, want) {
		t.Errorf("Generator.IgnoreKinds = %v, want %v", cfg.Generator.IgnoreKinds, want)
	}

	if cfg.Diff.Timeout != 5*time.Second {
		t.Errorf("Diff.Timeout = %v, want 5s", cfg.Diff.Timeout)
	}

	if cfg.Diff.IgnoreSpaces {
		t.Error("Diff.IgnoreSpaces = true, want false")
	}

	if !cfg.Diff.Lazy {
		t.Error("Diff.Lazy = false, want default true")
	}

	if cfg.Generator.MaxRevisions != 5 {
		t.Errorf("Generator.MaxRevisions = %d, want 5", cfg.Generator.MaxRevisions)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
log:
  level: warn
  format: json
server:
  host: "127.0.0.1"
  port: 8888
matcher:
  min_height: 2
  sim_threshold: 0.6
cache:
  type: redis
  ttl: 10m
watch:
  debounce: 1s
  extensions: [".go", ".py"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %s, want 127.0.0.1", cfg.Server.Host)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}

	if cfg.Matcher.MinHeight != 2 || cfg.Matcher.SimThreshold != 0.6 {
		t.Errorf("Matcher = %+v, want min_height 2 and sim_threshold 0.6", cfg.Matcher)
	}

	// Unset keys keep their defaults.
	if cfg.Matcher.SizeThreshold != 1000 {
		t.Errorf("Matcher.SizeThreshold = %d, want 1000", cfg.Matcher.SizeThreshold)
	}

	if cfg.Cache.Type != "redis" || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache = %+v, want redis with 10m ttl", cfg.Cache)
	}

	if cfg.Watch.Debounce != time.Second || len(cfg.Watch.Extensions) != 2 {
		t.Errorf("Watch = %+v, want 1s debounce and 2 extensions", cfg.Watch)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("bus:\n  type: memory\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("HYPERAST_BUS_TYPE", "kafka")
	t.Setenv("HYPERAST_KAFKA_BROKERS", "localhost:9092")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bus.Type != "kafka" {
		t.Errorf("Bus.Type = %s, want kafka", cfg.Bus.Type)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "negative history ttl",
			modify: func(c *Config) {
				c.Metrics.HistoryTTL = -time.Second
			},
			wantErr: true,
		},
		{
			name: "negative max revisions",
			modify: func(c *Config) {
				c.Generator.MaxRevisions = -1
			},
			wantErr: true,
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "min height zero",
			modify: func(c *Config) {
				c.Matcher.MinHeight = 0
			},
			wantErr: true,
		},
		{
			name: "similarity threshold out of range",
			modify: func(c *Config) {
				c.Matcher.SimThreshold = 1.5
			},
			wantErr: true,
		},
		{
			name: "invalid cache type",
			modify: func(c *Config) {
				c.Cache.Type = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid bus type",
			modify: func(c *Config) {
				c.Bus.Type = "nats"
			},
			wantErr: true,
		},
		{
			name: "kafka without brokers",
			modify: func(c *Config) {
				c.Bus.Type = "kafka"
			},
			wantErr: true,
		},
		{
			name: "rate limit without burst",
			modify: func(c *Config) {
				c.Server.RateLimit = 10
				c.Server.Burst = 0
			},
			wantErr: true,
		},
		{
			name: "no diff workers",
			modify: func(c *Config) {
				c.Diff.Workers = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidation_Aggregates(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"port", "log format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %q, want it to mention %q", err, want)
		}
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080

	if addr := cfg.Address(); addr != "localhost:8080" {
		t.Errorf("Address() = %s, want localhost:8080", addr)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}
