package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	unsetAll(t, "API_URL", "HTTP_TIMEOUT", "POLL_INTERVAL", "POLL_SCHEDULE",
		"POLL_WORKERS", "DEFAULT_BURST", "LOG_LEVEL", "LOG_FILE", "METRICS_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v, want 5s", cfg.HTTPTimeout)
	}
	if cfg.PollWorkers != 2 {
		t.Errorf("PollWorkers = %d, want 2", cfg.PollWorkers)
	}
	if cfg.DefaultBurst != 1 {
		t.Errorf("DefaultBurst = %d, want 1", cfg.DefaultBurst)
	}
	if cfg.LogFile != "bucketwatch.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty", cfg.MetricsAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://bucket.internal:9000/v1")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("POLL_SCHEDULE", "@every 2s")
	t.Setenv("DEFAULT_BURST", "15")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_ADDR", ":9102")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != "https://bucket.internal:9000/v1" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.PollSchedule != "@every 2s" {
		t.Errorf("PollSchedule = %q", cfg.PollSchedule)
	}
	if cfg.DefaultBurst != 15 {
		t.Errorf("DefaultBurst = %d", cfg.DefaultBurst)
	}
	if cfg.MetricsAddr != ":9102" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestUnparsableValuesAreRejected(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"POLL_INTERVAL", "abc"},
		{"HTTP_TIMEOUT", "soon"},
		{"POLL_WORKERS", "two"},
		{"DEFAULT_BURST", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() accepted %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not mention %s", err, tt.key)
			}
		})
	}
}

func TestEmptyNumberIsRejected(t *testing.T) {
	t.Setenv("POLL_WORKERS", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted empty POLL_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		APIURL:       "http://localhost:8080",
		HTTPTimeout:  time.Second,
		PollInterval: time.Second,
		PollWorkers:  1,
		DefaultBurst: 1,
		LogLevel:     "info",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ftp url", func(c *Config) { c.APIURL = "ftp://host" }, "API_URL"},
		{"no host", func(c *Config) { c.APIURL = "http://" }, "API_URL"},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
		{"negative interval", func(c *Config) { c.PollInterval = -time.Second }, "POLL_INTERVAL"},
		{"bad schedule", func(c *Config) { c.PollSchedule = "whenever" }, "POLL_SCHEDULE"},
		{"no workers", func(c *Config) { c.PollWorkers = 0 }, "POLL_WORKERS"},
		{"negative workers", func(c *Config) { c.PollWorkers = -3 }, "POLL_WORKERS"},
		{"zero burst", func(c *Config) { c.DefaultBurst = 0 }, "DEFAULT_BURST"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

// unsetAll removes keys for the duration of the test.
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "") // restores the original value on cleanup
		os.Unsetenv(key)
	}
}
