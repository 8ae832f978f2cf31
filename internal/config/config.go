// Package config loads bucketwatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vnykmshr/bucketwatch/internal/logging"
	"github.com/vnykmshr/bucketwatch/pkg/common/validation"
	"github.com/vnykmshr/bucketwatch/pkg/scheduling/scheduler"
)

// Config contains all runtime configuration for the client.
type Config struct {
	// Service
	APIURL      string
	HTTPTimeout time.Duration

	// Polling
	PollInterval time.Duration
	PollSchedule string // cron expression; overrides PollInterval when set
	PollWorkers  int

	// Actions
	DefaultBurst int

	// Observability
	LogLevel    string
	LogFile     string
	MetricsAddr string // empty disables the metrics listener
}

// Load reads the environment, applies defaults and validates the result.
// A variable that is set but cannot be parsed is an error, not a default.
func Load() (Config, error) {
	var errs []error
	num := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		errs = append(errs, err)
		return n
	}
	dur := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		errs = append(errs, err)
		return d
	}

	cfg := Config{
		APIURL:      getEnvString("API_URL", "http://localhost:8080"),
		HTTPTimeout: dur("HTTP_TIMEOUT", 5*time.Second),

		PollInterval: dur("POLL_INTERVAL", time.Second),
		PollSchedule: getEnvString("POLL_SCHEDULE", ""),
		PollWorkers:  num("POLL_WORKERS", 2),

		DefaultBurst: num("DEFAULT_BURST", 1),

		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		LogFile:     getEnvString("LOG_FILE", "bucketwatch.log"),
		MetricsAddr: getEnvString("METRICS_ADDR", ""),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API_URL %q: %w", c.APIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API_URL %q (must be an http or https URL)", c.APIURL)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.PollSchedule != "" {
		if err := scheduler.ValidateCron(c.PollSchedule); err != nil {
			return fmt.Errorf("invalid POLL_SCHEDULE: %w", err)
		}
	}
	if err := validation.ValidatePositive("config", "POLL_WORKERS", c.PollWorkers); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "DEFAULT_BURST", c.DefaultBurst); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Helper functions for parsing environment variables

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: must be an integer", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
