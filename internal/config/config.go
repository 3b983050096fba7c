// Package config manages feedtriage configuration.
//
// Values come from defaults, then a .env file in the working directory (if
// any), then FEEDTRIAGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvConfigDir    = "FEEDTRIAGE_CONFIG_DIR"
	EnvClientID     = "FEEDTRIAGE_CLIENT_ID"
	EnvClientSecret = "FEEDTRIAGE_CLIENT_SECRET"
	EnvAPIURL       = "FEEDTRIAGE_API_URL"
	EnvDriveURL     = "FEEDTRIAGE_DRIVE_URL"
	EnvDebounce     = "FEEDTRIAGE_DEBOUNCE"
	EnvBusyBackoff  = "FEEDTRIAGE_BUSY_BACKOFF"
	EnvRetryBackoff = "FEEDTRIAGE_RETRY_BACKOFF"
	EnvFeedDays     = "FEEDTRIAGE_FEED_DAYS"
	EnvRateLimit    = "FEEDTRIAGE_RATE_LIMIT"
	EnvLogLevel     = "FEEDTRIAGE_LOG_LEVEL"
	EnvLogFormat    = "FEEDTRIAGE_LOG_FORMAT"
)

// ErrMissingCredentials is returned by RequireCredentials when the OAuth
// client is not configured.
var ErrMissingCredentials = errors.New("missing credentials: set " + EnvClientID + " and " + EnvClientSecret)

// Config holds all application configuration.
type Config struct {
	ConfigDir string

	// OAuth client
	ClientID     string
	ClientSecret string

	// Endpoint overrides, empty for the public Google endpoints
	APIURL   string
	DriveURL string

	// Save scheduling
	Debounce     time.Duration
	BusyBackoff  time.Duration
	RetryBackoff time.Duration

	// Feed
	FeedDays  int
	RateLimit float64

	LogLevel  string
	LogFormat string
}

// Default returns configuration with safe defaults.
func Default() *Config {
	return &Config{
		ConfigDir:    defaultConfigDir(),
		Debounce:     time.Second,
		BusyBackoff:  100 * time.Millisecond,
		RetryBackoff: 5 * time.Second,
		FeedDays:     30,
		RateLimit:    5,
		LogLevel:     "info",
		LogFormat:    "pretty",
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feedtriage"
	}
	return filepath.Join(home, ".config", "feedtriage")
}

// Load builds the configuration. Priority: env vars > .env file > defaults.
func Load() (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.loadFromEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(EnvConfigDir, &c.ConfigDir)
	setString(EnvClientID, &c.ClientID)
	setString(EnvClientSecret, &c.ClientSecret)
	setString(EnvAPIURL, &c.APIURL)
	setString(EnvDriveURL, &c.DriveURL)
	setString(EnvLogLevel, &c.LogLevel)
	setString(EnvLogFormat, &c.LogFormat)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvDebounce, &c.Debounce},
		{EnvBusyBackoff, &c.BusyBackoff},
		{EnvRetryBackoff, &c.RetryBackoff},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := getenv(EnvFeedDays); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFeedDays, err)
		}
		c.FeedDays = n
	}
	if v := getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate checks configuration validity. Credentials are not required here
// since only some commands need them.
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("config dir must be set")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}
	if c.BusyBackoff <= 0 {
		return fmt.Errorf("busy backoff must be positive")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}
	if c.FeedDays <= 0 {
		return fmt.Errorf("feed days must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative")
	}
	switch c.LogFormat {
	case "pretty", "text", "json":
	default:
		return fmt.Errorf("log format must be pretty, text or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireCredentials reports whether the OAuth client is configured.
func (c *Config) RequireCredentials() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// CacheDir is where the local state cache lives.
func (c *Config) CacheDir() string {
	return filepath.Join(c.ConfigDir, "cache")
}

// FeedWindow is how far back the triage feed reaches.
func (c *Config) FeedWindow() time.Duration {
	return time.Duration(c.FeedDays) * 24 * time.Hour
}
