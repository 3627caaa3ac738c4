// Package config loads flightfinder settings from defaults, an optional YAML
// file and FLIGHTFINDER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultFallbackBaseURL = "https://serpapi.com/search"
	DefaultCacheTTL        = 21600 * time.Second
	DefaultAPIDelay        = 200 * time.Millisecond
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = time.Second
	DefaultConcurrency     = 5
	DefaultCallTimeout     = 30 * time.Second
	DefaultLogLevel        = "info"
)

// ConfigurationError reports missing credentials or an invalid setting.
// It is fatal: nothing is dispatched once one is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Config is the resolved flightfinder configuration.
type Config struct {
	SerpAPIKey         string
	FallbackSerpAPIKey string
	FallbackBaseURL    string
	DatabasePath       string
	CacheTTL           time.Duration
	APIDelay           time.Duration
	MaxAttempts        int
	BackoffBase        time.Duration
	Concurrency        int
	CallTimeout        time.Duration
	RedisURL           string
	HistoryDatabaseURL string
	LogLevel           string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FallbackBaseURL: DefaultFallbackBaseURL,
		DatabasePath:    DefaultDatabasePath(),
		CacheTTL:        DefaultCacheTTL,
		APIDelay:        DefaultAPIDelay,
		MaxAttempts:     DefaultMaxAttempts,
		BackoffBase:     DefaultBackoffBase,
		Concurrency:     DefaultConcurrency,
		CallTimeout:     DefaultCallTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// DefaultDatabasePath is ~/.local/share/flightfinder/flights.db.
func DefaultDatabasePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "flightfinder", "flights.db")
}

// DefaultPath is the config file consulted when none is named.
func DefaultPath() string {
	if env := os.Getenv("FLIGHTFINDER_CONFIG"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "flightfinder", "config.yaml")
}

// Load resolves the configuration. An empty path means DefaultPath; a missing
// file at the default location is not an error, a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		explicit = os.Getenv("FLIGHTFINDER_CONFIG") != ""
	}
	if err := cfg.loadFile(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return cfg, err
		}
	}
	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return f.apply(c)
}

// fileConfig mirrors Config with durations as strings ("6h", "200ms") or integers.
type fileConfig struct {
	SerpAPIKey         *string `yaml:"serpapi_key"`
	FallbackSerpAPIKey *string `yaml:"fallback_serpapi_key"`
	FallbackBaseURL    *string `yaml:"fallback_base_url"`
	DatabasePath       *string `yaml:"database_path"`
	CacheTTL           *string `yaml:"cache_ttl"`
	APIDelay           *string `yaml:"api_delay"`
	MaxAttempts        *int    `yaml:"max_retries"`
	BackoffBase        *string `yaml:"backoff_base"`
	Concurrency        *int    `yaml:"concurrency"`
	CallTimeout        *string `yaml:"call_timeout"`
	RedisURL           *string `yaml:"redis_url"`
	HistoryDatabaseURL *string `yaml:"history_database_url"`
	LogLevel           *string `yaml:"log_level"`
}

func (f fileConfig) apply(c *Config) error {
	setString(&c.SerpAPIKey, f.SerpAPIKey)
	setString(&c.FallbackSerpAPIKey, f.FallbackSerpAPIKey)
	setString(&c.FallbackBaseURL, f.FallbackBaseURL)
	setString(&c.DatabasePath, f.DatabasePath)
	setString(&c.RedisURL, f.RedisURL)
	setString(&c.HistoryDatabaseURL, f.HistoryDatabaseURL)
	setString(&c.LogLevel, f.LogLevel)
	if f.MaxAttempts != nil {
		c.MaxAttempts = *f.MaxAttempts
	}
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	durations := []struct {
		field string
		src   *string
		dst   *time.Duration
		unit  time.Duration
	}{
		{"cache_ttl", f.CacheTTL, &c.CacheTTL, time.Second},
		{"api_delay", f.APIDelay, &c.APIDelay, time.Millisecond},
		{"backoff_base", f.BackoffBase, &c.BackoffBase, time.Millisecond},
		{"call_timeout", f.CallTimeout, &c.CallTimeout, time.Second},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := parseDuration(*d.src, d.unit)
		if err != nil {
			return &ConfigurationError{Field: d.field, Reason: err.Error()}
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// parseDuration accepts a Go duration string or a bare integer in unit.
func parseDuration(s string, unit time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * unit, nil
	}
	return time.ParseDuration(s)
}

type lookupFunc func(string) (string, bool)

func (c *Config) loadEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"FLIGHTFINDER_SERPAPI_KEY":          &c.SerpAPIKey,
		"FLIGHTFINDER_FALLBACK_SERPAPI_KEY": &c.FallbackSerpAPIKey,
		"FLIGHTFINDER_FALLBACK_BASE_URL":    &c.FallbackBaseURL,
		"FLIGHTFINDER_DB":                   &c.DatabasePath,
		"FLIGHTFINDER_REDIS_URL":            &c.RedisURL,
		"FLIGHTFINDER_HISTORY_DATABASE_URL": &c.HistoryDatabaseURL,
		"FLIGHTFINDER_LOG_LEVEL":            &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FLIGHTFINDER_MAX_RETRIES": &c.MaxAttempts,
		"FLIGHTFINDER_CONCURRENCY": &c.Concurrency,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Field: name, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		*dst = n
	}

	durs := map[string]struct {
		dst  *time.Duration
		unit time.Duration
	}{
		"FLIGHTFINDER_CACHE_TTL":            {&c.CacheTTL, time.Second},
		"FLIGHTFINDER_API_DELAY_MS":         {&c.APIDelay, time.Millisecond},
		"FLIGHTFINDER_BACKOFF_MS":           {&c.BackoffBase, time.Millisecond},
		"FLIGHTFINDER_CALL_TIMEOUT_SECONDS": {&c.CallTimeout, time.Second},
	}
	for name, d := range durs {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		dur, err := parseDuration(v, d.unit)
		if err != nil {
			return &ConfigurationError{Field: name, Reason: err.Error()}
		}
		*d.dst = dur
	}
	return nil
}

// Validate checks settings that would make a search misbehave. A missing
// SerpAPI key is not checked here; see RequireCredentials.
func (c Config) Validate() error {
	switch {
	case c.CacheTTL < 0:
		return &ConfigurationError{Field: "cache_ttl", Reason: "must not be negative"}
	case c.APIDelay < 0:
		return &ConfigurationError{Field: "api_delay", Reason: "must not be negative"}
	case c.MaxAttempts < 1:
		return &ConfigurationError{Field: "max_retries", Reason: "must be at least 1"}
	case c.BackoffBase < 0:
		return &ConfigurationError{Field: "backoff_base", Reason: "must not be negative"}
	case c.Concurrency < 1:
		return &ConfigurationError{Field: "concurrency", Reason: "must be at least 1"}
	case c.CallTimeout <= 0:
		return &ConfigurationError{Field: "call_timeout", Reason: "must be positive"}
	case c.DatabasePath == "":
		return &ConfigurationError{Field: "database_path", Reason: "must be set"}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigurationError{Field: "log_level", Reason: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	return nil
}

// RequireCredentials fails when no primary SerpAPI key is configured.
func (c Config) RequireCredentials() error {
	if strings.TrimSpace(c.SerpAPIKey) == "" {
		return &ConfigurationError{Field: "serpapi_key", Reason: "set FLIGHTFINDER_SERPAPI_KEY or serpapi_key in the config file"}
	}
	return nil
}
