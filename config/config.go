// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Prefix is prepended to every variable name, e.g. EXTRAS_ADDR.
const Prefix = "EXTRAS"

// Config holds runtime configuration for the server.
type Config struct {
	Addr   string `envconfig:"ADDR" default:":8080"`
	DBPath string `envconfig:"DB_PATH" default:"extras.db"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty RedisAddr selects the in-process locker.
	RedisAddr string        `envconfig:"REDIS_ADDR"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	DefaultDailyRate string `envconfig:"DEFAULT_DAILY_RATE" default:"0"`
	RulesFile        string `envconfig:"RULES_FILE"`

	ScanEnabled  bool          `envconfig:"SCAN_ENABLED" default:"true"`
	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"1h"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSOrigins        []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	rate, err := c.DailyRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return errors.New("default daily rate must be >= 0")
	}
	if c.LockTTL <= 0 {
		return errors.New("lock ttl must be positive")
	}
	if c.ScanEnabled && c.ScanInterval <= 0 {
		return errors.New("scan interval must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("rate limit must be >= 0")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// DailyRate parses DefaultDailyRate.
func (c *Config) DailyRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.DefaultDailyRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid default daily rate %q: %w", c.DefaultDailyRate, err)
	}
	return rate, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger returns a slog.Logger writing to w in the configured format.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg != nil {
		if lvl, err := cfg.Level(); err == nil {
			opts.Level = lvl
		}
		if strings.EqualFold(cfg.LogFormat, "json") {
			return slog.New(slog.NewJSONHandler(w, opts))
		}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
