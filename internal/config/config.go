// Package config loads runtime settings from the environment, with an
// optional YAML file applied underneath.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultCookieName  = "sid"
	DefaultSessionDays = 14
	DefaultPort        = "5050"
	DefaultSweepCron   = "@every 1h"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is empty")

// Config holds everything the server and the seed tool need.
type Config struct {
	CookieName  string
	SessionDays int
	Production  bool

	DBDriver    string
	DatabaseURL string

	Port      string
	LogLevel  string
	LogFormat string
	StaticDir string

	SweepCron     string
	ThrottleRPS   float64
	ThrottleBurst int

	AllowedOrigins []string
}

// fileConfig mirrors Config for the YAML overlay. Pointers distinguish
// "unset" from zero values.
type fileConfig struct {
	CookieName     *string  `yaml:"cookie_name"`
	SessionDays    *int     `yaml:"session_days"`
	Env            *string  `yaml:"env"`
	DBDriver       *string  `yaml:"db_driver"`
	DatabaseURL    *string  `yaml:"database_url"`
	Port           *string  `yaml:"port"`
	LogLevel       *string  `yaml:"log_level"`
	LogFormat      *string  `yaml:"log_format"`
	StaticDir      *string  `yaml:"static_dir"`
	SweepCron      *string  `yaml:"session_sweep_cron"`
	ThrottleRPS    *float64 `yaml:"api_throttle_rps"`
	ThrottleBurst  *int     `yaml:"api_throttle_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaults() Config {
	return Config{
		CookieName:     DefaultCookieName,
		SessionDays:    DefaultSessionDays,
		DBDriver:       DriverPostgres,
		Port:           DefaultPort,
		LogLevel:       "info",
		LogFormat:      "json",
		SweepCron:      DefaultSweepCron,
		ThrottleRPS:    20,
		ThrottleBurst:  40,
		AllowedOrigins: defaultOrigins,
	}
}

// Load builds a Config from defaults, then CONFIG_FILE (if set), then the
// environment.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.CookieName != nil && *fc.CookieName != "" {
		c.CookieName = *fc.CookieName
	}
	if fc.SessionDays != nil {
		c.SessionDays = sanitizeDays(*fc.SessionDays)
	}
	if fc.Env != nil {
		c.Production = isProduction(*fc.Env)
	}
	if fc.DBDriver != nil && *fc.DBDriver != "" {
		c.DBDriver = strings.ToLower(*fc.DBDriver)
	}
	if fc.DatabaseURL != nil {
		c.DatabaseURL = *fc.DatabaseURL
	}
	if fc.Port != nil && *fc.Port != "" {
		c.Port = *fc.Port
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	if fc.StaticDir != nil {
		c.StaticDir = *fc.StaticDir
	}
	if fc.SweepCron != nil {
		c.SweepCron = *fc.SweepCron
	}
	if fc.ThrottleRPS != nil {
		c.ThrottleRPS = *fc.ThrottleRPS
	}
	if fc.ThrottleBurst != nil {
		c.ThrottleBurst = *fc.ThrottleBurst
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_COOKIE_NAME"); v != "" {
		c.CookieName = v
	}
	if v, ok := os.LookupEnv("APP_SESSION_DAYS"); ok {
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			days = DefaultSessionDays
		}
		c.SessionDays = sanitizeDays(days)
	}

	// APP_ENV wins over NODE_ENV so existing deployments keep working.
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Production = isProduction(v)
	} else if v := os.Getenv("NODE_ENV"); v != "" {
		c.Production = isProduction(v)
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.DBDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
	if v, ok := os.LookupEnv("SESSION_SWEEP_CRON"); ok {
		c.SweepCron = strings.TrimSpace(v)
	}
	if v := os.Getenv("API_THROTTLE_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.ThrottleRPS = rps
		}
	}
	if v := os.Getenv("API_THROTTLE_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil && burst > 0 {
			c.ThrottleBurst = burst
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			c.AllowedOrigins = origins
		}
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.CookieName == "" {
		return errors.New("cookie name is empty")
	}
	return nil
}

// SessionTTL is the fixed lifetime of a session from creation.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionDays) * 24 * time.Hour
}

// CookieMaxAge is the session lifetime in seconds.
func (c Config) CookieMaxAge() int {
	return c.SessionDays * 24 * 60 * 60
}

func sanitizeDays(days int) int {
	if days <= 0 {
		return DefaultSessionDays
	}
	return days
}

func isProduction(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "production" || env == "prod"
}
