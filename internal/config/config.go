// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the backend configuration.
type Config struct {
	Port              string
	FrontendURL       string
	DBPath            string
	StepDelay         time.Duration
	RetentionInterval time.Duration
	RetentionMaxAge   time.Duration
	AllowedOrigins    []string
	LogLevel          string
	StreamQueueSize   int
	MetricsEnabled    bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "5000"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/assistant.db"),
		StepDelay:         getEnvDuration("STEP_DELAY", time.Second),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 5*time.Minute),
		RetentionMaxAge:   getEnvDuration("RETENTION_MAX_AGE", 7*24*time.Hour),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StreamQueueSize:   getEnvInt("STREAM_QUEUE_SIZE", 256),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("STEP_DELAY must be >= 0")
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0")
	}
	if c.RetentionMaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be > 0")
	}
	if c.StreamQueueSize <= 0 {
		return fmt.Errorf("STREAM_QUEUE_SIZE must be > 0")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// StreamOrigin is the origin accepted on the push channel outside development.
func (c *Config) StreamOrigin() string {
	if c.FrontendURL == "" {
		return "*"
	}
	return strings.TrimRight(c.FrontendURL, "/")
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
