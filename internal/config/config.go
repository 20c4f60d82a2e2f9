package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL          string
	DBFile           string
	PollInterval     time.Duration
	HTTPTimeout      time.Duration
	ChatHistoryLimit int
	LogLevel         slog.Level
}

// Load reads the configuration from the environment. Variables from
// envFile are applied first without overriding the real environment.
// The result is not validated; callers apply their overrides and then
// call Validate.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("POLL_INTERVAL: %w", err)
	}

	httpTimeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("HTTP_TIMEOUT: %w", err)
	}

	historyLimit, err := strconv.Atoi(getEnv("CHAT_HISTORY_LIMIT", "500"))
	if err != nil {
		return nil, fmt.Errorf("CHAT_HISTORY_LIMIT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		BaseURL:          strings.TrimSuffix(getEnv("MISSIONBOARD_URL", "http://localhost:8000"), "/"),
		DBFile:           getEnv("MISSIONBOARD_DB", "missionboard.db"),
		PollInterval:     pollInterval,
		HTTPTimeout:      httpTimeout,
		ChatHistoryLimit: historyLimit,
		LogLevel:         level,
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MISSIONBOARD_URL must be an http(s) URL, got %q", c.BaseURL)
	}

	if c.DBFile == "" {
		return fmt.Errorf("MISSIONBOARD_DB is required")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be greater than 0")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be greater than 0")
	}

	if c.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
