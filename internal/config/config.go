package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Queue persistence backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	ServerPort   string
	APIBaseURL   string
	FeedURL      string
	QueueBackend string
	RedisURL     string
	SQLitePath   string
	QueueKey     string
	MaxAttempts  int
	LedgerGrace  time.Duration
	LogLevel     string
}

func LoadConfig() (*Config, error) {
	graceStr := getEnv("LEDGER_GRACE", "5s")
	grace, err := time.ParseDuration(graceStr)
	if err != nil {
		return nil, errors.New("invalid LEDGER_GRACE format")
	}

	attemptsStr := getEnv("QUEUE_MAX_ATTEMPTS", "5")
	attempts, err := strconv.Atoi(attemptsStr)
	if err != nil || attempts < 1 {
		return nil, errors.New("invalid QUEUE_MAX_ATTEMPTS")
	}

	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		APIBaseURL:   getEnv("API_BASE_URL", ""),
		FeedURL:      getEnv("FEED_URL", ""),
		QueueBackend: getEnv("QUEUE_BACKEND", BackendSQLite),
		RedisURL:     os.Getenv("REDIS_URL"),
		SQLitePath:   getEnv("SQLITE_PATH", "hoodsync.db"),
		QueueKey:     getEnv("QUEUE_KEY", "hoodsync:queue"),
		MaxAttempts:  attempts,
		LedgerGrace:  grace,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	switch cfg.QueueBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis queue backend")
		}
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
