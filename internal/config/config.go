package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string
	WorkerID    string

	ReconcileInterval   time.Duration
	ScheduleGraceTTL    time.Duration
	ReplayCommand       string
	MaxConnections      int64
	MaxConnectionsPerIP int
	ConnectionRate      float64
	ConnectionBurst     int
}

func Load() (*Config, error) {
	// Development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		WorkerID:    getEnv("WORKER_ID", ""),

		ReplayCommand: getEnv("REPLAY_COMMAND", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("WORKER_ID not set and hostname unavailable: %w", err)
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	var err error
	cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ScheduleGraceTTL, err = getDuration("SCHEDULE_GRACE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}

	cfg.MaxConnections, err = getInt64("MAX_CONNECTIONS", 10000)
	if err != nil {
		return nil, err
	}
	maxPerIP, err := getInt64("MAX_CONNECTIONS_PER_IP", 20)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnectionsPerIP = int(maxPerIP)
	cfg.ConnectionRate, err = getFloat("CONNECTION_RATE", 10)
	if err != nil {
		return nil, err
	}
	burst, err := getInt64("CONNECTION_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionBurst = int(burst)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 10m): %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
