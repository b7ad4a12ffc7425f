// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration for the price service.
type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	StoreDriver           string // postgres | sqlite
	DatabaseURL           string
	SQLitePath            string
	RedisURL              string
	ScrapeIntervalMinutes int // How often the cron job fires
	WorkerConcurrency     int
	StoreRPS              float64 // Outbound requests per second per storefront
	StoreBurst            int
	ExtractorURL          string // Optional extraction sidecar
	VocabularyFile        string // Optional YAML override of the text vocabularies
	NotifyDedupTTL        time.Duration
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	driver := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, driver)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if driver == DriverPostgres && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "price-service.db"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	interval, err := positiveInt("SCRAPE_INTERVAL_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	workers, err := positiveInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	burst, err := positiveInt("STORE_BURST", 2)
	if err != nil {
		return nil, err
	}
	ttlHours, err := positiveInt("NOTIFY_DEDUP_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}

	rps := 1.0
	if s := os.Getenv("STORE_RPS"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("STORE_RPS must be a non-negative number, got %q", s)
		}
		rps = v
	}

	port := os.Getenv("PRICE_SERVICE_PORT")
	if port == "" {
		port = "8083"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return &Config{
		Port:                  port,
		Env:                   env,
		LogLevel:              level,
		StoreDriver:           driver,
		DatabaseURL:           dbURL,
		SQLitePath:            sqlitePath,
		RedisURL:              redisURL,
		ScrapeIntervalMinutes: interval,
		WorkerConcurrency:     workers,
		StoreRPS:              rps,
		StoreBurst:            burst,
		ExtractorURL:          os.Getenv("EXTRACTOR_URL"),
		VocabularyFile:        os.Getenv("VOCABULARY_FILE"),
		NotifyDedupTTL:        time.Duration(ttlHours) * time.Hour,
	}, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}
