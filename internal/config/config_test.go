package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/prices")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"STORE_DRIVER", "SCRAPE_INTERVAL_MINUTES", "WORKER_CONCURRENCY",
		"STORE_RPS", "STORE_BURST", "PRICE_SERVICE_PORT", "NOTIFY_DEDUP_TTL_HOURS", "ENV", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverPostgres)
	}
	if cfg.Port != "8083" {
		t.Errorf("Port = %q, want 8083", cfg.Port)
	}
	if cfg.ScrapeIntervalMinutes != 60 || cfg.WorkerConcurrency != 4 || cfg.StoreBurst != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreRPS != 1.0 {
		t.Errorf("StoreRPS = %v, want 1", cfg.StoreRPS)
	}
	if cfg.NotifyDedupTTL != 24*time.Hour {
		t.Errorf("NotifyDedupTTL = %v, want 24h", cfg.NotifyDedupTTL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no database url", map[string]string{"DATABASE_URL": "", "REDIS_URL": "redis://x"}},
		{"no redis url", map[string]string{"DATABASE_URL": "postgres://x", "REDIS_URL": ""}},
		{"bad driver", map[string]string{"STORE_DRIVER": "mysql", "DATABASE_URL": "postgres://x", "REDIS_URL": "redis://x"}},
		{"bad interval", map[string]string{"SCRAPE_INTERVAL_MINUTES": "0", "DATABASE_URL": "postgres://x", "REDIS_URL": "redis://x"}},
		{"bad rps", map[string]string{"STORE_RPS": "fast", "DATABASE_URL": "postgres://x", "REDIS_URL": "redis://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "")
			t.Setenv("SCRAPE_INTERVAL_MINUTES", "")
			t.Setenv("STORE_RPS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_SQLiteNeedsNoDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SQLITE_PATH", "/tmp/prices.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.SQLitePath != "/tmp/prices.db" {
		t.Errorf("got driver %q path %q", cfg.StoreDriver, cfg.SQLitePath)
	}
}
