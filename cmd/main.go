// smartshop price-service
//
// Tracks smartphone prices across storefronts:
//   - cron-driven scrape cycles over every tracked price variant
//   - reconciliation of scraped listings into prices + price_history
//   - price-drop alerts queued to Redis (notify:queue) with EVENT_PRICE_DROP
//   - a small operational HTTP API (health, product views, on-demand scrape)
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartshop/price-service/internal/alerts"
	"smartshop/price-service/internal/api"
	"smartshop/price-service/internal/config"
	"smartshop/price-service/internal/db"
	"smartshop/price-service/internal/logger"
	"smartshop/price-service/internal/notify"
	"smartshop/price-service/internal/ratelimit"
	"smartshop/price-service/internal/reconcile"
	"smartshop/price-service/internal/scheduler"
	"smartshop/price-service/internal/scraper"
	"smartshop/price-service/internal/scraper/adapters"
	"smartshop/price-service/internal/store/postgres"
	"smartshop/price-service/internal/store/sqlite"
	"smartshop/price-service/internal/textnorm"
)

// priceStore is everything the pipeline and the API read and write.
type priceStore interface {
	reconcile.Store
	alerts.Store
	scraper.Store
	scheduler.Store
	api.Store
}

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[price-service] .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[price-service] Config error: %v", err)
	}

	lg := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Store ───────────────────────────────────────────────────────────────
	st, ping, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		fatal(lg, "store", err)
	}
	defer closeStore()

	// ── Redis ───────────────────────────────────────────────────────────────
	lg.Info("connecting to redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		fatal(lg, "redis", err)
	}
	defer rdb.Close()
	lg.Info("redis connected")

	// ── Pipeline ────────────────────────────────────────────────────────────
	norm := textnorm.Default()
	if cfg.VocabularyFile != "" {
		vocab, err := textnorm.LoadVocabulary(cfg.VocabularyFile)
		if err == nil {
			norm, err = textnorm.New(vocab)
		}
		if err != nil {
			fatal(lg, "vocabulary", err)
		}
		lg.Info("vocabulary loaded", "file", cfg.VocabularyFile)
	}

	registry, err := scraper.DefaultRegistry(cfg.ExtractorURL, adapters.HTTPOptions{Timeout: 20 * time.Second})
	if err != nil {
		fatal(lg, "adapters", err)
	}

	orch := scraper.New(scraper.Deps{
		Store:      st,
		Registry:   registry,
		Limiter:    ratelimit.New(cfg.StoreRPS, cfg.StoreBurst),
		Reconciler: reconcile.New(st, norm, lg),
		Evaluator:  alerts.New(st),
		Dispatcher: notify.NewRedisDispatcher(rdb, cfg.NotifyDedupTTL, lg),
		Logger:     lg,
	})

	// ── Scheduler ───────────────────────────────────────────────────────────
	sched := scheduler.New(st, orch, cfg.ScrapeIntervalMinutes, cfg.WorkerConcurrency, lg)
	if err := sched.Start(ctx); err != nil {
		fatal(lg, "scheduler", err)
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(st, sched, ping, lg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // on-demand scrapes run inline
	}

	go func() {
		lg.Info("listening", "version", api.Version, "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(lg, "http server", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", "err", err)
	}
	cancel()
	sched.Stop(shutdownCtx)
	lg.Info("stopped")
}

func openStore(ctx context.Context, cfg *config.Config, lg *slog.Logger) (priceStore, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		lg.Info("opening sqlite store", "path", cfg.SQLitePath)
		s, err := sqlite.Open(cfg.SQLitePath, lg)
		if err != nil {
			return nil, nil, nil, err
		}
		ping := func(context.Context) error { return s.Ping() }
		return s, ping, func() { s.Close() }, nil

	default:
		lg.Info("connecting to postgres")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, int32(cfg.WorkerConcurrency+4))
		if err != nil {
			return nil, nil, nil, err
		}
		s := postgres.New(pool, lg)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		lg.Info("postgres connected")
		return s, s.Ping, pool.Close, nil
	}
}

func fatal(lg *slog.Logger, what string, err error) {
	lg.Error("fatal", "what", what, "err", err)
	os.Exit(1)
}
