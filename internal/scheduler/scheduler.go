// Package scheduler wires up the cron job that periodically scrapes every
// tracked price variant on a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
)

// Store lists the units a cycle scrapes. productID 0 means every product.
type Store interface {
	ListScrapeUnits(ctx context.Context, productID int64) ([]model.ScrapeUnit, error)
}

// Runner executes one job. scraper.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, cycleID string, unit model.ScrapeUnit) jobs.Outcome
}

// Summary aggregates the outcomes of one cycle.
type Summary struct {
	CycleID   string        `json:"cycleId"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Rejected  int           `json:"rejected"`
	Notified  int           `json:"notified"`
	Duration  time.Duration `json:"duration"`
}

// Summarize counts outcomes by status.
func Summarize(cycleID string, outcomes []jobs.Outcome, took time.Duration) Summary {
	s := Summary{CycleID: cycleID, Total: len(outcomes), Duration: took}
	for _, o := range outcomes {
		switch o.Status {
		case jobs.StatusSucceeded:
			s.Succeeded++
			if o.VariantStatus == "rejected" {
				s.Rejected++
			}
		case jobs.StatusFailed:
			s.Failed++
		}
		s.Notified += o.Notified
	}
	return s
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron        *cron.Cron
	store       Store
	runner      Runner
	concurrency int
	spec        string // cron spec, e.g. "@every 60m"
	newCycleID  func() string
	logger      *slog.Logger
}

// New creates a Scheduler that fires every intervalMinutes minutes and runs
// at most concurrency jobs at once.
func New(s Store, r Runner, intervalMinutes, concurrency int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		store:       s,
		runner:      r,
		concurrency: concurrency,
		spec:        fmt.Sprintf("@every %dm", intervalMinutes),
		newCycleID:  uuid.NewString,
		logger:      logger,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so prices are fresh without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runLogged(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec, "concurrency", s.concurrency)

	// Run immediately on startup (non-blocking)
	go s.runLogged(ctx)

	return nil
}

// Stop halts the cron and waits for a running cycle to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("cron stopped")
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Error("scrape cycle failed", "err", err)
	}
}

// RunCycle scrapes every unit once under a fresh cycle id.
func (s *Scheduler) RunCycle(ctx context.Context) (Summary, error) {
	cycleID := s.newCycleID()
	start := time.Now()
	outcomes, err := s.run(ctx, cycleID, 0)
	if err != nil {
		return Summary{CycleID: cycleID}, err
	}
	return Summarize(cycleID, outcomes, time.Since(start)), nil
}

// RunProduct scrapes every variant of one product under a fresh cycle id.
func (s *Scheduler) RunProduct(ctx context.Context, productID int64) (string, []jobs.Outcome, error) {
	cycleID := s.newCycleID()
	outcomes, err := s.run(ctx, cycleID, productID)
	return cycleID, outcomes, err
}

func (s *Scheduler) run(ctx context.Context, cycleID string, productID int64) ([]jobs.Outcome, error) {
	log := s.logger.With("cycle_id", cycleID)
	start := time.Now()

	units, err := s.store.ListScrapeUnits(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list scrape units: %w", err)
	}
	if len(units) == 0 {
		log.Info("no scrape units, nothing to do", "product_id", productID)
		return []jobs.Outcome{}, nil
	}

	log.Info("scrape cycle started", "units", len(units), "product_id", productID)
	outcomes := s.runUnits(ctx, cycleID, units)

	sum := Summarize(cycleID, outcomes, time.Since(start))
	log.Info("scrape cycle complete",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"rejected", sum.Rejected,
		"notified", sum.Notified,
		"duration", sum.Duration,
	)
	return outcomes, nil
}

// runUnits fans units out to at most s.concurrency workers. Workers hand
// their outcomes back over a channel; units not yet started when ctx ends
// are skipped.
func (s *Scheduler) runUnits(ctx context.Context, cycleID string, units []model.ScrapeUnit) []jobs.Outcome {
	results := make(chan jobs.Outcome, len(units))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		unit := unit
		g.Go(func() error {
			results <- s.runner.Run(ctx, cycleID, unit)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	outcomes := make([]jobs.Outcome, 0, len(units))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].ProductID != outcomes[j].ProductID {
			return outcomes[i].ProductID < outcomes[j].ProductID
		}
		return outcomes[i].VariantID < outcomes[j].VariantID
	})
	return outcomes
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
