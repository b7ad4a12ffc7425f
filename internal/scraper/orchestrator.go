// Package scraper drives one scrape job end to end: load the variant, fetch
// its listing from the storefront, reconcile the price, evaluate alerts and
// dispatch notifications.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"smartshop/price-service/internal/alerts"
	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/notify"
	"smartshop/price-service/internal/ratelimit"
	"smartshop/price-service/internal/reconcile"
	"smartshop/price-service/internal/store"
)

// ErrNoListing is returned when the adapter produced nothing usable.
var ErrNoListing = errors.New("no listing")

// Store is the persistence the orchestrator needs directly.
type Store interface {
	GetProductWithVariants(ctx context.Context, f store.ProductFilter) (*model.Product, error)
	MarkAlertNotified(ctx context.Context, alertID int64, at time.Time) error
	ReportJobOutcome(ctx context.Context, o jobs.Outcome) error
}

// Dispatcher enqueues notification requests. It reports false for a
// request it already saw.
type Dispatcher interface {
	Enqueue(ctx context.Context, r notify.Request) (bool, error)
}

// Orchestrator runs scrape jobs. One Orchestrator is shared by all workers;
// every job is independent.
type Orchestrator struct {
	store      Store
	registry   *Registry
	limiter    *ratelimit.KeyedRateLimiter
	reconciler *reconcile.Reconciler
	evaluator  *alerts.Evaluator
	dispatcher Dispatcher
	validate   *validator.Validate
	now        func() time.Time
	logger     *slog.Logger
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Store      Store
	Registry   *Registry
	Limiter    *ratelimit.KeyedRateLimiter
	Reconciler *reconcile.Reconciler
	Evaluator  *alerts.Evaluator
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// New constructs an Orchestrator. Limiter may be nil.
func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      d.Store,
		registry:   d.Registry,
		limiter:    d.Limiter,
		reconciler: d.Reconciler,
		evaluator:  d.Evaluator,
		dispatcher: d.Dispatcher,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "scraper"),
	}
}

// Run executes one job for unit and returns its final outcome. Failures are
// reported in the outcome, never returned.
func (o *Orchestrator) Run(ctx context.Context, cycleID string, unit model.ScrapeUnit) jobs.Outcome {
	out := jobs.New(cycleID, unit)
	log := o.logger.With("job_id", out.JobID, "product_id", unit.ProductID, "variant_id", unit.VariantID)

	_ = out.Start(o.now())
	o.report(ctx, log, out)

	variantStatus, reason, err := o.run(ctx, log, cycleID, unit, out)
	if err != nil {
		// Retried only by the next cycle.
		retryable := !errors.Is(err, store.ErrNotFound) && !errors.Is(err, ErrUnsupportedStore)
		_ = out.Fail(o.now(), err.Error(), retryable)
		log.Warn("job failed", "reason", err.Error(), "retryable", retryable, "took", out.Duration())
	} else {
		_ = out.Succeed(o.now(), variantStatus, reason)
		log.Info("job done", "variant_status", variantStatus, "notified", out.Notified, "took", out.Duration())
	}

	o.report(ctx, log, out)
	return *out
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, cycleID string, unit model.ScrapeUnit, out *jobs.Outcome) (string, string, error) {
	// ── Load ───────────────────────────────────────────
	product, err := o.store.GetProductWithVariants(ctx, store.ProductFilter{ID: unit.ProductID})
	if err != nil {
		return "", "", fmt.Errorf("load product %d: %w", unit.ProductID, err)
	}
	target, ok := product.Variant(unit.VariantID)
	if !ok {
		return "", "", fmt.Errorf("variant %d of product %d: %w", unit.VariantID, unit.ProductID, store.ErrNotFound)
	}

	// ── Fetch ──────────────────────────────────────────
	adapter, err := o.registry.Resolve(target.Store.Name)
	if err != nil {
		return "", "", err
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, target.Store.Name); err != nil {
			return "", "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	listing, err := adapter.FetchListing(ctx, target.ProductLink)
	if err != nil {
		return "", "", fmt.Errorf("fetch listing: %w", err)
	}
	if listing == nil {
		return "", "", ErrNoListing
	}
	if err := o.validate.Struct(listing); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNoListing, err)
	}
	// The job is about the tracked variant; a canonical or redirected link
	// reported by the storefront must not spawn a second variant.
	if listing.ProductLink != target.ProductLink {
		log.Debug("listing link differs from tracked link", "listing_link", listing.ProductLink, "link", target.ProductLink)
		listing.ProductLink = target.ProductLink
	}
	if listing.SellerStoreID == 0 {
		listing.SellerStoreID = target.SellerStoreID
	}
	if listing.StoreName == "" {
		listing.StoreName = target.Store.Name
	}

	// ── Reconcile ──────────────────────────────────────
	res, err := o.reconciler.Reconcile(ctx, product, *listing)
	if err != nil {
		return "", "", fmt.Errorf("reconcile: %w", err)
	}
	if res.Status == reconcile.StatusRejected {
		return string(res.Status), string(res.Reason), nil
	}

	// ── Alerts ─────────────────────────────────────────
	obs := alerts.FromVariant(*res.Variant)
	triggered, err := o.evaluator.FindTriggeredAlerts(ctx, product.ID, obs)
	if err != nil {
		return string(res.Status), "", fmt.Errorf("evaluate alerts: %w", err)
	}

	for _, req := range alerts.Requests(triggered, product.ID, obs, cycleID) {
		sent, err := o.dispatcher.Enqueue(ctx, req)
		if err != nil {
			return string(res.Status), "", fmt.Errorf("dispatch alert %d: %w", req.AlertID, err)
		}
		if !sent {
			continue
		}
		out.Notified++
		if err := o.store.MarkAlertNotified(ctx, req.AlertID, o.now()); err != nil {
			log.Warn("mark alert notified failed", "alert_id", req.AlertID, "err", err)
		}
	}

	return string(res.Status), "", nil
}

// report persists the job state (non-fatal).
func (o *Orchestrator) report(ctx context.Context, log *slog.Logger, out *jobs.Outcome) {
	if err := o.store.ReportJobOutcome(ctx, *out); err != nil {
		log.Warn("report job outcome failed", "status", out.Status, "err", err)
	}
}
