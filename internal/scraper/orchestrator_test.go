package scraper_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartshop/price-service/internal/alerts"
	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/notify"
	"smartshop/price-service/internal/reconcile"
	"smartshop/price-service/internal/scraper"
	"smartshop/price-service/internal/scraper/adapters"
	"smartshop/price-service/internal/store"
	"smartshop/price-service/internal/store/sqlite"
	"smartshop/price-service/internal/variant"
)

const link = "https://www.amazon.de/dp/B0CHX1W1XY"

type adapterFunc func(ctx context.Context, link string) (*model.ScrapedListing, error)

func (f adapterFunc) FetchListing(ctx context.Context, link string) (*model.ScrapedListing, error) {
	return f(ctx, link)
}

func listingAt(price string) adapterFunc {
	return func(_ context.Context, link string) (*model.ScrapedListing, error) {
		return &model.ScrapedListing{
			Title:       "Apple iPhone 15 128GB Schwarz",
			Price:       price,
			Currency:    "€",
			ProductLink: link,
		}, nil
	}
}

type recordingDispatcher struct {
	requests []notify.Request
	err      error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, r notify.Request) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	d.requests = append(d.requests, r)
	return true, nil
}

type fixture struct {
	store      *sqlite.Store
	dispatcher *recordingDispatcher
	unit       model.ScrapeUnit
}

func newFixture(t *testing.T, storeName string) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "scraper.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storeID, err := s.CreateSellerStore(ctx, storeName)
	require.NoError(t, err)
	p := &model.Product{Name: "iPhone 15", Brand: "Apple"}
	require.NoError(t, s.CreateProduct(ctx, p))
	v, err := s.InsertVariant(ctx, model.PriceVariant{
		ProductID:     p.ID,
		Color:         "Black",
		RAMGB:         model.RAMUnknown,
		StorageGB:     128,
		SellerStoreID: storeID,
		ProductLink:   link,
		Price:         799,
		Currency:      "EUR",
		Availability:  true,
		LastUpdated:   time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	return &fixture{
		store:      s,
		dispatcher: &recordingDispatcher{},
		unit:       model.ScrapeUnit{ProductID: p.ID, VariantID: v.ID},
	}
}

func (f *fixture) orchestrator(a adapters.Adapter) *scraper.Orchestrator {
	reg := scraper.NewRegistry()
	reg.Register("amazon", a)
	return scraper.New(scraper.Deps{
		Store:      f.store,
		Registry:   reg,
		Reconciler: reconcile.New(f.store, nil, nil),
		Evaluator:  alerts.New(f.store),
		Dispatcher: f.dispatcher,
	})
}

func (f *fixture) history(t *testing.T) []model.PriceHistoryEntry {
	t.Helper()
	h, err := f.store.ListHistory(context.Background(), f.unit.VariantID, 0)
	require.NoError(t, err)
	return h
}

func (f *fixture) alert(t *testing.T, threshold float64) *model.PriceAlert {
	t.Helper()
	a := &model.PriceAlert{UserID: 7, ProductID: f.unit.ProductID, Threshold: threshold}
	require.NoError(t, f.store.CreateAlert(context.Background(), a))
	return a
}

func TestRun_UpdatesPrice(t *testing.T) {
	f := newFixture(t, "Amazon.de")

	out := f.orchestrator(listingAt("749,00 €")).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusSucceeded, out.Status)
	assert.Equal(t, "updated", out.VariantStatus)
	assert.NotNil(t, out.FinishedAt)
	h := f.history(t)
	require.Len(t, h, 2)
	assert.Equal(t, 749.0, h[0].Price)
	assert.Equal(t, 799.0, h[1].Price)
	assert.Empty(t, f.dispatcher.requests)
}

func TestRun_CanonicalLinkUpdatesTrackedVariant(t *testing.T) {
	f := newFixture(t, "Amazon")
	canonical := adapterFunc(func(context.Context, string) (*model.ScrapedListing, error) {
		return &model.ScrapedListing{
			Title:       "Apple iPhone 15 128GB Schwarz",
			Price:       "739,00 €",
			Currency:    "€",
			ProductLink: "https://www.amazon.de/Apple-iPhone-15/dp/B0CHX1W1XY",
		}, nil
	})

	out := f.orchestrator(canonical).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusSucceeded, out.Status)
	assert.Equal(t, "updated", out.VariantStatus)

	p, err := f.store.GetProductWithVariants(context.Background(), store.ProductFilter{ID: f.unit.ProductID})
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, f.unit.VariantID, p.Variants[0].ID)
	assert.Equal(t, 739.0, p.Variants[0].Price)
	assert.Equal(t, link, p.Variants[0].ProductLink)

	h := f.history(t)
	require.Len(t, h, 2)
	assert.Equal(t, 739.0, h[0].Price)
}

func TestRun_TriggeredAlertDispatchedOnce(t *testing.T) {
	f := newFixture(t, "Amazon")
	a := f.alert(t, 700)
	f.alert(t, 500)

	out := f.orchestrator(listingAt("649,00 €")).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusSucceeded, out.Status)
	assert.Equal(t, 1, out.Notified)
	require.Len(t, f.dispatcher.requests, 1)
	req := f.dispatcher.requests[0]
	assert.Equal(t, a.ID, req.AlertID)
	assert.Equal(t, 649.0, req.Price)
	assert.Equal(t, "cycle-1", req.CycleID)

	active, err := f.store.FindActiveAlerts(context.Background(), f.unit.ProductID, variant.Filter{})
	require.NoError(t, err)
	for _, got := range active {
		if got.ID == a.ID {
			assert.NotNil(t, got.LastNotifiedAt)
		} else {
			assert.Nil(t, got.LastNotifiedAt)
		}
	}
}

func TestRun_UnsupportedStore(t *testing.T) {
	f := newFixture(t, "Otto")
	called := false
	a := adapterFunc(func(context.Context, string) (*model.ScrapedListing, error) {
		called = true
		return nil, nil
	})

	out := f.orchestrator(a).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.False(t, out.Retryable)
	assert.Contains(t, out.Reason, "unsupported store")
	assert.False(t, called)
}

func TestRun_MissingPriceWritesNothing(t *testing.T) {
	f := newFixture(t, "Amazon")
	f.alert(t, 10000)

	out := f.orchestrator(listingAt("")).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.True(t, out.Retryable)
	assert.Contains(t, out.Reason, "no listing")
	assert.Len(t, f.history(t), 1)
	assert.Empty(t, f.dispatcher.requests)

	p, err := f.store.GetProductWithVariants(context.Background(), store.ProductFilter{ID: f.unit.ProductID})
	require.NoError(t, err)
	assert.Equal(t, 799.0, p.Variants[0].Price)
}

func TestRun_NilListing(t *testing.T) {
	f := newFixture(t, "Amazon")
	a := adapterFunc(func(context.Context, string) (*model.ScrapedListing, error) { return nil, nil })

	out := f.orchestrator(a).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.True(t, out.Retryable)
}

func TestRun_FetchErrorIsRetryable(t *testing.T) {
	f := newFixture(t, "Amazon")
	a := adapterFunc(func(context.Context, string) (*model.ScrapedListing, error) {
		return nil, errors.New("connection reset")
	})

	out := f.orchestrator(a).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.True(t, out.Retryable)
	assert.Contains(t, out.Reason, "connection reset")
}

func TestRun_UnknownVariant(t *testing.T) {
	f := newFixture(t, "Amazon")
	unit := model.ScrapeUnit{ProductID: f.unit.ProductID, VariantID: f.unit.VariantID + 100}

	out := f.orchestrator(listingAt("649,00")).Run(context.Background(), "cycle-1", unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.False(t, out.Retryable)
}

func TestRun_UnknownProduct(t *testing.T) {
	f := newFixture(t, "Amazon")

	out := f.orchestrator(listingAt("649,00")).Run(context.Background(), "cycle-1", model.ScrapeUnit{ProductID: 999, VariantID: 1})

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.False(t, out.Retryable)
}

func TestRun_RejectedListingSucceeds(t *testing.T) {
	f := newFixture(t, "Amazon")

	out := f.orchestrator(listingAt("auf Anfrage")).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusSucceeded, out.Status)
	assert.Equal(t, "rejected", out.VariantStatus)
	assert.Equal(t, string(reconcile.ReasonPriceUnparsed), out.Reason)
	assert.Len(t, f.history(t), 1)
}

func TestRun_DispatchFailureKeepsPriceWrite(t *testing.T) {
	f := newFixture(t, "Amazon")
	f.alert(t, 700)
	f.dispatcher.err = errors.New("redis down")

	out := f.orchestrator(listingAt("649,00 €")).Run(context.Background(), "cycle-1", f.unit)

	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.True(t, out.Retryable)
	assert.Equal(t, 0, out.Notified)
	h := f.history(t)
	require.Len(t, h, 2)
	assert.Equal(t, 649.0, h[0].Price)
}

func TestRun_ReportsOutcome(t *testing.T) {
	f := newFixture(t, "Amazon")

	out := f.orchestrator(listingAt("749,00 €")).Run(context.Background(), "cycle-7", f.unit)

	stored, err := f.store.ListJobOutcomes(context.Background(), "cycle-7")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, out.JobID, stored[0].JobID)
	assert.Equal(t, jobs.StatusSucceeded, stored[0].Status)
	assert.Equal(t, "updated", stored[0].VariantStatus)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := scraper.NewRegistry()
	amazon := listingAt("1")
	reg.Register("amazon", amazon)
	reg.Register("ebay", listingAt("2"))

	a, err := reg.Resolve("Amazon.de Marketplace")
	require.NoError(t, err)
	assert.NotNil(t, a)

	_, err = reg.Resolve("eBay Kleinanzeigen")
	require.NoError(t, err)

	_, err = reg.Resolve("MediaMarkt")
	assert.ErrorIs(t, err, scraper.ErrUnsupportedStore)
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := scraper.DefaultRegistry("", adapters.HTTPOptions{})
	require.NoError(t, err)
	_, err = reg.Resolve("amazon.de")
	assert.NoError(t, err)

	reg, err = scraper.DefaultRegistry("http://extractor:9000", adapters.HTTPOptions{})
	require.NoError(t, err)
	_, err = reg.Resolve("ebay")
	assert.NoError(t, err)

	_, err = scraper.DefaultRegistry("://bad", adapters.HTTPOptions{})
	assert.Error(t, err)
}
