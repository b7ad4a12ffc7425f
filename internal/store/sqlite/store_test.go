package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
	"smartshop/price-service/internal/variant"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedProduct inserts a product sold on one store and returns both ids.
func seedProduct(t *testing.T, s *Store) (productID, storeID int64) {
	t.Helper()
	ctx := context.Background()

	storeID, err := s.CreateSellerStore(ctx, "Amazon")
	require.NoError(t, err)

	p := &model.Product{Name: "iPhone 15", Brand: "Apple"}
	require.NoError(t, s.CreateProduct(ctx, p))
	return p.ID, storeID
}

func newVariant(productID, storeID int64, color string, storage int, link string) model.PriceVariant {
	return model.PriceVariant{
		ProductID:     productID,
		Color:         color,
		RAMGB:         model.RAMUnknown,
		StorageGB:     storage,
		SellerStoreID: storeID,
		ProductLink:   link,
		Price:         799,
		Currency:      "EUR",
		Availability:  true,
		LastUpdated:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"seller_stores", "products", "prices", "price_history", "price_alerts", "scraping_jobs"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	productID, _ := seedProduct(t, s)
	p, err := s.GetProductWithVariants(context.Background(), store.ProductFilter{ID: productID})
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", p.Name)
}

func TestCreateSellerStore_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSellerStore(ctx, "eBay")
	require.NoError(t, err)
	b, err := s.CreateSellerStore(ctx, "eBay")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetProductWithVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	_, err := s.InsertVariant(ctx, newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1"))
	require.NoError(t, err)
	_, err = s.InsertVariant(ctx, newVariant(productID, storeID, "White", 256, "https://amazon.de/dp/2"))
	require.NoError(t, err)

	p, err := s.GetProductWithVariants(ctx, store.ProductFilter{ID: productID})
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "Black", p.Variants[0].Color)
	assert.Equal(t, "Amazon", p.Variants[0].Store.Name)
	assert.Equal(t, storeID, p.Variants[0].Store.ID)
	assert.Equal(t, model.RAMUnknown, p.Variants[0].RAMGB)
	assert.Nil(t, p.RAMGB)

	byName, err := s.GetProductWithVariants(ctx, store.ProductFilter{Name: "IPHONE 15"})
	require.NoError(t, err)
	assert.Equal(t, productID, byName.ID)

	_, err = s.GetProductWithVariants(ctx, store.ProductFilter{ID: 999})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsertVariant_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	v := newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1")
	first, err := s.InsertVariant(ctx, v)
	require.NoError(t, err)

	_, err = s.InsertVariant(ctx, v)
	assert.ErrorIs(t, err, store.ErrDuplicateVariant)

	found, err := s.FindVariantByKey(ctx, v.Key())
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	// Same attributes, different link: a separate listing.
	v.ProductLink = "https://amazon.de/dp/1-renewed"
	_, err = s.InsertVariant(ctx, v)
	assert.NoError(t, err)
}

func TestUpdateVariantPrice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	v := newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1")
	shipping := 4.99
	v.ShippingCost = &shipping
	v.MainImgURL = "https://img/1.jpg"
	inserted, err := s.InsertVariant(ctx, v)
	require.NoError(t, err)

	observed := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	updated, err := s.UpdateVariantPrice(ctx, inserted.ID, model.PriceSnapshot{
		Price:        749.5,
		Currency:     "EUR",
		Availability: false,
		ObservedAt:   observed,
	})
	require.NoError(t, err)

	assert.Equal(t, 749.5, updated.Price)
	assert.False(t, updated.Availability)
	assert.True(t, observed.Equal(updated.LastUpdated))
	require.NotNil(t, updated.ShippingCost, "missing shipping keeps the stored value")
	assert.Equal(t, 4.99, *updated.ShippingCost)
	assert.Equal(t, "https://img/1.jpg", updated.MainImgURL)

	_, err = s.UpdateVariantPrice(ctx, 12345, model.PriceSnapshot{Price: 1, ObservedAt: observed})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, err := s.InsertVariant(ctx, newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1"))
	require.NoError(t, err)
	for i, price := range []float64{779, 749} {
		_, err := s.UpdateVariantPrice(ctx, v.ID, model.PriceSnapshot{
			Price:        price,
			Currency:     "EUR",
			Availability: true,
			ObservedAt:   base.Add(time.Duration(i+1) * time.Hour),
		})
		require.NoError(t, err)
	}

	entries, err := s.ListHistory(ctx, v.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 749.0, entries[0].Price, "newest first")
	assert.Equal(t, 799.0, entries[2].Price, "insert records the first price")
	assert.True(t, base.Equal(entries[2].RecordedAt))

	entries, err = s.ListHistory(ctx, v.ID, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, appendHistory(ctx, s.db, model.PriceHistoryEntry{PriceID: 999, Price: 1, RecordedAt: base}),
		"history must reference an existing variant")
}

func TestHistory_SubSecondOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	v := newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1")
	v.LastUpdated = base.Add(500 * time.Millisecond)
	inserted, err := s.InsertVariant(ctx, v)
	require.NoError(t, err)

	// Recorded later but observed earlier within the same second.
	_, err = s.UpdateVariantPrice(ctx, inserted.ID, model.PriceSnapshot{Price: 779, Currency: "EUR", ObservedAt: base})
	require.NoError(t, err)

	entries, err := s.ListHistory(ctx, inserted.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 799.0, entries[0].Price)
	assert.True(t, base.Add(500*time.Millisecond).Equal(entries[0].RecordedAt))
	assert.Equal(t, 779.0, entries[1].Price)

	assert.Equal(t, "2026-03-01T12:00:05.000000000Z", formatTime(base))
	assert.Equal(t, len(formatTime(base)), len(formatTime(base.Add(time.Nanosecond))))
}

func TestVariantWrites_RollBackWithHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	v, err := s.InsertVariant(ctx, newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1"))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `CREATE TRIGGER reject_history BEFORE INSERT ON price_history
		BEGIN SELECT RAISE(ABORT, 'history unavailable'); END`)
	require.NoError(t, err)

	_, err = s.UpdateVariantPrice(ctx, v.ID, model.PriceSnapshot{
		Price:      699,
		Currency:   "EUR",
		ObservedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history unavailable")

	got, err := s.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 799.0, got.Price, "price must not change without its history entry")
	assert.True(t, v.LastUpdated.Equal(got.LastUpdated))

	white := newVariant(productID, storeID, "White", 256, "https://amazon.de/dp/2")
	_, err = s.InsertVariant(ctx, white)
	require.Error(t, err)
	_, err = s.FindVariantByKey(ctx, white.Key())
	assert.ErrorIs(t, err, store.ErrNotFound, "variant must not exist without its history entry")

	_, err = s.db.ExecContext(ctx, `DROP TRIGGER reject_history`)
	require.NoError(t, err)
	entries, err := s.ListHistory(ctx, v.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 799.0, entries[0].Price)
}

func TestOpen_PragmasApplyToEveryConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conns := make([]*sql.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		c, err := s.db.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for _, c := range conns {
		var fk, timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, timeout)
		require.NoError(t, c.Close())
	}
}

func TestFindActiveAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, _ := seedProduct(t, s)

	alerts := []*model.PriceAlert{
		{UserID: 1, ProductID: productID, Threshold: 700},                                 // wildcard
		{UserID: 2, ProductID: productID, Threshold: 700, Color: variant.String("gold")},  // same color
		{UserID: 3, ProductID: productID, Threshold: 700, Color: variant.String("Black")}, // other color
		{UserID: 4, ProductID: productID, Threshold: 700, StorageGB: variant.Int(256)},    // other storage
		{UserID: 5, ProductID: productID, Threshold: 700, IsDisabled: true},               // disabled
		{UserID: 6, ProductID: productID, Threshold: 700, RAMGB: variant.Int(8)},          // ram filter
	}
	for _, a := range alerts {
		require.NoError(t, s.CreateAlert(ctx, a))
	}

	got, err := s.FindActiveAlerts(ctx, productID, variant.Filter{
		Color:     variant.String("Gold"),
		StorageGB: variant.Int(128),
	})
	require.NoError(t, err)

	var users []int64
	for _, a := range got {
		users = append(users, a.UserID)
	}
	// Observed RAM unknown: the RAM-filtered alert is left for the caller.
	assert.Equal(t, []int64{1, 2, 6}, users)
	require.NotNil(t, got[1].Color)
	assert.Equal(t, "gold", *got[1].Color)
	assert.Nil(t, got[0].LastNotifiedAt)
}

func TestMarkAlertNotified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, _ := seedProduct(t, s)

	a := &model.PriceAlert{UserID: 1, ProductID: productID, Threshold: 500}
	require.NoError(t, s.CreateAlert(ctx, a))

	at := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkAlertNotified(ctx, a.ID, at))

	got, err := s.FindActiveAlerts(ctx, productID, variant.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].LastNotifiedAt)
	assert.True(t, at.Equal(*got[0].LastNotifiedAt))

	assert.ErrorIs(t, s.MarkAlertNotified(ctx, 999, at), store.ErrNotFound)
}

func TestReportJobOutcome_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := jobs.New("cycle-a", model.ScrapeUnit{ProductID: 1, VariantID: 2})
	require.NoError(t, s.ReportJobOutcome(ctx, *o))

	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, o.Start(start))
	require.NoError(t, o.Succeed(start.Add(time.Second), "updated", ""))
	o.Notified = 2
	require.NoError(t, s.ReportJobOutcome(ctx, *o))

	got, err := s.ListJobOutcomes(ctx, "cycle-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, jobs.StatusSucceeded, got[0].Status)
	assert.Equal(t, "updated", got[0].VariantStatus)
	assert.Equal(t, 2, got[0].Notified)
	assert.True(t, start.Equal(got[0].StartedAt))
	require.NotNil(t, got[0].FinishedAt)
	assert.Equal(t, time.Second, got[0].Duration())
}

func TestListScrapeUnits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	productID, storeID := seedProduct(t, s)

	other := &model.Product{Name: "Galaxy S24", Brand: "Samsung"}
	require.NoError(t, s.CreateProduct(ctx, other))

	a, err := s.InsertVariant(ctx, newVariant(productID, storeID, "Black", 128, "https://amazon.de/dp/1"))
	require.NoError(t, err)
	b, err := s.InsertVariant(ctx, newVariant(other.ID, storeID, "Gray", 256, "https://amazon.de/dp/2"))
	require.NoError(t, err)
	_, err = s.InsertVariant(ctx, newVariant(other.ID, storeID, "Gray", 512, ""))
	require.NoError(t, err)

	units, err := s.ListScrapeUnits(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.ScrapeUnit{
		{ProductID: productID, VariantID: a.ID},
		{ProductID: other.ID, VariantID: b.ID},
	}, units)

	units, err = s.ListScrapeUnits(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.ScrapeUnit{{ProductID: other.ID, VariantID: b.ID}}, units)
}
