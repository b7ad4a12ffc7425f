package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store/sqlite"
)

type fakeTrigger struct {
	called []int64
	err    error
}

func (f *fakeTrigger) RunProduct(_ context.Context, productID int64) (string, []jobs.Outcome, error) {
	f.called = append(f.called, productID)
	if f.err != nil {
		return "", nil, f.err
	}
	out := jobs.New("cycle-x", model.ScrapeUnit{ProductID: productID, VariantID: 1})
	_ = out.Start(time.Now())
	_ = out.Succeed(time.Now(), "updated", "")
	return "cycle-x", []jobs.Outcome{*out}, nil
}

type testServer struct {
	srv       *Server
	store     *sqlite.Store
	trigger   *fakeTrigger
	productID int64
	variantID int64
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storeID, err := s.CreateSellerStore(ctx, "Amazon")
	require.NoError(t, err)
	p := &model.Product{Name: "Pixel 8", Brand: "Google"}
	require.NoError(t, s.CreateProduct(ctx, p))
	v, err := s.InsertVariant(ctx, model.PriceVariant{
		ProductID: p.ID, Color: "Obsidian", RAMGB: 8, StorageGB: 128,
		SellerStoreID: storeID, ProductLink: "https://amazon.de/dp/PIXEL8",
		Price: 649, Currency: "EUR", Availability: true,
		LastUpdated: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for i, price := range []float64{619, 599} {
		_, err := s.UpdateVariantPrice(ctx, v.ID, model.PriceSnapshot{
			Price: price, Currency: "EUR", Availability: true,
			ObservedAt: time.Date(2026, 5, 2+i, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	trigger := &fakeTrigger{}
	ping := func(context.Context) error { return s.Ping() }
	return &testServer{
		srv:       NewServer(s, trigger, ping, nil),
		store:     s,
		trigger:   trigger,
		productID: p.ID,
		variantID: v.ID,
	}
}

func (ts *testServer) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	h := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "price-service", h.Service)
}

func TestHealth_StoreDown(t *testing.T) {
	ts := setupTestServer(t)
	ts.srv.ping = func(context.Context) error { return errors.New("closed") }

	rec := ts.do(http.MethodGet, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

func TestGetProduct(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/products/1")

	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[model.Product](t, rec)
	assert.Equal(t, "Pixel 8", p.Name)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "Amazon", p.Variants[0].Store.Name)
}

func TestGetProduct_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		path string
		code int
		msg  string
	}{
		{"/products/999", http.StatusNotFound, "product not found"},
		{"/products/abc", http.StatusBadRequest, "invalid id"},
		{"/products/0", http.StatusBadRequest, "invalid id"},
		{"/nowhere", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestVariantHistory(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/variants/1/history?limit=2")

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]model.PriceHistoryEntry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, 599.0, entries[0].Price)
	assert.Equal(t, 619.0, entries[1].Price)
}

func TestVariantHistory_Errors(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/variants/1/history?limit=x").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/variants/42/history").Code)
}

func TestScrapeProduct(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/products/1/scrape")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScrapeResponse](t, rec)
	assert.Equal(t, "cycle-x", resp.CycleID)
	assert.Equal(t, 1, resp.Summary.Succeeded)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, jobs.StatusSucceeded, resp.Outcomes[0].Status)
	assert.Equal(t, []int64{1}, ts.trigger.called)
}

func TestScrapeProduct_Errors(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/products/7/scrape").Code)
	assert.Empty(t, ts.trigger.called)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(http.MethodGet, "/products/1/scrape").Code)

	ts.trigger.err = errors.New("db gone")
	rec := ts.do(http.MethodPost, "/products/1/scrape")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "scrape failed", decode[map[string]string](t, rec)["error"])
}

func TestCycleJobs(t *testing.T) {
	ts := setupTestServer(t)
	out := jobs.New("cycle-9", model.ScrapeUnit{ProductID: ts.productID, VariantID: ts.variantID})
	require.NoError(t, out.Fail(time.Now(), "fetch listing: blocked", true))
	require.NoError(t, ts.store.ReportJobOutcome(context.Background(), *out))

	rec := ts.do(http.MethodGet, "/cycles/cycle-9/jobs")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]jobs.Outcome](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, jobs.StatusFailed, got[0].Status)
	assert.True(t, got[0].Retryable)

	rec = ts.do(http.MethodGet, "/cycles/unknown/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]jobs.Outcome](t, rec))
}
