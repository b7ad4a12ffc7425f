package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/scheduler"
	"smartshop/price-service/internal/store"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Store   string `json:"store"`
}

// ScrapeResponse is the body of POST /products/{id}/scrape.
type ScrapeResponse struct {
	CycleID  string            `json:"cycleId"`
	Summary  scheduler.Summary `json:"summary"`
	Outcomes []jobs.Outcome    `json:"outcomes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Service: "price-service", Version: Version, Store: "ok"}
	code := http.StatusOK
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.logger.Warn("health ping failed", "err", err)
			resp.Status, resp.Store = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	p, err := s.store.GetProductWithVariants(r.Context(), store.ProductFilter{ID: id})
	if err != nil {
		s.storeError(w, "product", err)
		return
	}
	jsonOK(w, p)
}

func (s *Server) handleVariantHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	limit := store.HistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = v
	}

	if _, err := s.store.GetVariant(r.Context(), id); err != nil {
		s.storeError(w, "variant", err)
		return
	}
	entries, err := s.store.ListHistory(r.Context(), id, limit)
	if err != nil {
		s.storeError(w, "history", err)
		return
	}
	jsonOK(w, entries)
}

func (s *Server) handleScrapeProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetProductWithVariants(r.Context(), store.ProductFilter{ID: id}); err != nil {
		s.storeError(w, "product", err)
		return
	}

	start := time.Now()
	cycleID, outcomes, err := s.trigger.RunProduct(r.Context(), id)
	if err != nil {
		s.logger.Error("on-demand scrape failed", "product_id", id, "err", err)
		jsonError(w, "scrape failed", http.StatusInternalServerError)
		return
	}

	jsonOK(w, ScrapeResponse{
		CycleID:  cycleID,
		Summary:  scheduler.Summarize(cycleID, outcomes, time.Since(start)),
		Outcomes: outcomes,
	})
}

func (s *Server) handleCycleJobs(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.store.ListJobOutcomes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "jobs", err)
		return
	}
	jsonOK(w, outcomes)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, what+" not found", http.StatusNotFound)
		return
	}
	s.logger.Error("store error", "what", what, "err", err)
	jsonError(w, "database error", http.StatusInternalServerError)
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
