// Package api exposes the operational HTTP surface of the price service.
//
// Routes:
//
//	GET  /health                  → liveness plus store ping
//	GET  /products/{id}           → product with its price variants
//	GET  /variants/{id}/history   → newest price history entries (?limit=)
//	POST /products/{id}/scrape    → run a scrape cycle for one product
//	GET  /cycles/{id}/jobs        → job outcomes recorded for a cycle
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
)

// Version is reported by /health.
const Version = "1.0.0"

// Store is the read side the handlers need.
type Store interface {
	GetProductWithVariants(ctx context.Context, f store.ProductFilter) (*model.Product, error)
	GetVariant(ctx context.Context, id int64) (*model.PriceVariant, error)
	ListHistory(ctx context.Context, variantID int64, limit int) ([]model.PriceHistoryEntry, error)
	ListJobOutcomes(ctx context.Context, cycleID string) ([]jobs.Outcome, error)
}

// Trigger runs an on-demand scrape. scheduler.Scheduler satisfies it.
type Trigger interface {
	RunProduct(ctx context.Context, productID int64) (string, []jobs.Outcome, error)
}

// Server holds shared dependencies.
type Server struct {
	router  *chi.Mux
	store   Store
	trigger Trigger
	ping    func(ctx context.Context) error
	logger  *slog.Logger
}

// NewServer builds the router. ping may be nil.
func NewServer(s Store, t Trigger, ping func(ctx context.Context) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		router:  chi.NewRouter(),
		store:   s,
		trigger: t,
		ping:    ping,
		logger:  logger.With("component", "api"),
	}
	srv.setupMiddleware()
	srv.setupRoutes()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/products/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetProduct)
		r.Post("/scrape", s.handleScrapeProduct)
	})
	s.router.Get("/variants/{id}/history", s.handleVariantHistory)
	s.router.Get("/cycles/{id}/jobs", s.handleCycleJobs)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
