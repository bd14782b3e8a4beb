// Package api provides the HTTP API server and handlers for the circulation
// server. Routes are registered through huma on top of a chi router, so the
// OpenAPI description is generated from the handler DTOs.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/ratelimit"
	"github.com/openshelf/openshelf-server/internal/service"
	"github.com/openshelf/openshelf-server/internal/store"
)

// Services bundles the service dependencies for HTTP handlers.
type Services struct {
	Catalog     *service.CatalogService
	Inventory   *service.InventoryService
	Circulation *service.CirculationService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    store.Store
	services Services
	router   *chi.Mux
	api      huma.API
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger

	// now is the clock for time-dependent operations. Tests override it.
	now func() time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, st store.Store, services Services, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		store:    st,
		services: services,
		router:   router,
		limiter:  ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		logger:   logger,
		now:      time.Now,
	}

	router.Use(s.rateLimitMutations)

	humaConfig := huma.DefaultConfig("OpenShelf API", Version)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerCopyRoutes()
	s.registerLoanRoutes()
	s.registerFeeRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources.
func (s *Server) Close() {
	s.limiter.Stop()
}
