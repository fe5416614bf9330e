// Package server provides the HTTP server and routing for Custodian.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/events"
	"github.com/aretelabs/custodian/internal/modules/audit"
	"github.com/aretelabs/custodian/internal/modules/budget"
	"github.com/aretelabs/custodian/internal/modules/commerce"
	commercehandlers "github.com/aretelabs/custodian/internal/modules/commerce/handlers"
	"github.com/aretelabs/custodian/internal/modules/governance"
	governancehandlers "github.com/aretelabs/custodian/internal/modules/governance/handlers"
	"github.com/aretelabs/custodian/internal/modules/ledger"
	ledgerhandlers "github.com/aretelabs/custodian/internal/modules/ledger/handlers"
	"github.com/aretelabs/custodian/internal/occ"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	EventBus   *events.Bus
	Resources  *occ.Store
	KillSwitch *governance.KillSwitch
	Commerce   *commerce.Service
	Wallets    *ledger.Service
	Budgets    *budget.Tracker
	Audit      *audit.Service
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	eventBus       *events.Bus
	resources      *occ.Store
	killSwitch     *governance.KillSwitch
	systemHandlers *SystemHandlers

	commerceSvc *commerce.Service
	wallets     *ledger.Service
	budgets     *budget.Tracker
	auditSvc    *audit.Service
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		eventBus:       cfg.EventBus,
		resources:      cfg.Resources,
		killSwitch:     cfg.KillSwitch,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.KillSwitch),
		commerceSvc:    cfg.Commerce,
		wallets:        cfg.Wallets,
		budgets:        cfg.Budgets,
		auditSvc:       cfg.Audit,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Unified events stream (SSE) - must be before other routes for
		// proper handling
		eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		NewResourceHandlers(s.resources, s.log).RegisterRoutes(r)

		governancehandlers.NewGovernanceHandlers(s.killSwitch, s.log).RegisterRoutes(r)
		commercehandlers.NewCommerceHandlers(s.commerceSvc, s.log).RegisterRoutes(r)
		ledgerhandlers.NewLedgerHandlers(s.wallets, s.budgets, s.auditSvc, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
