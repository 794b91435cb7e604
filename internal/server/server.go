// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer: it connects the store, the membership
// service, handlers and middleware, and owns their lifetimes.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqldb.Open → MembershipService → MembersHandler
//	                    ↘ auth.TokenService → auth.SessionManager ↗
//
// This is the "composition root" pattern. All dependencies are wired in one
// place (New), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/config"
	"github.com/sakif/rzn-members/internal/handler"
	"github.com/sakif/rzn-members/internal/metrics"
	"github.com/sakif/rzn-members/internal/middleware"
	"github.com/sakif/rzn-members/internal/repository/sqldb"
	"github.com/sakif/rzn-members/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Close releases it; Start calls
// Close on its way out so a SQLite file is flushed and unlocked on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqldb.DB
	svc     *service.MembershipService
	metrics *metrics.Metrics
}

// New opens the store, runs migrations and wires every component.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	sessions := auth.NewSessionManager(tokens, cfg.SessionTTL)

	// === METRICS AND AUDIT MIRROR ===
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(prometheus.NewRegistry(), sessions.Active)
	}
	sink := audit.Fanout{
		audit.NewLogSink(logger.With(slog.String("component", "audit"))),
		m.AuditSink(),
	}

	svc := service.NewMembershipService(service.Deps{
		Store:        db,
		Sessions:     sessions,
		Passwords:    auth.NewPasswordService(cfg.BcryptCost),
		Audit:        sink,
		Metrics:      m,
		Logger:       logger,
		HandlePrefix: cfg.HandlePrefix,
	})

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		svc:     svc,
		metrics: m,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET       /healthz            → store ping
// GET       /metrics            → Prometheus exposition (when enabled)
// GET|POST  /api                → legacy action= dispatch
// GET|POST  /api/{operation}    → named operation
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP (TRUST_PROXY only): takes the client IP from proxy headers; audit
//    origins use it
// 3. Logger and Metrics: see the final status of every request
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. LoadSession (API only): puts the caller's identity in the context
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(s.db, s.logger)
	s.router.Get("/healthz", health.HandleHealth)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	members := handler.NewMembersHandler(s.svc, s.logger, s.config.SecureCookies)
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.LoadSession(s.svc.Sessions()))
		r.Get("/", members.HandleLegacy)
		r.Post("/", members.HandleLegacy)
		r.Get("/{operation}", members.HandleOperation)
		r.Post("/{operation}", members.HandleOperation)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Service returns the membership service, for the seed and export commands.
func (s *Server) Service() *service.MembershipService {
	return s.svc
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.db.Driver()),
			slog.Bool("metrics", s.metrics != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
