// Package http wires the sync server's routes and middleware.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/adapter/http/handler"
	"github.com/bolsoapp/bolso/internal/adapter/http/middleware"
	"github.com/bolsoapp/bolso/internal/infrastructure/auth"
	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	SyncHandler      *handler.SyncHandler
	AuthHandler      *handler.AuthHandler
	HealthHandler    *handler.HealthHandler
	JWTManager       *auth.JWTManager
	IdempotencyStore middleware.IdempotencyStore
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	r.Use(middleware.Recovery)

	// Operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Authentication
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.Post("/logout", cfg.AuthHandler.Logout)
	})

	// Sync protocol, access token required
	r.Route("/sync", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTManager))

		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, 0)
			r.With(idempotency.Wrap).Post("/upload", cfg.SyncHandler.Upload)
		} else {
			r.Post("/upload", cfg.SyncHandler.Upload)
		}
		r.Get("/download", cfg.SyncHandler.Download)
		r.Get("/status", cfg.SyncHandler.Status)
		r.Post("/resolve-conflicts", cfg.SyncHandler.ResolveConflicts)
	})

	return r
}
