package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/askql/internal/handler"
	"github.com/cortexai/askql/internal/metrics"
	"github.com/cortexai/askql/internal/middleware"
)

func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg
	c := s.components

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	checks := map[string]handler.HealthChecker{
		"executor": c.Executor,
		"sessions": handler.HealthCheckFunc(c.Store.Ping),
		"history":  nil,
	}
	// interfaces stay untyped nil when history is off
	historyH := handler.NewHistoryHandler(nil)
	if c.History != nil {
		checks["history"] = c.History
		historyH = handler.NewHistoryHandler(c.History)
	}

	healthH := handler.NewHealthHandler(checks)
	statsH := handler.NewStatsHandler(c.Pipeline)
	askH := handler.NewAskHandler(c.Pipeline)
	validateH := handler.NewValidateHandler(c.Validator, c.Audit)
	schemaH := handler.NewSchemaHandler(c.Executor.Dialect())

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(cfg.APIKeyHeader))
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}

		r.Get("/stats", statsH.Stats)
		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/ask", askH.Ask)
			r.Post("/validate", validateH.Validate)
			r.Get("/schema", schemaH.Schema)
			r.Get("/history", historyH.Recent)
		})
	})

	return r
}
