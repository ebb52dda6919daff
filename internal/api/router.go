// Package api provides the HTTP API for Airwaycast.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/api/handler"
	"github.com/airwaycast/airwaycast/internal/api/middleware"
	"github.com/airwaycast/airwaycast/internal/api/models"
	"github.com/airwaycast/airwaycast/internal/auth"
	"github.com/airwaycast/airwaycast/internal/database"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Tokens    middleware.TokenValidator
	Runner    handler.Runner
	Database  database.Pinger
	Cache     database.Pinger
	Providers handler.ProviderHealthSource

	MaxUsers   int
	MaxDays    int
	RequireTLS bool
	// RateLimit overrides RiskRateLimit when RequestLimit is set.
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airwaycast-api"
	}

	// Order matters: the request ID must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		p := models.NewNotFound(middleware.GetRequestID(req.Context()), "no such endpoint")
		p.Instance = req.URL.Path
		p.Write(w)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Database:  cfg.Database,
		Cache:     cfg.Cache,
		Providers: cfg.Providers,
	})
	riskHandler := handler.NewRiskHandler(handler.RiskConfig{
		Runner:   cfg.Runner,
		MaxUsers: cfg.MaxUsers,
		MaxDays:  cfg.MaxDays,
		Logger:   cfg.Logger,
	})

	authMiddleware := middleware.Auth(cfg.Tokens)
	riskLimit := middleware.RiskRateLimit
	if cfg.RateLimit.RequestLimit > 0 {
		riskLimit = cfg.RateLimit
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware, middleware.RequireScope(auth.ScopeOps)).Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(riskLimit))
			r.Get("/risk", riskHandler.GetRisk)
			r.Get("/me/risk", riskHandler.GetMyRisk)
		})
	})

	return r
}
