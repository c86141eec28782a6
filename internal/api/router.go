package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"phishguard/internal/api/handlers"
	apimiddleware "phishguard/internal/api/middleware"
	"phishguard/internal/config"
	"phishguard/pkg/logger"
	"phishguard/pkg/metrics"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateLimitStore
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limiter and m may be nil.
func NewRouter(cfg config.Config, h *handlers.Handlers, limiter apimiddleware.RateLimitStore, m *metrics.Metrics, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		metrics:  m,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	if r.metrics != nil {
		router.Use(apimiddleware.Metrics(r.metrics))
	}
	router.Use(middleware.Recoverer)

	// CORS for the browser extension
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public probes and metrics
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
		if r.metrics != nil {
			pub.Method(http.MethodGet, "/metrics", r.metrics.Handler())
		}
	})

	// Live feed; long-lived, so outside the request timeout
	router.Get("/ws/predictions", r.handlers.Streaming.HandleWebSocket)

	// Unversioned routes match the browser extension's existing calls
	router.Group(func(root chi.Router) {
		r.limited(root)
		r.mountRoutes(root)
	})

	// API v1 routes (API key when configured)
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(apimiddleware.APIKeyAuth(r.config.Auth.APIKeys))
		r.limited(api)
		r.mountRoutes(api)
		api.Get("/ws/predictions", r.handlers.Streaming.HandleWebSocket)
	})

	return router
}

func (r *Router) limited(rt chi.Router) {
	if r.config.Server.RequestTimeout > 0 {
		rt.Use(middleware.Timeout(r.config.Server.RequestTimeout))
	}
	if r.config.Server.MaxBodyBytes > 0 {
		rt.Use(middleware.RequestSize(r.config.Server.MaxBodyBytes))
	}
	if r.config.RateLimit.Enabled && r.limiter != nil {
		rt.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
	}
}

func (r *Router) mountRoutes(rt chi.Router) {
	rt.Get("/info", r.handlers.Info.Info)
	rt.Get("/models/{type}", r.handlers.Info.Model)

	rt.Route("/predict", func(p chi.Router) {
		p.Post("/url", r.handlers.Predict.PredictURL)
		p.Post("/url/batch", r.handlers.Predict.PredictURLBatch)
		p.Post("/email", r.handlers.Predict.PredictEmail)
		p.Post("/email/raw", r.handlers.Predict.PredictRawEmail)
	})

	rt.Route("/features", func(f chi.Router) {
		f.Post("/url", r.handlers.Features.URL)
		f.Post("/email", r.handlers.Features.Email)
	})

	rt.Get("/stats", r.handlers.Stats.Get)
	rt.Get("/stream/stats", r.handlers.Streaming.GetStats)
	rt.Get("/predictions", r.handlers.Stats.Recent)
	rt.Get("/predictions/{id}", r.handlers.Stats.GetPrediction)
}
