package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"phishguard/internal/api"
	"phishguard/internal/api/handlers"
	apimiddleware "phishguard/internal/api/middleware"
	"phishguard/internal/config"
	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/internal/grpc/health"
	"phishguard/internal/infrastructure/cache"
	"phishguard/internal/infrastructure/database"
	"phishguard/internal/infrastructure/database/repository"
	"phishguard/internal/streaming"
	"phishguard/pkg/logger"
	"phishguard/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.New(logger.Config{
			Level:      cfg.Logger.Level,
			Format:     cfg.Logger.Format,
			TimeFormat: cfg.Logger.TimeFormat,
		})
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting PhishGuard")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Load classifiers; a missing model degrades that endpoint to 503
	registry := services.LoadModelRegistry(cfg.Models, log)
	m.SetModelsLoaded(registry.Loaded())

	// Initialize infrastructure
	db, redisCache := initInfrastructure(ctx, cfg, log)
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without verdict streaming")
			natsPublisher = nil
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, models.RiskLevel(cfg.NATS.MinLevel), log)
	defer eventBus.Close()
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	wsHub := streaming.NewWebSocketHub(eventBus, log)
	go wsHub.Run(ctx)

	// Outcome observers run off the request path
	observers := []services.PredictionObserver{eventBus}
	var audit *repository.PredictionRepository
	if db != nil {
		audit = repository.NewPredictionRepository(db.Pool())
		observers = append(observers, repository.NewAuditObserver(audit))
	}
	if redisCache != nil {
		observers = append(observers, cache.NewStatsObserver(redisCache))
	}

	dispatcher := services.NewDispatcher(services.DispatcherConfig{
		QueueSize:      cfg.Dispatch.QueueSize,
		WorkerPoolSize: cfg.Dispatch.Workers,
		ObserveTimeout: cfg.Dispatch.ObserveTimeout,
	}, log, observers...)
	dispatcher.Start()

	// Initialize prediction service
	service := services.NewPredictionService(
		services.PredictionServiceConfig{
			Version:          cfg.App.Version,
			BatchConcurrency: services.DefaultPredictionServiceConfig().BatchConcurrency,
		},
		registry,
		services.NewRiskScorerFromConfig(cfg.Risk),
		dispatcher,
		m,
		log,
	)
	log.Info().Interface("models_loaded", service.ModelsLoaded()).Msg("prediction service initialized")

	// Dependencies probed by /ready and gRPC health
	checks := make(map[string]handlers.Pinger)
	grpcDeps := make(map[string]health.Pinger)
	if db != nil {
		checks["postgres"] = db
		grpcDeps["postgres"] = db
	}
	if redisCache != nil {
		checks["redis"] = redisCache
		grpcDeps["redis"] = redisCache
	}

	// Initialize handlers
	deps := handlers.Dependencies{
		Service:    service,
		Dispatcher: dispatcher,
		Checks:     checks,
		WSHub:      wsHub,
		EventBus:   eventBus,
		Logger:     log,
	}
	if redisCache != nil {
		deps.Verdicts = redisCache
	}
	if audit != nil {
		deps.Audit = audit
	}
	h := handlers.NewHandlers(deps)

	// Create router
	router := api.NewRouter(*cfg, h, rateLimitStore(redisCache), m, log)
	httpHandler := router.Setup()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server (health only)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	checker := health.NewChecker(service, grpcDeps, 10*time.Second, log)
	checker.Register(grpcServer)
	go checker.Run(ctx)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background loops
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Report NOT_SERVING before draining
	checker.Shutdown()
	grpcServer.GracefulStop()

	// Stop HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Drain queued outcomes before the stores close
	dispatcher.Close()

	log.Info().Msg("shutdown complete")
}

// initInfrastructure connects to PostgreSQL and Redis when enabled. Both are
// optional; predictions are served without them.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache) {
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to PostgreSQL, continuing without audit log")
			db = nil
		} else if err := db.Migrate(ctx, repository.PredictionSchema...); err != nil {
			log.Warn().Err(err).Msg("failed to migrate predictions table, continuing without audit log")
			db.Close()
			db = nil
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		var err error
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without rate limits and stats")
			redisCache = nil
		}
	}

	return db, redisCache
}

// rateLimitStore avoids handing the router a typed nil
func rateLimitStore(c *cache.RedisCache) apimiddleware.RateLimitStore {
	if c == nil {
		return nil
	}
	return c
}
