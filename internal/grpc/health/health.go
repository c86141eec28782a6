package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

// ServicePrefix prefixes the per-model health service names (phishguard.url, phishguard.email)
const ServicePrefix = "phishguard."

// ModelStatus reports which classifiers are loaded
type ModelStatus interface {
	ModelsLoaded() map[models.ModelType]bool
}

// Pinger is a dependency probed on every refresh
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker keeps the gRPC health service in sync with model and dependency state.
// A model's service is SERVING iff the model is loaded; the overall service ("")
// additionally requires every dependency to answer its ping.
type Checker struct {
	server   *grpchealth.Server
	models   ModelStatus
	deps     map[string]Pinger
	interval time.Duration
	logger   *logger.Logger
}

// NewChecker creates a checker; deps may be empty
func NewChecker(status ModelStatus, deps map[string]Pinger, interval time.Duration, log *logger.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{
		server:   grpchealth.NewServer(),
		models:   status,
		deps:     deps,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
}

// ServiceName returns the health service name for a model type
func ServiceName(t models.ModelType) string {
	return ServicePrefix + string(t)
}

// Register registers the health service and publishes the initial status
func (c *Checker) Register(grpcServer *grpc.Server) {
	c.Refresh(context.Background())
	grpc_health_v1.RegisterHealthServer(grpcServer, c.server)
}

// Server exposes the underlying health server
func (c *Checker) Server() grpc_health_v1.HealthServer {
	return c.server
}

// Refresh recomputes every status once
func (c *Checker) Refresh(ctx context.Context) {
	anyLoaded := false
	for t, loaded := range c.models.ModelsLoaded() {
		c.server.SetServingStatus(ServiceName(t), servingStatus(loaded))
		anyLoaded = anyLoaded || loaded
	}

	healthy := anyLoaded
	for name, dep := range c.deps {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			healthy = false
		}
	}

	c.server.SetServingStatus("", servingStatus(healthy))
}

// Run refreshes on a fixed interval until ctx is done
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING
func (c *Checker) Shutdown() {
	c.server.Shutdown()
}

func servingStatus(ok bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ok {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
