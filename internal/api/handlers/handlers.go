package handlers

import (
	"context"

	"github.com/google/uuid"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/internal/streaming"
	"phishguard/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Predict   *PredictHandler
	Features  *FeaturesHandler
	Info      *InfoHandler
	Stats     *StatsHandler
	Streaming *StreamingHandler
}

// Pinger is a dependency probed by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// VerdictStatsReader reads the shared verdict counters
type VerdictStatsReader interface {
	VerdictStats(ctx context.Context, types ...models.ModelType) ([]models.VerdictStats, error)
}

// PredictionLog reads the prediction audit log
type PredictionLog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.PredictionOutcome, error)
	ListRecent(ctx context.Context, t models.ModelType, limit int) ([]*models.PredictionOutcome, error)
}

// Dependencies holds dependencies for handlers. Everything except Service and
// Logger is optional.
type Dependencies struct {
	Service    *services.PredictionService
	Dispatcher *services.Dispatcher
	Checks     map[string]Pinger
	Verdicts   VerdictStatsReader
	Audit      PredictionLog
	WSHub      *streaming.WebSocketHub
	EventBus   *streaming.EventBus
	Logger     *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Service, deps.Checks, deps.Logger),
		Predict:   NewPredictHandler(deps.Service, deps.Logger),
		Features:  NewFeaturesHandler(deps.Service, deps.Logger),
		Info:      NewInfoHandler(deps.Service, deps.Logger),
		Stats:     NewStatsHandler(deps.Verdicts, deps.Audit, deps.Dispatcher, deps.Logger),
		Streaming: NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}
