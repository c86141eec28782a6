package handlers

import (
	"context"
	"net/http"
	"time"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	service   *services.PredictionService
	checks    map[string]Pinger
	logger    *logger.Logger
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(svc *services.PredictionService, checks map[string]Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		service:   svc,
		checks:    checks,
		logger:    log.WithComponent("health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string                    `json:"status"`
	Version      string                    `json:"version"`
	ModelsLoaded map[models.ModelType]bool `json:"models_loaded"`
	Uptime       string                    `json:"uptime"`
	Timestamp    string                    `json:"timestamp"`
	Checks       map[string]string         `json:"checks,omitempty"`
}

// Check handles GET /health. The process is healthy whenever it can answer;
// model availability is reported, not enforced.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      h.service.Version(),
		ModelsLoaded: h.service.ModelsLoaded(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:    time.Now().Format(time.DateTime),
	})
}

// Ready handles GET /ready - at least one model and every configured dependency
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := http.StatusOK
	overallStatus := "ready"

	loaded := h.service.ModelsLoaded()
	anyLoaded := false
	for _, t := range models.ModelTypes {
		if loaded[t] {
			checks["model_"+string(t)] = "loaded"
			anyLoaded = true
		} else {
			checks["model_"+string(t)] = "not loaded"
		}
	}
	if !anyLoaded {
		status = http.StatusServiceUnavailable
		overallStatus = "not ready"
	}

	for name, dep := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := dep.Ping(ctx)
		cancel()

		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			overallStatus = "not ready"
			h.logger.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			continue
		}
		checks[name] = "healthy"
	}

	respondJSON(w, status, HealthResponse{
		Status:       overallStatus,
		Version:      h.service.Version(),
		ModelsLoaded: loaded,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:    time.Now().Format(time.DateTime),
		Checks:       checks,
	})
}
