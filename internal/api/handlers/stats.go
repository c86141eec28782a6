package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/internal/infrastructure/database/repository"
	"phishguard/pkg/logger"
)

// StatsHandler serves shared verdict counters and the prediction audit log
type StatsHandler struct {
	verdicts   VerdictStatsReader
	audit      PredictionLog
	dispatcher *services.Dispatcher
	logger     *logger.Logger
}

// NewStatsHandler creates a new stats handler; any dependency may be nil
func NewStatsHandler(verdicts VerdictStatsReader, audit PredictionLog, d *services.Dispatcher, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		verdicts:   verdicts,
		audit:      audit,
		dispatcher: d,
		logger:     log.WithComponent("stats-handler"),
	}
}

// StatsPayload is the body of GET /stats
type StatsPayload struct {
	models.StatsResponse
	Dispatcher *services.DispatcherStats `json:"dispatcher,omitempty"`
}

// Get handles GET /stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	if h.verdicts == nil {
		respondMessage(w, http.StatusServiceUnavailable, "Stats unavailable", "shared verdict counters require redis")
		return
	}

	stats, err := h.verdicts.VerdictStats(r.Context(), models.ModelTypes...)
	if err != nil {
		log.Error().Err(err).Msg("failed to read verdict stats")
		respondMessage(w, http.StatusServiceUnavailable, "Stats unavailable", err.Error())
		return
	}

	payload := StatsPayload{
		StatsResponse: models.StatsResponse{
			Stats:     stats,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if h.dispatcher != nil {
		ds := h.dispatcher.Stats()
		payload.Dispatcher = &ds
	}

	respondJSON(w, http.StatusOK, payload)
}

// Recent handles GET /predictions?model_type=url&limit=50
func (h *StatsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	if h.audit == nil {
		respondMessage(w, http.StatusServiceUnavailable, "Audit log unavailable", "prediction history requires postgres")
		return
	}

	t := models.ModelType(r.URL.Query().Get("model_type"))
	if t != "" && !t.Valid() {
		respondError(w, log, services.ErrUnknownModelType)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, log, &services.RequestError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	outcomes, err := h.audit.ListRecent(r.Context(), t, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list predictions")
		respondMessage(w, http.StatusInternalServerError, "Failed to list predictions", "")
		return
	}
	if outcomes == nil {
		outcomes = []*models.PredictionOutcome{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"predictions": outcomes,
		"count":       len(outcomes),
	})
}

// GetPrediction handles GET /predictions/{id}
func (h *StatsHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	if h.audit == nil {
		respondMessage(w, http.StatusServiceUnavailable, "Audit log unavailable", "prediction history requires postgres")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, log, &services.RequestError{Field: "id", Message: "must be a UUID"})
		return
	}

	outcome, err := h.audit.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrPredictionNotFound) {
		respondMessage(w, http.StatusNotFound, "Prediction not found", "")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id.String()).Msg("failed to get prediction")
		respondMessage(w, http.StatusInternalServerError, "Failed to get prediction", "")
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}
