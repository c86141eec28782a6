package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
)

// InfoHandler serves static service and model metadata
type InfoHandler struct {
	service *services.PredictionService
	logger  *logger.Logger
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(svc *services.PredictionService, log *logger.Logger) *InfoHandler {
	return &InfoHandler{
		service: svc,
		logger:  log.WithComponent("info-handler"),
	}
}

// Info handles GET /info
func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Info())
}

// Model handles GET /models/{type}. An unloaded model still returns its
// diagnostics (path, load error) with 503.
func (h *InfoHandler) Model(w http.ResponseWriter, r *http.Request) {
	t := models.ModelType(chi.URLParam(r, "type"))

	info, err := h.service.ModelInfo(t)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !info.Loaded {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, info)
}
