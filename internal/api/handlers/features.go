package handlers

import (
	"net/http"

	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
)

// FeaturesHandler exposes feature extraction without classification, used
// to check parity with client-side extractors
type FeaturesHandler struct {
	service *services.PredictionService
	logger  *logger.Logger
}

// NewFeaturesHandler creates a new features handler
func NewFeaturesHandler(svc *services.PredictionService, log *logger.Logger) *FeaturesHandler {
	return &FeaturesHandler{
		service: svc,
		logger:  log.WithComponent("features-handler"),
	}
}

// URL handles POST /features/url
func (h *FeaturesHandler) URL(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	req, err := services.DecodeURLRequest(raw)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.service.ExtractURLFeatures(req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Email handles POST /features/email
func (h *FeaturesHandler) Email(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	req, err := services.DecodeEmailRequest(raw)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.service.ExtractEmailFeatures(req))
}
