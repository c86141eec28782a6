package handlers

import (
	"net/http"
	"strconv"

	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
)

// maxRawEmailBytes bounds POST /predict/email/raw
const maxRawEmailBytes = 10 << 20

// PredictHandler handles the prediction endpoints
type PredictHandler struct {
	service *services.PredictionService
	logger  *logger.Logger
}

// NewPredictHandler creates a new prediction handler
func NewPredictHandler(svc *services.PredictionService, log *logger.Logger) *PredictHandler {
	return &PredictHandler{
		service: svc,
		logger:  log.WithComponent("predict-handler"),
	}
}

// PredictURL handles POST /predict/url
func (h *PredictHandler) PredictURL(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	raw, err := decodeObject(w, r)
	if err != nil {
		respondError(w, log, err)
		return
	}

	req, err := services.DecodeURLRequest(raw)
	if err != nil {
		respondError(w, log, err)
		return
	}

	resp, err := h.service.PredictURL(r.Context(), req)
	if err != nil {
		respondError(w, log.WithFields(map[string]any{"url": truncate(req.URL, 50)}), err)
		return
	}

	log.Info().
		Str("url", truncate(req.URL, 50)).
		Str("risk_level", string(resp.RiskLevel)).
		Float64("risk_score", resp.RiskScore).
		Msg("URL prediction")

	respondJSON(w, http.StatusOK, resp)
}

// PredictURLBatch handles POST /predict/url/batch
func (h *PredictHandler) PredictURLBatch(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	raw, err := decodeObject(w, r)
	if err != nil {
		respondError(w, log, err)
		return
	}

	reqs, err := services.DecodeURLBatchRequest(raw)
	if err != nil {
		respondError(w, log, err)
		return
	}

	resp, err := h.service.PredictURLBatch(r.Context(), reqs)
	if err != nil {
		respondError(w, log.WithFields(map[string]any{"count": len(reqs)}), err)
		return
	}

	log.Info().
		Int("total", resp.Total).
		Int("failed", resp.Failed).
		Float64("processing_time_ms", resp.ProcessingTimeMS).
		Msg("URL batch prediction")

	respondJSON(w, http.StatusOK, resp)
}

// PredictEmail handles POST /predict/email
func (h *PredictHandler) PredictEmail(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	raw, err := decodeObject(w, r)
	if err != nil {
		respondError(w, log, err)
		return
	}

	req, err := services.DecodeEmailRequest(raw)
	if err != nil {
		respondError(w, log, err)
		return
	}

	resp, err := h.service.PredictEmail(r.Context(), req)
	if err != nil {
		respondError(w, log, err)
		return
	}

	log.Info().
		Str("risk_level", string(resp.RiskLevel)).
		Float64("risk_score", resp.RiskScore).
		Msg("Email prediction")

	respondJSON(w, http.StatusOK, resp)
}

// PredictRawEmail handles POST /predict/email/raw. The body is the full
// RFC 822 message; ?return_features=true adds the feature dump.
func (h *PredictHandler) PredictRawEmail(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	returnFeatures := false
	if v := r.URL.Query().Get("return_features"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, log, &services.RequestError{Field: "return_features", Message: "must be a boolean"})
			return
		}
		returnFeatures = parsed
	}

	body := http.MaxBytesReader(w, r.Body, maxRawEmailBytes)
	resp, err := h.service.PredictRawEmail(r.Context(), body, returnFeatures)
	if err != nil {
		respondError(w, log, err)
		return
	}

	log.Info().
		Str("risk_level", string(resp.RiskLevel)).
		Float64("risk_score", resp.RiskScore).
		Msg("Raw email prediction")

	respondJSON(w, http.StatusOK, resp)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
