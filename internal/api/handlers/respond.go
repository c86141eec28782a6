package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
)

// maxJSONBody bounds request bodies when no server limit is configured
const maxJSONBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondMessage(w http.ResponseWriter, status int, title, detail string) {
	body := models.ErrorResponse{Error: title, StatusCode: status}
	if detail != "" {
		body.Detail = &detail
	}
	respondJSON(w, status, body)
}

// requestLogger tags log with the request ID assigned by the router
func requestLogger(r *http.Request, log *logger.Logger) *logger.Logger {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return log.WithRequestID(id)
	}
	return log
}

// respondError maps a service error onto the uniform error body. Failures the
// caller could not have caused are logged.
func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	body := services.NewErrorResponse(err)

	switch {
	case errors.Is(err, services.ErrMalformedRequest), errors.Is(err, services.ErrUnknownModelType):
		log.Debug().Err(err).Msg("rejected request")
	case errors.Is(err, services.ErrModelUnavailable):
		log.Warn().Err(err).Msg("model unavailable")
	default:
		log.Error().Err(err).Msg("prediction failed")
	}

	respondJSON(w, body.StatusCode, body)
}

// decodeObject reads a JSON object body. Numbers stay json.Number so the
// request decoders can tell integers from fractions.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &services.RequestError{Message: "request body is empty"}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &services.RequestError{Message: "request body too large"}
		}
		return nil, &services.RequestError{Message: "invalid JSON: " + err.Error()}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &services.RequestError{Message: "request body must be a JSON object"}
	}
	return obj, nil
}
