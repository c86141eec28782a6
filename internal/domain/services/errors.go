package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	// ErrModelUnavailable means no classifier was loaded for the requested type
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrMalformedRequest means a required field is missing or has the wrong shape
	ErrMalformedRequest = errors.New("malformed request")
	// ErrFeatureMismatch means a vector does not fit the classifier's coefficients
	ErrFeatureMismatch = errors.New("feature vector length mismatch")
	// ErrUnknownModelType means the path named a model type that does not exist
	ErrUnknownModelType = errors.New("unknown model type")
	// ErrInvalidProbability means a classifier returned a value outside [0,1]
	ErrInvalidProbability = errors.New("classifier returned invalid probability")
)

// RequestError carries the field-level validation detail of a malformed request
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrMalformedRequest) match every RequestError
func (e *RequestError) Is(target error) bool {
	return target == ErrMalformedRequest
}

func malformed(field, format string, args ...any) error {
	return &RequestError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind returns a short label for metrics and logs
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ErrFeatureMismatch):
		return "feature_mismatch"
	case errors.Is(err, ErrInvalidProbability):
		return "invalid_probability"
	case errors.Is(err, ErrUnknownModelType):
		return "unknown_model_type"
	default:
		return "prediction_failed"
	}
}

// ErrorStatus maps an error to its HTTP status and public title
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return http.StatusServiceUnavailable, "Model not loaded"
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, ErrUnknownModelType):
		return http.StatusNotFound, "Unknown model type"
	default:
		return http.StatusBadRequest, "Prediction failed"
	}
}
