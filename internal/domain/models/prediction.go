package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelType selects which classifier and extractor a request uses
type ModelType string

const (
	ModelTypeURL   ModelType = "url"
	ModelTypeEmail ModelType = "email"
)

// ModelTypes lists every supported model type in a stable order
var ModelTypes = []ModelType{ModelTypeURL, ModelTypeEmail}

// Valid reports whether t is a known model type
func (t ModelType) Valid() bool {
	return t == ModelTypeURL || t == ModelTypeEmail
}

// RiskLevel is the three-tier label derived from the risk score
type RiskLevel string

const (
	RiskLevelSafe       RiskLevel = "Safe"
	RiskLevelSuspicious RiskLevel = "Suspicious"
	RiskLevelDangerous  RiskLevel = "Dangerous"
)

// Rank orders levels so callers can compare them (Safe < Suspicious < Dangerous)
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelSafe:
		return 0
	case RiskLevelSuspicious:
		return 1
	case RiskLevelDangerous:
		return 2
	default:
		return -1
	}
}

// RiskThresholds are the upper bounds (inclusive) of each tier on the 0-100 scale
type RiskThresholds struct {
	Safe       float64 `json:"safe"`
	Suspicious float64 `json:"suspicious"`
	Dangerous  float64 `json:"dangerous"`
}

// DefaultRiskThresholds returns the 30/60/100 boundaries
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Safe: 30, Suspicious: 60, Dangerous: 100}
}

// RiskAssessment is the scored outcome of a classifier probability
type RiskAssessment struct {
	Probability float64   `json:"probability"`
	RiskScore   float64   `json:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Prediction  int       `json:"prediction"`
	IsPhishing  bool      `json:"is_phishing"`
}

// URLPredictRequest is the coerced body of POST /predict/url
type URLPredictRequest struct {
	URL            string `json:"url"`
	PageText       string `json:"page_text"`
	LinksCount     int    `json:"links_count"`
	ReturnFeatures bool   `json:"return_features"`
}

// EmailPredictRequest is the coerced body of POST /predict/email
type EmailPredictRequest struct {
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Links          []string `json:"links"`
	ReturnFeatures bool     `json:"return_features"`
}

// PredictionResponse is returned by both prediction endpoints
type PredictionResponse struct {
	ID uuid.UUID `json:"id"`

	URL     *string `json:"url,omitempty"`
	Subject *string `json:"subject,omitempty"`

	RiskAssessment

	ProcessingTimeMS float64            `json:"processing_time_ms"`
	Features         map[string]float64 `json:"features,omitempty"`
	FeatureNames     []string           `json:"feature_names,omitempty"`
}

// BatchItemResult holds one entry of a batch prediction
type BatchItemResult struct {
	Index  int                 `json:"index"`
	Result *PredictionResponse `json:"result,omitempty"`
	Error  *ErrorResponse      `json:"error,omitempty"`
}

// URLBatchPredictResponse is returned by POST /predict/url/batch
type URLBatchPredictResponse struct {
	Results          []BatchItemResult `json:"results"`
	Total            int               `json:"total"`
	Failed           int               `json:"failed"`
	ProcessingTimeMS float64           `json:"processing_time_ms"`
}

// FeaturesResponse is returned by the features-only endpoints
type FeaturesResponse struct {
	URL          string             `json:"url,omitempty"`
	Features     map[string]float64 `json:"features"`
	FeatureNames []string           `json:"feature_names"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error      string  `json:"error"`
	Detail     *string `json:"detail"`
	StatusCode int     `json:"status_code"`
}

// PredictionOutcome is handed to asynchronous observers (audit log, event
// stream, stats) after a prediction has been served
type PredictionOutcome struct {
	ID               uuid.UUID          `json:"id"`
	ModelType        ModelType          `json:"model_type"`
	InputDigest      string             `json:"input_digest"`
	URL              string             `json:"url,omitempty"`
	Subject          string             `json:"subject,omitempty"`
	Assessment       RiskAssessment     `json:"assessment"`
	Features         map[string]float64 `json:"features"`
	ProcessingTimeMS float64            `json:"processing_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// VerdictStats are the shared per-type verdict counters
type VerdictStats struct {
	ModelType ModelType           `json:"model_type"`
	Total     int64               `json:"total"`
	ByLevel   map[RiskLevel]int64 `json:"by_level"`
}

// StatsResponse is returned by GET /stats
type StatsResponse struct {
	Stats     []VerdictStats `json:"stats"`
	Timestamp string         `json:"timestamp"`
}
