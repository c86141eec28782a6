package streaming

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"phishguard/internal/domain/models"
)

// EventType represents the type of prediction event
type EventType string

const (
	EventTypeVerdict EventType = "verdict"
)

// PredictionEvent is the public, feature-free view of a served prediction.
// It goes out on NATS and the WebSocket feed.
type PredictionEvent struct {
	ID           string           `json:"id"`
	Type         EventType        `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	PredictionID uuid.UUID        `json:"prediction_id"`
	ModelType    models.ModelType `json:"model_type"`
	URL          string           `json:"url,omitempty"`
	Subject      string           `json:"subject,omitempty"`
	Probability  float64          `json:"probability"`
	RiskScore    float64          `json:"risk_score"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
	IsPhishing   bool             `json:"is_phishing"`
}

// NewPredictionEvent creates an event from a served prediction
func NewPredictionEvent(outcome *models.PredictionOutcome) *PredictionEvent {
	return &PredictionEvent{
		ID:           uuid.New().String(),
		Type:         EventTypeVerdict,
		Timestamp:    outcome.CreatedAt,
		PredictionID: outcome.ID,
		ModelType:    outcome.ModelType,
		URL:          outcome.URL,
		Subject:      outcome.Subject,
		Probability:  outcome.Assessment.Probability,
		RiskScore:    outcome.Assessment.RiskScore,
		RiskLevel:    outcome.Assessment.RiskLevel,
		IsPhishing:   outcome.Assessment.IsPhishing,
	}
}

// NATSSubject returns the NATS subject: predictions.<model_type>.<risk_level>
func (e *PredictionEvent) NATSSubject() string {
	level := string(e.RiskLevel)
	if level == "" {
		level = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", subjectRoot, e.ModelType, level)
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Lowest level delivered (empty = all)
	MinLevel models.RiskLevel `json:"min_level,omitempty"`

	// Filter by model types (empty = all)
	ModelTypes []models.ModelType `json:"model_types,omitempty"`

	// Only verdicts the classifier marked as phishing
	PhishingOnly bool `json:"phishing_only,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *PredictionEvent) bool {
	if s == nil {
		return true
	}
	if s.MinLevel != "" && event.RiskLevel.Rank() < s.MinLevel.Rank() {
		return false
	}
	if len(s.ModelTypes) > 0 && !slices.Contains(s.ModelTypes, event.ModelType) {
		return false
	}
	if s.PhishingOnly && !event.IsPhishing {
		return false
	}
	return true
}
