package services

import (
	"phishguard/internal/config"
	"phishguard/internal/domain/models"
)

// RiskScorer maps a classifier probability onto the 0-100 risk scale and a
// three-tier level. One instance is shared by the URL and email pipelines.
type RiskScorer struct {
	thresholds models.RiskThresholds
}

// NewRiskScorer creates a scorer with explicit thresholds
func NewRiskScorer(t models.RiskThresholds) *RiskScorer {
	return &RiskScorer{thresholds: t}
}

// NewRiskScorerFromConfig creates a scorer from the risk config section,
// falling back to the defaults for zeroed values
func NewRiskScorerFromConfig(cfg config.RiskConfig) *RiskScorer {
	t := models.DefaultRiskThresholds()
	if cfg.Safe > 0 {
		t.Safe = cfg.Safe
	}
	if cfg.Suspicious > 0 {
		t.Suspicious = cfg.Suspicious
	}
	if cfg.Dangerous > 0 {
		t.Dangerous = cfg.Dangerous
	}
	return NewRiskScorer(t)
}

// Thresholds returns the configured tier boundaries
func (s *RiskScorer) Thresholds() models.RiskThresholds {
	return s.thresholds
}

// Score builds the assessment for a probability and the classifier's class.
// It is total: any probability yields an assessment.
func (s *RiskScorer) Score(probability float64, prediction int) models.RiskAssessment {
	riskScore := probability * 100

	return models.RiskAssessment{
		Probability: probability,
		RiskScore:   riskScore,
		RiskLevel:   s.Level(riskScore),
		Prediction:  prediction,
		IsPhishing:  prediction == 1,
	}
}

// Level returns the tier for a 0-100 score; upper bounds are inclusive
func (s *RiskScorer) Level(riskScore float64) models.RiskLevel {
	switch {
	case riskScore <= s.thresholds.Safe:
		return models.RiskLevelSafe
	case riskScore <= s.thresholds.Suspicious:
		return models.RiskLevelSuspicious
	default:
		return models.RiskLevelDangerous
	}
}
