package services

import (
	"fmt"
	"math"

	"phishguard/internal/domain/models"
)

// Classifier is an opaque, pre-trained binary classifier. Implementations must
// be safe for concurrent reads.
type Classifier interface {
	// PredictProbability returns the phishing probability in [0,1]
	PredictProbability(vec []float64) (float64, error)
	// PredictClass returns 1 for phishing, 0 otherwise
	PredictClass(vec []float64) (int, error)
}

// LogisticModel is a linear model with a sigmoid link, rebuilt from the
// persisted coefficients and intercept
type LogisticModel struct {
	coefficients []float64
	intercept    float64
}

// NewLogisticModel creates a logistic model; coefficients are copied
func NewLogisticModel(coefficients []float64, intercept float64) *LogisticModel {
	c := make([]float64, len(coefficients))
	copy(c, coefficients)
	return &LogisticModel{coefficients: c, intercept: intercept}
}

// NewLogisticModelFromMetadata builds a model from a metadata record
func NewLogisticModelFromMetadata(meta *models.ModelMetadata) (*LogisticModel, error) {
	if len(meta.Coefficients) == 0 {
		return nil, fmt.Errorf("metadata has no coefficients")
	}
	if meta.NumFeatures != 0 && meta.NumFeatures != len(meta.Coefficients) {
		return nil, fmt.Errorf("num_features %d does not match %d coefficients",
			meta.NumFeatures, len(meta.Coefficients))
	}
	return NewLogisticModel(meta.Coefficients, meta.Intercept), nil
}

// NumFeatures returns the expected vector length
func (m *LogisticModel) NumFeatures() int {
	return len(m.coefficients)
}

// PredictProbability computes sigmoid(w·x + b)
func (m *LogisticModel) PredictProbability(vec []float64) (float64, error) {
	if len(vec) != len(m.coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(vec), len(m.coefficients))
	}

	z := m.intercept
	for i, x := range vec {
		z += m.coefficients[i] * x
	}
	return sigmoid(z), nil
}

// PredictClass returns 1 iff the probability is at least 0.5
func (m *LogisticModel) PredictClass(vec []float64) (int, error) {
	p, err := m.PredictProbability(vec)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// sigmoid is split by sign so large |z| cannot overflow exp
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
