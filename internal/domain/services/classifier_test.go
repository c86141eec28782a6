package services

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"phishguard/internal/config"
	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

func TestLogisticModel_PredictProbability(t *testing.T) {
	tests := []struct {
		name      string
		coef      []float64
		intercept float64
		vec       []float64
		want      float64
	}{
		{"zero logit", []float64{1, 2}, 0, []float64{0, 0}, 0.5},
		{"positive logit", []float64{1}, 0, []float64{2}, 1 / (1 + math.Exp(-2))},
		{"negative logit", []float64{1}, 0, []float64{-2}, 1 / (1 + math.Exp(2))},
		{"huge positive", []float64{1}, 1000, []float64{0}, 1},
		{"huge negative", []float64{1}, -1000, []float64{0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewLogisticModel(tt.coef, tt.intercept)
			got, err := m.PredictProbability(tt.vec)
			if err != nil {
				t.Fatalf("PredictProbability() error = %v", err)
			}
			if math.IsNaN(got) || math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PredictProbability() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogisticModel_PredictClass(t *testing.T) {
	m := NewLogisticModel([]float64{1}, 0)

	tests := []struct {
		x    float64
		want int
	}{
		{0, 1}, // p == 0.5 is phishing
		{0.1, 1},
		{-0.1, 0},
	}

	for _, tt := range tests {
		got, err := m.PredictClass([]float64{tt.x})
		if err != nil {
			t.Fatalf("PredictClass(%v) error = %v", tt.x, err)
		}
		if got != tt.want {
			t.Errorf("PredictClass(%v) = %d, want %d", tt.x, got, tt.want)
		}
	}
}

func TestLogisticModel_LengthMismatch(t *testing.T) {
	m := NewLogisticModel([]float64{1, 2, 3}, 0)

	if _, err := m.PredictProbability([]float64{1}); !errors.Is(err, ErrFeatureMismatch) {
		t.Errorf("PredictProbability() error = %v, want ErrFeatureMismatch", err)
	}
	if _, err := m.PredictClass(nil); !errors.Is(err, ErrFeatureMismatch) {
		t.Errorf("PredictClass() error = %v, want ErrFeatureMismatch", err)
	}
}

func TestNewLogisticModelFromMetadata(t *testing.T) {
	tests := []struct {
		name    string
		meta    models.ModelMetadata
		wantErr bool
	}{
		{"valid", models.ModelMetadata{Coefficients: []float64{1, 2}, NumFeatures: 2}, false},
		{"num_features omitted", models.ModelMetadata{Coefficients: []float64{1, 2}}, false},
		{"no coefficients", models.ModelMetadata{}, true},
		{"count disagrees", models.ModelMetadata{Coefficients: []float64{1, 2}, NumFeatures: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLogisticModelFromMetadata(&tt.meta)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogisticModelFromMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeMetadata(t *testing.T, dir, name string, meta models.ModelMetadata) string {
	t.Helper()
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func coefficients(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = 0.1
	}
	return c
}

func TestLoadModelRegistry(t *testing.T) {
	dir := t.TempDir()

	urlPath := writeMetadata(t, dir, "url.json", models.ModelMetadata{
		TrainingDate: "2024-01-15",
		ModelType:    "url",
		FeatureNames: urlFeatureNames,
		NumFeatures:  10,
		Coefficients: coefficients(10),
		Intercept:    -1,
	})

	reg := LoadModelRegistry(config.ModelsConfig{
		URLPath:   urlPath,
		EmailPath: filepath.Join(dir, "missing.json"),
	}, logger.NewNop())

	if !reg.IsLoaded(models.ModelTypeURL) {
		t.Fatalf("url model not loaded: %+v", reg.Info(models.ModelTypeURL))
	}
	if reg.IsLoaded(models.ModelTypeEmail) {
		t.Fatal("email model should not be loaded")
	}

	if _, err := reg.Get(models.ModelTypeEmail); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Get(email) error = %v, want ErrModelUnavailable", err)
	}

	loaded := reg.Loaded()
	if !loaded[models.ModelTypeURL] || loaded[models.ModelTypeEmail] {
		t.Errorf("Loaded() = %v", loaded)
	}

	info := reg.Info(models.ModelTypeEmail)
	if info.Loaded || info.LoadError == "" {
		t.Errorf("Info(email) = %+v, want a load error", info)
	}

	info = reg.Info(models.ModelTypeURL)
	if info.OrderMismatch || info.Metadata == nil || info.Metadata.TrainingDate != "2024-01-15" {
		t.Errorf("Info(url) = %+v", info)
	}
}

func TestLoadModelRegistry_CoefficientCountMismatch(t *testing.T) {
	dir := t.TempDir()
	emailPath := writeMetadata(t, dir, "email.json", models.ModelMetadata{
		Coefficients: coefficients(10),
	})

	reg := LoadModelRegistry(config.ModelsConfig{EmailPath: emailPath}, logger.NewNop())

	if reg.IsLoaded(models.ModelTypeEmail) {
		t.Fatal("email model with 10 coefficients must not load")
	}
	if reg.IsLoaded(models.ModelTypeURL) {
		t.Fatal("url model without a path must not load")
	}
}

func TestLoadModelRegistry_OrderMismatchStillLoads(t *testing.T) {
	dir := t.TempDir()
	reversed := slices.Clone(emailFeatureNames)
	slices.Reverse(reversed)

	emailPath := writeMetadata(t, dir, "email.json", models.ModelMetadata{
		FeatureNames: reversed,
		Coefficients: coefficients(7),
	})

	reg := LoadModelRegistry(config.ModelsConfig{EmailPath: emailPath}, logger.NewNop())

	if !reg.IsLoaded(models.ModelTypeEmail) {
		t.Fatal("feature order mismatch should only warn")
	}
	if !reg.Info(models.ModelTypeEmail).OrderMismatch {
		t.Error("Info(email).OrderMismatch = false, want true")
	}
}

func TestLoadModelMetadata_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModelMetadata(path); err == nil {
		t.Error("LoadModelMetadata() error = nil, want decode error")
	}
}
