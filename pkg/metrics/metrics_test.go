package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phishguard/internal/domain/models"
)

func TestMetrics_Gather(t *testing.T) {
	m := New()
	m.ObservePrediction(models.ModelTypeURL, models.RiskLevelDangerous, 3*time.Millisecond)
	m.ObservePrediction(models.ModelTypeURL, models.RiskLevelDangerous, time.Millisecond)
	m.ObserveError(models.ModelTypeEmail, "model_unavailable")
	m.ObserveDispatchDrop(models.ModelTypeURL)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	counts := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
		}
	}

	tests := []struct {
		name string
		want float64
	}{
		{"phishguard_predictions_total", 2},
		{"phishguard_prediction_errors_total", 1},
		{"phishguard_dispatch_dropped_total", 1},
	}
	for _, tt := range tests {
		if counts[tt.name] != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, counts[tt.name], tt.want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetModelsLoaded(map[models.ModelType]bool{models.ModelTypeURL: true, models.ModelTypeEmail: false})
	m.ObserveHTTP(http.MethodPost, "/predict/url", http.StatusOK, 2*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`phishguard_model_loaded{model_type="url"} 1`,
		`phishguard_model_loaded{model_type="email"} 0`,
		`phishguard_http_requests_total{method="POST",route="/predict/url",status="200"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
