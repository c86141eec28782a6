package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"phishguard/internal/api/handlers"
	"phishguard/internal/config"
	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/pkg/logger"
	"phishguard/pkg/metrics"
)

func newTestRouter(t *testing.T, apiKeys []string) http.Handler {
	t.Helper()

	registry := services.NewModelRegistry(services.RegisteredModel{
		Type:       models.ModelTypeURL,
		Classifier: services.NewLogisticModel(make([]float64, 10), 0),
	})
	svc := services.NewPredictionService(services.DefaultPredictionServiceConfig(), registry, nil, nil, nil, logger.NewNop())
	h := handlers.NewHandlers(handlers.Dependencies{Service: svc, Logger: logger.NewNop()})

	cfg := config.Config{Auth: config.AuthConfig{APIKeys: apiKeys}}
	return NewRouter(cfg, h, nil, metrics.New(), logger.NewNop()).Setup()
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, []string{"secret"})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		apiKey     string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"ready with url model", http.MethodGet, "/ready", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"root info needs no key", http.MethodGet, "/info", "", "", http.StatusOK},
		{"root predict", http.MethodPost, "/predict/url", `{"url":"https://example.com"}`, "", http.StatusOK},
		{"email model missing", http.MethodPost, "/predict/email", `{"subject":"hi"}`, "", http.StatusServiceUnavailable},
		{"model info unloaded", http.MethodGet, "/models/email", "", "", http.StatusServiceUnavailable},
		{"model info unknown", http.MethodGet, "/models/sms", "", "", http.StatusNotFound},
		{"v1 without key", http.MethodGet, "/api/v1/info", "", "", http.StatusUnauthorized},
		{"v1 with key", http.MethodGet, "/api/v1/info", "", "secret", http.StatusOK},
		{"v1 predict", http.MethodPost, "/api/v1/predict/url", `{"url":"https://example.com"}`, "secret", http.StatusOK},
		{"stats without redis", http.MethodGet, "/stats", "", "", http.StatusServiceUnavailable},
		{"history without postgres", http.MethodGet, "/predictions", "", "", http.StatusServiceUnavailable},
		{"stream stats", http.MethodGet, "/stream/stats", "", "", http.StatusOK},
		{"websocket without hub", http.MethodGet, "/ws/predictions", "", "", http.StatusServiceUnavailable},
		{"wrong method", http.MethodGet, "/predict/url", "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d (body %s)", tt.method, tt.target, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, []string{"secret"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/predict/url", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusUnauthorized {
		t.Fatal("preflight rejected by API key check")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin missing")
	}
}
