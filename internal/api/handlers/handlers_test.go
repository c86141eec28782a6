package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"phishguard/internal/domain/models"
	"phishguard/internal/domain/services"
	"phishguard/internal/infrastructure/database/repository"
	"phishguard/pkg/logger"
)

func newTestService(urlLoaded, emailLoaded bool) *services.PredictionService {
	var entries []services.RegisteredModel
	if urlLoaded {
		// intercept 2 with zero weights scores every URL at about 0.88
		entries = append(entries, services.RegisteredModel{
			Type:       models.ModelTypeURL,
			Classifier: services.NewLogisticModel(make([]float64, 10), 2),
		})
	}
	if emailLoaded {
		entries = append(entries, services.RegisteredModel{
			Type:       models.ModelTypeEmail,
			Classifier: services.NewLogisticModel(make([]float64, 7), -2),
		})
	}
	return services.NewPredictionService(
		services.DefaultPredictionServiceConfig(),
		services.NewModelRegistry(entries...),
		nil, nil, nil,
		logger.NewNop(),
	)
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body.StatusCode != rec.Code {
		t.Errorf("status_code = %d, HTTP status = %d", body.StatusCode, rec.Code)
	}
	return body
}

func TestPredictHandler_PredictURL(t *testing.T) {
	tests := []struct {
		name       string
		urlLoaded  bool
		body       string
		wantStatus int
		wantError  string
	}{
		{"scored", true, `{"url":"https://example.com/login","links_count":3}`, http.StatusOK, ""},
		{"empty url still scored", true, `{"url":""}`, http.StatusOK, ""},
		{"missing url", true, `{"page_text":"hello"}`, http.StatusBadRequest, "Invalid request"},
		{"numeric url coerced", true, `{"url":42}`, http.StatusOK, ""},
		{"object url", true, `{"url":{}}`, http.StatusBadRequest, "Invalid request"},
		{"array url", true, `{"url":[1]}`, http.StatusBadRequest, "Invalid request"},
		{"invalid json", true, `{"url":`, http.StatusBadRequest, "Invalid request"},
		{"empty body", true, ``, http.StatusBadRequest, "Invalid request"},
		{"array body", true, `["https://example.com"]`, http.StatusBadRequest, "Invalid request"},
		{"model not loaded", false, `{"url":"https://example.com"}`, http.StatusServiceUnavailable, "Model not loaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPredictHandler(newTestService(tt.urlLoaded, false), logger.NewNop())
			rec := do(t, h.PredictURL, http.MethodPost, "/predict/url", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				if got := decodeError(t, rec); got.Error != tt.wantError {
					t.Errorf("error = %q, want %q", got.Error, tt.wantError)
				}
				return
			}

			var resp models.PredictionResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("bad response: %v", err)
			}
			if resp.RiskLevel != models.RiskLevelDangerous || !resp.IsPhishing || resp.Prediction != 1 {
				t.Errorf("assessment = %+v", resp.RiskAssessment)
			}
			if resp.URL == nil {
				t.Error("url not echoed")
			}
		})
	}
}

func TestPredictHandler_LogsRequestID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"scored", `{"url":"https://example.com"}`, "URL prediction"},
		{"rejected", `{"url":`, "rejected request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
			h := NewPredictHandler(newTestService(true, false), log)

			req := httptest.NewRequest(http.MethodPost, "/predict/url", strings.NewReader(tt.body))
			req.Header.Set(middleware.RequestIDHeader, "req-7")
			middleware.RequestID(http.HandlerFunc(h.PredictURL)).ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
			}
			if entry["message"] != tt.wantMsg || entry["request_id"] != "req-7" {
				t.Errorf("log entry = %v, want %q tagged with request_id req-7", entry, tt.wantMsg)
			}
		})
	}
}

func TestPredictHandler_PredictEmail(t *testing.T) {
	h := NewPredictHandler(newTestService(false, true), logger.NewNop())
	rec := do(t, h.PredictEmail, http.MethodPost, "/predict/email",
		`{"subject":"Team lunch on Friday","body":"See you there","return_features":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp models.PredictionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.RiskLevel != models.RiskLevelSafe || resp.IsPhishing {
		t.Errorf("assessment = %+v", resp.RiskAssessment)
	}
	if resp.Subject == nil || *resp.Subject != "Team lunch on Friday" {
		t.Errorf("subject = %v", resp.Subject)
	}
	if len(resp.FeatureNames) != 7 || len(resp.Features) != 7 {
		t.Errorf("features = %v names = %v", resp.Features, resp.FeatureNames)
	}
}

func TestPredictHandler_PredictURLBatch(t *testing.T) {
	h := NewPredictHandler(newTestService(true, false), logger.NewNop())

	rec := do(t, h.PredictURLBatch, http.MethodPost, "/predict/url/batch",
		`{"urls":["https://a.example",{"url":"https://b.example","links_count":2}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp models.URLBatchPredictResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Total != 2 || resp.Failed != 0 || len(resp.Results) != 2 {
		t.Errorf("total = %d failed = %d results = %d", resp.Total, resp.Failed, len(resp.Results))
	}
	for i, r := range resp.Results {
		if r.Index != i || r.Result == nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}

	rec = do(t, h.PredictURLBatch, http.MethodPost, "/predict/url/batch", `{"urls":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}
}

func TestPredictHandler_PredictRawEmail(t *testing.T) {
	h := NewPredictHandler(newTestService(false, true), logger.NewNop())

	raw := "From: a@example.com\r\nTo: b@example.com\r\nSubject: Hello\r\n\r\nVisit https://example.com today\r\n"
	rec := do(t, h.PredictRawEmail, http.MethodPost, "/predict/email/raw?return_features=true", raw)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp models.PredictionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Features["link_count"] != 1 {
		t.Errorf("link_count = %v, want 1", resp.Features["link_count"])
	}

	rec = do(t, h.PredictRawEmail, http.MethodPost, "/predict/email/raw?return_features=maybe", raw)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad flag status = %d, want 400", rec.Code)
	}
}

func TestFeaturesHandler(t *testing.T) {
	h := NewFeaturesHandler(newTestService(false, false), logger.NewNop())

	rec := do(t, h.URL, http.MethodPost, "/features/url", `{"url":"https://www.example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var resp models.FeaturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Features["url_length"] != 23 || resp.Features["is_https"] != 1 {
		t.Errorf("features = %v", resp.Features)
	}

	rec = do(t, h.URL, http.MethodPost, "/features/url", `{"url":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty url status = %d, want 400", rec.Code)
	}

	rec = do(t, h.Email, http.MethodPost, "/features/email", `{}`)
	if rec.Code != http.StatusOK {
		t.Errorf("empty email status = %d, want 200", rec.Code)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	tests := []struct {
		name       string
		urlLoaded  bool
		checks     map[string]Pinger
		wantStatus int
		wantState  string
	}{
		{"ready", true, map[string]Pinger{"redis": up}, http.StatusOK, "ready"},
		{"no models", false, nil, http.StatusServiceUnavailable, "not ready"},
		{"dependency down", true, map[string]Pinger{"postgres": down}, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(newTestService(tt.urlLoaded, false), tt.checks, logger.NewNop())

			// liveness never depends on models or dependencies
			if rec := do(t, h.Check, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
				t.Errorf("/health status = %d", rec.Code)
			}

			rec := do(t, h.Ready, http.MethodGet, "/ready", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("/ready status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("bad response: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantState)
			}
			if resp.ModelsLoaded[models.ModelTypeURL] != tt.urlLoaded {
				t.Errorf("models_loaded = %v", resp.ModelsLoaded)
			}
		})
	}
}

type fakeVerdicts struct {
	err error
}

func (f fakeVerdicts) VerdictStats(_ context.Context, types ...models.ModelType) ([]models.VerdictStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.VerdictStats, 0, len(types))
	for _, t := range types {
		out = append(out, models.VerdictStats{ModelType: t, Total: 1, ByLevel: map[models.RiskLevel]int64{models.RiskLevelSafe: 1}})
	}
	return out, nil
}

type fakeLog struct {
	byID   map[uuid.UUID]*models.PredictionOutcome
	recent []*models.PredictionOutcome
	gotT   models.ModelType
	gotN   int
}

func (f *fakeLog) GetByID(_ context.Context, id uuid.UUID) (*models.PredictionOutcome, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, repository.ErrPredictionNotFound
}

func (f *fakeLog) ListRecent(_ context.Context, t models.ModelType, limit int) ([]*models.PredictionOutcome, error) {
	f.gotT, f.gotN = t, limit
	return f.recent, nil
}

func TestStatsHandler_Get(t *testing.T) {
	rec := do(t, NewStatsHandler(nil, nil, nil, logger.NewNop()).Get, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without redis status = %d, want 503", rec.Code)
	}

	rec = do(t, NewStatsHandler(fakeVerdicts{err: errors.New("timeout")}, nil, nil, logger.NewNop()).Get, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing redis status = %d, want 503", rec.Code)
	}

	d := services.NewDispatcher(services.DefaultDispatcherConfig(), logger.NewNop())
	rec = do(t, NewStatsHandler(fakeVerdicts{}, nil, d, logger.NewNop()).Get, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var payload StatsPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(payload.Stats) != len(models.ModelTypes) || payload.Dispatcher == nil {
		t.Errorf("payload = %+v", payload)
	}
}

func TestStatsHandler_Predictions(t *testing.T) {
	known := &models.PredictionOutcome{ID: uuid.New(), ModelType: models.ModelTypeURL}
	audit := &fakeLog{byID: map[uuid.UUID]*models.PredictionOutcome{known.ID: known}}
	h := NewStatsHandler(nil, audit, nil, logger.NewNop())

	router := chi.NewRouter()
	router.Get("/predictions", h.Recent)
	router.Get("/predictions/{id}", h.GetPrediction)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"found", "/predictions/" + known.ID.String(), http.StatusOK},
		{"not found", "/predictions/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/predictions/not-a-uuid", http.StatusBadRequest},
		{"recent", "/predictions?model_type=url&limit=5", http.StatusOK},
		{"recent bad type", "/predictions?model_type=sms", http.StatusNotFound},
		{"recent bad limit", "/predictions?limit=-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	if audit.gotT != models.ModelTypeURL || audit.gotN != 5 {
		t.Errorf("ListRecent(%q, %d)", audit.gotT, audit.gotN)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predictions", nil))
	var body struct {
		Predictions []models.PredictionOutcome `json:"predictions"`
		Count       int                        `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if body.Predictions == nil || body.Count != 0 {
		t.Errorf("empty history = %+v, want [] and 0", body)
	}
}

func TestStreamingHandler_WithoutHub(t *testing.T) {
	h := NewStreamingHandler(nil, nil, logger.NewNop())

	if rec := do(t, h.HandleWebSocket, http.MethodGet, "/ws/predictions", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("websocket status = %d, want 503", rec.Code)
	}

	rec := do(t, h.GetStats, http.MethodGet, "/stream/stats", "")
	var stats map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if stats["websocket_clients"] != 0 || stats["event_bus_subscribers"] != 0 {
		t.Errorf("stats = %v", stats)
	}
}
