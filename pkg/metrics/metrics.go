package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"phishguard/internal/domain/models"
)

const namespace = "phishguard"

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	predictions   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	dispatchDrops *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
	modelsLoaded  *prometheus.GaugeVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions served",
		}, []string{"model_type", "risk_level"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Total number of failed predictions",
		}, []string{"model_type", "kind"}),
		dispatchDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_dropped_total",
			Help:      "Prediction outcomes dropped because the dispatcher queue was full",
		}, []string{"model_type"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Feature extraction plus inference latency",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"model_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		modelsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when the model for the type is loaded",
		}, []string{"model_type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.errors,
		m.dispatchDrops,
		m.latency,
		m.httpRequests,
		m.httpDurations,
		m.modelsLoaded,
	)

	return m
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction counts a served prediction and records its latency
func (m *Metrics) ObservePrediction(modelType models.ModelType, level models.RiskLevel, elapsed time.Duration) {
	m.predictions.WithLabelValues(string(modelType), string(level)).Inc()
	m.latency.WithLabelValues(string(modelType)).Observe(elapsed.Seconds())
}

// ObserveError counts a failed prediction
func (m *Metrics) ObserveError(modelType models.ModelType, kind string) {
	m.errors.WithLabelValues(string(modelType), kind).Inc()
}

// ObserveDispatchDrop counts an outcome the dispatcher could not queue
func (m *Metrics) ObserveDispatchDrop(modelType models.ModelType) {
	m.dispatchDrops.WithLabelValues(string(modelType)).Inc()
}

// ObserveHTTP records one finished HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetModelsLoaded publishes the loaded status of every model
func (m *Metrics) SetModelsLoaded(loaded map[models.ModelType]bool) {
	for t, ok := range loaded {
		v := 0.0
		if ok {
			v = 1
		}
		m.modelsLoaded.WithLabelValues(string(t)).Set(v)
	}
}
