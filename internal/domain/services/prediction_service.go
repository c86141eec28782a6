package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

const (
	// MaxBatchSize caps POST /predict/url/batch
	MaxBatchSize = 100

	subjectEchoLimit = 50
)

// OutcomeSink accepts served predictions for asynchronous side effects
type OutcomeSink interface {
	Submit(outcome *models.PredictionOutcome) bool
}

// PredictionMetrics records prediction counters and latency
type PredictionMetrics interface {
	ObservePrediction(modelType models.ModelType, level models.RiskLevel, elapsed time.Duration)
	ObserveError(modelType models.ModelType, kind string)
	ObserveDispatchDrop(modelType models.ModelType)
}

// PredictionServiceConfig holds configuration for the prediction service
type PredictionServiceConfig struct {
	Version          string
	BatchConcurrency int
}

// DefaultPredictionServiceConfig returns default configuration
func DefaultPredictionServiceConfig() PredictionServiceConfig {
	return PredictionServiceConfig{
		Version:          "1.0.0",
		BatchConcurrency: 8,
	}
}

// PredictionService runs normalize -> extract -> classify -> score for URLs and
// emails. All collaborators are read-only after construction so one instance
// serves every request.
type PredictionService struct {
	config         PredictionServiceConfig
	registry       *ModelRegistry
	urlExtractor   *URLFeatureExtractor
	emailExtractor *EmailFeatureExtractor
	scorer         *RiskScorer
	sink           OutcomeSink
	metrics        PredictionMetrics
	logger         *logger.Logger
}

// NewPredictionService creates a new prediction service. sink and metrics may be nil.
func NewPredictionService(
	config PredictionServiceConfig,
	registry *ModelRegistry,
	scorer *RiskScorer,
	sink OutcomeSink,
	metrics PredictionMetrics,
	log *logger.Logger,
) *PredictionService {
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = DefaultPredictionServiceConfig().BatchConcurrency
	}
	if registry == nil {
		registry = NewModelRegistry()
	}
	if scorer == nil {
		scorer = NewRiskScorer(models.DefaultRiskThresholds())
	}

	return &PredictionService{
		config:         config,
		registry:       registry,
		urlExtractor:   NewURLFeatureExtractor(),
		emailExtractor: NewEmailFeatureExtractor(),
		scorer:         scorer,
		sink:           sink,
		metrics:        metrics,
		logger:         log.WithComponent("prediction-service"),
	}
}

// PredictURL scores a URL with its optional page context
func (s *PredictionService) PredictURL(ctx context.Context, req models.URLPredictRequest) (*models.PredictionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	vec := s.urlExtractor.ExtractVector(req.URL, req.PageText, req.LinksCount)
	assessment, err := s.classify(models.ModelTypeURL, vec)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	url := req.URL
	resp := s.buildResponse(assessment, vec, req.ReturnFeatures, elapsed)
	resp.URL = &url

	s.record(&models.PredictionOutcome{
		ID:               resp.ID,
		ModelType:        models.ModelTypeURL,
		InputDigest:      digest(models.ModelTypeURL, req.URL, req.PageText, strconv.Itoa(req.LinksCount)),
		URL:              req.URL,
		Assessment:       assessment,
		Features:         vec.Map(),
		ProcessingTimeMS: resp.ProcessingTimeMS,
		CreatedAt:        time.Now().UTC(),
	}, elapsed)

	return resp, nil
}

// PredictEmail scores an email from its subject, body and links
func (s *PredictionService) PredictEmail(ctx context.Context, req models.EmailPredictRequest) (*models.PredictionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	links := req.Links
	if links == nil {
		links = []string{}
	}

	vec := s.emailExtractor.ExtractVector(req.Subject, req.Body, links)
	assessment, err := s.classify(models.ModelTypeEmail, vec)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	subject := truncateSubject(req.Subject)
	resp := s.buildResponse(assessment, vec, req.ReturnFeatures, elapsed)
	resp.Subject = &subject

	parts := append([]string{req.Subject, req.Body}, links...)
	s.record(&models.PredictionOutcome{
		ID:               resp.ID,
		ModelType:        models.ModelTypeEmail,
		InputDigest:      digest(models.ModelTypeEmail, parts...),
		Subject:          subject,
		Assessment:       assessment,
		Features:         vec.Map(),
		ProcessingTimeMS: resp.ProcessingTimeMS,
		CreatedAt:        time.Now().UTC(),
	}, elapsed)

	return resp, nil
}

// PredictRawEmail parses an RFC 822 message and scores it as an email
func (s *PredictionService) PredictRawEmail(ctx context.Context, r io.Reader, returnFeatures bool) (*models.PredictionResponse, error) {
	parsed, err := ParseRawEmail(r)
	if err != nil {
		s.observeError(models.ModelTypeEmail, err)
		return nil, err
	}

	return s.PredictEmail(ctx, models.EmailPredictRequest{
		Subject:        parsed.Subject,
		Body:           parsed.Body,
		Links:          parsed.Links,
		ReturnFeatures: returnFeatures,
	})
}

// PredictURLBatch scores up to MaxBatchSize URLs concurrently. A failing item
// is reported in its slot; only a missing model or a bad batch fails the call.
func (s *PredictionService) PredictURLBatch(ctx context.Context, reqs []models.URLPredictRequest) (*models.URLBatchPredictResponse, error) {
	if len(reqs) == 0 {
		return nil, malformed("urls", "at least one url is required")
	}
	if len(reqs) > MaxBatchSize {
		return nil, malformed("urls", "maximum %d urls per batch", MaxBatchSize)
	}
	if !s.registry.IsLoaded(models.ModelTypeURL) {
		_, err := s.registry.Get(models.ModelTypeURL)
		s.observeError(models.ModelTypeURL, err)
		return nil, err
	}

	start := time.Now()
	results := make([]models.BatchItemResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BatchConcurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i].Index = i
			resp, err := s.PredictURL(gctx, req)
			if err != nil {
				results[i].Error = NewErrorResponse(err)
				return nil
			}
			results[i].Result = resp
			return nil
		})
	}
	_ = g.Wait()

	out := &models.URLBatchPredictResponse{
		Results:          results,
		Total:            len(results),
		ProcessingTimeMS: durationMS(time.Since(start)),
	}
	for _, r := range results {
		if r.Error != nil {
			out.Failed++
		}
	}
	return out, nil
}

// ExtractURLFeatures returns the URL features without classifying
func (s *PredictionService) ExtractURLFeatures(req models.URLPredictRequest) (*models.FeaturesResponse, error) {
	if req.URL == "" {
		return nil, malformed("url", "url is required")
	}

	vec := s.urlExtractor.ExtractVector(req.URL, req.PageText, req.LinksCount)
	return &models.FeaturesResponse{
		URL:          req.URL,
		Features:     vec.Map(),
		FeatureNames: vec.Names,
	}, nil
}

// ExtractEmailFeatures returns the email features without classifying
func (s *PredictionService) ExtractEmailFeatures(req models.EmailPredictRequest) *models.FeaturesResponse {
	vec := s.emailExtractor.ExtractVector(req.Subject, req.Body, req.Links)
	return &models.FeaturesResponse{
		Features:     vec.Map(),
		FeatureNames: vec.Names,
	}
}

// Info returns the static service metadata
func (s *PredictionService) Info() models.InfoResponse {
	return models.InfoResponse{
		Version:        s.config.Version,
		URLFeatures:    s.urlExtractor.FeatureNames(),
		EmailFeatures:  s.emailExtractor.FeatureNames(),
		RiskThresholds: s.scorer.Thresholds(),
		ModelsLoaded:   s.registry.Loaded(),
	}
}

// ModelInfo returns diagnostics for one model slot
func (s *PredictionService) ModelInfo(t models.ModelType) (models.MLModelInfo, error) {
	if !t.Valid() {
		return models.MLModelInfo{}, fmt.Errorf("%w: %q", ErrUnknownModelType, t)
	}
	return s.registry.Info(t), nil
}

// ModelsLoaded reports the loaded status of every model type
func (s *PredictionService) ModelsLoaded() map[models.ModelType]bool {
	return s.registry.Loaded()
}

// Version returns the configured service version
func (s *PredictionService) Version() string {
	return s.config.Version
}

func (s *PredictionService) classify(t models.ModelType, vec models.FeatureVector) (models.RiskAssessment, error) {
	clf, err := s.registry.Get(t)
	if err != nil {
		s.observeError(t, err)
		return models.RiskAssessment{}, err
	}

	p, err := clf.PredictProbability(vec.Values)
	if err != nil {
		err = fmt.Errorf("predict probability: %w", err)
		s.observeError(t, err)
		return models.RiskAssessment{}, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		err = fmt.Errorf("%w: %v", ErrInvalidProbability, p)
		s.observeError(t, err)
		return models.RiskAssessment{}, err
	}

	class, err := clf.PredictClass(vec.Values)
	if err != nil {
		err = fmt.Errorf("predict class: %w", err)
		s.observeError(t, err)
		return models.RiskAssessment{}, err
	}

	return s.scorer.Score(p, class), nil
}

func (s *PredictionService) buildResponse(a models.RiskAssessment, vec models.FeatureVector, withFeatures bool, elapsed time.Duration) *models.PredictionResponse {
	resp := &models.PredictionResponse{
		ID:               uuid.New(),
		RiskAssessment:   a,
		ProcessingTimeMS: durationMS(elapsed),
	}
	if withFeatures {
		resp.Features = vec.Map()
		resp.FeatureNames = vec.Names
	}
	return resp
}

func (s *PredictionService) record(outcome *models.PredictionOutcome, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObservePrediction(outcome.ModelType, outcome.Assessment.RiskLevel, elapsed)
	}

	s.logger.Debug().
		Str("prediction_id", outcome.ID.String()).
		Str("model_type", string(outcome.ModelType)).
		Float64("risk_score", outcome.Assessment.RiskScore).
		Str("risk_level", string(outcome.Assessment.RiskLevel)).
		Float64("processing_time_ms", outcome.ProcessingTimeMS).
		Msg("prediction served")

	if s.sink == nil {
		return
	}
	if !s.sink.Submit(outcome) && s.metrics != nil {
		s.metrics.ObserveDispatchDrop(outcome.ModelType)
	}
}

func (s *PredictionService) observeError(t models.ModelType, err error) {
	if s.metrics != nil {
		s.metrics.ObserveError(t, ErrorKind(err))
	}
}

// NewErrorResponse builds the uniform error body for err
func NewErrorResponse(err error) *models.ErrorResponse {
	status, title := ErrorStatus(err)
	detail := err.Error()
	return &models.ErrorResponse{
		Error:      title,
		Detail:     &detail,
		StatusCode: status,
	}
}

func truncateSubject(subject string) string {
	if utf8.RuneCountInString(subject) <= subjectEchoLimit {
		return subject
	}
	return string([]rune(subject)[:subjectEchoLimit]) + "..."
}

func digest(t models.ModelType, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(t))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
