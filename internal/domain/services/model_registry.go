package services

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"phishguard/internal/config"
	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

// RegisteredModel is one classifier slot handed to NewModelRegistry
type RegisteredModel struct {
	Type       models.ModelType
	Classifier Classifier
	Metadata   *models.ModelMetadata
	Path       string
	LoadError  error
}

// ModelRegistry holds the optional classifiers for the process lifetime. It is
// built once at startup and never mutated, so reads need no locking.
type ModelRegistry struct {
	entries map[models.ModelType]RegisteredModel
}

// NewModelRegistry creates a registry from already-constructed classifiers.
// Slots with a nil Classifier count as not loaded.
func NewModelRegistry(entries ...RegisteredModel) *ModelRegistry {
	r := &ModelRegistry{entries: make(map[models.ModelType]RegisteredModel, len(entries))}
	for _, e := range entries {
		r.entries[e.Type] = e
	}
	return r
}

// LoadModelRegistry loads the URL and email models from their metadata records.
// A model that fails to load leaves its slot empty; the service degrades to
// "model unavailable" for that type instead of failing to start.
func LoadModelRegistry(cfg config.ModelsConfig, log *logger.Logger) *ModelRegistry {
	log = log.WithComponent("model-registry")

	paths := map[models.ModelType]string{
		models.ModelTypeURL:   cfg.URLPath,
		models.ModelTypeEmail: cfg.EmailPath,
	}

	entries := make([]RegisteredModel, 0, len(paths))
	for _, t := range models.ModelTypes {
		entry := loadEntry(t, paths[t])
		mlog := log.WithModelType(string(t))

		if entry.LoadError != nil {
			mlog.Error().Err(entry.LoadError).Str("path", entry.Path).Msg("failed to load model")
		} else {
			mlog.Info().
				Str("path", entry.Path).
				Str("training_date", entry.Metadata.TrainingDate).
				Int("num_features", len(entry.Metadata.Coefficients)).
				Msg("model loaded")
			if names := entry.Metadata.FeatureNames; len(names) > 0 && !slices.Equal(names, expectedFeatureNames(t)) {
				mlog.Warn().
					Strs("model_features", names).
					Strs("extractor_features", expectedFeatureNames(t)).
					Msg("model feature order differs from extractor; predictions may be invalid")
			}
		}
		entries = append(entries, entry)
	}

	return NewModelRegistry(entries...)
}

func loadEntry(t models.ModelType, path string) RegisteredModel {
	entry := RegisteredModel{Type: t, Path: path}

	meta, err := LoadModelMetadata(path)
	if err != nil {
		entry.LoadError = err
		return entry
	}

	model, err := NewLogisticModelFromMetadata(meta)
	if err != nil {
		entry.LoadError = fmt.Errorf("invalid model %s: %w", path, err)
		return entry
	}
	if want := len(expectedFeatureNames(t)); model.NumFeatures() != want {
		entry.LoadError = fmt.Errorf("%w: model %s has %d coefficients, extractor emits %d",
			ErrFeatureMismatch, path, model.NumFeatures(), want)
		return entry
	}

	entry.Classifier = model
	entry.Metadata = meta
	return entry
}

// LoadModelMetadata reads a persisted metadata record
func LoadModelMetadata(path string) (*models.ModelMetadata, error) {
	if path == "" {
		return nil, fmt.Errorf("no model path configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", path, err)
	}

	var meta models.ModelMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode model metadata %s: %w", path, err)
	}
	return &meta, nil
}

// Get returns the classifier for t or ErrModelUnavailable
func (r *ModelRegistry) Get(t models.ModelType) (Classifier, error) {
	e, ok := r.entries[t]
	if !ok || e.Classifier == nil {
		return nil, fmt.Errorf("%w: %s model is not available", ErrModelUnavailable, t)
	}
	return e.Classifier, nil
}

// IsLoaded reports whether a classifier is present for t
func (r *ModelRegistry) IsLoaded(t models.ModelType) bool {
	e, ok := r.entries[t]
	return ok && e.Classifier != nil
}

// Loaded returns the loaded status of every model type
func (r *ModelRegistry) Loaded() map[models.ModelType]bool {
	out := make(map[models.ModelType]bool, len(models.ModelTypes))
	for _, t := range models.ModelTypes {
		out[t] = r.IsLoaded(t)
	}
	return out
}

// Info describes the slot for t
func (r *ModelRegistry) Info(t models.ModelType) models.MLModelInfo {
	info := models.MLModelInfo{
		Type:         t,
		FeatureNames: expectedFeatureNames(t),
	}

	e, ok := r.entries[t]
	if !ok {
		return info
	}

	info.Loaded = e.Classifier != nil
	info.Path = e.Path
	info.Metadata = e.Metadata
	if e.LoadError != nil {
		info.LoadError = e.LoadError.Error()
	}
	if e.Metadata != nil && len(e.Metadata.FeatureNames) > 0 {
		info.OrderMismatch = !slices.Equal(e.Metadata.FeatureNames, info.FeatureNames)
	}
	return info
}

func expectedFeatureNames(t models.ModelType) []string {
	switch t {
	case models.ModelTypeURL:
		return slices.Clone(urlFeatureNames)
	case models.ModelTypeEmail:
		return slices.Clone(emailFeatureNames)
	default:
		return nil
	}
}
