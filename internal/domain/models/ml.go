package models

// ModelMetadata is the sidecar record written next to every trained classifier
type ModelMetadata struct {
	TrainingDate string             `json:"training_date"`
	ModelType    string             `json:"model_type"`
	FeatureNames []string           `json:"feature_names"`
	NumFeatures  int                `json:"num_features"`
	Metrics      map[string]float64 `json:"metrics"`
	Coefficients []float64          `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
}

// MLModelInfo describes a loaded (or missing) model for diagnostics
type MLModelInfo struct {
	Type          ModelType      `json:"type"`
	Loaded        bool           `json:"loaded"`
	Path          string         `json:"path,omitempty"`
	FeatureNames  []string       `json:"feature_names"`
	OrderMismatch bool           `json:"order_mismatch,omitempty"`
	LoadError     string         `json:"load_error,omitempty"`
	Metadata      *ModelMetadata `json:"metadata,omitempty"`
}

// InfoResponse is returned by GET /info
type InfoResponse struct {
	Version        string             `json:"version"`
	URLFeatures    []string           `json:"url_features"`
	EmailFeatures  []string           `json:"email_features"`
	RiskThresholds RiskThresholds     `json:"risk_thresholds"`
	ModelsLoaded   map[ModelType]bool `json:"models_loaded"`
}
