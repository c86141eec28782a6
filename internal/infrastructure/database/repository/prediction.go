package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"phishguard/internal/domain/models"
	"phishguard/internal/infrastructure/database"
)

// ErrPredictionNotFound is returned when no audit row matches the id
var ErrPredictionNotFound = errors.New("prediction not found")

// PredictionSchema creates the audit table; safe to run on every start
var PredictionSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id                 UUID PRIMARY KEY,
		model_type         TEXT NOT NULL,
		input_digest       TEXT NOT NULL,
		url                TEXT,
		subject            TEXT,
		probability        DOUBLE PRECISION NOT NULL,
		risk_score         DOUBLE PRECISION NOT NULL,
		risk_level         TEXT NOT NULL,
		prediction         SMALLINT NOT NULL,
		features           JSONB NOT NULL DEFAULT '{}',
		processing_time_ms DOUBLE PRECISION NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_digest ON predictions (input_digest)`,
}

const predictionColumns = `id, model_type, input_digest, url, subject,
	probability, risk_score, risk_level, prediction, features,
	processing_time_ms, created_at`

// PredictionRepository is the append-only audit log of served predictions
type PredictionRepository struct {
	db database.DBTX
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db database.DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert stores one outcome; re-inserting the same id is a no-op
func (r *PredictionRepository) Insert(ctx context.Context, o *models.PredictionOutcome) error {
	query := `
		INSERT INTO predictions (` + predictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	features := o.Features
	if features == nil {
		features = map[string]float64{}
	}

	_, err := r.db.Exec(ctx, query,
		o.ID, string(o.ModelType), o.InputDigest, textOrNull(o.URL), textOrNull(o.Subject),
		o.Assessment.Probability, o.Assessment.RiskScore, string(o.Assessment.RiskLevel),
		o.Assessment.Prediction, features,
		o.ProcessingTimeMS, timeToTimestamptz(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// GetByID retrieves one outcome
func (r *PredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PredictionOutcome, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`

	o, err := scanPrediction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListRecent returns the newest outcomes, optionally filtered by model type
func (r *PredictionRepository) ListRecent(ctx context.Context, t models.ModelType, limit int) ([]*models.PredictionOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 500)

	query := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE ($1::text = '' OR model_type = $1::text)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var out []*models.PredictionOutcome
	for rows.Next() {
		o, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return out, nil
}

func scanPrediction(row pgx.Row) (*models.PredictionOutcome, error) {
	var (
		o         models.PredictionOutcome
		modelType string
		level     string
		url       pgtype.Text
		subject   pgtype.Text
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(
		&o.ID, &modelType, &o.InputDigest, &url, &subject,
		&o.Assessment.Probability, &o.Assessment.RiskScore, &level, &o.Assessment.Prediction, &o.Features,
		&o.ProcessingTimeMS, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}

	o.ModelType = models.ModelType(modelType)
	o.URL = nullTextToString(url)
	o.Subject = nullTextToString(subject)
	o.Assessment.RiskLevel = models.RiskLevel(level)
	o.Assessment.IsPhishing = o.Assessment.Prediction == 1
	o.CreatedAt = timestamptzToTime(createdAt)
	return &o, nil
}

// AuditObserver writes every served prediction to the audit log
type AuditObserver struct {
	repo *PredictionRepository
}

// NewAuditObserver creates a dispatcher observer backed by Postgres
func NewAuditObserver(repo *PredictionRepository) *AuditObserver {
	return &AuditObserver{repo: repo}
}

// Name identifies the observer in logs and circuit breaker state
func (o *AuditObserver) Name() string {
	return "postgres-audit"
}

// OnPrediction inserts the outcome
func (o *AuditObserver) OnPrediction(ctx context.Context, outcome *models.PredictionOutcome) error {
	return o.repo.Insert(ctx, outcome)
}
