package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"phishguard/internal/config"
	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

// Key layout under the configured prefix
const (
	KeyRateLimitPrefix = "rate_limit:"
	KeyVerdictsPrefix  = "verdicts:"

	fieldTotal = "total"
)

// RedisCache wraps the Redis client with the operations the service needs:
// request rate limiting and shared verdict counters across replicas
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *logger.Logger
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return &RedisCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    log,
	}, nil
}

// Ping checks connectivity for readiness probes
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// CheckRateLimit increments the fixed-window counter for key.
// Returns (allowed, remaining, resetTime, error)
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := time.Now()
	windowSecs := int64(window.Seconds())
	if windowSecs <= 0 {
		windowSecs = 1
	}
	bucket := now.Unix() / windowSecs
	windowKey := c.key(fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, bucket))

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := max(limit-count, 0)
	resetTime := time.Unix((bucket+1)*windowSecs, 0)

	return count <= limit, remaining, resetTime, nil
}

// RecordVerdict bumps the shared counters for one served prediction
func (c *RedisCache) RecordVerdict(ctx context.Context, t models.ModelType, level models.RiskLevel) error {
	key := c.key(KeyVerdictsPrefix + string(t))

	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldTotal, 1)
	pipe.HIncrBy(ctx, key, string(level), 1)
	_, err := pipe.Exec(ctx)
	return err
}

// VerdictStats reads the shared counters for the given model types
func (c *RedisCache) VerdictStats(ctx context.Context, types ...models.ModelType) ([]models.VerdictStats, error) {
	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(types))
	for i, t := range types {
		cmds[i] = pipe.HGetAll(ctx, c.key(KeyVerdictsPrefix+string(t)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read verdict stats: %w", err)
	}

	out := make([]models.VerdictStats, 0, len(types))
	for i, t := range types {
		out = append(out, parseVerdictStats(t, cmds[i].Val()))
	}
	return out, nil
}

func parseVerdictStats(t models.ModelType, fields map[string]string) models.VerdictStats {
	stats := models.VerdictStats{
		ModelType: t,
		ByLevel: map[models.RiskLevel]int64{
			models.RiskLevelSafe:       0,
			models.RiskLevelSuspicious: 0,
			models.RiskLevelDangerous:  0,
		},
	}

	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if field == fieldTotal {
			stats.Total = n
			continue
		}
		if level := models.RiskLevel(field); level.Rank() >= 0 {
			stats.ByLevel[level] = n
		}
	}
	return stats
}

// StatsObserver feeds served predictions into the shared verdict counters
type StatsObserver struct {
	cache *RedisCache
}

// NewStatsObserver creates a dispatcher observer backed by Redis
func NewStatsObserver(c *RedisCache) *StatsObserver {
	return &StatsObserver{cache: c}
}

// Name identifies the observer in logs and circuit breaker state
func (o *StatsObserver) Name() string {
	return "redis-stats"
}

// OnPrediction records the verdict
func (o *StatsObserver) OnPrediction(ctx context.Context, outcome *models.PredictionOutcome) error {
	return o.cache.RecordVerdict(ctx, outcome.ModelType, outcome.Assessment.RiskLevel)
}
