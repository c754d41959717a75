package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

const rateKeyPrefix = "event_rate"

// RateLimitRepository implements domain.RateLimiter as a fixed-window counter
// in Redis, so the per-patient ceiling holds across server instances. The
// window key carries the window start; INCR plus EXPIRE keeps it self-cleaning.
type RateLimitRepository struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

var _ domain.RateLimiter = (*RateLimitRepository)(nil)

// NewRateLimitRepository creates a limiter allowing limit events per window
// per patient.
func NewRateLimitRepository(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimitRepository {
	return &RateLimitRepository{
		client: client,
		limit:  int64(limit),
		window: window,
		logger: logger.With("component", "ratelimit_repository"),
	}
}

// Allow reports whether one more event fits in the patient's current window.
func (r *RateLimitRepository) Allow(ctx context.Context, patientID string) (bool, error) {
	windowStart := time.Now().Unix() / int64(r.window.Seconds())
	key := fmt.Sprintf("%s:%s:%d", rateKeyPrefix, patientID, windowStart)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to advance rate window: %w", err)
	}

	count := incr.Val()
	if count > r.limit {
		r.logger.Warn("patient event rate ceiling reached",
			"patient_id", patientID, "count", count, "limit", r.limit)
		return false, nil
	}
	return true, nil
}
