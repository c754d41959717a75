package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pildhora/pildhora-sync/internal/adapter/metrics"
	"github.com/pildhora/pildhora-sync/internal/domain"
)

type cacheEntry struct {
	actorID   string
	valid     bool
	expiresAt time.Time
}

// DeviceKeyRepository implements domain.DeviceKeyRepository using PostgreSQL
// as the source of truth and an in-memory, time-based cache.
type DeviceKeyRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.ServerMetrics
}

// NewDeviceKeyRepository creates a new instance of the PostgreSQL device key repository.
func NewDeviceKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.ServerMetrics) *DeviceKeyRepository {
	return &DeviceKeyRepository{
		db:       db,
		logger:   logger.With("component", "devicekey_repository"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// ActorFor resolves the actor id for a device key. It first checks a local
// cache and falls back to the database if the key is not found or the cache
// entry has expired.
func (r *DeviceKeyRepository) ActorFor(ctx context.Context, key string) (string, error) {
	// 1. Check cache with a read lock
	r.mu.RLock()
	entry, found := r.cache[key]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.DeviceKeyCacheHits.Inc()
		}
		return entryResult(entry)
	}

	// 2. Cache miss or expired, query DB and update cache with a write lock
	if r.metrics != nil {
		r.metrics.DeviceKeyCacheMisses.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check cache in case another goroutine populated it while waiting for the lock
	entry, found = r.cache[key]
	if found && time.Now().Before(entry.expiresAt) {
		return entryResult(entry)
	}

	// 3. Query the database. A key is valid if it exists, is active, and has not expired.
	var actorID string
	query := `SELECT actor_id FROM device_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW())`
	err := r.db.QueryRowContext(ctx, query, key).Scan(&actorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("failed to validate device key in database", "error", err)
		// Don't cache errors, let the next request retry from the DB
		return "", err
	}

	// 4. Update cache
	entry = cacheEntry{
		actorID:   actorID,
		valid:     err == nil,
		expiresAt: time.Now().Add(r.cacheTTL),
	}
	r.cache[key] = entry

	return entryResult(entry)
}

func entryResult(entry cacheEntry) (string, error) {
	if !entry.valid {
		return "", domain.ErrDeviceKeyInvalid
	}
	return entry.actorID, nil
}
