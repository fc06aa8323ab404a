package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/redis/go-redis/v9"
)

// AssignmentCache is a best-effort read-through cache in front of the assignment store.
// Implementations log failures and never return them.
type AssignmentCache interface {
	Get(ctx context.Context, date, subject string) (*models.DailyAssignment, bool)
	// Fill stores a only if the key is empty, so a stale read never replaces a newer version.
	Fill(ctx context.Context, a *models.DailyAssignment)
	// Put overwrites the key; used after regeneration.
	Put(ctx context.Context, a *models.DailyAssignment)
	Close() error
}

// Cache lookup results reported to QuizMetrics
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheError    = "error"
	CacheDisabled = "disabled"
)

const assignmentCachePrefix = "dailyquiz:assignment:"

func assignmentCacheKey(date, subject string) string {
	return assignmentCachePrefix + models.AssignmentKey(date, subject)
}

// NewAssignmentCache connects to Redis when cfg.URL is set and returns a no-op cache otherwise
func NewAssignmentCache(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger, metrics *observability.QuizMetrics) (AssignmentCache, error) {
	if cfg.URL == "" {
		logger.Info(ctx, "Redis url not configured, assignment cache disabled")
		return NoopAssignmentCache{metrics: metrics}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "invalid redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.RedisOpTimeout*4)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, contextutils.StoreError(err, "failed to connect to redis")
	}

	logger.Info(ctx, "Assignment cache connected", map[string]interface{}{
		"addr": opts.Addr,
		"db":   opts.DB,
		"ttl":  cfg.CacheTTL.String(),
	})
	return NewRedisAssignmentCache(client, cfg.CacheTTL, logger, metrics), nil
}

// RedisAssignmentCache stores assignments as JSON strings with a TTL
type RedisAssignmentCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.QuizMetrics
}

// NewRedisAssignmentCache wraps an existing client. A non-positive ttl uses the default.
func NewRedisAssignmentCache(client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.QuizMetrics) *RedisAssignmentCache {
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	return &RedisAssignmentCache{client: client, ttl: ttl, logger: logger, metrics: metrics}
}

// Get returns the cached assignment, if any
func (c *RedisAssignmentCache) Get(ctx context.Context, date, subject string) (*models.DailyAssignment, bool) {
	ctx, span := observability.TraceCacheFunction(ctx, "GetAssignment",
		observability.AttributeDate(date), observability.AttributeSubject(subject))
	defer span.End()

	opCtx, cancel := context.WithTimeout(ctx, config.RedisOpTimeout)
	defer cancel()

	raw, err := c.client.Get(opCtx, assignmentCacheKey(date, subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.CacheLookup(ctx, CacheMiss)
		return nil, false
	}
	if err != nil {
		c.metrics.CacheLookup(ctx, CacheError)
		c.logger.Warn(ctx, "Assignment cache read failed", map[string]interface{}{
			"key":   assignmentCacheKey(date, subject),
			"error": err.Error(),
		})
		return nil, false
	}

	var a models.DailyAssignment
	if err := json.Unmarshal(raw, &a); err != nil {
		c.metrics.CacheLookup(ctx, CacheError)
		c.logger.Warn(ctx, "Discarding undecodable cached assignment", map[string]interface{}{
			"key":   assignmentCacheKey(date, subject),
			"error": err.Error(),
		})
		return nil, false
	}
	c.metrics.CacheLookup(ctx, CacheHit)
	return &a, true
}

// Fill writes with SETNX
func (c *RedisAssignmentCache) Fill(ctx context.Context, a *models.DailyAssignment) {
	c.write(ctx, "FillAssignment", a, func(opCtx context.Context, key string, payload []byte) error {
		return c.client.SetNX(opCtx, key, payload, c.ttl).Err()
	})
}

// Put writes with SET
func (c *RedisAssignmentCache) Put(ctx context.Context, a *models.DailyAssignment) {
	c.write(ctx, "PutAssignment", a, func(opCtx context.Context, key string, payload []byte) error {
		return c.client.Set(opCtx, key, payload, c.ttl).Err()
	})
}

func (c *RedisAssignmentCache) write(ctx context.Context, op string, a *models.DailyAssignment, fn func(context.Context, string, []byte) error) {
	ctx, span := observability.TraceCacheFunction(ctx, op,
		observability.AttributeDate(a.Date),
		observability.AttributeSubject(a.Subject),
		observability.AttributeQuizVersion(a.QuizVersion),
	)
	defer span.End()

	payload, err := json.Marshal(a)
	if err != nil {
		c.logger.Error(ctx, "Failed to encode assignment for cache", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, config.RedisOpTimeout)
	defer cancel()
	if err := fn(opCtx, assignmentCacheKey(a.Date, a.Subject), payload); err != nil {
		c.logger.Warn(ctx, fmt.Sprintf("Assignment cache %s failed", op), map[string]interface{}{
			"key":   a.Key(),
			"error": err.Error(),
		})
	}
}

// Close releases the Redis client
func (c *RedisAssignmentCache) Close() error {
	return c.client.Close()
}

// NoopAssignmentCache is used when Redis is not configured
type NoopAssignmentCache struct {
	metrics *observability.QuizMetrics
}

// Get always misses
func (n NoopAssignmentCache) Get(ctx context.Context, _, _ string) (*models.DailyAssignment, bool) {
	n.metrics.CacheLookup(ctx, CacheDisabled)
	return nil, false
}

// Fill does nothing
func (NoopAssignmentCache) Fill(context.Context, *models.DailyAssignment) {}

// Put does nothing
func (NoopAssignmentCache) Put(context.Context, *models.DailyAssignment) {}

// Close does nothing
func (NoopAssignmentCache) Close() error { return nil }
