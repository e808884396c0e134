package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/grantbridge/newsfeed/internal/logger"
	"github.com/grantbridge/newsfeed/internal/models"
)

const runLockKey = "ingest:run-lock"

// Cache provides Redis-backed read-path caching and the best-effort ingest
// run lock. A nil *Cache is valid and disables both: every method no-ops.
type Cache struct {
	redis    *redis.Client
	cacheTTL time.Duration
	lockTTL  time.Duration
}

// New connects to Redis. An empty URL returns a nil cache, which callers use
// as-is; all methods tolerate the nil receiver.
func New(redisURL string, cacheTTL, lockTTL time.Duration) (*Cache, error) {
	if redisURL == "" {
		logger.Info("REDIS_URL not set; response cache and run lock disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{redis: client, cacheTTL: cacheTTL, lockTTL: lockTTL}, nil
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.redis.Close()
}

func newsKey(cat models.Category) string {
	return "news:" + string(cat)
}

// GetArticles returns the cached article payload for a category, if present.
// Cache errors degrade to a miss.
func (c *Cache) GetArticles(ctx context.Context, cat models.Category) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.redis.Get(ctx, newsKey(cat)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("Cache read failed", "category", cat, "error", err)
		return nil, false
	}
	return payload, true
}

// SetArticles stores a category's article payload under the cache TTL.
func (c *Cache) SetArticles(ctx context.Context, cat models.Category, payload []byte) {
	if c == nil {
		return
	}
	if err := c.redis.Set(ctx, newsKey(cat), payload, c.cacheTTL).Err(); err != nil {
		logger.Warn("Cache write failed", "category", cat, "error", err)
	}
}

// InvalidateArticles drops cached payloads after an ingestion run so readers
// see fresh rows within one request rather than one TTL.
func (c *Cache) InvalidateArticles(ctx context.Context, cats ...models.Category) {
	if c == nil {
		return
	}
	keys := make([]string, 0, len(cats))
	for _, cat := range cats {
		keys = append(keys, newsKey(cat))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("Cache invalidation failed", "error", err)
	}
}

// AcquireRunLock attempts to take the ingest run lock. Overlapping runs are
// idempotent anyway; the lock only spares redundant fetch work. Errors
// degrade to acquiring, matching that best-effort intent.
func (c *Cache) AcquireRunLock(ctx context.Context, runID string) bool {
	if c == nil {
		return true
	}
	ok, err := c.redis.SetNX(ctx, runLockKey, runID, c.lockTTL).Result()
	if err != nil {
		logger.Warn("Run lock check failed", "error", err)
		return true
	}
	return ok
}

// ReleaseRunLock releases the ingest run lock when held by this run.
func (c *Cache) ReleaseRunLock(ctx context.Context, runID string) {
	if c == nil {
		return
	}
	held, err := c.redis.Get(ctx, runLockKey).Result()
	if err != nil || held != runID {
		return
	}
	c.redis.Del(ctx, runLockKey)
}
