package keygate

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisReplayCache remembers webhook sale ids in redis so redelivered
// purchase events do not issue duplicate licenses across server restarts
// and across multiple server instances.
type RedisReplayCache struct {
	client *redis.Client
}

// NewRedisReplayCache connects a replay cache to the given redis server.
func NewRedisReplayCache(opts *redis.Options) *RedisReplayCache {
	return &RedisReplayCache{client: redis.NewClient(opts)}
}

const replayKeyPrefix = "keygate:webhook:seen:"

// Seen marks key as seen and reports whether it was already marked. The
// mark expires after ttl. The check-and-mark is a single SETNX, so two
// concurrent deliveries of the same event agree on exactly one first.
func (c *RedisReplayCache) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := c.client.SetNX(ctx, replayKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "replay cache")
	}
	return !set, nil
}

// Forget drops the mark for key.
func (c *RedisReplayCache) Forget(ctx context.Context, key string) error {
	return errors.Wrap(c.client.Del(ctx, replayKeyPrefix+key).Err(), "replay cache")
}

// Close releases the underlying redis connection.
func (c *RedisReplayCache) Close() error {
	return c.client.Close()
}

// memoryReplayCache is the fallback used when no redis server is
// configured. It is process-local, so replay suppression does not
// survive restarts.
type memoryReplayCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryReplayCache returns an in-process ReplayCache.
func NewMemoryReplayCache() ReplayCache {
	return &memoryReplayCache{seen: make(map[string]time.Time)}
}

func (c *memoryReplayCache) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}
	if exp, ok := c.seen[key]; ok && now.Before(exp) {
		return true, nil
	}
	c.seen[key] = now.Add(ttl)
	return false, nil
}

func (c *memoryReplayCache) Forget(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
	return nil
}

var _ ReplayCache = (*RedisReplayCache)(nil)
