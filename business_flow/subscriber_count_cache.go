package businessflow

import (
	"context"
	"strconv"
	"time"

	"github.com/amirphl/Kaminari/config"
	"github.com/amirphl/Kaminari/utils"
	"github.com/redis/go-redis/v9"
)

// SubscriberCountCache keeps the subscriber total in redis between writes.
// A nil cache or a nil client disables caching.
type SubscriberCountCache struct {
	rc          *redis.Client
	cacheConfig config.CacheConfig
}

// NewSubscriberCountCache creates the cache; rc may be nil
func NewSubscriberCountCache(rc *redis.Client, cacheConfig config.CacheConfig) *SubscriberCountCache {
	return &SubscriberCountCache{rc: rc, cacheConfig: cacheConfig}
}

func (c *SubscriberCountCache) enabled() bool {
	return c != nil && c.rc != nil
}

func (c *SubscriberCountCache) key() string {
	return redisKey(c.cacheConfig, utils.SubscriberCountCacheKey)
}

// Get returns the cached total, if any
func (c *SubscriberCountCache) Get(ctx context.Context) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}
	s, err := c.rc.Get(ctx, c.key()).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores the total for the configured default TTL
func (c *SubscriberCountCache) Set(ctx context.Context, n int64) {
	if !c.enabled() {
		return
	}
	ttl := c.cacheConfig.DefaultTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	_ = c.rc.Set(ctx, c.key(), strconv.FormatInt(n, 10), ttl).Err()
}

// Invalidate drops the cached total after the subscriber set changed
func (c *SubscriberCountCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	_ = c.rc.Del(ctx, c.key()).Err()
}
