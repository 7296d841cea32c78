package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/Kaminari/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived cross-process locks
type Locker interface {
	// TryLock returns acquired=false without blocking when someone else holds key.
	// unlock is always non-nil and safe to call.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// releaseScript deletes the key only if it still carries our token, so a lock that
// expired and was re-acquired elsewhere is never released by the old holder
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	rc          *redis.Client
	cacheConfig config.CacheConfig
}

// NewLocker returns a redis-backed locker, or a process-local no-op when rc is nil
func NewLocker(rc *redis.Client, cacheConfig config.CacheConfig) Locker {
	if rc == nil {
		return NoopLocker{}
	}
	return &RedisLocker{rc: rc, cacheConfig: cacheConfig}
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lockKey := redisKey(l.cacheConfig, key)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}

	return func() {
		_ = releaseScript.Run(context.Background(), l.rc, []string{lockKey}, token).Err()
	}, true, nil
}

// NoopLocker always grants the lock; used when redis is disabled
type NoopLocker struct{}

// TryLock implements Locker
func (NoopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}
