package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"finsight/pkg/core/score"
)

const (
	redisKeyPrefix   = "finsight:score:"
	redisLockPrefix  = "finsight:score:lock:"
	defaultTTL       = 24 * time.Hour
	lockTTL          = 30 * time.Second
	lockRetryBackoff = 100 * time.Millisecond
)

// Redis stores results as JSON under the fingerprint key and uses redislock
// so concurrent processes scoring the same dataset do the work once.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. A zero ttl defaults to 24h.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, locker: redislock.New(client), ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, fingerprint string) (*score.Result, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var res score.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &res, true, nil
}

func (r *Redis) Set(ctx context.Context, fingerprint string, result *score.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+fingerprint, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// withLock fences the computation across processes. If the lock cannot be
// obtained the computation proceeds anyway: duplicate work is acceptable,
// a blocked request is not.
func (r *Redis) withLock(ctx context.Context, fingerprint string, fn func() (*score.Result, error)) (*score.Result, error) {
	lock, err := r.locker.Obtain(ctx, redisLockPrefix+fingerprint, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryBackoff), 50),
	})
	if err != nil {
		return fn()
	}
	defer lock.Release(ctx)
	return fn()
}
