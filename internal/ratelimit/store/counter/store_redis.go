package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wishguard:rl:"

// RedisStore keeps counters in Redis. INCR and EXPIRE NX run in one MULTI so
// the window starts at the first hit and is never extended.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	k := redisKeyPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment: %w", err)
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = window
	}
	return int(incr.Val()), time.Now().Add(ttl), nil
}
