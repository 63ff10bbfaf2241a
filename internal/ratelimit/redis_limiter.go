package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter keeps the same window counter in Redis so that restarts of a
// single bot process do not reset limits. The key expires with the window.
type RedisLimiter struct {
	rdb      *redis.Client
	capacity int
	window   time.Duration
	log      zerolog.Logger
}

// NewRedisLimiter creates a Redis backed limiter.
func NewRedisLimiter(rdb *redis.Client, capacity int, w time.Duration, log zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, capacity: capacity, window: w, log: log}
}

// Allow implements Limiter. The counter and its expiry are set in one
// MULTI/EXEC so a key can never outlive its window. Redis errors fail open.
func (l *RedisLimiter) Allow(ctx context.Context, userID int64) bool {
	key := redisKeyPrefix + strconv.FormatInt(userID, 10)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		l.log.Warn().Err(err).Int64("user_id", userID).Msg("rate limiter unavailable, allowing event")
		return true
	}
	return incr.Val() <= int64(l.capacity)
}
