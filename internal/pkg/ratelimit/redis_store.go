package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the sliding window with a Redis sorted set per key so
// multiple API instances share one view of a caller's request history.
type RedisStore struct {
	client *redis.Client
	prefix string

	now func() time.Time
}

// NewRedisStore wraps a Redis client as a WindowStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Take records the call in a ZSET scored by unix-nano timestamp. Old members
// are pruned first; the member is removed again if the ceiling was already
// reached so a rejected call does not consume a slot.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now()
	zkey := s.prefix + key
	cutoff := now.Add(-window).UnixNano()
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, zkey)
	oldestCmd := pipe.ZRangeWithScores(ctx, zkey, 0, 0)
	pipe.PExpire(ctx, zkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := countCmd.Val()
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}

	if count > int64(limit) {
		if err := s.client.ZRem(ctx, zkey, member).Err(); err != nil {
			return Decision{}, err
		}
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
