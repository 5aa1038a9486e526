package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a sorted set per key: members are request
// timestamps, trimmed to the window on every check. Atomic via pipeline so
// concurrent requests against the same key count correctly.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "ballotcore:ratelimit:"}
}

func (s *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	redisKey := s.prefix + key
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count >= limit {
		return &Result{
			Allowed: false,
			ResetAt: now.Add(window),
			Limit:   limit,
		}, nil
	}

	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit record: %w", err)
	}

	return &Result{
		Allowed:   true,
		Remaining: limit - count - 1,
		ResetAt:   now.Add(window),
		Limit:     limit,
	}, nil
}
