// Package ratelimit guards the intake endpoint with a sliding window per
// voter. Redis-backed when configured, in-memory otherwise; both enforce the
// same semantics.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Store checks and counts requests per key within a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// slidingWindow tracks request timestamps; the sliding algorithm avoids the
// boundary burst a fixed window permits.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// InMemory implements Store in process. Single-node only; use the Redis
// store for anything load balanced.
type InMemory struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
}

func NewInMemory() *InMemory {
	return &InMemory{buckets: make(map[string]*slidingWindow)}
}

func (s *InMemory) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.buckets[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		s.buckets[key] = sw
	}
	now := time.Now()
	sw.cleanup(now)

	if len(sw.timestamps)+1 > limit {
		return &Result{
			Allowed: false,
			ResetAt: sw.timestamps[0].Add(window),
			Limit:   limit,
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &Result{
		Allowed:   true,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
		Limit:     limit,
	}, nil
}
