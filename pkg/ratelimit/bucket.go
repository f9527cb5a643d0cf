// Package ratelimit implements the per-agent and per-api-key token
// buckets of spec §5 "Shared-resource policy — Rate limits". Two
// Limiter implementations are provided: an in-process one built on
// golang.org/x/time/rate for single-instance deployments, and a
// Redis-backed one sharing token-bucket state across replicas, grounded
// on the teacher's pkg/kernel/limiter.go (LimiterStore interface,
// RPM/Burst policy shape) and pkg/kernel/limiter_redis.go (atomic Lua
// token bucket).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy is a token-bucket configuration: RPM sets the steady refill
// rate, Burst sets the bucket capacity.
type Policy struct {
	RPM   int
	Burst int
}

func (p Policy) ratePerSecond() rate.Limit {
	if p.RPM <= 0 {
		return rate.Limit(1.0 / 60.0)
	}
	return rate.Limit(float64(p.RPM) / 60.0)
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// Limiter abstracts the token-bucket check so the in-process and
// Redis-backed implementations are interchangeable behind the
// authorization engine's constraint envelope.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy, cost int) (bool, error)
}

// ErrRateLimited is the sentinel returned by Check when a key has no
// tokens left; callers translate it to model.DenialRateLimitExceeded.
var ErrRateLimited = fmt.Errorf("ratelimit: rate limit exceeded")

// Check is a convenience wrapper that turns a false Allow into
// ErrRateLimited, matching the teacher's EvaluateBackpressure shape.
func Check(ctx context.Context, l Limiter, key string, policy Policy, cost int) error {
	allowed, err := l.Allow(ctx, key, policy, cost)
	if err != nil {
		return fmt.Errorf("ratelimit check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrRateLimited, key)
	}
	return nil
}

// MemoryLimiter is the default in-process Limiter, one
// golang.org/x/time/rate.Limiter per (key, policy) pair.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewMemoryLimiter builds an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*rate.Limiter)}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, policy Policy, cost int) (bool, error) {
	m.mu.Lock()
	limiter, ok := m.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(policy.ratePerSecond(), policy.burst())
		m.buckets[key] = limiter
	}
	m.mu.Unlock()

	return limiter.AllowN(time.Now(), cost), nil
}
