package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisLimiter_Integration requires a running Redis; skipped otherwise.
func TestRedisLimiter_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("skipping Redis integration test: redis not available")
	}

	l := NewRedisLimiter(client)
	policy := Policy{RPM: 60, Burst: 1}
	key := "test-redis-agent"

	allowed, err := l.Allow(ctx, key, policy, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected allowed=true for a fresh bucket")
	}

	allowed, err = l.Allow(ctx, key, policy, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Errorf("expected allowed=false immediately after exhausting burst")
	}

	time.Sleep(1100 * time.Millisecond)
	allowed, err = l.Allow(ctx, key, policy, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected allowed=true after refill")
	}
}
