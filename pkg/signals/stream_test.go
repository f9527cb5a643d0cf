package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/ratelimit"
)

type stubSigner struct{}

func (stubSigner) Sign(data []byte) (string, error) { return "sig", nil }
func (stubSigner) PublicKey() string                { return "pub" }

func TestEmit_FailsClosedWithoutSigner(t *testing.T) {
	stream := NewStream("producer-1", nil, "key-1", ratelimit.NewMemoryLimiter())
	err := stream.Emit(context.Background(), Signal{Type: "trust.tier_change"})
	assert.ErrorIs(t, err, ErrSignerNotConfigured)
}

func TestEmit_DeliversOnlyToMatchingSubscribers(t *testing.T) {
	stream := NewStream("producer-1", stubSigner{}, "key-1", ratelimit.NewMemoryLimiter())
	ch1 := stream.Subscribe("sub-1", []string{"trust.tier_change"}, ratelimit.Policy{RPM: 600, Burst: 10}, 4)
	ch2 := stream.Subscribe("sub-2", []string{"cert.status_change"}, ratelimit.Policy{RPM: 600, Burst: 10}, 4)

	require.NoError(t, stream.Emit(context.Background(), Signal{Type: "trust.tier_change", AgentID: "agent-1"}))

	select {
	case sig := <-ch1:
		assert.Equal(t, "trust.tier_change", sig.Type)
		assert.Equal(t, "sig", sig.Signature)
	case <-time.After(time.Second):
		t.Fatal("expected signal on ch1")
	}

	select {
	case <-ch2:
		t.Fatal("ch2 should not have received a non-matching signal")
	default:
	}
}

func TestEmit_SafetyPrioritySkipsRateLimiting(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	stream := NewStream("producer-1", stubSigner{}, "key-1", limiter)
	policy := ratelimit.Policy{RPM: 60, Burst: 1}
	ch := stream.Subscribe("sub-1", nil, policy, 10)

	for i := 0; i < 5; i++ {
		require.NoError(t, stream.Emit(context.Background(), Signal{Type: "safety.violation", Priority: PrioritySafety}))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, 5, received, "safety signals must never be dropped by rate limiting")
			return
		}
	}
}

func TestEmit_NormalPriorityDropsOnceRateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	stream := NewStream("producer-1", stubSigner{}, "key-1", limiter)
	dropped := 0
	stream.OnDropped(func(subscriptionID string, sig Signal) { dropped++ })
	policy := ratelimit.Policy{RPM: 60, Burst: 1}
	ch := stream.Subscribe("sub-1", nil, policy, 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, stream.Emit(context.Background(), Signal{Type: "anomaly.detected", Priority: PriorityNormal}))
	}

	received := 0
loop:
	for {
		select {
		case <-ch:
			received++
		default:
			break loop
		}
	}
	assert.Equal(t, 1, received)
	assert.Equal(t, 2, dropped)
}
