package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBackoff_IsDeterministicForSameInputs(t *testing.T) {
	params := backoffParams{DeliveryID: "sub-1:evt-1", EndpointID: "sub-1", AttemptIndex: 3}
	policy := BackoffPolicy{BaseMs: 100, MaxMs: 10_000, MaxJitterMs: 500, MaxAttempts: 8}

	first := computeBackoff(params, policy)
	second := computeBackoff(params, policy)
	assert.Equal(t, first, second)
}

func TestComputeBackoff_CapsAtMaxMs(t *testing.T) {
	params := backoffParams{DeliveryID: "sub-1:evt-1", EndpointID: "sub-1", AttemptIndex: 20}
	policy := BackoffPolicy{BaseMs: 1000, MaxMs: 5000, MaxJitterMs: 0, MaxAttempts: 8}

	delay := computeBackoff(params, policy)
	assert.LessOrEqual(t, delay, 5*time.Second)
}

func TestGenerateSchedule_FirstAttemptHasNoDelay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := generateSchedule("sub-1:evt-1", "sub-1", BackoffPolicy{BaseMs: 100, MaxMs: 1000, MaxAttempts: 4}, now)
	assert.Equal(t, int64(0), schedule[0].DelayMs)
	assert.Equal(t, now, schedule[0].ScheduledAt)
	assert.True(t, schedule[1].ScheduledAt.After(now))
}
