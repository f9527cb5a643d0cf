package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu       sync.Mutex
	sent     int
	failN    int
	lastBody []byte
}

func (s *stubSender) Send(ctx context.Context, sub Subscription, deliveryID string, payload []byte, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.lastBody = payload
	if s.sent <= s.failN {
		return assertErr
	}
	return nil
}

var assertErr = &deliveryError{"simulated failure"}

type deliveryError struct{ msg string }

func (e *deliveryError) Error() string { return e.msg }

func TestPublish_DeliversToMatchingSubscriptionOnly(t *testing.T) {
	sender := &stubSender{}
	mgr := NewManager(sender)
	mgr.Subscribe(Subscription{ID: "sub-1", URL: "https://example.test/hook", EventTypes: map[string]struct{}{"trust.tier_change": {}}})
	mgr.Subscribe(Subscription{ID: "sub-2", URL: "https://example.test/hook2", EventTypes: map[string]struct{}{"cert.status_change": {}}})

	ids := mgr.Publish(context.Background(), Event{Type: "trust.tier_change", AgentID: "agent-1"})
	require.Len(t, ids, 1)

	d, ok := mgr.Delivery(ids[0])
	require.True(t, ok)
	assert.Equal(t, DeliveryDelivered, d.Status)
	assert.Equal(t, 1, sender.sent)
}

func TestPublish_GeneratesDedupIDWhenEventIDEmpty(t *testing.T) {
	sender := &stubSender{}
	mgr := NewManager(sender)
	mgr.Subscribe(Subscription{ID: "sub-1", URL: "https://example.test/hook"})

	ids := mgr.Publish(context.Background(), Event{Type: "trust.violation"})
	require.Len(t, ids, 1)
	assert.Contains(t, ids[0], "sub-1:")
}

func TestPublish_FailedDeliveryStaysPendingForRetry(t *testing.T) {
	sender := &stubSender{failN: 1}
	mgr := NewManager(sender)
	mgr.Subscribe(Subscription{ID: "sub-1", URL: "https://example.test/hook", Policy: BackoffPolicy{BaseMs: 10, MaxMs: 100, MaxAttempts: 3}})

	ids := mgr.Publish(context.Background(), Event{Type: "trust.tier_change"})
	d, _ := mgr.Delivery(ids[0])
	assert.Equal(t, DeliveryPending, d.Status)
	assert.Equal(t, 1, d.Attempt)
}

func TestRetryDue_RedeliversOncePastScheduledTime(t *testing.T) {
	sender := &stubSender{failN: 1}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr := NewManager(sender).WithClock(func() time.Time { return now })
	mgr.Subscribe(Subscription{ID: "sub-1", URL: "https://example.test/hook", Policy: BackoffPolicy{BaseMs: 10, MaxMs: 100, MaxJitterMs: 0, MaxAttempts: 3}})

	ids := mgr.Publish(context.Background(), Event{Type: "trust.tier_change"})
	d, _ := mgr.Delivery(ids[0])
	require.Equal(t, DeliveryPending, d.Status)

	attempted := mgr.RetryDue(context.Background(), now.Add(-time.Hour))
	assert.Equal(t, 0, attempted, "nothing is due before its scheduled attempt time")

	attempted = mgr.RetryDue(context.Background(), now.Add(time.Hour))
	assert.Equal(t, 1, attempted)

	d, _ = mgr.Delivery(ids[0])
	assert.Equal(t, DeliveryDelivered, d.Status)
}

func TestDelivery_ExhaustsAfterMaxAttempts(t *testing.T) {
	sender := &stubSender{failN: 100}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr := NewManager(sender).WithClock(func() time.Time { return now })
	mgr.Subscribe(Subscription{ID: "sub-1", URL: "https://example.test/hook", Policy: BackoffPolicy{BaseMs: 10, MaxMs: 100, MaxAttempts: 2}})

	ids := mgr.Publish(context.Background(), Event{Type: "trust.tier_change"})
	mgr.RetryDue(context.Background(), now.Add(time.Hour))

	d, _ := mgr.Delivery(ids[0])
	assert.Equal(t, DeliveryExhausted, d.Status)
	assert.Equal(t, 2, d.Attempt)
}
