package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helmward/agentgov/pkg/signing"
)

// DeliveryStatus is the lifecycle state of one subscription's attempt to
// deliver one event.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryExhausted DeliveryStatus = "exhausted"
)

// Event is an egress-worthy occurrence (trust.tier_change,
// trust.violation, cert.status_change — spec §6). ID is the dedup
// identifier; the X-Webhook-Delivery header carries it prefixed with the
// subscription id ("<subscriptionID>:<ID>") so a subscriber that sees the
// same header twice can discard the duplicate.
type Event struct {
	ID         string
	Type       string
	AgentID    string
	OccurredAt time.Time
	Data       map[string]any
}

// Subscription is one endpoint's interest in a set of event types.
type Subscription struct {
	ID         string
	URL        string
	EventTypes map[string]struct{}
	Secret     []byte
	Policy     BackoffPolicy
}

// Matches reports whether the subscription wants eventType. An empty
// EventTypes set means "all events".
func (s Subscription) Matches(eventType string) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	_, ok := s.EventTypes[eventType]
	return ok
}

// Delivery tracks one subscription's attempts to deliver one event.
type Delivery struct {
	ID             string
	SubscriptionID string
	Event          Event
	Schedule       []deliverySchedule
	Attempt        int
	Status         DeliveryStatus
	LastError      string
}

// Sender performs the actual network delivery. HTTPSender is the
// production implementation; tests supply a stub.
type Sender interface {
	Send(ctx context.Context, sub Subscription, deliveryID string, payload []byte, signature string) error
}

// Manager fans out events to subscriptions and retries failed
// deliveries on the backoff schedule, clock-injectable the way
// pkg/escalation.Manager is for deterministic tests.
type Manager struct {
	mu         sync.Mutex
	subs       map[string]Subscription
	deliveries map[string]*Delivery
	sender     Sender
	clock      func() time.Time
}

func NewManager(sender Sender) *Manager {
	return &Manager{
		subs:       make(map[string]Subscription),
		deliveries: make(map[string]*Delivery),
		sender:     sender,
		clock:      time.Now,
	}
}

func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Subscribe registers or replaces a subscription.
func (m *Manager) Subscribe(sub Subscription) {
	if sub.Policy.MaxAttempts == 0 {
		sub.Policy = DefaultBackoffPolicy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
}

// Publish creates one Delivery per matching subscription and attempts
// the first delivery synchronously. Failures are scheduled for retry
// rather than returned as a publish error, since at-least-once delivery
// means the caller's job is done once the event is queued.
func (m *Manager) Publish(ctx context.Context, event Event) []string {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	m.mu.Lock()
	var matched []Subscription
	for _, sub := range m.subs {
		if sub.Matches(event.Type) {
			matched = append(matched, sub)
		}
	}
	m.mu.Unlock()

	var deliveryIDs []string
	for _, sub := range matched {
		d := &Delivery{
			ID:             sub.ID + ":" + event.ID,
			SubscriptionID: sub.ID,
			Event:          event,
			Schedule:       generateSchedule(sub.ID+":"+event.ID, sub.ID, sub.Policy, m.clock()),
			Status:         DeliveryPending,
		}
		m.mu.Lock()
		m.deliveries[d.ID] = d
		m.mu.Unlock()
		deliveryIDs = append(deliveryIDs, d.ID)

		m.attempt(ctx, sub, d)
	}
	return deliveryIDs
}

// Delivery looks up a tracked delivery by id.
func (m *Manager) Delivery(id string) (Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return Delivery{}, false
	}
	return *d, true
}

// RetryDue attempts every pending delivery whose next scheduled attempt
// is at or before now, intended to be called from a periodic worker.
func (m *Manager) RetryDue(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	var due []*Delivery
	for _, d := range m.deliveries {
		if d.Status != DeliveryPending {
			continue
		}
		if d.Attempt >= len(d.Schedule) {
			continue
		}
		if now.Before(d.Schedule[d.Attempt].ScheduledAt) {
			continue
		}
		due = append(due, d)
	}
	subs := make(map[string]Subscription, len(m.subs))
	for id, s := range m.subs {
		subs[id] = s
	}
	m.mu.Unlock()

	count := 0
	for _, d := range due {
		sub, ok := subs[d.SubscriptionID]
		if !ok {
			continue
		}
		m.attempt(ctx, sub, d)
		count++
	}
	return count
}

func (m *Manager) attempt(ctx context.Context, sub Subscription, d *Delivery) {
	payload, err := json.Marshal(d.Event)
	if err != nil {
		m.mu.Lock()
		d.Status = DeliveryExhausted
		d.LastError = fmt.Sprintf("marshal event: %v", err)
		m.mu.Unlock()
		return
	}

	signature := signing.HMACSignHex(sub.Secret, payload)
	sendErr := m.sender.Send(ctx, sub, d.ID, payload, signature)

	m.mu.Lock()
	defer m.mu.Unlock()
	d.Attempt++
	if sendErr == nil {
		d.Status = DeliveryDelivered
		return
	}
	d.LastError = sendErr.Error()
	if d.Attempt >= len(d.Schedule) {
		d.Status = DeliveryExhausted
	}
}
