// Package signals implements the typed, prioritized signal fan-out over
// Observer-derived events described in spec §6 "Egress — signals".
// Producer/signer wiring is grounded on
// pkg/governance/signal_controller.go's SignalController (a named
// producer wrapping a signer, stamping every emitted payload) and
// pkg/artifacts/signing.go's SignEnvelope (sign the payload bytes,
// stamp Signature/SignatureKeyID, fail closed without a signer). Fan-out
// to many independent subscribers, each with its own per-subscriber
// rate limit, is new composition built from pkg/ratelimit.
package signals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/helmward/agentgov/pkg/ratelimit"
)

// Priority orders a signal's delivery guarantees. Safety signals are
// never rate limited; like any signal, they are dropped for a subscriber
// whose channel buffer is full.
type Priority string

const (
	PrioritySafety Priority = "safety"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var ErrSignerNotConfigured = errors.New("signals: signer not configured (fail-closed)")

// Signer signs a signal's payload bytes. pkg/evidence.KeyringSigner, which
// adapts a pkg/signing.Keyring, satisfies this shape.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
}

// Signal is one typed, optionally-signed egress event.
type Signal struct {
	Type           string         `json:"type"`
	Priority       Priority       `json:"priority"`
	AgentID        string         `json:"agent_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        map[string]any `json:"payload"`
	Signature      string         `json:"signature,omitempty"`
	SignatureKeyID string         `json:"signature_key_id,omitempty"`
}

// Subscription is one consumer's interest in a subset of signal types,
// with its own rate limit.
type Subscription struct {
	ID      string
	Types   map[string]struct{}
	Policy  ratelimit.Policy
	Channel chan Signal
}

// matches reports whether the subscription wants this signal type. An
// empty Types set means "all types".
func (s Subscription) matches(signalType string) bool {
	if len(s.Types) == 0 {
		return true
	}
	_, ok := s.Types[signalType]
	return ok
}

// Stream fans signals out to subscribers, signing each one and applying
// per-subscriber rate limiting — except for safety-priority signals,
// which skip the rate limiter. A signal of any priority is dropped for a
// subscriber whose channel buffer is full.
type Stream struct {
	mu        sync.RWMutex
	producer  string
	signer    Signer
	keyID     string
	limiter   ratelimit.Limiter
	subs      map[string]*Subscription
	clock     func() time.Time
	onDropped func(subscriptionID string, sig Signal)
}

func NewStream(producer string, signer Signer, keyID string, limiter ratelimit.Limiter) *Stream {
	return &Stream{
		producer: producer,
		signer:   signer,
		keyID:    keyID,
		limiter:  limiter,
		subs:     make(map[string]*Subscription),
		clock:    time.Now,
	}
}

func (s *Stream) WithClock(clock func() time.Time) *Stream {
	s.clock = clock
	return s
}

// OnDropped registers a callback invoked when a signal is dropped for a
// subscriber, either by rate limiting or a full channel buffer.
func (s *Stream) OnDropped(fn func(subscriptionID string, sig Signal)) *Stream {
	s.onDropped = fn
	return s
}

// Subscribe registers a subscriber and returns the channel it should
// drain. bufferSize bounds how many undelivered signals queue before
// new ones are dropped for this subscriber.
func (s *Stream) Subscribe(id string, types []string, policy ratelimit.Policy, bufferSize int) <-chan Signal {
	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	ch := make(chan Signal, bufferSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = &Subscription{ID: id, Types: typeSet, Policy: policy, Channel: ch}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Stream) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.Channel)
		delete(s.subs, id)
	}
}

// Emit signs sig (stamping AgentID/Timestamp/Payload identity into the
// signature) and fans it out to every matching subscriber.
func (s *Stream) Emit(ctx context.Context, sig Signal) error {
	if s.signer == nil {
		return ErrSignerNotConfigured
	}
	sig.Timestamp = s.clock().UTC()

	digest, err := s.digest(sig)
	if err != nil {
		return fmt.Errorf("signals: digest failed: %w", err)
	}
	signature, err := s.signer.Sign(digest)
	if err != nil {
		return fmt.Errorf("signals: sign failed: %w", err)
	}
	sig.Signature = signature
	sig.SignatureKeyID = s.keyID

	s.mu.RLock()
	var targets []*Subscription
	for _, sub := range s.subs {
		if sub.matches(sig.Type) {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		s.deliver(ctx, sub, sig)
	}
	return nil
}

func (s *Stream) deliver(ctx context.Context, sub *Subscription, sig Signal) {
	if sig.Priority != PrioritySafety && s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "signals:"+sub.ID, sub.Policy, 1)
		if err != nil || !allowed {
			s.drop(sub.ID, sig)
			return
		}
	}

	select {
	case sub.Channel <- sig:
	default:
		s.drop(sub.ID, sig)
	}
}

func (s *Stream) drop(subscriptionID string, sig Signal) {
	if s.onDropped != nil {
		s.onDropped(subscriptionID, sig)
	}
}

func (s *Stream) digest(sig Signal) ([]byte, error) {
	hashable := struct {
		Type      string         `json:"type"`
		AgentID   string         `json:"agent_id"`
		Timestamp time.Time      `json:"timestamp"`
		Payload   map[string]any `json:"payload"`
		Producer  string         `json:"producer"`
	}{sig.Type, sig.AgentID, sig.Timestamp, sig.Payload, s.producer}

	raw, err := json.Marshal(hashable)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return []byte(hex.EncodeToString(sum[:])), nil
}
