// Package observer implements the append-only, hash-chained Observer log
// (spec §4.4a). It is grounded near-verbatim on the teacher's
// pkg/store/audit_store.go: AuditEntry becomes ObserverEvent, chainHead
// and computeEntryHash carry over directly, and VerifyChain/QueryFilter
// keep their shape. Two things are generalized beyond the teacher: the
// hashable representation is canonicalized with JCS (RFC 8785) rather
// than relying on encoding/json's incidental key-sorting, and every
// event carries an HMAC-SHA256 signature derived from the emitting
// agent's signing key (spec §4.4a/§6), which the teacher's audit store
// never needed because it had no per-subject signing key model.
package observer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/helmward/agentgov/pkg/model"
	"github.com/helmward/agentgov/pkg/signing"
)

var (
	ErrEventNotFound = errors.New("observer: event not found")
	ErrChainBroken   = errors.New("observer: hash chain is broken")
)

// SigningKeyFor resolves the HMAC key used to sign a given agent's
// events. Callers normally supply signing.Keyring.DeriveForAgent.
type SigningKeyFor func(agentID string) ([]byte, error)

// Log is the append-only, hash-chained Observer log.
type Log struct {
	mu         sync.RWMutex
	events     []*model.ObserverEvent
	bySequence map[int64]*model.ObserverEvent
	sequence   int64
	chainHead  string
	keyFor     SigningKeyFor
	clock      func() time.Time
	handlers   []func(*model.ObserverEvent)
}

// New creates an empty log. keyFor resolves the signing secret for each
// event's AgentID; pass a function that always returns a fixed key for
// single-tenant deployments.
func New(keyFor SigningKeyFor) *Log {
	return &Log{
		bySequence: make(map[int64]*model.ObserverEvent),
		chainHead:  model.GenesisHash,
		keyFor:     keyFor,
		clock:      time.Now,
	}
}

// WithClock overrides the log's time source for deterministic tests.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// AddHandler registers a callback invoked synchronously after each
// successful Append, used to feed pkg/anomaly's sliding-window scans.
func (l *Log) AddHandler(h func(*model.ObserverEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Append writes a new event onto the chain. Sequence, PreviousHash, Hash,
// and Signature are computed here; callers must not set them.
func (l *Log) Append(source, eventType string, risk model.RiskLevel, agentID, userID string, data map[string]any) (*model.ObserverEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, err := l.keyFor(agentID)
	if err != nil {
		return nil, fmt.Errorf("observer: resolving signing key: %w", err)
	}

	l.sequence++
	event := &model.ObserverEvent{
		Sequence:     l.sequence,
		Timestamp:    l.clock().UTC(),
		Source:       source,
		EventType:    eventType,
		RiskLevel:    risk,
		AgentID:      agentID,
		UserID:       userID,
		Data:         data,
		PreviousHash: l.chainHead,
	}

	hash, err := hashEvent(event)
	if err != nil {
		l.sequence--
		return nil, fmt.Errorf("observer: computing event hash: %w", err)
	}
	event.Hash = hash
	event.Signature = signing.HMACSignHex(key, []byte(hash))
	l.chainHead = hash

	l.events = append(l.events, event)
	l.bySequence[event.Sequence] = event

	for _, h := range l.handlers {
		h(event)
	}

	return event, nil
}

// hashEvent computes SHA-256 over the JCS-canonicalized hashable fields
// of an event (excludes Hash/Signature themselves).
func hashEvent(e *model.ObserverEvent) (string, error) {
	hashable := struct {
		Sequence     int64          `json:"sequence"`
		Timestamp    time.Time      `json:"timestamp"`
		Source       string         `json:"source"`
		EventType    string         `json:"event_type"`
		RiskLevel    model.RiskLevel `json:"risk_level"`
		AgentID      string         `json:"agent_id"`
		UserID       string         `json:"user_id"`
		Data         map[string]any `json:"data"`
		PreviousHash string         `json:"previous_hash"`
	}{
		Sequence:     e.Sequence,
		Timestamp:    e.Timestamp,
		Source:       e.Source,
		EventType:    e.EventType,
		RiskLevel:    e.RiskLevel,
		AgentID:      e.AgentID,
		UserID:       e.UserID,
		Data:         e.Data,
		PreviousHash: e.PreviousHash,
	}

	raw, err := json.Marshal(hashable)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("observer: JCS canonicalization: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// LoadEvents replaces the log's in-memory event set with a previously
// exported sequence, verbatim (hashes and signatures are not
// recomputed). Used by evidence-verification tooling to validate an
// exported bundle's events against VerifyChain/VerifySignature without
// needing a live source of new events.
func (l *Log) LoadEvents(events []model.ObserverEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = make([]*model.ObserverEvent, 0, len(events))
	l.bySequence = make(map[int64]*model.ObserverEvent, len(events))
	l.chainHead = model.GenesisHash
	l.sequence = 0
	for i := range events {
		e := events[i]
		l.events = append(l.events, &e)
		l.bySequence[e.Sequence] = &e
		l.chainHead = e.Hash
		if e.Sequence > l.sequence {
			l.sequence = e.Sequence
		}
	}
}

// Get returns an event by sequence number.
func (l *Log) Get(sequence int64) (*model.ObserverEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	event, ok := l.bySequence[sequence]
	if !ok {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// ChainHead returns the current hash chain head.
func (l *Log) ChainHead() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chainHead
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// VerifyChain recomputes every event's hash and confirms the
// previous-hash links are unbroken and gap-free, per spec §4.4a.
func (l *Log) VerifyChain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expectedPrev := model.GenesisHash
	var expectedSeq int64 = 1
	for i, event := range l.events {
		if event.Sequence != expectedSeq {
			return fmt.Errorf("%w: event at index %d has sequence %d, expected %d (gap)", ErrChainBroken, i, event.Sequence, expectedSeq)
		}
		if event.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: event %d has previous_hash %s, expected %s", ErrChainBroken, event.Sequence, event.PreviousHash, expectedPrev)
		}
		computed, err := hashEvent(event)
		if err != nil {
			return fmt.Errorf("%w: event %d hash recomputation failed: %w", ErrChainBroken, event.Sequence, err)
		}
		if computed != event.Hash {
			return fmt.Errorf("%w: event %d hash mismatch", ErrChainBroken, event.Sequence)
		}
		expectedPrev = event.Hash
		expectedSeq++
	}
	return nil
}

// VerifySignature checks an event's HMAC signature against its agent's
// current signing key.
func (l *Log) VerifySignature(event *model.ObserverEvent) (bool, error) {
	key, err := l.keyFor(event.AgentID)
	if err != nil {
		return false, err
	}
	return signing.HMACVerify(key, []byte(event.Hash), event.Signature), nil
}
