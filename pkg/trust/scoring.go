package trust

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/helmward/agentgov/pkg/model"
)

// ProfileStore is the CAS seam for trust profiles: Load returns the
// current profile and its version, CompareAndSwap persists next only if
// its Version-1 matches the stored version (or the profile doesn't exist
// yet and next.Version-1 == 0). A persisted implementation (sqlite,
// postgres) can satisfy this without the engine changing.
type ProfileStore interface {
	Load(agentID string) (model.TrustProfile, bool, error)
	CompareAndSwap(next model.TrustProfile) (bool, error)
}

// MemoryProfileStore is the default in-process ProfileStore.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]model.TrustProfile
}

// NewMemoryProfileStore builds an empty MemoryProfileStore.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]model.TrustProfile)}
}

func (s *MemoryProfileStore) Load(agentID string) (model.TrustProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	return p, ok, nil
}

func (s *MemoryProfileStore) CompareAndSwap(next model.TrustProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.profiles[next.AgentID]
	expected := next.Version - 1
	if exists && cur.Version != expected {
		return false, nil
	}
	if !exists && expected != 0 {
		return false, nil
	}
	s.profiles[next.AgentID] = next
	return true, nil
}

// violationPenalties are the spec §4.4c example violation-code penalties,
// applied on top of the outcome's base adjustment.
var violationPenalties = map[string]int{
	"POLICY_DENIED":   -15,
	"BASIS_VIOLATION": -30,
	"TIMEOUT":         -5,
	"RESOURCE_LOCKED": -2,
}

// tierFloors is the trust-scoring engine's own tier ladder, distinct from
// the router-view Band used by authz/matrix (see SPEC_FULL.md §D). It
// exists solely to drive trust.tier_change webhook reporting.
var tierFloors = []struct {
	tier  int
	floor int
}{
	{5, 900}, {4, 700}, {3, 500}, {2, 300}, {1, 100}, {0, 0},
}

// TierForScore derives the webhook-reporting tier index [0,5] for a score.
func TierForScore(score int) int {
	for _, f := range tierFloors {
		if score >= f.floor {
			return f.tier
		}
	}
	return 0
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 1000 {
		return 1000
	}
	return score
}

func scoreDelta(proof model.Proof) int {
	var delta int
	switch proof.Outcome {
	case model.OutcomeSuccess:
		delta = 5
	case model.OutcomeFail:
		delta = -10
	case model.OutcomeAbort:
		delta = -25
	}
	if proof.ViolationCode != "" {
		delta += violationPenalties[proof.ViolationCode]
	}
	return delta
}

// TierChange describes a crossing of the trust-scoring engine's tier
// ladder, the trigger condition for a trust.tier_change webhook.
type TierChange struct {
	AgentID      string
	PreviousTier int
	NewTier      int
}

// ApplyResult is the outcome of applying one proof to an agent's profile.
type ApplyResult struct {
	Profile    model.TrustProfile
	ScoreDelta int
	TierChange *TierChange
}

// Engine applies execution proofs to per-agent trust profiles under
// optimistic concurrency control, rejecting duplicate proofs by hash and
// tracking a 24h rolling violation count the way anomaly.Detector tracks
// its sliding windows.
type Engine struct {
	mu         sync.Mutex
	store      ProfileStore
	seenProofs map[string]map[string]struct{} // agentID -> proof hash set
	violations map[string][]time.Time         // agentID -> violation timestamps
	clock      func() time.Time
}

// NewEngine builds a scoring Engine backed by store.
func NewEngine(store ProfileStore) *Engine {
	return &Engine{
		store:      store,
		seenProofs: make(map[string]map[string]struct{}),
		violations: make(map[string][]time.Time),
		clock:      time.Now,
	}
}

// WithClock overrides the engine's time source for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// ApplyProof applies one accepted execution proof, returning the updated
// profile, the score delta applied, and a TierChange if the agent's tier
// ladder position moved. Duplicate proofs (by hash) return ErrDuplicateProof.
func (e *Engine) ApplyProof(agentID string, proof model.Proof) (ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := e.seenProofs[agentID]
	if seen == nil {
		seen = make(map[string]struct{})
		e.seenProofs[agentID] = seen
	}
	if _, dup := seen[proof.Hash]; dup {
		return ApplyResult{}, ErrDuplicateProof
	}

	now := e.clock()
	delta := scoreDelta(proof)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, exists, err := e.store.Load(agentID)
		if err != nil {
			return ApplyResult{}, err
		}
		if !exists {
			cur = model.TrustProfile{AgentID: agentID}
		}

		isViolation := proof.Outcome != model.OutcomeSuccess || proof.ViolationCode != ""

		next := cur
		next.Score = clampScore(cur.Score + delta)
		next.AdjustedScore = next.Score
		next.LastUpdate = now
		next.Version = cur.Version + 1
		next.RecentViolations = e.countRecentViolations(agentID, now, isViolation)

		ok, err := e.store.CompareAndSwap(next)
		if err != nil {
			return ApplyResult{}, err
		}
		if !ok {
			continue
		}

		if isViolation {
			e.violations[agentID] = append(e.violations[agentID], now)
		}
		seen[proof.Hash] = struct{}{}

		result := ApplyResult{Profile: next, ScoreDelta: delta}
		prevTier, newTier := TierForScore(cur.Score), TierForScore(next.Score)
		if exists && prevTier != newTier {
			result.TierChange = &TierChange{AgentID: agentID, PreviousTier: prevTier, NewTier: newTier}
		}
		return result, nil
	}

	return ApplyResult{}, fmt.Errorf("%w: agent %s", ErrCASExhausted, agentID)
}

// countRecentViolations trims violation timestamps older than 24h and
// counts what remains, mirroring the sort.Search trim idiom used by
// anomaly.Detector. Trimming is idempotent and safe to repeat across CAS
// retries; pending reports whether this attempt's own proof would add a
// violation, which is only actually recorded in e.violations once the CAS
// swap succeeds, so a retried attempt never double-counts it.
func (e *Engine) countRecentViolations(agentID string, now time.Time, pending bool) int {
	cutoff := now.Add(-24 * time.Hour)
	events := e.violations[agentID]
	i := sort.Search(len(events), func(i int) bool { return events[i].After(cutoff) })
	e.violations[agentID] = events[i:]
	count := len(e.violations[agentID])
	if pending {
		count++
	}
	return count
}

// Profile returns the current trust profile for an agent, if any.
func (e *Engine) Profile(agentID string) (model.TrustProfile, bool, error) {
	return e.store.Load(agentID)
}
