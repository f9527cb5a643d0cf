package council

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helmward/agentgov/pkg/model"
)

// HITLManager is the Human-Gateway validator's backing store: it tracks
// pending human reviews, their severity-derived deadlines, and produces
// the claim/decide lifecycle transitions. Generalized from the teacher's
// escalation.Manager (pkg/escalation/manager.go) from a single
// approve/deny intent to a claim-then-decide review with a richer
// status set (pending/acknowledged/decided/expired, spec §4.3).
type HITLManager struct {
	mu      sync.Mutex
	reviews map[string]*model.HITLReview
	clock   func() time.Time
}

// NewHITLManager constructs an empty review store.
func NewHITLManager() *HITLManager {
	return &HITLManager{reviews: make(map[string]*model.HITLReview), clock: time.Now}
}

// WithClock overrides the manager's time source for deterministic tests.
func (m *HITLManager) WithClock(clock func() time.Time) *HITLManager {
	m.clock = clock
	return m
}

// Create opens a new pending review for an intent that the council or
// matrix router escalated to a human.
func (m *HITLManager) Create(intentID, agentID string, severity model.HITLSeverity, assignedRole string) *model.HITLReview {
	now := m.clock()
	review := &model.HITLReview{
		ReviewID:     uuid.NewString(),
		IntentID:     intentID,
		AgentID:      agentID,
		Severity:     severity,
		AssignedRole: assignedRole,
		CreatedAt:    now,
		Deadline:     now.Add(model.HITLDeadline(severity)),
		Status:       model.HITLPending,
	}

	m.mu.Lock()
	m.reviews[review.ReviewID] = review
	m.mu.Unlock()
	return review
}

// Claim marks a pending review as acknowledged by a specific human
// reviewer, preventing double-work on the same review.
func (m *HITLManager) Claim(reviewID, claimedBy string) (*model.HITLReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("council: review %q not found", reviewID)
	}
	if review.Expired(m.clock()) {
		review.Status = model.HITLExpired
		return review, fmt.Errorf("council: review %q expired before being claimed", reviewID)
	}
	if review.Status != model.HITLPending {
		return nil, fmt.Errorf("council: review %q is not pending (status=%s)", reviewID, review.Status)
	}

	review.Status = model.HITLAcknowledged
	review.ClaimedBy = claimedBy
	return review, nil
}

// Decide records the human decision for a claimed review.
func (m *HITLManager) Decide(reviewID, humanDecision string) (*model.HITLReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("council: review %q not found", reviewID)
	}
	if review.Status != model.HITLAcknowledged && review.Status != model.HITLPending {
		return nil, fmt.Errorf("council: review %q already resolved (status=%s)", reviewID, review.Status)
	}

	now := m.clock()
	review.Status = model.HITLDecided
	review.HumanDecision = humanDecision
	review.ResolvedAt = now
	return review, nil
}

// SweepExpired transitions any past-deadline pending reviews to expired
// and returns the ones it changed, mirroring the teacher's
// Manager.CheckTimeouts sweep.
func (m *HITLManager) SweepExpired() []*model.HITLReview {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var expired []*model.HITLReview
	for _, review := range m.reviews {
		if review.Expired(now) {
			review.Status = model.HITLExpired
			expired = append(expired, review)
		}
	}
	return expired
}

// Get returns a review by ID.
func (m *HITLManager) Get(reviewID string) (*model.HITLReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("council: review %q not found", reviewID)
	}
	return review, nil
}

// PendingCount reports how many reviews are still awaiting a human.
func (m *HITLManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, review := range m.reviews {
		if review.Status == model.HITLPending || review.Status == model.HITLAcknowledged {
			count++
		}
	}
	return count
}
