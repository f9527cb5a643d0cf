package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func TestApplyProof_SuccessIncreasesScore(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	result, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 5, result.ScoreDelta)
	assert.Equal(t, 5, result.Profile.Score)
}

func TestApplyProof_AbortDecreasesScore(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	_, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeAbort})
	require.NoError(t, err)
	result, err := e.ApplyProof("agent-1", model.Proof{Hash: "h2", Outcome: model.OutcomeAbort})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Profile.Score, "score clamps at 0 rather than going negative")
}

func TestApplyProof_ViolationCodeStacksOnOutcomePenalty(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	result, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeFail, ViolationCode: "BASIS_VIOLATION"})
	require.NoError(t, err)
	assert.Equal(t, -40, result.ScoreDelta) // -10 base + -30 violation
}

func TestApplyProof_DuplicateHashRejected(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	_, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeSuccess})
	require.NoError(t, err)
	_, err = e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeSuccess})
	assert.ErrorIs(t, err, ErrDuplicateProof)
}

func TestApplyProof_ClampsScoreAt1000(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	var last ApplyResult
	for i := 0; i < 300; i++ {
		var err error
		last, err = e.ApplyProof("agent-1", model.Proof{Hash: time.Duration(i).String() + "-h", Outcome: model.OutcomeSuccess})
		require.NoError(t, err)
	}
	assert.Equal(t, 1000, last.Profile.Score)
}

func TestApplyProof_TierChangeFiresOnCrossing(t *testing.T) {
	e := NewEngine(NewMemoryProfileStore())
	var change *TierChange
	for i := 0; i < 20; i++ {
		result, err := e.ApplyProof("agent-1", model.Proof{Hash: string(rune('a' + i)), Outcome: model.OutcomeSuccess})
		require.NoError(t, err)
		if result.TierChange != nil {
			change = result.TierChange
		}
	}
	require.NotNil(t, change, "score of 100 (20*5) should cross the tier-1 floor")
	assert.Equal(t, 0, change.PreviousTier)
	assert.Equal(t, 1, change.NewTier)
}

func TestApplyProof_RecentViolationsTracksWindow(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := base
	e := NewEngine(NewMemoryProfileStore()).WithClock(func() time.Time { return clock })

	result, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeFail})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Profile.RecentViolations)

	clock = base.Add(25 * time.Hour)
	result, err = e.ApplyProof("agent-1", model.Proof{Hash: "h2", Outcome: model.OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Profile.RecentViolations, "the first violation has aged out of the 24h window")
}

func TestTierForScore_MatchesIngestionLadder(t *testing.T) {
	assert.Equal(t, 0, TierForScore(0))
	assert.Equal(t, 1, TierForScore(100))
	assert.Equal(t, 2, TierForScore(300))
	assert.Equal(t, 3, TierForScore(500))
	assert.Equal(t, 4, TierForScore(700))
	assert.Equal(t, 5, TierForScore(900))
}

type rejectingStore struct{}

func (rejectingStore) Load(agentID string) (model.TrustProfile, bool, error) {
	return model.TrustProfile{AgentID: agentID}, false, nil
}
func (rejectingStore) CompareAndSwap(next model.TrustProfile) (bool, error) { return false, nil }

func TestApplyProof_ExhaustsRetriesUnderSustainedConflict(t *testing.T) {
	e := NewEngine(rejectingStore{})
	_, err := e.ApplyProof("agent-1", model.Proof{Hash: "h1", Outcome: model.OutcomeSuccess})
	assert.ErrorIs(t, err, ErrCASExhausted)
}
