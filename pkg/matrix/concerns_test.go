package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func TestEvaluateConcerns_SafetyBlocksBeforeLowerConcernsRun(t *testing.T) {
	intent := model.Intent{
		ActionType:      model.ActionExecute,
		Reversibility:   model.ReversibilityIrreversible,
		DataSensitivity: model.SensitivityInternal,
		Context:         map[string]any{},
	}
	routing := model.RoutingResult{Path: model.PathRed}

	eval := EvaluateConcerns(intent, routing, DefaultChecks())

	require.False(t, eval.OverallPassed)
	assert.Equal(t, model.ConcernSafety, eval.BlockedBy)
	assert.Equal(t, model.ActionBlock, eval.RecommendedAction)
	// Only safety should have been evaluated before short-circuiting.
	assert.Len(t, eval.Results, 1)
}

func TestEvaluateConcerns_EthicsFailureEscalatesRatherThanBlocks(t *testing.T) {
	intent := model.Intent{
		ActionType:      model.ActionRead,
		Reversibility:   model.ReversibilityReversible,
		DataSensitivity: model.SensitivityConfidential,
		Context:         map[string]any{model.CtxHandlesPII: true},
	}
	routing := model.RoutingResult{Path: model.PathYellow, RequiresCouncil: false}

	eval := EvaluateConcerns(intent, routing, DefaultChecks())

	require.False(t, eval.OverallPassed)
	assert.Equal(t, model.ConcernEthics, eval.BlockedBy)
	assert.Equal(t, model.ActionEscalate, eval.RecommendedAction)
}

func TestEvaluateConcerns_AdvisoryFailureDoesNotBlock(t *testing.T) {
	intent := model.Intent{
		ActionType:      model.ActionRead,
		Reversibility:   model.ReversibilityReversible,
		DataSensitivity: model.SensitivityPublic,
		Context:         map[string]any{},
	}
	routing := model.RoutingResult{Path: model.PathGreen, MaxLatencyMs: 250}

	eval := EvaluateConcerns(intent, routing, DefaultChecks())

	assert.False(t, eval.OverallPassed)
	assert.Equal(t, model.Concern(""), eval.BlockedBy)
	assert.Equal(t, model.ActionReview, eval.RecommendedAction)
	assert.Len(t, eval.Results, len(model.ConcernPriority))
}

func TestEvaluateConcerns_AllPass(t *testing.T) {
	intent := model.Intent{
		ActionType:      model.ActionRead,
		Reversibility:   model.ReversibilityReversible,
		DataSensitivity: model.SensitivityPublic,
		Context:         map[string]any{},
	}
	routing := model.RoutingResult{Path: model.PathGreen, MaxLatencyMs: 3000, RequiresCouncil: true}

	eval := EvaluateConcerns(intent, routing, DefaultChecks())

	assert.True(t, eval.OverallPassed)
	assert.Equal(t, model.ActionProceed, eval.RecommendedAction)
}
