package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func TestTransition_DraftToTrainingRequiresAlignmentGates(t *testing.T) {
	p := NewPipeline(NewMemoryStageStore())
	_, err := p.Transition("agent-1", model.StageTraining, GateContext{}, Caller{ID: "owner"}, false)
	assert.ErrorIs(t, err, ErrGateFailed)

	_, err = p.Transition("agent-1", model.StageTraining, GateContext{ManifestAligned: true, HierarchyLevelOK: true}, Caller{ID: "owner"}, false)
	require.NoError(t, err)

	stage, exists, err := p.Stage("agent-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, model.StageTraining, stage)
}

func TestTransition_RejectsIllegalJump(t *testing.T) {
	p := NewPipeline(NewMemoryStageStore())
	_, err := p.Transition("agent-1", model.StageActive, GateContext{}, Caller{ID: "owner"}, false)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTransition_ShadowToActiveRequiresFullGateSet(t *testing.T) {
	store := NewMemoryStageStore()
	store.stage["agent-1"] = model.StageShadow
	store.ver["agent-1"] = 3
	p := NewPipeline(store)

	ctx := GateContext{
		ShadowMatchRate:  0.80,
		ShadowExecutions: 50,
		DaysInShadow:     3,
		SafetyViolations: 1,
		HumanApproved:    false,
	}
	_, err := p.Transition("agent-1", model.StageActive, ctx, Caller{ID: "owner"}, false)
	assert.ErrorIs(t, err, ErrGateFailed)

	ctx = GateContext{
		ShadowMatchRate:  0.97,
		ShadowExecutions: 150,
		DaysInShadow:     10,
		SafetyViolations: 0,
		HumanApproved:    true,
	}
	event, err := p.Transition("agent-1", model.StageActive, ctx, Caller{ID: "owner"}, false)
	require.NoError(t, err)
	assert.Equal(t, model.StageShadow, event.From)
	assert.Equal(t, model.StageActive, event.To)
	assert.False(t, event.Forced)
}

func TestTransition_ForceRequiresPrivilegedCaller(t *testing.T) {
	p := NewPipeline(NewMemoryStageStore())
	_, err := p.Transition("agent-1", model.StageActive, GateContext{}, Caller{ID: "owner", Privileged: false}, true)
	assert.ErrorIs(t, err, ErrForceRequiresPrivilege)
}

func TestTransition_ForceSkipsGatesAndAdjacency(t *testing.T) {
	p := NewPipeline(NewMemoryStageStore())
	var events []TransitionEvent
	p.OnTransition(func(e TransitionEvent) { events = append(events, e) })

	event, err := p.Transition("agent-1", model.StageActive, GateContext{}, Caller{ID: "root", Privileged: true}, true)
	require.NoError(t, err)
	assert.True(t, event.Forced)
	assert.Equal(t, model.StageDraft, event.From)
	require.Len(t, events, 1)
	assert.True(t, events[0].Forced)
}

func TestTransition_SuspendAndResumeRoundTrip(t *testing.T) {
	store := NewMemoryStageStore()
	store.stage["agent-1"] = model.StageActive
	store.ver["agent-1"] = 7
	p := NewPipeline(store)

	_, err := p.Transition("agent-1", model.StageSuspended, GateContext{}, Caller{ID: "owner"}, false)
	require.NoError(t, err)
	_, err = p.Transition("agent-1", model.StageActive, GateContext{}, Caller{ID: "owner"}, false)
	require.NoError(t, err)

	stage, _, err := p.Stage("agent-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageActive, stage)
}

func TestTransition_DeterministicClockOnEvent(t *testing.T) {
	fixed := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	p := NewPipeline(NewMemoryStageStore()).WithClock(func() time.Time { return fixed })
	event, err := p.Transition("agent-1", model.StageTraining, GateContext{ManifestAligned: true, HierarchyLevelOK: true}, Caller{ID: "owner"}, false)
	require.NoError(t, err)
	assert.Equal(t, fixed, event.At)
}
