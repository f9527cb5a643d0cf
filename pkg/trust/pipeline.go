package trust

import (
	"fmt"
	"sync"
	"time"

	"github.com/helmward/agentgov/pkg/model"
)

// StageStore is the CAS seam for an agent's pipeline stage, mirroring
// ProfileStore's shape so both engines share one persistence pattern.
type StageStore interface {
	LoadStage(agentID string) (stage model.PipelineStage, version int64, exists bool, err error)
	CompareAndSwapStage(agentID string, next model.PipelineStage, expectedVersion int64) (bool, error)
}

// MemoryStageStore is the default in-process StageStore.
type MemoryStageStore struct {
	mu    sync.Mutex
	stage map[string]model.PipelineStage
	ver   map[string]int64
}

// NewMemoryStageStore builds an empty MemoryStageStore.
func NewMemoryStageStore() *MemoryStageStore {
	return &MemoryStageStore{stage: make(map[string]model.PipelineStage), ver: make(map[string]int64)}
}

func (s *MemoryStageStore) LoadStage(agentID string) (model.PipelineStage, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stage[agentID]
	return st, s.ver[agentID], ok, nil
}

func (s *MemoryStageStore) CompareAndSwapStage(agentID string, next model.PipelineStage, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ver[agentID] != expectedVersion {
		return false, nil
	}
	s.stage[agentID] = next
	s.ver[agentID] = expectedVersion + 1
	return true, nil
}

// legalTransitions is the spec §4.4d adjacency: draft -> training -> exam
// -> shadow -> active -> (suspended <-> active) -> retired.
var legalTransitions = map[model.PipelineStage][]model.PipelineStage{
	model.StageDraft:     {model.StageTraining},
	model.StageTraining:  {model.StageExam},
	model.StageExam:      {model.StageShadow},
	model.StageShadow:    {model.StageActive},
	model.StageActive:    {model.StageSuspended, model.StageRetired},
	model.StageSuspended: {model.StageActive, model.StageRetired},
}

func isLegalTransition(from, to model.PipelineStage) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// GateContext carries the facts a transition's gates are evaluated
// against. Callers populate only the fields relevant to the transition
// being attempted; gates for other transitions ignore the rest.
type GateContext struct {
	ManifestAligned  bool
	HierarchyLevelOK bool
	ShadowMatchRate  float64
	ShadowExecutions int
	DaysInShadow     float64
	SafetyViolations int
	HumanApproved    bool
}

// Gate evaluates one blocking condition, returning a human-readable
// reason on failure.
type Gate func(ctx GateContext) (bool, string)

func gateManifestAligned(ctx GateContext) (bool, string) {
	if !ctx.ManifestAligned {
		return false, "manifest is not aligned with declared capabilities"
	}
	return true, ""
}

func gateHierarchyLevel(ctx GateContext) (bool, string) {
	if !ctx.HierarchyLevelOK {
		return false, "hierarchy level check failed"
	}
	return true, ""
}

func gateShadowMatchRate(ctx GateContext) (bool, string) {
	if ctx.ShadowMatchRate < 0.95 {
		return false, fmt.Sprintf("shadow match-rate %.2f below required 0.95", ctx.ShadowMatchRate)
	}
	return true, ""
}

func gateShadowExecutions(ctx GateContext) (bool, string) {
	if ctx.ShadowExecutions < 100 {
		return false, fmt.Sprintf("shadow executions %d below required 100", ctx.ShadowExecutions)
	}
	return true, ""
}

func gateShadowDuration(ctx GateContext) (bool, string) {
	if ctx.DaysInShadow < 7 {
		return false, fmt.Sprintf("days in shadow %.1f below required 7", ctx.DaysInShadow)
	}
	return true, ""
}

func gateZeroSafetyViolations(ctx GateContext) (bool, string) {
	if ctx.SafetyViolations != 0 {
		return false, fmt.Sprintf("%d safety violations recorded during shadow", ctx.SafetyViolations)
	}
	return true, ""
}

func gateHumanApproval(ctx GateContext) (bool, string) {
	if !ctx.HumanApproved {
		return false, "human approval not recorded"
	}
	return true, ""
}

// transitionGates maps each legal (from, to) edge to its blocking gates.
// draft->training and training->exam share the basic-alignment gates;
// shadow->active carries the full spec §4.4d gate set.
var transitionGates = map[model.PipelineStage]map[model.PipelineStage][]Gate{
	model.StageDraft:    {model.StageTraining: {gateManifestAligned, gateHierarchyLevel}},
	model.StageTraining: {model.StageExam: {gateManifestAligned}},
	model.StageExam:     {model.StageShadow: {gateManifestAligned}},
	model.StageShadow: {
		model.StageActive: {
			gateShadowMatchRate,
			gateShadowExecutions,
			gateShadowDuration,
			gateZeroSafetyViolations,
			gateHumanApproval,
		},
	},
	model.StageActive:    {model.StageSuspended: {}, model.StageRetired: {}},
	model.StageSuspended: {model.StageActive: {}, model.StageRetired: {}},
}

// Caller identifies who is requesting a transition, for the forced
// override privilege check.
type Caller struct {
	ID         string
	Privileged bool
}

// TransitionEvent is emitted on every successful transition (forced or
// gated) so callers can wire it to an Observer log append.
type TransitionEvent struct {
	AgentID string
	From    model.PipelineStage
	To      model.PipelineStage
	Forced  bool
	Caller  string
	At      time.Time
	Reason  string
}

// Pipeline drives the agent lifecycle state machine under CAS, gating
// every transition unless a privileged caller forces it.
type Pipeline struct {
	store        StageStore
	clock        func() time.Time
	onTransition func(TransitionEvent)
}

// NewPipeline builds a Pipeline backed by store.
func NewPipeline(store StageStore) *Pipeline {
	return &Pipeline{store: store, clock: time.Now}
}

// WithClock overrides the pipeline's time source for deterministic tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// OnTransition registers a callback invoked after every successful
// transition, forced or gated. Wiring it to observer.Log.Append gives the
// spec's "emits a forced=true Observer event" behavior without this
// package importing observer directly.
func (p *Pipeline) OnTransition(fn func(TransitionEvent)) *Pipeline {
	p.onTransition = fn
	return p
}

// Transition attempts to move agentID to stage `to`. When force is false,
// the transition must be legal and every blocking gate for that edge must
// pass. When force is true, caller must be privileged and all adjacency
// and gate checks are skipped.
func (p *Pipeline) Transition(agentID string, to model.PipelineStage, ctx GateContext, caller Caller, force bool) (TransitionEvent, error) {
	if force && !caller.Privileged {
		return TransitionEvent{}, ErrForceRequiresPrivilege
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		from, version, exists, err := p.store.LoadStage(agentID)
		if err != nil {
			return TransitionEvent{}, err
		}
		if !exists {
			from = model.StageDraft
		}

		reason := ""
		if !force {
			if !isLegalTransition(from, to) {
				return TransitionEvent{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
			}
			for _, gate := range transitionGates[from][to] {
				if passed, why := gate(ctx); !passed {
					return TransitionEvent{}, fmt.Errorf("%w: %s", ErrGateFailed, why)
				}
			}
		} else {
			reason = "forced override"
		}

		ok, err := p.store.CompareAndSwapStage(agentID, to, version)
		if err != nil {
			return TransitionEvent{}, err
		}
		if !ok {
			continue
		}

		event := TransitionEvent{
			AgentID: agentID,
			From:    from,
			To:      to,
			Forced:  force,
			Caller:  caller.ID,
			At:      p.clock(),
			Reason:  reason,
		}
		if p.onTransition != nil {
			p.onTransition(event)
		}
		return event, nil
	}

	return TransitionEvent{}, fmt.Errorf("%w: agent %s", ErrCASExhausted, agentID)
}

// Stage returns the current pipeline stage for an agent.
func (p *Pipeline) Stage(agentID string) (model.PipelineStage, bool, error) {
	stage, _, exists, err := p.store.LoadStage(agentID)
	return stage, exists, err
}
