// Package killswitch implements the global/scoped pause of spec §6
// "Ingress — kill switch": activate(reason, scope) atomically pauses
// every agent matching scope and writes an Observer event per agent;
// deactivate only clears the switch itself, agents remain paused until
// individually resumed. The sync.RWMutex-guarded map-of-records shape is
// grounded in idiom on pkg/trust/compliance.go's ComplianceMatrix (same
// "one mutex, several maps keyed by id, CreatedAt/UpdatedAt bookkeeping"
// style). Pausing individual agents and emitting their Observer events
// are routed through caller-supplied callbacks rather than importing
// pkg/storage or pkg/observer directly, the same decoupling
// pkg/trust.Pipeline uses for its TransitionEvent hook.
package killswitch

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ScopeAll matches every agent regardless of tier or specialization.
const ScopeAll = "all"

var ErrNotActive = errors.New("killswitch: scope is not active")

// Activation records one active or historical kill-switch window.
type Activation struct {
	Scope             string
	Reason            string
	ActivatedBy       string
	ActivatedAt       time.Time
	DeactivatedAt     *time.Time
	DeactivationNotes string
}

// AgentMatch resolves the agent ids a scope currently covers, e.g. every
// agent in a given pipeline tier or specialization.
type AgentMatch func(scope string) ([]string, error)

// Pause marks one specific agent paused in the durable agent store.
type Pause func(agentID string) error

// Emit records an Observer event for one paused agent. Callers normally
// close over an *observer.Log.
type Emit func(agentID string, data map[string]any)

// Switch tracks which scopes are currently blocking authorization.
type Switch struct {
	mu     sync.RWMutex
	active map[string]*Activation
	clock  func() time.Time
}

func New() *Switch {
	return &Switch{active: make(map[string]*Activation), clock: time.Now}
}

func (s *Switch) WithClock(clock func() time.Time) *Switch {
	s.clock = clock
	return s
}

// Activate records scope as blocked, then pauses every agent match
// resolves for it, emitting one Observer event per paused agent. The
// scope itself is blocked the instant this call begins mutating state,
// before any individual agent pause completes, so concurrent
// authorizations see the block even mid-sweep.
func (s *Switch) Activate(scope, reason, activatedBy string, match AgentMatch, pause Pause, emit Emit) (int, error) {
	now := s.clock()
	s.mu.Lock()
	s.active[scope] = &Activation{Scope: scope, Reason: reason, ActivatedBy: activatedBy, ActivatedAt: now}
	s.mu.Unlock()

	agents, err := match(scope)
	if err != nil {
		return 0, fmt.Errorf("killswitch: resolving agents for scope %q: %w", scope, err)
	}

	var errs []error
	paused := 0
	for _, agentID := range agents {
		if err := pause(agentID); err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", agentID, err))
			continue
		}
		if emit != nil {
			emit(agentID, map[string]any{"scope": scope, "reason": reason, "activated_by": activatedBy})
		}
		paused++
	}
	if len(errs) > 0 {
		return paused, fmt.Errorf("killswitch: %d of %d agents failed to pause: %w", len(errs), len(agents), errors.Join(errs...))
	}
	return paused, nil
}

// Deactivate clears the block for scope. It does not resume any agent —
// each must be individually resumed, per spec.
func (s *Switch) Deactivate(scope, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[scope]; !ok {
		return ErrNotActive
	}
	delete(s.active, scope)
	_ = notes // not recorded: the Activation is removed, not updated
	return nil
}

// Denies reports whether ScopeAll or any of the given scope strings
// (e.g. "tier:trusted", "specialization:payments") is currently
// blocked, and which scope matched.
func (s *Switch) Denies(scopes ...string) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.active[ScopeAll]; ok {
		return true, ScopeAll
	}
	for _, scope := range scopes {
		if _, ok := s.active[scope]; ok {
			return true, scope
		}
	}
	return false, ""
}

// IsActive reports whether scope itself (not ScopeAll) is blocked.
func (s *Switch) IsActive(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[scope]
	return ok
}

// ActiveScopes returns every currently-blocked scope.
func (s *Switch) ActiveScopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes := make([]string, 0, len(s.active))
	for scope := range s.active {
		scopes = append(scopes, scope)
	}
	return scopes
}
