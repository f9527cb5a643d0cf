package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helmward/agentgov/pkg/model"
)

// DefaultDecisionTTL bounds how long a permit stays valid once issued.
const DefaultDecisionTTL = 10 * time.Minute

// Engine is the Authorization Engine of spec §4.1: it combines the band
// table, CEL pre/post-authorize hooks, and constraint merging into a
// single deterministic Authorize call.
type Engine struct {
	hooks       *HookEvaluator
	policySetID string
	clock       func() time.Time
	killSwitch  KillSwitchCheck
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the engine's time source, used by tests that need
// deterministic DecidedAt/ExpiresAt values.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// KillSwitchCheck reports whether pkg/killswitch currently blocks this
// intent/profile pair. The Engine stays decoupled from killswitch.Switch
// itself — callers close over it (e.g. ks.Denies("tier:"+tier)) so this
// package never imports pkg/killswitch directly.
type KillSwitchCheck func(intent model.Intent, profile model.TrustProfile) (blocked bool, scope string)

// WithKillSwitch wires a kill-switch check that is consulted before any
// other authorization logic runs (spec §6 "kill switch correctness").
func WithKillSwitch(check KillSwitchCheck) Option {
	return func(e *Engine) { e.killSwitch = check }
}

// NewEngine builds an Engine bound to a policy set identifier and an
// (optionally empty) CEL hook set.
func NewEngine(policySetID string, hooks []Hook, opts ...Option) (*Engine, error) {
	eval, err := NewHookEvaluator(hooks)
	if err != nil {
		return nil, err
	}
	e := &Engine{hooks: eval, policySetID: policySetID, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Authorize is the sole entry point of the Authorization Engine: given an
// Intent and the requesting agent's current TrustProfile, it returns a
// Decision satisfying the invariant in model.Decision.Valid().
func (e *Engine) Authorize(ctx context.Context, intent model.Intent, profile model.TrustProfile) model.Decision {
	start := e.clock()
	decisionID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s|%s|%d|%d|%s",
		intent.IntentID, profile.AgentID, profile.Score, profile.Version, e.policySetID))).String()

	base := model.Decision{
		DecisionID:    decisionID,
		IntentID:      intent.IntentID,
		AgentID:       intent.AgentID,
		TrustBand:     profile.Band(),
		TrustScore:    profile.Score,
		DecidedAt:     start,
		PolicySetID:   e.policySetID,
		CorrelationID: intent.CorrelationID,
	}

	if e.killSwitch != nil {
		if blocked, scope := e.killSwitch(intent, profile); blocked {
			return e.deny(base, model.DenialPolicyViolation, fmt.Sprintf("kill_switch: scope %q is active", scope))
		}
	}

	if intent.Expired(start) {
		return e.deny(base, model.DenialExpiredIntent, "intent expired before authorization")
	}

	hookInput := map[string]any{
		"intent": map[string]any{
			"action_type":      string(intent.ActionType),
			"data_sensitivity": string(intent.DataSensitivity),
			"reversibility":    string(intent.Reversibility),
			"context":          intent.Context,
		},
		"profile": map[string]any{
			"score": profile.Score,
			"band":  profile.Band().String(),
		},
		"context": intent.Context,
	}

	if results, ok := e.hooks.Run(ctx, StagePreAuthorize, hookInput); !ok {
		return e.deny(base, model.DenialPolicyViolation, reasonFromHooks("pre-authorize hook blocked", results))
	}

	required := RequiredBandFor(intent.ActionType, intent.DataSensitivity, intent.Reversibility)
	if profile.Band() < required {
		reason := fmt.Sprintf("agent band %s below required band %s", profile.Band(), required)
		return e.deny(base, model.DenialInsufficientTrust, reason)
	}

	if ok, reason := CheckScope(intent, profile.Band()); !ok {
		return e.deny(base, model.DenialResourceRestricted, reason)
	}

	if ok, reason := CheckContext(intent, profile.Band()); !ok {
		return e.deny(base, model.DenialContextMismatch, reason)
	}

	constraints := e.buildConstraints(intent, profile)

	if results, ok := e.hooks.Run(ctx, StagePostAuthorize, hookInput); !ok {
		return e.deny(base, model.DenialPolicyViolation, reasonFromHooks("post-authorize hook blocked", results))
	}

	base.Permitted = true
	base.DenialReason = model.DenialNone
	base.Constraints = &constraints
	base.ExpiresAt = start.Add(DefaultDecisionTTL)
	base.Reasoning = []string{
		fmt.Sprintf("band %s clears required band %s for %s/%s", profile.Band(), required, intent.DataSensitivity, intent.Reversibility),
	}
	return base
}

// deny finalizes a Decision in the denied state, satisfying the
// Permitted/Constraints/DenialReason invariant.
func (e *Engine) deny(base model.Decision, reason model.DenialReason, why string) model.Decision {
	base.Permitted = false
	base.DenialReason = reason
	base.Constraints = nil
	base.ExpiresAt = base.DecidedAt
	base.Reasoning = []string{why}
	return base
}

// buildConstraints derives the constraint envelope carried by a permit,
// tightening limits as the required band rises above the floor so
// marginal passes get a narrower envelope than comfortable ones.
func (e *Engine) buildConstraints(intent model.Intent, profile model.TrustProfile) model.DecisionConstraints {
	margin := int(profile.Band() - RequiredBandFor(intent.ActionType, intent.DataSensitivity, intent.Reversibility))
	rate := model.RateLimits{PerMinute: 10, PerHour: 100, PerDay: 500, Concurrency: 2}
	for i := 0; i < margin; i++ {
		rate.PerMinute *= 2
		rate.PerHour *= 2
		rate.PerDay *= 2
		rate.Concurrency++
	}

	tier := model.ObservabilityWhite
	switch {
	case profile.Band() >= model.BandCertified:
		tier = model.ObservabilityBlack
	case profile.Band() >= model.BandVerified:
		tier = model.ObservabilityGrey
	}

	var approvals []string
	if intent.Reversibility == model.ReversibilityIrreversible {
		approvals = append(approvals, "owner")
	}
	if intent.DataSensitivity == model.SensitivityRestricted {
		approvals = append(approvals, "compliance")
	}

	scopes := []string{string(intent.ActionType)}

	return model.DecisionConstraints{
		AllowedScopes:     scopes,
		RateLimits:        rate,
		MaxCost:           intent.ContextFloat(model.CtxEstimatedCost),
		RequiredApprovals: approvals,
		ObservabilityTier: tier,
		Deadline:          e.clock().Add(DefaultDecisionTTL),
		SandboxRequired:   intent.Reversibility != model.ReversibilityReversible,
	}
}

func reasonFromHooks(prefix string, results []HookResult) string {
	if len(results) == 0 {
		return prefix
	}
	last := results[len(results)-1]
	if last.Timeout {
		return fmt.Sprintf("%s: %s timed out", prefix, last.Name)
	}
	if last.Err != nil {
		return fmt.Sprintf("%s: %s errored: %v", prefix, last.Name, last.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, last.Name)
}
