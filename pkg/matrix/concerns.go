package matrix

import "github.com/helmward/agentgov/pkg/model"

// ConcernCheck evaluates one concern dimension against an intent/context,
// returning whatever violations it finds. Registered per concern in
// EvaluateConcerns so each dimension stays independently testable.
type ConcernCheck func(intent model.Intent, routing model.RoutingResult) model.ConcernResult

// EvaluateConcerns runs every registered concern check in the fixed
// priority order of model.ConcernPriority and aggregates them into one
// ConcernEvaluation, enforcing the lexicographic rule of spec §4.2b: the
// first blocking concern (Safety, Ethics, Legality) that fails wins over
// any lower-priority concern's verdict, blocking or not.
func EvaluateConcerns(intent model.Intent, routing model.RoutingResult, checks map[model.Concern]ConcernCheck) model.ConcernEvaluation {
	eval := model.ConcernEvaluation{OverallPassed: true, RecommendedAction: model.ActionProceed}

	for _, concern := range model.ConcernPriority {
		check, ok := checks[concern]
		if !ok {
			continue
		}
		result := check(intent, routing)
		result.Concern = concern
		eval.Results = append(eval.Results, result)

		if result.Passed {
			continue
		}

		eval.OverallPassed = false
		if model.BlockingConcerns[concern] {
			eval.BlockedBy = concern
			if concern == model.ConcernEthics {
				eval.RecommendedAction = model.ActionEscalate
			} else {
				eval.RecommendedAction = model.ActionBlock
			}
			return eval
		}
		if eval.RecommendedAction == model.ActionProceed {
			eval.RecommendedAction = result.Action
		}
	}

	return eval
}

// DefaultChecks returns the baseline concern checks wired against the
// intent fields already present on every authorize call: safety keys off
// irreversibility + a red routing path, ethics off PII/PHI handling without
// council review, legality off restricted-data transfer. Of the three
// advisory concerns only efficiency can fail (a latency budget under
// 300ms), flagging for review without blocking; policy and innovation
// always pass.
func DefaultChecks() map[model.Concern]ConcernCheck {
	return map[model.Concern]ConcernCheck{
		model.ConcernSafety: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			if intent.Reversibility == model.ReversibilityIrreversible && routing.Path == model.PathRed {
				return model.ConcernResult{Passed: false, Severity: "critical", Action: model.ActionBlock,
					Violations: []string{"irreversible action routed red"}}
			}
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
		model.ConcernEthics: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			if (intent.ContextBool(model.CtxHandlesPII) || intent.ContextBool(model.CtxHandlesPHI)) &&
				!routing.RequiresCouncil {
				return model.ConcernResult{Passed: false, Severity: "high", Action: model.ActionEscalate,
					Violations: []string{"PII/PHI handling without council review"}}
			}
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
		model.ConcernLegality: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			if intent.ActionType == model.ActionTransfer && intent.DataSensitivity == model.SensitivityRestricted {
				return model.ConcernResult{Passed: false, Severity: "high", Action: model.ActionBlock,
					Violations: []string{"restricted-data transfer requires explicit legal basis"}}
			}
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
		model.ConcernPolicy: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
		model.ConcernEfficiency: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			if routing.MaxLatencyMs > 0 && routing.MaxLatencyMs < 300 {
				return model.ConcernResult{Passed: false, Severity: "low", Action: model.ActionReview,
					Violations: []string{"tight latency budget may starve downstream validators"}}
			}
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
		model.ConcernInnovation: func(intent model.Intent, routing model.RoutingResult) model.ConcernResult {
			return model.ConcernResult{Passed: true, Action: model.ActionProceed}
		},
	}
}
