package council

import (
	"context"
	"time"

	"github.com/helmward/agentgov/pkg/model"
)

// Validator is one member of the council roster. Each validator casts a
// single Vote against the intent under review; the council never asks a
// validator to also decide the final outcome.
type Validator interface {
	Role() model.ValidatorRole
	InstanceID() string
	Critical() bool
	Validate(ctx context.Context, intent model.Intent, routing model.RoutingResult) model.Vote
}

// RoutingValidator re-confirms the matrix router's verdict as a council
// vote, so a race between routing and council evaluation surfaces as a
// vote rather than silently trusting a stale RoutingResult.
type RoutingValidator struct{}

func (RoutingValidator) Role() model.ValidatorRole { return model.RoleRouting }
func (RoutingValidator) InstanceID() string        { return "routing-0" }
func (RoutingValidator) Critical() bool            { return true }

func (RoutingValidator) Validate(ctx context.Context, intent model.Intent, routing model.RoutingResult) model.Vote {
	start := time.Now()
	passed := routing.Path != model.PathRed
	return model.Vote{
		Role:       model.RoleRouting,
		InstanceID: "routing-0",
		Critical:   true,
		Passed:     passed,
		Reason:     "routing path " + string(routing.Path),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

// ComplianceValidator checks an intent against one compliance domain
// (e.g. data-residency, export-control, PII handling). Up to four run in
// parallel per spec §4.3; each contributes its own classification so the
// meta-orchestrator can apply most-restrictive-wins across them.
type ComplianceValidator struct {
	Instance       string
	MaxSensitivity model.DataSensitivity
	Check          func(intent model.Intent) (passed bool, issue *model.ComplianceIssue)
}

func (c ComplianceValidator) Role() model.ValidatorRole { return model.RoleCompliance }
func (c ComplianceValidator) InstanceID() string        { return c.Instance }
func (c ComplianceValidator) Critical() bool            { return true }

func (c ComplianceValidator) Validate(ctx context.Context, intent model.Intent, routing model.RoutingResult) model.Vote {
	start := time.Now()
	passed, issue := c.Check(intent)
	reason := "compliant"
	if issue != nil {
		reason = issue.Detail
	}
	classification := intent.DataSensitivity
	if c.MaxSensitivity != "" {
		classification = model.MostRestrictiveSensitivity(classification, c.MaxSensitivity)
	}
	return model.Vote{
		Role:           model.RoleCompliance,
		InstanceID:     c.Instance,
		Critical:       true,
		Passed:         passed,
		Reason:         reason,
		Classification: classification,
		LatencyMs:      time.Since(start).Milliseconds(),
	}
}

// QAValidator checks an intent for internal consistency (does the
// requested action type match its declared reversibility, is the context
// well-formed) rather than compliance or safety.
type QAValidator struct{}

func (QAValidator) Role() model.ValidatorRole { return model.RoleQA }
func (QAValidator) InstanceID() string        { return "qa-0" }
func (QAValidator) Critical() bool            { return false }

func (QAValidator) Validate(ctx context.Context, intent model.Intent, routing model.RoutingResult) model.Vote {
	start := time.Now()
	passed := true
	reason := "consistent"
	if intent.ActionType == model.ActionDelete && intent.Reversibility == model.ReversibilityReversible {
		passed = false
		reason = "delete action declared reversible, likely misclassified"
	}
	return model.Vote{
		Role:       model.RoleQA,
		InstanceID: "qa-0",
		Critical:   false,
		Passed:     passed,
		Reason:     reason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

// mergeClassifications folds every compliance vote's classification into
// a single most-restrictive value, resolving contradictory compliance
// sensitivity classifications the way DESIGN.md's Open Question decision 3
// settled it: restricted > confidential > internal > public.
func mergeClassifications(votes []model.Vote) model.DataSensitivity {
	merged := model.SensitivityPublic
	for _, v := range votes {
		if v.Role != model.RoleCompliance || v.Classification == "" {
			continue
		}
		merged = model.MostRestrictiveSensitivity(merged, v.Classification)
	}
	return merged
}

// DefaultComplianceValidators returns the standard compliance roster: up
// to four parallel checks covering PII, export control, financial, and
// jurisdictional domains. Any subset can be wired in by callers that
// don't need all four.
func DefaultComplianceValidators() []Validator {
	return []Validator{
		ComplianceValidator{
			Instance:       "compliance-pii",
			MaxSensitivity: model.SensitivityConfidential,
			Check: func(intent model.Intent) (bool, *model.ComplianceIssue) {
				if intent.ContextBool(model.CtxHandlesPII) && intent.DataSensitivity == model.SensitivityPublic {
					return false, &model.ComplianceIssue{InstanceID: "compliance-pii", Code: "PII_MISCLASSIFIED", Severity: "high",
						Detail: "PII handling declared at public sensitivity"}
				}
				return true, nil
			},
		},
		ComplianceValidator{
			Instance:       "compliance-export",
			MaxSensitivity: model.SensitivityInternal,
			Check: func(intent model.Intent) (bool, *model.ComplianceIssue) {
				if intent.ActionType == model.ActionTransfer && intent.DataSensitivity == model.SensitivityRestricted {
					return false, &model.ComplianceIssue{InstanceID: "compliance-export", Code: "EXPORT_CONTROL", Severity: "critical",
						Detail: "restricted-data transfer requires export-control review"}
				}
				return true, nil
			},
		},
		ComplianceValidator{
			Instance:       "compliance-financial",
			MaxSensitivity: model.SensitivityInternal,
			Check: func(intent model.Intent) (bool, *model.ComplianceIssue) {
				if intent.ContextFloat(model.CtxEstimatedCost) > 10000 {
					return false, &model.ComplianceIssue{InstanceID: "compliance-financial", Code: "COST_THRESHOLD", Severity: "medium",
						Detail: "estimated cost exceeds autonomous approval threshold"}
				}
				return true, nil
			},
		},
		ComplianceValidator{
			Instance:       "compliance-jurisdiction",
			MaxSensitivity: model.SensitivityPublic,
			Check: func(intent model.Intent) (bool, *model.ComplianceIssue) {
				return true, nil
			},
		},
	}
}
