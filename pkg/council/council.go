// Package council implements the Multi-Validator Council (spec §4.3): a
// parallel roster of validators votes on an intent, a meta-orchestrator
// merges their votes into a single CouncilDecision, and a revision loop
// gives QA feedback up to three chances to be addressed before the
// council escalates to a human. The parallel-dispatch shape is grounded
// directly on the teacher's pkg/governance/swarm_pdp.go EvaluateBatch
// (semaphore + WaitGroup + buffered channel, barrier-collect, no early
// return on a single validator's failure).
package council

import (
	"context"
	"sync"
	"time"

	"github.com/helmward/agentgov/pkg/model"
)

// MaxRevisions is the cap on revision rounds before the council forces an
// escalation to human review, per spec §4.3.
const MaxRevisions = 3

// MaxParallelValidators bounds the concurrent validator fan-out,
// mirroring the teacher's SwarmPDPConfig.MaxParallelPDPs.
const MaxParallelValidators = 16

// Council runs the validator roster against an intent and aggregates the
// votes into a CouncilDecision.
type Council struct {
	routing     Validator
	compliance  []Validator
	qa          Validator
	hitl        *HITLManager
	clock       func() time.Time
}

// Roster configures which validators participate in a Council.
type Roster struct {
	Routing    Validator
	Compliance []Validator
	QA         Validator
}

// New builds a Council from a Roster and a HITLManager for escalations.
func New(roster Roster, hitl *HITLManager) *Council {
	c := &Council{
		routing:    roster.Routing,
		compliance: roster.Compliance,
		qa:         roster.QA,
		hitl:       hitl,
		clock:      time.Now,
	}
	if c.routing == nil {
		c.routing = RoutingValidator{}
	}
	if c.qa == nil {
		c.qa = QAValidator{}
	}
	if c.compliance == nil {
		c.compliance = DefaultComplianceValidators()
	}
	return c
}

// WithClock overrides the council's time source for deterministic tests.
func (c *Council) WithClock(clock func() time.Time) *Council {
	c.clock = clock
	return c
}

// Review runs every validator in parallel and merges their votes into a
// CouncilDecision. revisionCount tracks which revision round this review
// is, so callers driving the revision loop can cap it at MaxRevisions.
func (c *Council) Review(ctx context.Context, intent model.Intent, routing model.RoutingResult, revisionCount int) model.CouncilDecision {
	start := c.clock()

	validators := make([]Validator, 0, len(c.compliance)+2)
	validators = append(validators, c.routing, c.qa)
	validators = append(validators, c.compliance...)

	votes := c.dispatch(ctx, validators, intent, routing)

	decision := model.CouncilDecision{
		IntentID:      intent.IntentID,
		Votes:         votes,
		RevisionCount: revisionCount,
		DecidedAt:     c.clock(),
	}
	decision.TotalLatencyMs = decision.DecidedAt.Sub(start).Milliseconds()

	classification := mergeClassifications(votes)
	decision.ComplianceIssues = collectIssues(intent, votes, classification)

	criticalFailed := false
	advisoryFailed := false
	for _, v := range votes {
		if v.Passed {
			continue
		}
		if v.Critical {
			criticalFailed = true
		} else {
			advisoryFailed = true
		}
	}

	switch {
	case criticalFailed:
		decision.Outcome = model.CouncilDenied
	case advisoryFailed && revisionCount < MaxRevisions:
		decision.Outcome = model.CouncilEscalated
		decision.RequiresRevision = true
		decision.QAFeedback = qaFeedback(votes)
	case advisoryFailed:
		// Exhausted the revision budget: escalate to a human instead of
		// looping forever on unaddressed QA feedback.
		decision.Outcome = model.CouncilEscalated
		decision.RequiresRevision = false
	default:
		decision.Outcome = model.CouncilApproved
	}

	return decision
}

// dispatch fans validators out across a bounded worker pool and collects
// every vote before returning — a barrier, not an early return, so a
// single failing validator never hides the rest of the roster's votes.
func (c *Council) dispatch(ctx context.Context, validators []Validator, intent model.Intent, routing model.RoutingResult) []model.Vote {
	type indexed struct {
		index int
		vote  model.Vote
	}

	results := make(chan indexed, len(validators))
	sem := make(chan struct{}, MaxParallelValidators)
	var wg sync.WaitGroup

	for i, v := range validators {
		wg.Add(1)
		go func(idx int, validator Validator) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- indexed{idx, validator.Validate(ctx, intent, routing)}
		}(i, v)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	votes := make([]model.Vote, len(validators))
	for r := range results {
		votes[r.index] = r.vote
	}
	return votes
}

func collectIssues(intent model.Intent, votes []model.Vote, classification model.DataSensitivity) []model.ComplianceIssue {
	var issues []model.ComplianceIssue
	for _, v := range votes {
		if v.Role == model.RoleCompliance && !v.Passed {
			issues = append(issues, model.ComplianceIssue{
				InstanceID: v.InstanceID,
				Code:       "COMPLIANCE_FAILURE",
				Severity:   "high",
				Detail:     v.Reason,
			})
		}
	}
	return issues
}

func qaFeedback(votes []model.Vote) string {
	for _, v := range votes {
		if v.Role == model.RoleQA && !v.Passed {
			return v.Reason
		}
	}
	return ""
}

// Escalate opens a HITL review for a council decision that could not be
// resolved by revision, at the caller-supplied severity and assigned to
// the human-gateway role. The decision itself is not consulted.
func (c *Council) Escalate(intent model.Intent, decision model.CouncilDecision, severity model.HITLSeverity) *model.HITLReview {
	return c.hitl.Create(intent.IntentID, intent.AgentID, severity, string(model.RoleHumanGateway))
}
