package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/helmward/agentgov/pkg/model"
)

// SaveHITLReview upserts a review row, keyed by review_id.
func (s *SQLiteAgentStore) SaveHITLReview(ctx context.Context, r model.HITLReview) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hitl_reviews (review_id, intent_id, agent_id, severity, status,
			assigned_role, claimed_by, created_at, deadline, decided_at, human_decision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(review_id) DO UPDATE SET
			status = excluded.status, claimed_by = excluded.claimed_by,
			decided_at = excluded.decided_at, human_decision = excluded.human_decision`,
		r.ReviewID, r.IntentID, r.AgentID, r.Severity, r.Status, r.AssignedRole,
		r.ClaimedBy, r.CreatedAt, r.Deadline, nullableTime(r.ResolvedAt), r.HumanDecision,
	)
	if err != nil {
		return fmt.Errorf("storage: save hitl review %s: %w", r.ReviewID, err)
	}
	return nil
}

// ListPendingHITLReviews returns reviews not yet in a terminal status.
func (s *SQLiteAgentStore) ListPendingHITLReviews(ctx context.Context) ([]model.HITLReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT review_id, intent_id, agent_id, severity, status, assigned_role,
			claimed_by, created_at, deadline, human_decision
		FROM hitl_reviews WHERE status NOT IN ('decided', 'expired')`)
	if err != nil {
		return nil, fmt.Errorf("storage: list pending hitl reviews: %w", err)
	}
	defer rows.Close()

	var out []model.HITLReview
	for rows.Next() {
		var r model.HITLReview
		var claimedBy, humanDecision sql.NullString
		if err := rows.Scan(&r.ReviewID, &r.IntentID, &r.AgentID, &r.Severity, &r.Status,
			&r.AssignedRole, &claimedBy, &r.CreatedAt, &r.Deadline, &humanDecision); err != nil {
			return nil, fmt.Errorf("storage: scan hitl review: %w", err)
		}
		r.ClaimedBy = claimedBy.String
		r.HumanDecision = humanDecision.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t interface{ IsZero() bool }) any {
	if t.IsZero() {
		return nil
	}
	return t
}
