package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/helmward/agentgov/pkg/model"
)

// SQLiteAgentStore persists agents, trust_events, and hitl_reviews against
// a pure-Go sqlite database. Its shape follows the teacher's
// pkg/store/receipt_store_sqlite.go (migrate-on-construct, positional `?`
// placeholders, sql.NullString for optional columns).
type SQLiteAgentStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteAgentStore opens (and migrates) a SQLiteAgentStore over db.
func NewSQLiteAgentStore(db *sql.DB) (*SQLiteAgentStore, error) {
	s := &SQLiteAgentStore{db: db, clock: time.Now}
	if _, err := s.db.ExecContext(context.Background(), sqliteSchema); err != nil {
		return nil, fmt.Errorf("storage: migrate sqlite schema: %w", err)
	}
	return s, nil
}

// WithClock overrides the store's time source for deterministic tests.
func (s *SQLiteAgentStore) WithClock(clock func() time.Time) *SQLiteAgentStore {
	s.clock = clock
	return s
}

// CreateAgent inserts a new agent row at version 0, stage draft.
func (s *SQLiteAgentStore) CreateAgent(ctx context.Context, agent model.Agent) error {
	capsJSON, _ := json.Marshal(agent.Capabilities)
	manifestJSON, _ := json.Marshal(agent.Manifest)
	now := s.clock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, name, owner_id, capabilities, manifest, pipeline_stage,
			trust_score, adjusted_score, recent_violations, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, 0)`,
		agent.AgentID, agent.Name, agent.OwnerID, string(capsJSON), string(manifestJSON),
		model.StageDraft, now, now,
	)
	if err != nil {
		return fmt.Errorf("storage: create agent %s: %w", agent.AgentID, err)
	}
	return nil
}

// GetAgent returns the full agent row.
func (s *SQLiteAgentStore) GetAgent(ctx context.Context, agentID string) (model.Agent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, name, owner_id, capabilities, manifest, pipeline_stage,
			created_at, updated_at, version
		FROM agents WHERE agent_id = ?`, agentID)

	var (
		a            model.Agent
		capsJSON     sql.NullString
		manifestJSON sql.NullString
	)
	err := row.Scan(&a.AgentID, &a.Name, &a.OwnerID, &capsJSON, &manifestJSON,
		&a.PipelineStage, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err == sql.ErrNoRows {
		return model.Agent{}, false, nil
	}
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("storage: get agent %s: %w", agentID, err)
	}
	if capsJSON.Valid {
		_ = json.Unmarshal([]byte(capsJSON.String), &a.Capabilities)
	}
	if manifestJSON.Valid {
		_ = json.Unmarshal([]byte(manifestJSON.String), &a.Manifest)
	}
	return a, true, nil
}

// Load satisfies trust.ProfileStore.
func (s *SQLiteAgentStore) Load(agentID string) (model.TrustProfile, bool, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT trust_score, adjusted_score, recent_violations, updated_at, version
		FROM agents WHERE agent_id = ?`, agentID)

	var p model.TrustProfile
	p.AgentID = agentID
	err := row.Scan(&p.Score, &p.AdjustedScore, &p.RecentViolations, &p.LastUpdate, &p.Version)
	if err == sql.ErrNoRows {
		return model.TrustProfile{}, false, nil
	}
	if err != nil {
		return model.TrustProfile{}, false, fmt.Errorf("storage: load profile %s: %w", agentID, err)
	}
	return p, true, nil
}

// CompareAndSwap satisfies trust.ProfileStore: it fails (returns false,
// nil) rather than erroring when the expected version doesn't match,
// letting the caller's CAS-retry loop handle contention.
func (s *SQLiteAgentStore) CompareAndSwap(next model.TrustProfile) (bool, error) {
	expected := next.Version - 1
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE agents SET trust_score = ?, adjusted_score = ?, recent_violations = ?,
			updated_at = ?, version = ?
		WHERE agent_id = ? AND version = ?`,
		next.Score, next.AdjustedScore, next.RecentViolations, next.LastUpdate, next.Version,
		next.AgentID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("storage: cas profile %s: %w", next.AgentID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// LoadStage satisfies trust.StageStore.
func (s *SQLiteAgentStore) LoadStage(agentID string) (model.PipelineStage, int64, bool, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT pipeline_stage, version FROM agents WHERE agent_id = ?`, agentID)

	var stage model.PipelineStage
	var version int64
	err := row.Scan(&stage, &version)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("storage: load stage %s: %w", agentID, err)
	}
	return stage, version, true, nil
}

// CompareAndSwapStage satisfies trust.StageStore.
func (s *SQLiteAgentStore) CompareAndSwapStage(agentID string, next model.PipelineStage, expectedVersion int64) (bool, error) {
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE agents SET pipeline_stage = ?, updated_at = ?, version = ?
		WHERE agent_id = ? AND version = ?`,
		next, s.clock(), expectedVersion+1, agentID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("storage: cas stage %s: %w", agentID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// RecordTrustEvent persists one accepted proof's scoring outcome,
// rejecting duplicates via the proof_hash UNIQUE constraint.
func (s *SQLiteAgentStore) RecordTrustEvent(ctx context.Context, id, agentID, eventType, proofHash string, scoreDelta int, metadata map[string]any) error {
	metaJSON, _ := json.Marshal(metadata)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_events (id, agent_id, type, proof_hash, score_delta, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, agentID, eventType, proofHash, scoreDelta, string(metaJSON), s.clock(),
	)
	if err != nil {
		return fmt.Errorf("storage: record trust event for %s: %w", agentID, err)
	}
	return nil
}
