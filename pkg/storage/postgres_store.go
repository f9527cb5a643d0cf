package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/helmward/agentgov/pkg/model"
)

// PostgresAgentStore is the durable SQL-based agent store for
// multi-replica deployments, grounded on the teacher's
// pkg/store/ledger/postgres_ledger.go ($N placeholders, explicit Init,
// sql.NullString scanning for optional columns).
type PostgresAgentStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewPostgresAgentStore wraps an existing *sql.DB; call Init before use.
func NewPostgresAgentStore(db *sql.DB) *PostgresAgentStore {
	return &PostgresAgentStore{db: db, clock: time.Now}
}

// Init creates the schema if it does not already exist.
func (s *PostgresAgentStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return fmt.Errorf("storage: migrate postgres schema: %w", err)
	}
	return nil
}

// WithClock overrides the store's time source for deterministic tests.
func (s *PostgresAgentStore) WithClock(clock func() time.Time) *PostgresAgentStore {
	s.clock = clock
	return s
}

func (s *PostgresAgentStore) CreateAgent(ctx context.Context, agent model.Agent) error {
	capsJSON, _ := json.Marshal(agent.Capabilities)
	manifestJSON, _ := json.Marshal(agent.Manifest)
	now := s.clock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, name, owner_id, capabilities, manifest, pipeline_stage,
			trust_score, adjusted_score, recent_violations, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $7, 0)`,
		agent.AgentID, agent.Name, agent.OwnerID, string(capsJSON), string(manifestJSON),
		model.StageDraft, now,
	)
	if err != nil {
		return fmt.Errorf("storage: create agent %s: %w", agent.AgentID, err)
	}
	return nil
}

func (s *PostgresAgentStore) GetAgent(ctx context.Context, agentID string) (model.Agent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, name, owner_id, capabilities, manifest, pipeline_stage,
			created_at, updated_at, version
		FROM agents WHERE agent_id = $1`, agentID)

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
func (s *PostgresAgentStore) Load(agentID string) (model.TrustProfile, bool, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT trust_score, adjusted_score, recent_violations, updated_at, version
		FROM agents WHERE agent_id = $1`, agentID)

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

// CompareAndSwap satisfies trust.ProfileStore.
func (s *PostgresAgentStore) CompareAndSwap(next model.TrustProfile) (bool, error) {
	expected := next.Version - 1
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE agents SET trust_score = $1, adjusted_score = $2, recent_violations = $3,
			updated_at = $4, version = $5
		WHERE agent_id = $6 AND version = $7`,
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
func (s *PostgresAgentStore) LoadStage(agentID string) (model.PipelineStage, int64, bool, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT pipeline_stage, version FROM agents WHERE agent_id = $1`, agentID)

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
func (s *PostgresAgentStore) CompareAndSwapStage(agentID string, next model.PipelineStage, expectedVersion int64) (bool, error) {
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE agents SET pipeline_stage = $1, updated_at = $2, version = $3
		WHERE agent_id = $4 AND version = $5`,
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

// RecordTrustEvent persists one accepted proof's scoring outcome.
func (s *PostgresAgentStore) RecordTrustEvent(ctx context.Context, id, agentID, eventType, proofHash string, scoreDelta int, metadata map[string]any) error {
	metaJSON, _ := json.Marshal(metadata)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_events (id, agent_id, type, proof_hash, score_delta, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, agentID, eventType, proofHash, scoreDelta, string(metaJSON), s.clock(),
	)
	if err != nil {
		return fmt.Errorf("storage: record trust event for %s: %w", agentID, err)
	}
	return nil
}
