// Package storage implements the persisted-state layout of spec §6:
// agents, trust_events, observer_events, and hitl_reviews tables, with
// the agents.version column backing CAS for both the trust-scoring
// engine and the pipeline state machine. Two backends are provided —
// sqlite (modernc.org/sqlite, pure-Go, the default embedded deployment)
// and postgres (lib/pq) — grounded respectively on the teacher's
// pkg/store/receipt_store_sqlite.go and pkg/store/ledger/postgres_ledger.go.
package storage

// sqliteSchema and postgresSchema mirror each other logically; only the
// column-type dialect and placeholder syntax differ, matching the split
// the teacher carries between its sqlite and postgres stores.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	capabilities TEXT,
	manifest TEXT,
	pipeline_stage TEXT NOT NULL,
	trust_score INTEGER NOT NULL DEFAULT 0,
	adjusted_score INTEGER NOT NULL DEFAULT 0,
	recent_violations INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trust_events (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	type TEXT NOT NULL,
	proof_hash TEXT NOT NULL UNIQUE,
	score_delta INTEGER NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS observer_events (
	id TEXT PRIMARY KEY,
	sequence INTEGER NOT NULL UNIQUE,
	previous_hash TEXT NOT NULL,
	hash TEXT NOT NULL,
	signature TEXT NOT NULL,
	source TEXT NOT NULL,
	event_type TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	agent_id TEXT,
	user_id TEXT,
	data TEXT,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observer_events_agent_seq ON observer_events(agent_id, sequence);
CREATE INDEX IF NOT EXISTS idx_observer_events_timestamp ON observer_events(timestamp);

CREATE TABLE IF NOT EXISTS hitl_reviews (
	review_id TEXT PRIMARY KEY,
	intent_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	assigned_role TEXT,
	claimed_by TEXT,
	created_at DATETIME NOT NULL,
	deadline DATETIME,
	decided_at DATETIME,
	human_decision TEXT
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	capabilities TEXT,
	manifest TEXT,
	pipeline_stage TEXT NOT NULL,
	trust_score INTEGER NOT NULL DEFAULT 0,
	adjusted_score INTEGER NOT NULL DEFAULT 0,
	recent_violations INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trust_events (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	type TEXT NOT NULL,
	proof_hash TEXT NOT NULL UNIQUE,
	score_delta INTEGER NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS observer_events (
	id TEXT PRIMARY KEY,
	sequence BIGINT NOT NULL UNIQUE,
	previous_hash TEXT NOT NULL,
	hash TEXT NOT NULL,
	signature TEXT NOT NULL,
	source TEXT NOT NULL,
	event_type TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	agent_id TEXT,
	user_id TEXT,
	data JSONB,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observer_events_agent_seq ON observer_events(agent_id, sequence);
CREATE INDEX IF NOT EXISTS idx_observer_events_timestamp ON observer_events(timestamp);

CREATE TABLE IF NOT EXISTS hitl_reviews (
	review_id TEXT PRIMARY KEY,
	intent_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	assigned_role TEXT,
	claimed_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	deadline TIMESTAMPTZ,
	decided_at TIMESTAMPTZ,
	human_decision TEXT
);
`
