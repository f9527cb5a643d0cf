package model

import "time"

// GenesisHash is the previousHash of the first event in any chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// ObserverEvent is an append-only, hash-chained log record. The hash
// chain fields (PreviousHash, Hash, Signature) are populated by
// pkg/observer at append time, never by callers.
type ObserverEvent struct {
	Sequence     int64          `json:"sequence"`
	Timestamp    time.Time      `json:"timestamp"`
	Source       string         `json:"source"`
	EventType    string         `json:"event_type"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	AgentID      string         `json:"agent_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
	Signature    string         `json:"signature"`
}

// AnomalyType enumerates the detection patterns of spec §4.4b.
type AnomalyType string

const (
	AnomalyActivitySpike  AnomalyType = "activity_spike"
	AnomalyErrorCluster   AnomalyType = "error_cluster"
	AnomalyRiskEscalation AnomalyType = "risk_escalation"
	AnomalyRapidActions   AnomalyType = "rapid_actions"
	AnomalyTrustDrop      AnomalyType = "trust_drop"
)

// AnomalyLifecycle is the state of a detected anomaly.
type AnomalyLifecycle string

const (
	AnomalyOpen         AnomalyLifecycle = "open"
	AnomalyAcknowledged AnomalyLifecycle = "acknowledged"
	AnomalyResolved     AnomalyLifecycle = "resolved"
)

// Anomaly is a detected pattern over Observer events.
type Anomaly struct {
	AnomalyID      string           `json:"anomaly_id"`
	AgentID        string           `json:"agent_id"`
	Type           AnomalyType      `json:"type"`
	Severity       RiskLevel        `json:"severity"`
	Description    string           `json:"description"`
	EvidenceFrom   int64            `json:"evidence_from_sequence"`
	EvidenceTo     int64            `json:"evidence_to_sequence"`
	DetectedAt     time.Time        `json:"detected_at"`
	Lifecycle      AnomalyLifecycle `json:"lifecycle"`
	AcknowledgedAt time.Time        `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time        `json:"resolved_at,omitempty"`
}

// ExecutionOutcome is the outcome carried by an execution proof.
type ExecutionOutcome string

const (
	OutcomeSuccess ExecutionOutcome = "success"
	OutcomeFail    ExecutionOutcome = "fail"
	OutcomeAbort   ExecutionOutcome = "abort"
)

// Proof is a hash-committed execution outcome submitted by an agent
// runtime to drive trust scoring. Field names follow the wire contract
// in spec §6: h(ash), t(ime), d(ata), o(utcome), v(iolation).
type Proof struct {
	Hash         string           `json:"h"`
	Time         time.Time        `json:"t"`
	Data         map[string]any   `json:"d,omitempty"`
	Outcome      ExecutionOutcome `json:"o"`
	ViolationCode string          `json:"v,omitempty"`
}
