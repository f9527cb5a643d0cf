package model

import "time"

// DenialReason is the taxonomy of reasons an authorization may be denied,
// per spec §7.
type DenialReason string

const (
	DenialNone                  DenialReason = ""
	DenialInsufficientTrust     DenialReason = "INSUFFICIENT_TRUST"
	DenialPolicyViolation       DenialReason = "POLICY_VIOLATION"
	DenialResourceRestricted    DenialReason = "RESOURCE_RESTRICTED"
	DenialDataSensitivityExceeded DenialReason = "DATA_SENSITIVITY_EXCEEDED"
	DenialRateLimitExceeded     DenialReason = "RATE_LIMIT_EXCEEDED"
	DenialContextMismatch       DenialReason = "CONTEXT_MISMATCH"
	DenialExpiredIntent         DenialReason = "EXPIRED_INTENT"
	DenialDuplicateProof        DenialReason = "DUPLICATE_PROOF"
	DenialInvalidManifest       DenialReason = "INVALID_MANIFEST"
	DenialInvalidAgent          DenialReason = "INVALID_AGENT"
	DenialInvalidSignature      DenialReason = "INVALID_SIGNATURE"
	DenialSystemError           DenialReason = "SYSTEM_ERROR"
)

// ObservabilityTier controls execution-time introspection depth.
type ObservabilityTier string

const (
	ObservabilityBlack ObservabilityTier = "black"
	ObservabilityGrey  ObservabilityTier = "grey"
	ObservabilityWhite ObservabilityTier = "white"
)

// RateLimits bounds request throughput for a permit.
type RateLimits struct {
	PerMinute   int `json:"per_minute"`
	PerHour     int `json:"per_hour"`
	PerDay      int `json:"per_day"`
	Concurrency int `json:"concurrency"`
}

// DecisionConstraints is the envelope a permit carries into execution.
type DecisionConstraints struct {
	AllowedScopes       []string          `json:"allowed_scopes"`
	RateLimits          RateLimits        `json:"rate_limits"`
	MaxCost             float64           `json:"max_cost"`
	RequiredApprovals   []string          `json:"required_approvals"`
	ObservabilityTier   ObservabilityTier `json:"observability_tier"`
	Deadline            time.Time         `json:"deadline"`
	SandboxRequired     bool              `json:"sandbox_required"`
}

// Decision is the output of the Authorization Engine.
type Decision struct {
	DecisionID    string                `json:"decision_id"`
	IntentID      string                `json:"intent_id"`
	AgentID       string                `json:"agent_id"`
	Permitted     bool                  `json:"permitted"`
	DenialReason  DenialReason          `json:"denial_reason"`
	Constraints   *DecisionConstraints  `json:"constraints,omitempty"`
	TrustBand     Band                  `json:"trust_band"`
	TrustScore    int                   `json:"trust_score"`
	Reasoning     []string              `json:"reasoning"`
	DecidedAt     time.Time             `json:"decided_at"`
	ExpiresAt     time.Time             `json:"expires_at"`
	LatencyMs     int64                 `json:"latency_ms"`
	PolicySetID   string                `json:"policy_set_id"`
	CorrelationID string                `json:"correlation_id"`
}

// Valid enforces the Decision invariant from spec §3:
// permitted = true iff constraints != nil and denialReason == none.
func (d Decision) Valid() bool {
	if d.Permitted {
		return d.Constraints != nil && d.DenialReason == DenialNone
	}
	return d.DenialReason != DenialNone
}

// RoutingPath is the output path of the Matrix Router.
type RoutingPath string

const (
	PathGreen  RoutingPath = "green"
	PathYellow RoutingPath = "yellow"
	PathRed    RoutingPath = "red"
)

// RiskLevel is the risk classification fed into the matrix router.
type RiskLevel string

const (
	RiskInfo     RiskLevel = "info"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RoutingResult is the output of the Matrix Router.
type RoutingResult struct {
	Path            RoutingPath `json:"path"`
	MaxLatencyMs    int64       `json:"max_latency_ms"`
	RequiresCouncil bool        `json:"requires_council"`
	RequiresHuman   bool        `json:"requires_human"`
	Reasoning       []string    `json:"reasoning"`
}
