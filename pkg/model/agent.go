// Package model defines the data model shared by every governance
// component: agents, trust profiles, intents, decisions, and the
// council/observer/HITL records that flow between them.
package model

import "time"

// PipelineStage is the lifecycle stage of an Agent.
type PipelineStage string

const (
	StageDraft     PipelineStage = "draft"
	StageTraining  PipelineStage = "training"
	StageExam      PipelineStage = "exam"
	StageShadow    PipelineStage = "shadow"
	StageActive    PipelineStage = "active"
	StageSuspended PipelineStage = "suspended"
	StageRetired   PipelineStage = "retired"
)

// Agent is the identity of an autonomous actor.
type Agent struct {
	AgentID      string        `json:"agent_id"`
	Name         string        `json:"name"`
	OwnerID      string        `json:"owner_id"`
	Capabilities []string      `json:"capabilities"`
	Manifest     Manifest      `json:"manifest"`
	PipelineStage PipelineStage `json:"pipeline_stage"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Version      int64         `json:"version"` // backs optimistic CAS
}

// Band is the discrete trust classification used by the authorization
// engine and the matrix router. Thresholds per SPEC_FULL.md §D
// (the "router view" canonical mapping).
type Band int

const (
	BandUntrusted Band = iota
	BandProvisional
	BandEstablished
	BandTrusted
	BandVerified
	BandCertified
)

func (b Band) String() string {
	switch b {
	case BandUntrusted:
		return "untrusted"
	case BandProvisional:
		return "provisional"
	case BandEstablished:
		return "established"
	case BandTrusted:
		return "trusted"
	case BandVerified:
		return "verified"
	case BandCertified:
		return "certified"
	default:
		return "unknown"
	}
}

// bandFloors is ordered descending; BandForScore walks it to find the
// highest band whose floor the score has cleared.
var bandFloors = [...]struct {
	band  Band
	floor int
}{
	{BandCertified, 900},
	{BandVerified, 800},
	{BandTrusted, 600},
	{BandEstablished, 400},
	{BandProvisional, 200},
	{BandUntrusted, 0},
}

// BandForScore derives the canonical band from a [0,1000] trust score.
func BandForScore(score int) Band {
	for _, bf := range bandFloors {
		if score >= bf.floor {
			return bf.band
		}
	}
	return BandUntrusted
}

// ClampBand keeps a band within [BandUntrusted, BandCertified].
func ClampBand(b Band) Band {
	if b < BandUntrusted {
		return BandUntrusted
	}
	if b > BandCertified {
		return BandCertified
	}
	return b
}

// TrustProfile is per-agent scalar state derived from Observer events.
type TrustProfile struct {
	AgentID          string    `json:"agent_id"`
	Score            int       `json:"score"` // [0,1000]
	AdjustedScore    int       `json:"adjusted_score"`
	RecentViolations int       `json:"recent_violations"` // last 24h
	LastUpdate       time.Time `json:"last_update"`
	Version          int64     `json:"version"`
}

// Band returns the canonical band for the profile's score.
func (p TrustProfile) Band() Band {
	return BandForScore(p.Score)
}
