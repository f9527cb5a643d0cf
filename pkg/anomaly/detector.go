// Package anomaly implements the sliding-window anomaly scans of spec
// §4.4b over the Observer log: activity spikes, error clusters, risk
// escalation, rapid actions, and trust drops. The windowed-aggregate
// technique — keep a rolling event buffer, sum over `now - window` —
// is grounded on pkg/governance/risk_envelope.go's
// AggregateRiskAccounting (CheckAndRecord/CurrentAggregate), generalized
// from a single risk-cost aggregate to five independent pattern scans.
package anomaly

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helmward/agentgov/pkg/model"
)

// Thresholds configures the five detection patterns. Defaults are
// conservative starting points, tunable per deployment.
type Thresholds struct {
	ActivityWindow      time.Duration
	ActivitySpikeFactor float64 // multiple of the previous window's event count
	ErrorWindow         time.Duration
	ErrorClusterCount   int
	RiskWindow          time.Duration
	RapidActionsWindow  time.Duration
	RapidActionsCount   int
	TrustDropWindow     time.Duration
	TrustDropPoints     int
}

// DefaultThresholds returns the spec §4.4b starting configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ActivityWindow:      5 * time.Minute,
		ActivitySpikeFactor: 3.0,
		ErrorWindow:         5 * time.Minute,
		ErrorClusterCount:   5,
		RiskWindow:          10 * time.Minute,
		RapidActionsWindow:  time.Minute,
		RapidActionsCount:   10,
		TrustDropWindow:     24 * time.Hour,
		TrustDropPoints:     50,
	}
}

// ObservedEvent is the minimal projection of an Observer event the
// detector needs, decoupling it from observer.QueryResult's shape.
type ObservedEvent struct {
	Sequence  int64
	Timestamp time.Time
	AgentID   string
	EventType string
	RiskLevel model.RiskLevel
	IsError   bool
}

// Detector runs the five sliding-window scans over a per-agent event
// buffer. Callers feed it events as they're appended to the Observer log
// (via Log.AddHandler) and periodically call Scan.
type Detector struct {
	mu         sync.Mutex
	thresholds Thresholds
	byAgent    map[string][]ObservedEvent
	trustScore map[string][]trustSample
	clock      func() time.Time
}

type trustSample struct {
	at    time.Time
	score int
}

// New builds a Detector with the given thresholds.
func New(thresholds Thresholds) *Detector {
	return &Detector{
		thresholds: thresholds,
		byAgent:    make(map[string][]ObservedEvent),
		trustScore: make(map[string][]trustSample),
		clock:      time.Now,
	}
}

// WithClock overrides the detector's time source for deterministic tests.
func (d *Detector) WithClock(clock func() time.Time) *Detector {
	d.clock = clock
	return d
}

// Record appends an event to its agent's rolling buffer, trimming
// anything older than the widest configured window.
func (d *Detector) Record(e ObservedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byAgent[e.AgentID] = append(d.byAgent[e.AgentID], e)
	d.trim(e.AgentID)
}

// RecordTrustScore feeds a trust-score sample used by the trust-drop scan.
func (d *Detector) RecordTrustScore(agentID string, score int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trustScore[agentID] = append(d.trustScore[agentID], trustSample{at: d.clock(), score: score})
}

func (d *Detector) trim(agentID string) {
	widest := d.thresholds.ActivityWindow
	for _, w := range []time.Duration{d.thresholds.ErrorWindow, d.thresholds.RiskWindow, d.thresholds.RapidActionsWindow} {
		if w > widest {
			widest = w
		}
	}
	cutoff := d.clock().Add(-widest)
	events := d.byAgent[agentID]
	i := sort.Search(len(events), func(i int) bool { return events[i].Timestamp.After(cutoff) })
	d.byAgent[agentID] = events[i:]
}

// Scan runs all five detection patterns for one agent and returns any
// anomalies found. It does not mutate lifecycle state — callers persist
// and track acknowledge/resolve transitions separately.
func (d *Detector) Scan(agentID string) []model.Anomaly {
	d.mu.Lock()
	events := append([]ObservedEvent(nil), d.byAgent[agentID]...)
	samples := append([]trustSample(nil), d.trustScore[agentID]...)
	d.mu.Unlock()

	now := d.clock()
	var anomalies []model.Anomaly

	if a := d.scanActivitySpike(agentID, events, now); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := d.scanErrorCluster(agentID, events, now); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := d.scanRiskEscalation(agentID, events, now); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := d.scanRapidActions(agentID, events, now); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := d.scanTrustDrop(agentID, samples, now); a != nil {
		anomalies = append(anomalies, *a)
	}
	return anomalies
}

func inWindow(events []ObservedEvent, since time.Time) []ObservedEvent {
	var out []ObservedEvent
	for _, e := range events {
		if e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Detector) scanActivitySpike(agentID string, events []ObservedEvent, now time.Time) *model.Anomaly {
	recent := inWindow(events, now.Add(-d.thresholds.ActivityWindow))
	older := inWindow(events, now.Add(-2*d.thresholds.ActivityWindow))
	baseline := len(older) - len(recent)
	if baseline <= 0 {
		return nil
	}
	if float64(len(recent)) < float64(baseline)*d.thresholds.ActivitySpikeFactor {
		return nil
	}
	return newAnomaly(agentID, model.AnomalyActivitySpike, model.RiskMedium, recent, now,
		"event rate in the current window exceeds the prior window by the configured spike factor")
}

func (d *Detector) scanErrorCluster(agentID string, events []ObservedEvent, now time.Time) *model.Anomaly {
	recent := inWindow(events, now.Add(-d.thresholds.ErrorWindow))
	var errors []ObservedEvent
	for _, e := range recent {
		if e.IsError {
			errors = append(errors, e)
		}
	}
	if len(errors) < d.thresholds.ErrorClusterCount {
		return nil
	}
	return newAnomaly(agentID, model.AnomalyErrorCluster, model.RiskHigh, errors, now,
		"error count in window exceeds cluster threshold")
}

func (d *Detector) scanRiskEscalation(agentID string, events []ObservedEvent, now time.Time) *model.Anomaly {
	recent := inWindow(events, now.Add(-d.thresholds.RiskWindow))
	var escalating []ObservedEvent
	highWater := model.RiskInfo
	rank := map[model.RiskLevel]int{model.RiskInfo: 0, model.RiskLow: 1, model.RiskMedium: 2, model.RiskHigh: 3, model.RiskCritical: 4}
	for _, e := range recent {
		if rank[e.RiskLevel] > rank[highWater] {
			highWater = e.RiskLevel
			escalating = append(escalating, e)
		}
	}
	if len(escalating) < 3 || highWater != model.RiskCritical {
		return nil
	}
	return newAnomaly(agentID, model.AnomalyRiskEscalation, model.RiskCritical, escalating, now,
		"risk level has escalated monotonically to critical within the window")
}

func (d *Detector) scanRapidActions(agentID string, events []ObservedEvent, now time.Time) *model.Anomaly {
	recent := inWindow(events, now.Add(-d.thresholds.RapidActionsWindow))
	if len(recent) < d.thresholds.RapidActionsCount {
		return nil
	}
	return newAnomaly(agentID, model.AnomalyRapidActions, model.RiskMedium, recent, now,
		"action count in a short window exceeds the rapid-actions threshold")
}

func (d *Detector) scanTrustDrop(agentID string, samples []trustSample, now time.Time) *model.Anomaly {
	if len(samples) < 2 {
		return nil
	}
	cutoff := now.Add(-d.thresholds.TrustDropWindow)
	var windowed []trustSample
	for _, s := range samples {
		if s.at.After(cutoff) {
			windowed = append(windowed, s)
		}
	}
	if len(windowed) < 2 {
		return nil
	}
	first, last := windowed[0], windowed[len(windowed)-1]
	if first.score-last.score < d.thresholds.TrustDropPoints {
		return nil
	}
	return &model.Anomaly{
		AnomalyID:   uuid.NewString(),
		AgentID:     agentID,
		Type:        model.AnomalyTrustDrop,
		Severity:    model.RiskHigh,
		Description: "trust score dropped by more than the configured threshold within the window",
		DetectedAt:  now,
		Lifecycle:   model.AnomalyOpen,
	}
}

func newAnomaly(agentID string, t model.AnomalyType, severity model.RiskLevel, evidence []ObservedEvent, now time.Time, desc string) *model.Anomaly {
	if len(evidence) == 0 {
		return nil
	}
	return &model.Anomaly{
		AnomalyID:    uuid.NewString(),
		AgentID:      agentID,
		Type:         t,
		Severity:     severity,
		Description:  desc,
		EvidenceFrom: evidence[0].Sequence,
		EvidenceTo:   evidence[len(evidence)-1].Sequence,
		DetectedAt:   now,
		Lifecycle:    model.AnomalyOpen,
	}
}
