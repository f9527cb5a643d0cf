package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func TestScan_ErrorClusterFiresAtThreshold(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := base
	d := New(DefaultThresholds()).WithClock(func() time.Time { return clock })

	for i := int64(1); i <= 5; i++ {
		d.Record(ObservedEvent{Sequence: i, Timestamp: clock, AgentID: "agent-1", IsError: true})
	}

	anomalies := d.Scan("agent-1")
	require.NotEmpty(t, anomalies)
	found := false
	for _, a := range anomalies {
		if a.Type == model.AnomalyErrorCluster {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_ErrorClusterDoesNotFireBelowThreshold(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	d := New(DefaultThresholds()).WithClock(func() time.Time { return base })

	for i := int64(1); i <= 4; i++ {
		d.Record(ObservedEvent{Sequence: i, Timestamp: base, AgentID: "agent-1", IsError: true})
	}

	anomalies := d.Scan("agent-1")
	for _, a := range anomalies {
		assert.NotEqual(t, model.AnomalyErrorCluster, a.Type)
	}
}

func TestScan_RapidActionsFiresWithinShortWindow(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	d := New(DefaultThresholds()).WithClock(func() time.Time { return base })

	for i := int64(1); i <= 25; i++ {
		d.Record(ObservedEvent{Sequence: i, Timestamp: base, AgentID: "agent-1"})
	}

	anomalies := d.Scan("agent-1")
	found := false
	for _, a := range anomalies {
		if a.Type == model.AnomalyRapidActions {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_TrustDropFiresOnLargeDecline(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := base
	d := New(DefaultThresholds()).WithClock(func() time.Time { return clock })

	d.RecordTrustScore("agent-1", 900)
	clock = base.Add(10 * time.Minute)
	d.RecordTrustScore("agent-1", 700)

	anomalies := d.Scan("agent-1")
	found := false
	for _, a := range anomalies {
		if a.Type == model.AnomalyTrustDrop {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_NoEventsProducesNoAnomalies(t *testing.T) {
	d := New(DefaultThresholds())
	anomalies := d.Scan("agent-unknown")
	assert.Empty(t, anomalies)
}

func TestRecord_TrimsEventsOutsideWidestWindow(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := base
	thresholds := DefaultThresholds()
	d := New(thresholds).WithClock(func() time.Time { return clock })

	d.Record(ObservedEvent{Sequence: 1, Timestamp: base, AgentID: "agent-1"})

	clock = base.Add(thresholds.RiskWindow + time.Minute)
	d.Record(ObservedEvent{Sequence: 2, Timestamp: clock, AgentID: "agent-1"})

	d.mu.Lock()
	events := d.byAgent["agent-1"]
	d.mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].Sequence)
}
