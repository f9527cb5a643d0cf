package observer

import "time"

// QueryFilter narrows a Query over the log, mirroring the teacher's
// store.QueryFilter (EntryType/Subject/time-range/sequence-range).
type QueryFilter struct {
	EventType  string
	AgentID    string
	RiskLevel  string
	StartTime  *time.Time
	EndTime    *time.Time
	StartSeq   int64
	EndSeq     int64
	MaxResults int
}

// QueryResult is the projection of an ObserverEvent returned by Query.
type QueryResult struct {
	Sequence  int64
	Timestamp time.Time
	EventType string
	AgentID   string
	RiskLevel string
	Data      map[string]any
}

func (f QueryFilter) matches(r QueryResult) bool {
	if f.EventType != "" && r.EventType != f.EventType {
		return false
	}
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.RiskLevel != "" && r.RiskLevel != f.RiskLevel {
		return false
	}
	if f.StartTime != nil && r.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && r.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.StartSeq > 0 && r.Sequence < f.StartSeq {
		return false
	}
	if f.EndSeq > 0 && r.Sequence > f.EndSeq {
		return false
	}
	return true
}

// Query returns events matching the filter, walking the log oldest-first
// and stopping once MaxResults is reached.
func (l *Log) Query(filter QueryFilter) []QueryResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []QueryResult
	for _, e := range l.events {
		r := QueryResult{
			Sequence:  e.Sequence,
			Timestamp: e.Timestamp,
			EventType: e.EventType,
			AgentID:   e.AgentID,
			RiskLevel: string(e.RiskLevel),
			Data:      e.Data,
		}
		if !filter.matches(r) {
			continue
		}
		results = append(results, r)
		if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
			break
		}
	}
	return results
}
