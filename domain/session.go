package domain

import "time"

// SessionRecord is the persisted fact that a single connection was live for
// some interval. One record is written per connection, at session end
// (normal disconnect or heartbeat-timeout eviction).
type SessionRecord struct {
	ID         string    `bson:"_id,omitempty"`
	ClientID   string    `bson:"client_id,omitempty"` // durable identity, empty if never attached
	ConnID     string    `bson:"conn_id"`             // transport-assigned connection identifier
	StartAt    time.Time `bson:"start_at"`
	EndAt      time.Time `bson:"end_at"`
	DurationMs int64     `bson:"duration_ms"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Duration returns the recorded session duration.
func (s *SessionRecord) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// SessionScope selects which session records an aggregation considers.
type SessionScope string

const (
	SessionScopeAll   SessionScope = "all"
	SessionScopeToday SessionScope = "day"
)

// SessionFilter narrows session aggregations. The zero value matches every
// record.
type SessionFilter struct {
	Scope    SessionScope
	ClientID string
	Day      string // set when Scope is SessionScopeToday, formatted with DayLayout
}

// DurationStats is the result of aggregating session durations.
// All fields are zero when no sessions match or the store is unavailable.
type DurationStats struct {
	AverageMs float64 `json:"averageMs"`
	TotalMs   int64   `json:"totalDurationMs"`
	Count     int64   `json:"sessionsCount"`
}
