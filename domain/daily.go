package domain

import "time"

// DayLayout is the calendar-day key format used by every daily fact.
const DayLayout = "2006-01-02"

// Day formats t as a calendar-day key in the given location. Day boundaries
// must be stable across deployments, so callers pass a fixed reference
// location (UTC by default) rather than the server-local zone.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// DailyUser is the persisted fact that an identity was observed at least
// once on a calendar day. Unique per (client_id, day); the first write wins.
type DailyUser struct {
	ID        string    `bson:"_id,omitempty"`
	ClientID  string    `bson:"client_id"`
	Day       string    `bson:"day"`
	CreatedAt time.Time `bson:"created_at"`
}

// DailySummary is a precomputed per-day unique-visitor count. It is the
// fast-path source for daily stats; the daily_users collection remains the
// source of truth when no summary exists.
type DailySummary struct {
	Day         string `bson:"day" json:"day"`
	UniqueCount int64  `bson:"unique_count" json:"uniqueCount"`
}

// DailyStat is one row of the per-day stats query surface.
type DailyStat struct {
	Day         string `json:"day"`
	UniqueCount int64  `json:"uniqueCount"`
	VisitCount  int64  `json:"visitCount"`
}
