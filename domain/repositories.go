package domain

import "context"

// DailyUserRepository persists "identity seen on day" facts. Uniqueness per
// (client_id, day) is enforced by the store, not by callers.
type DailyUserRepository interface {
	// RecordIfNew inserts the (clientID, day) fact unless it already exists.
	// Returns true when a new record was inserted. A duplicate is not an
	// error.
	RecordIfNew(ctx context.Context, clientID, day string) (bool, error)
	// CountByDay returns the number of distinct identities seen on a day.
	CountByDay(ctx context.Context, day string) (int64, error)
	// CountDistinctClientIDs returns the all-time number of distinct
	// identities ever recorded.
	CountDistinctClientIDs(ctx context.Context) (int64, error)
	// Days returns every day that has at least one record.
	Days(ctx context.Context) ([]string, error)
}

// SessionRepository persists finalized session records and answers duration
// aggregations over them.
type SessionRepository interface {
	StoreSession(ctx context.Context, record *SessionRecord) error
	AggregateDurations(ctx context.Context, filter SessionFilter) (DurationStats, error)
}

// VisitRepository tracks page-visit counters: a lifetime total and a
// per-day count.
type VisitRepository interface {
	// IncrementVisit bumps both the lifetime total and the given day's count.
	IncrementVisit(ctx context.Context, day string) error
	CountByDay(ctx context.Context, day string) (int64, error)
	Days(ctx context.Context) ([]string, error)
	TotalVisits(ctx context.Context) (int64, error)
}

// DailySummaryRepository reads precomputed per-day unique-visitor summaries.
// Summaries are produced out of band; this service only consumes them.
type DailySummaryRepository interface {
	// RecentSummaries returns up to limit summaries, most recent day first.
	RecentSummaries(ctx context.Context, limit int) ([]*DailySummary, error)
}

// FeedbackRepository stores and lists feedback submissions.
type FeedbackRepository interface {
	StoreFeedback(ctx context.Context, fb *Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]*Feedback, error)
	CountFeedback(ctx context.Context) (int64, error)
}
