package mongodb

const (
	DailyUsersCollection   = "daily_users"   // One record per (client_id, day)
	SessionsCollection     = "sessions"      // One record per finalized session
	FeedbacksCollection    = "feedbacks"     // Free-text feedback submissions
	DailyVisitsCollection  = "daily_visits"  // Per-day visit counters
	DailySummaryCollection = "daily_summary" // Precomputed per-day unique counts
	CountersCollection     = "counters"      // Lifetime scalar counters (visits)
)
