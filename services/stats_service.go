package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/cache"
	"go.pilab.hu/presence/domain"
)

// ErrStoreUnavailable reports that a persistence-backed statistic cannot be
// served because no store was configured or it is unreachable. Readers
// degrade to zero/unavailable results, never crash.
var ErrStoreUnavailable = errors.New("stats store unavailable")

const (
	// DefaultDailyStatsLimit bounds the per-day fallback scan.
	DefaultDailyStatsLimit = 30

	dailyStatsCacheTTL = 30 * time.Second
)

// PresenceSource is the in-memory side of the stats surface. The presence
// Tracker implements it; tests substitute a stub.
type PresenceSource interface {
	ActiveConnections() int
	DistinctActiveIdentities() int
	PerIdentityActiveCounts() map[string]int
}

// StatusSnapshot combines the live in-memory counts with the persisted
// uniqueness facts.
type StatusSnapshot struct {
	ActiveConnections       int   `json:"activeConnections"`
	DistinctActiveClientIDs int   `json:"distinctActiveClientIds"`
	DailyUniqueToday        int64 `json:"dailyUniqueToday"`
	TotalEverUsers          int64 `json:"totalEverUsers"`
}

// StatsService is the read side of the system: it answers aggregate
// questions from the in-memory authority and the persisted facts. All
// repository fields may be nil, in which case the corresponding reads
// degrade per the error-handling policy.
type StatsService struct {
	presence   PresenceSource
	dailyUsers domain.DailyUserRepository
	sessions   domain.SessionRepository
	visits     domain.VisitRepository
	summaries  domain.DailySummaryRepository
	statsCache cache.StatsCache
	loc        *time.Location
	now        func() time.Time
}

// NewStatsService wires the read side. statsCache may be nil to disable
// caching.
func NewStatsService(
	presence PresenceSource,
	dailyUsers domain.DailyUserRepository,
	sessions domain.SessionRepository,
	visits domain.VisitRepository,
	summaries domain.DailySummaryRepository,
	statsCache cache.StatsCache,
	loc *time.Location,
) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{
		presence:   presence,
		dailyUsers: dailyUsers,
		sessions:   sessions,
		visits:     visits,
		summaries:  summaries,
		statsCache: statsCache,
		loc:        loc,
		now:        time.Now,
	}
}

// ActiveConnections returns the instant live-connection count.
func (s *StatsService) ActiveConnections() int {
	return s.presence.ActiveConnections()
}

// PerIdentityActiveCounts returns identity -> live-connection-count.
func (s *StatsService) PerIdentityActiveCounts() map[string]int {
	return s.presence.PerIdentityActiveCounts()
}

// Today returns today's calendar-day key in the service's reference
// location.
func (s *StatsService) Today() string {
	return domain.Day(s.now(), s.loc)
}

// StatusSnapshot answers the status query. Store failures leave the
// persisted counts at zero; the in-memory counts are always served.
func (s *StatsService) StatusSnapshot(ctx context.Context) StatusSnapshot {
	snapshot := StatusSnapshot{
		ActiveConnections:       s.presence.ActiveConnections(),
		DistinctActiveClientIDs: s.presence.DistinctActiveIdentities(),
	}
	if s.dailyUsers == nil {
		return snapshot
	}

	today := s.Today()
	if count, err := s.dailyUsers.CountByDay(ctx, today); err != nil {
		log.Error().Err(err).Msg("Failed querying today's unique users")
	} else {
		snapshot.DailyUniqueToday = count
	}
	if total, err := s.dailyUsers.CountDistinctClientIDs(ctx); err != nil {
		log.Error().Err(err).Msg("Failed querying all-time unique users")
	} else {
		snapshot.TotalEverUsers = total
	}
	return snapshot
}

// AverageSessionDuration aggregates persisted session durations. Scope
// narrows the records to all time or today; clientID narrows to one
// identity. Returns ErrStoreUnavailable when no session store is
// configured.
func (s *StatsService) AverageSessionDuration(ctx context.Context, scope domain.SessionScope, clientID string) (domain.DurationStats, error) {
	if s.sessions == nil {
		return domain.DurationStats{}, ErrStoreUnavailable
	}
	filter := domain.SessionFilter{
		Scope:    scope,
		ClientID: clientID,
	}
	if scope == domain.SessionScopeToday {
		filter.Day = s.Today()
	}
	stats, err := s.sessions.AggregateDurations(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed aggregating session durations")
		return domain.DurationStats{}, err
	}
	return stats, nil
}

// RecordVisit bumps the lifetime and per-day visit counters. Best effort:
// failures are logged by the repository and swallowed here.
func (s *StatsService) RecordVisit(ctx context.Context) {
	if s.visits == nil {
		return
	}
	//nolint:errcheck // counter increments are best effort
	s.visits.IncrementVisit(ctx, s.Today())
}

// DailyStats returns up to limit most recent calendar days with their
// unique-visitor and visit counts, most recent first. Precomputed
// daily_summary rows are the fast path; when none exist the counts are
// derived day by day from daily_users and daily_visits, bounded by limit to
// control query cost.
func (s *StatsService) DailyStats(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	if limit <= 0 {
		limit = DefaultDailyStatsLimit
	}
	if s.dailyUsers == nil && s.visits == nil {
		return nil, ErrStoreUnavailable
	}

	cacheKey := fmt.Sprintf("daily-stats:%d", limit)
	if s.statsCache != nil {
		if payload, ok := s.statsCache.Get(ctx, cacheKey); ok {
			var cached []domain.DailyStat
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.dailyStatsFromSummaries(ctx, limit)
	if err != nil || stats == nil {
		stats, err = s.dailyStatsFromScan(ctx, limit)
		if err != nil {
			return nil, err
		}
	}

	if s.statsCache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			s.statsCache.Set(ctx, cacheKey, payload, dailyStatsCacheTTL)
		}
	}
	return stats, nil
}

// dailyStatsFromSummaries serves the fast path. Returns (nil, nil) when no
// summaries exist so the caller falls back to the scan.
func (s *StatsService) dailyStatsFromSummaries(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	if s.summaries == nil {
		return nil, nil
	}
	summaries, err := s.summaries.RecentSummaries(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("Daily summary fast path failed, falling back to scan")
		return nil, nil
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	stats := make([]domain.DailyStat, 0, len(summaries))
	for _, summary := range summaries {
		stat := domain.DailyStat{
			Day:         summary.Day,
			UniqueCount: summary.UniqueCount,
		}
		if s.visits != nil {
			if count, err := s.visits.CountByDay(ctx, summary.Day); err == nil {
				stat.VisitCount = count
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// dailyStatsFromScan is the source-of-truth fallback: enumerate known days,
// take the limit most recent, and count each one.
func (s *StatsService) dailyStatsFromScan(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	var days []string
	var err error
	if s.visits != nil {
		days, err = s.visits.Days(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed listing visit days")
		}
	}
	if len(days) == 0 && s.dailyUsers != nil {
		days, err = s.dailyUsers.Days(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed listing daily-user days")
			return nil, err
		}
	}

	// Day keys are zero-padded ISO dates, so lexical order is
	// chronological order.
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > limit {
		days = days[:limit]
	}

	stats := make([]domain.DailyStat, 0, len(days))
	for _, day := range days {
		stat := domain.DailyStat{Day: day}
		if s.dailyUsers != nil {
			if count, err := s.dailyUsers.CountByDay(ctx, day); err == nil {
				stat.UniqueCount = count
			}
		}
		if s.visits != nil {
			if count, err := s.visits.CountByDay(ctx, day); err == nil {
				stat.VisitCount = count
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
