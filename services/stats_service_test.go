package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/presence/domain"
)

// --- Mock implementations ---

type stubPresence struct {
	active   int
	distinct int
	counts   map[string]int
}

func (s *stubPresence) ActiveConnections() int                { return s.active }
func (s *stubPresence) DistinctActiveIdentities() int         { return s.distinct }
func (s *stubPresence) PerIdentityActiveCounts() map[string]int { return s.counts }

type MockDailyUserRepository struct {
	mock.Mock
}

func (m *MockDailyUserRepository) RecordIfNew(ctx context.Context, clientID, day string) (bool, error) {
	args := m.Called(ctx, clientID, day)
	return args.Bool(0), args.Error(1)
}

func (m *MockDailyUserRepository) CountByDay(ctx context.Context, day string) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDailyUserRepository) CountDistinctClientIDs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDailyUserRepository) Days(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) StoreSession(ctx context.Context, record *domain.SessionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSessionRepository) AggregateDurations(ctx context.Context, filter domain.SessionFilter) (domain.DurationStats, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.DurationStats), args.Error(1)
}

type MockVisitRepository struct {
	mock.Mock
}

func (m *MockVisitRepository) IncrementVisit(ctx context.Context, day string) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

func (m *MockVisitRepository) CountByDay(ctx context.Context, day string) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVisitRepository) Days(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVisitRepository) TotalVisits(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockDailySummaryRepository struct {
	mock.Mock
}

func (m *MockDailySummaryRepository) RecentSummaries(ctx context.Context, limit int) ([]*domain.DailySummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DailySummary), args.Error(1)
}

// --- Tests ---

func TestStatusSnapshot_CombinesMemoryAndStore(t *testing.T) {
	presenceStub := &stubPresence{active: 5, distinct: 3}
	daily := new(MockDailyUserRepository)
	daily.On("CountByDay", mock.Anything, mock.AnythingOfType("string")).Return(int64(12), nil)
	daily.On("CountDistinctClientIDs", mock.Anything).Return(int64(240), nil)

	svc := NewStatsService(presenceStub, daily, nil, nil, nil, nil, time.UTC)
	snapshot := svc.StatusSnapshot(context.Background())

	assert.Equal(t, 5, snapshot.ActiveConnections)
	assert.Equal(t, 3, snapshot.DistinctActiveClientIDs)
	assert.Equal(t, int64(12), snapshot.DailyUniqueToday)
	assert.Equal(t, int64(240), snapshot.TotalEverUsers)
	daily.AssertExpectations(t)
}

func TestStatusSnapshot_StoreErrorsDegradeToZero(t *testing.T) {
	presenceStub := &stubPresence{active: 2, distinct: 1}
	daily := new(MockDailyUserRepository)
	daily.On("CountByDay", mock.Anything, mock.Anything).Return(int64(0), errors.New("down"))
	daily.On("CountDistinctClientIDs", mock.Anything).Return(int64(0), errors.New("down"))

	svc := NewStatsService(presenceStub, daily, nil, nil, nil, nil, time.UTC)
	snapshot := svc.StatusSnapshot(context.Background())

	// Live counts survive, persisted counts read as zero.
	assert.Equal(t, 2, snapshot.ActiveConnections)
	assert.Equal(t, int64(0), snapshot.DailyUniqueToday)
	assert.Equal(t, int64(0), snapshot.TotalEverUsers)
}

func TestStatusSnapshot_NoStoreAtAll(t *testing.T) {
	svc := NewStatsService(&stubPresence{active: 1}, nil, nil, nil, nil, nil, time.UTC)
	snapshot := svc.StatusSnapshot(context.Background())
	assert.Equal(t, 1, snapshot.ActiveConnections)
	assert.Equal(t, int64(0), snapshot.DailyUniqueToday)
}

func TestAverageSessionDuration_ScopesAndFilters(t *testing.T) {
	sessions := new(MockSessionRepository)
	sessions.On("AggregateDurations", mock.Anything, mock.MatchedBy(func(f domain.SessionFilter) bool {
		return f.Scope == domain.SessionScopeToday && f.ClientID == "idA" && f.Day != ""
	})).Return(domain.DurationStats{AverageMs: 1500, TotalMs: 3000, Count: 2}, nil)

	svc := NewStatsService(&stubPresence{}, nil, sessions, nil, nil, nil, time.UTC)
	stats, err := svc.AverageSessionDuration(context.Background(), domain.SessionScopeToday, "idA")

	require.NoError(t, err)
	assert.Equal(t, float64(1500), stats.AverageMs)
	assert.Equal(t, int64(3000), stats.TotalMs)
	assert.Equal(t, int64(2), stats.Count)
	sessions.AssertExpectations(t)
}

func TestAverageSessionDuration_UnavailableStore(t *testing.T) {
	svc := NewStatsService(&stubPresence{}, nil, nil, nil, nil, nil, time.UTC)
	stats, err := svc.AverageSessionDuration(context.Background(), domain.SessionScopeAll, "")

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, domain.DurationStats{}, stats)
}

func TestDailyStats_FastPathFromSummaries(t *testing.T) {
	summaries := new(MockDailySummaryRepository)
	summaries.On("RecentSummaries", mock.Anything, 2).Return([]*domain.DailySummary{
		{Day: "2025-06-02", UniqueCount: 7},
		{Day: "2025-06-01", UniqueCount: 4},
	}, nil)
	visits := new(MockVisitRepository)
	visits.On("CountByDay", mock.Anything, "2025-06-02").Return(int64(31), nil)
	visits.On("CountByDay", mock.Anything, "2025-06-01").Return(int64(18), nil)

	daily := new(MockDailyUserRepository)

	svc := NewStatsService(&stubPresence{}, daily, nil, visits, summaries, nil, time.UTC)
	stats, err := svc.DailyStats(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, domain.DailyStat{Day: "2025-06-02", UniqueCount: 7, VisitCount: 31}, stats[0])
	assert.Equal(t, domain.DailyStat{Day: "2025-06-01", UniqueCount: 4, VisitCount: 18}, stats[1])
	// The fallback scan must not run when summaries exist.
	daily.AssertNotCalled(t, "Days", mock.Anything)
}

func TestDailyStats_FallbackScanMostRecentFirstBoundedByLimit(t *testing.T) {
	// 35 days of records with limit 30 must return the 30 most recent,
	// most recent first.
	days := make([]string, 0, 35)
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		days = append(days, base.AddDate(0, 0, i).Format(domain.DayLayout))
	}

	daily := new(MockDailyUserRepository)
	daily.On("Days", mock.Anything).Return(days, nil)
	daily.On("CountByDay", mock.Anything, mock.AnythingOfType("string")).Return(int64(1), nil)

	svc := NewStatsService(&stubPresence{}, daily, nil, nil, nil, nil, time.UTC)
	stats, err := svc.DailyStats(context.Background(), 30)

	require.NoError(t, err)
	require.Len(t, stats, 30)
	assert.Equal(t, "2025-06-04", stats[0].Day)  // most recent of the 35
	assert.Equal(t, "2025-05-06", stats[29].Day) // 30th most recent
	for i := 1; i < len(stats); i++ {
		assert.True(t, stats[i-1].Day > stats[i].Day, "days must be sorted most-recent-first")
	}
}

func TestDailyStats_EmptySummariesFallBackToScan(t *testing.T) {
	summaries := new(MockDailySummaryRepository)
	summaries.On("RecentSummaries", mock.Anything, mock.Anything).Return([]*domain.DailySummary{}, nil)

	daily := new(MockDailyUserRepository)
	daily.On("Days", mock.Anything).Return([]string{"2025-06-01"}, nil)
	daily.On("CountByDay", mock.Anything, "2025-06-01").Return(int64(3), nil)

	svc := NewStatsService(&stubPresence{}, daily, nil, nil, summaries, nil, time.UTC)
	stats, err := svc.DailyStats(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(3), stats[0].UniqueCount)
}

func TestDailyStats_UnavailableWithNoStores(t *testing.T) {
	svc := NewStatsService(&stubPresence{}, nil, nil, nil, nil, nil, time.UTC)
	_, err := svc.DailyStats(context.Background(), 30)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDailyStats_DefaultLimit(t *testing.T) {
	daily := new(MockDailyUserRepository)
	daily.On("Days", mock.Anything).Return([]string{"2025-06-01"}, nil)
	daily.On("CountByDay", mock.Anything, "2025-06-01").Return(int64(1), nil)

	svc := NewStatsService(&stubPresence{}, daily, nil, nil, nil, nil, time.UTC)
	stats, err := svc.DailyStats(context.Background(), 0)

	require.NoError(t, err)
	assert.Len(t, stats, 1)
}

func TestToday_UsesReferenceLocation(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	svc := NewStatsService(&stubPresence{}, nil, nil, nil, nil, nil, bangkok)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	}
	assert.Equal(t, "2025-06-02", svc.Today())
}

func TestRecordVisit_NilRepositoryIsNoop(t *testing.T) {
	svc := NewStatsService(&stubPresence{}, nil, nil, nil, nil, nil, time.UTC)
	assert.NotPanics(t, func() { svc.RecordVisit(context.Background()) })
}

func TestRecordVisit_IncrementsToday(t *testing.T) {
	visits := new(MockVisitRepository)
	today := domain.Day(time.Now(), time.UTC)
	visits.On("IncrementVisit", mock.Anything, today).Return(nil)

	svc := NewStatsService(&stubPresence{}, nil, nil, visits, nil, nil, time.UTC)
	svc.RecordVisit(context.Background())
	visits.AssertCalled(t, "IncrementVisit", mock.Anything, today)
}

func TestDailyStats_SummaryLimitMatchesRequest(t *testing.T) {
	summaries := new(MockDailySummaryRepository)
	rows := make([]*domain.DailySummary, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, &domain.DailySummary{
			Day:         fmt.Sprintf("2025-06-%02d", 5-i),
			UniqueCount: int64(i + 1),
		})
	}
	summaries.On("RecentSummaries", mock.Anything, 5).Return(rows, nil)

	svc := NewStatsService(&stubPresence{}, nil, nil, nil, summaries, nil, time.UTC)
	stats, err := svc.DailyStats(context.Background(), 5)

	require.NoError(t, err)
	assert.Len(t, stats, 5)
	summaries.AssertExpectations(t)
}
