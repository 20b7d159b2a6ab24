package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/domain"
	"go.pilab.hu/presence/internal/metrics"
)

// UniquenessTracker records a best-effort "first time this identity was seen
// today" fact. The calendar day is derived in a fixed reference location so
// day boundaries do not drift with the server-local timezone. Concurrent
// calls for the same (identity, day) pair are resolved by the store's unique
// index, never by application-level locking.
type UniquenessTracker struct {
	dailyUsers domain.DailyUserRepository // nil when no store is configured
	loc        *time.Location
	now        func() time.Time
}

// NewUniquenessTracker creates a tracker. A nil repository makes RecordIfNew
// a no-op; a nil location falls back to UTC.
func NewUniquenessTracker(dailyUsers domain.DailyUserRepository, loc *time.Location) *UniquenessTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &UniquenessTracker{
		dailyUsers: dailyUsers,
		loc:        loc,
		now:        time.Now,
	}
}

// RecordIfNew persists the (identity, today) fact unless it already exists.
// Empty identities are ignored. The write happens in the background; all
// failures, including the expected duplicate-key race, are logged and
// swallowed so identity recording can never affect connection handling.
func (ut *UniquenessTracker) RecordIfNew(identity string) {
	if identity == "" || ut.dailyUsers == nil {
		return
	}
	day := domain.Day(ut.now(), ut.loc)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		inserted, err := ut.dailyUsers.RecordIfNew(ctx, identity, day)
		if err != nil {
			log.Warn().Err(err).Str("client_id", identity).Str("day", day).
				Msg("Failed to record daily user")
			return
		}
		if inserted {
			metrics.DailyUsersInsertsTotal.Inc()
			log.Debug().Str("client_id", identity).Str("day", day).
				Msg("Recorded daily user")
		}
	}()
}
