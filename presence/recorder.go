package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/domain"
	"go.pilab.hu/presence/internal/metrics"
)

const persistTimeout = 5 * time.Second

// SessionRecorder tracks session start times per connection and writes one
// session record at session end. Persistence is fire-and-forget: teardown of
// the in-memory entry never waits on the store, and store failures are
// logged and swallowed.
type SessionRecorder struct {
	mu       sync.Mutex
	starts   map[string]time.Time
	sessions domain.SessionRepository // nil when no store is configured
	now      func() time.Time
}

// NewSessionRecorder creates a recorder backed by sessions. A nil repository
// degrades every finalize to in-memory cleanup only.
func NewSessionRecorder(sessions domain.SessionRepository) *SessionRecorder {
	return &SessionRecorder{
		starts:   make(map[string]time.Time),
		sessions: sessions,
		now:      time.Now,
	}
}

// StartSession records the session start for connID. A connection has
// exactly one session, so an existing start is never overwritten.
func (sr *SessionRecorder) StartSession(connID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if _, ok := sr.starts[connID]; !ok {
		sr.starts[connID] = sr.now()
	}
}

// FinalizeSession closes the session for connID and persists a record. When
// no start was recorded, fallbackStart is used so a duration can still be
// derived. Duration is clamped to zero against clock skew. The start-time
// entry is removed whether or not persistence succeeds, so a failing store
// cannot grow the start table without bound.
func (sr *SessionRecorder) FinalizeSession(connID, clientID string, endAt, fallbackStart time.Time) {
	sr.mu.Lock()
	startAt, ok := sr.starts[connID]
	delete(sr.starts, connID)
	sr.mu.Unlock()
	if !ok {
		startAt = fallbackStart
	}

	durationMs := endAt.Sub(startAt).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	if sr.sessions == nil {
		return
	}

	record := &domain.SessionRecord{
		ClientID:   clientID,
		ConnID:     connID,
		StartAt:    startAt.UTC(),
		EndAt:      endAt.UTC(),
		DurationMs: durationMs,
		CreatedAt:  sr.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := sr.sessions.StoreSession(ctx, record); err != nil {
			log.Warn().Err(err).
				Str("conn_id", connID).
				Str("client_id", clientID).
				Msg("Failed to persist session record")
			return
		}
		metrics.SessionsRecordedTotal.Inc()
	}()
}

// PendingSessions returns the number of connections with an open session
// start.
func (sr *SessionRecorder) PendingSessions() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.starts)
}
