package presence

import (
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/domain"
	"go.pilab.hu/presence/internal/metrics"
)

// Tracker is the presence-tracking authority: it owns the registry, the
// identity resolver, the session recorder and the daily-uniqueness tracker,
// and translates connection events into mutations of them. One Tracker is
// created at startup and shared by the websocket layer and the heartbeat
// monitor; all in-memory authority (active count, distinct identities) is
// computed from it, never from the store.
type Tracker struct {
	registry    *Registry
	identities  *IdentityResolver
	recorder    *SessionRecorder
	uniques     *UniquenessTracker
	broadcaster Broadcaster
	now         func() time.Time
}

// NewTracker wires a Tracker. Repositories may be nil, in which case the
// corresponding persistence degrades to a no-op. A nil broadcaster discards
// count updates.
func NewTracker(
	sessions domain.SessionRepository,
	dailyUsers domain.DailyUserRepository,
	broadcaster Broadcaster,
	loc *time.Location,
) *Tracker {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &Tracker{
		registry:    NewRegistry(),
		identities:  NewIdentityResolver(),
		recorder:    NewSessionRecorder(sessions),
		uniques:     NewUniquenessTracker(dailyUsers, loc),
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// HandleConnect registers a new connection, starts its session and
// broadcasts the new active count.
func (t *Tracker) HandleConnect(connID string) {
	t.recorder.StartSession(connID)
	count := t.registry.Connect(connID)
	metrics.ConnectionsOpenedTotal.Inc()
	log.Debug().Str("conn_id", connID).Int("active", count).Msg("Connection opened")
	t.emit(count)
}

// HandleHeartbeat refreshes liveness for connID. When the heartbeat carries
// an identity it is attached to the connection and recorded as a daily
// unique; an empty identity leaves the connection tracked without one. A
// heartbeat from an unknown connection re-registers it, which changes the
// active count and triggers a broadcast.
func (t *Tracker) HandleHeartbeat(connID, identity string) {
	count, reinserted := t.registry.Heartbeat(connID)
	if identity != "" {
		t.identities.Attach(connID, identity)
		t.uniques.RecordIfNew(identity)
	}
	if reinserted {
		t.recorder.StartSession(connID)
		t.emit(count)
	}
}

// HandleDisconnect tears down a connection: removes it from the registry,
// detaches its identity, finalizes its session and broadcasts the new
// count. Safe to call for unknown connections.
func (t *Tracker) HandleDisconnect(connID string) {
	count, removed := t.registry.Disconnect(connID)
	identity := t.identities.Detach(connID)
	now := t.now()
	t.recorder.FinalizeSession(connID, identity, now, now)
	if removed {
		metrics.ConnectionsClosedTotal.Inc()
		log.Debug().Str("conn_id", connID).Int("active", count).Msg("Connection closed")
		t.emit(count)
	}
}

// SweepExpired evicts every connection whose last heartbeat is older than
// timeout, treating each as an implicit disconnect. Sessions are finalized
// with the last-seen timestamp as the start fallback (or now−timeout when
// even that is unknown, so durations stay non-negative). Exactly one count
// broadcast follows a sweep that evicted at least one connection. Returns
// the number of evictions.
func (t *Tracker) SweepExpired(timeout time.Duration) int {
	expired := t.registry.Expire(timeout)
	if len(expired) == 0 {
		return 0
	}
	now := t.now()
	for _, conn := range expired {
		identity := t.identities.Detach(conn.ConnID)
		fallback := conn.LastSeen
		if fallback.IsZero() {
			fallback = now.Add(-timeout)
		}
		t.recorder.FinalizeSession(conn.ConnID, identity, now, fallback)
		metrics.EvictionsTotal.Inc()
		log.Debug().Str("conn_id", conn.ConnID).Str("client_id", identity).
			Msg("Evicted timed-out connection")
	}
	count := t.registry.ActiveCount()
	log.Info().Int("evicted", len(expired)).Int("active", count).
		Msg("Heartbeat sweep removed stale connections")
	t.emit(count)
	return len(expired)
}

// RecordDailyUser records identity as seen today without touching the
// registry. Used by the HTTP surface when a stats request carries a client
// identifier.
func (t *Tracker) RecordDailyUser(identity string) {
	t.uniques.RecordIfNew(identity)
}

// ActiveConnections returns the current registry size.
func (t *Tracker) ActiveConnections() int {
	return t.registry.ActiveCount()
}

// DistinctActiveIdentities returns the number of identities with at least
// one live connection.
func (t *Tracker) DistinctActiveIdentities() int {
	return t.identities.DistinctIdentities()
}

// PerIdentityActiveCounts returns identity -> live-connection-count.
func (t *Tracker) PerIdentityActiveCounts() map[string]int {
	return t.identities.ActiveCounts()
}

func (t *Tracker) emit(count int) {
	metrics.ActiveConnectionsGauge.Set(float64(count))
	t.broadcaster.BroadcastClientCount(count)
}
