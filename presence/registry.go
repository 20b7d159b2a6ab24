package presence

import (
	"sync"
	"time"
)

// Broadcaster receives the new active-connection count after every registry
// mutation that changes it. The websocket hub implements this to fan the
// count out to connected clients.
type Broadcaster interface {
	BroadcastClientCount(count int)
}

// NoopBroadcaster discards counts. Used when no real-time channel is wired,
// e.g. in tests.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastClientCount(int) {}

// ExpiredConn describes a connection removed by a sweep.
type ExpiredConn struct {
	ConnID   string
	LastSeen time.Time
}

// Registry is the in-memory authority for which connections are currently
// alive. A connection identifier appears at most once; absence means not
// live.
type Registry struct {
	mu    sync.Mutex
	conns map[string]time.Time // connID -> last seen
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Connect registers a new live connection and returns the new active count.
func (r *Registry) Connect(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = r.now()
	return len(r.conns)
}

// Heartbeat refreshes the last-seen timestamp for connID. A heartbeat for an
// unknown connection re-inserts it, so a registry that was cleared out from
// under a live client heals itself. Returns the active count and whether the
// count changed.
func (r *Registry) Heartbeat(connID string) (count int, reinserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, known := r.conns[connID]
	r.conns[connID] = r.now()
	return len(r.conns), !known
}

// Disconnect removes connID. No-op if already absent. Returns the active
// count and whether an entry was removed.
func (r *Registry) Disconnect(connID string) (count int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		delete(r.conns, connID)
		removed = true
	}
	return len(r.conns), removed
}

// ActiveCount returns the number of live connections.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// LastSeen returns the last-seen timestamp for connID.
func (r *Registry) LastSeen(connID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.conns[connID]
	return ts, ok
}

// Expire removes every connection whose last-seen timestamp is older than
// timeout and returns the removed entries. Timeout is checked against
// last-seen, never against sweep boundaries, so a connection that
// heartbeated within the window survives even when interval and timeout are
// close. Expire does not broadcast; the sweep emits a single count update
// after all evictions.
func (r *Registry) Expire(timeout time.Duration) []ExpiredConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var expired []ExpiredConn
	for id, lastSeen := range r.conns {
		if now.Sub(lastSeen) > timeout {
			expired = append(expired, ExpiredConn{ConnID: id, LastSeen: lastSeen})
			delete(r.conns, id)
		}
	}
	return expired
}
