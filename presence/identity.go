package presence

import "sync"

// IdentityResolver maps durable client identities to their currently live
// connections. Identities are opaque strings chosen by the remote client; the
// resolver never creates or validates them.
type IdentityResolver struct {
	mu         sync.Mutex
	byIdentity map[string]map[string]struct{} // identity -> set of connIDs
	byConn     map[string]string              // connID -> identity
}

// NewIdentityResolver creates an empty resolver.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{
		byIdentity: make(map[string]map[string]struct{}),
		byConn:     make(map[string]string),
	}
}

// Attach associates connID with identity. A connection belongs to at most
// one identity: attaching an already-attached connection to a different
// identity migrates it atomically, removing it from the old identity's set
// (and dropping the set entirely if it empties) before adding it to the new
// one.
func (ir *IdentityResolver) Attach(connID, identity string) {
	if identity == "" {
		return
	}
	ir.mu.Lock()
	defer ir.mu.Unlock()

	if prev, ok := ir.byConn[connID]; ok {
		if prev == identity {
			return
		}
		ir.removeLocked(connID, prev)
	}

	set, ok := ir.byIdentity[identity]
	if !ok {
		set = make(map[string]struct{})
		ir.byIdentity[identity] = set
	}
	set[connID] = struct{}{}
	ir.byConn[connID] = identity
}

// Detach removes connID from whatever identity it is attached to and returns
// that identity. Returns "" if the connection was never attached.
func (ir *IdentityResolver) Detach(connID string) string {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	identity, ok := ir.byConn[connID]
	if !ok {
		return ""
	}
	ir.removeLocked(connID, identity)
	return identity
}

// Identity returns the identity connID is attached to, or "".
func (ir *IdentityResolver) Identity(connID string) string {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return ir.byConn[connID]
}

// DistinctIdentities returns the number of identities with at least one live
// connection.
func (ir *IdentityResolver) DistinctIdentities() int {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return len(ir.byIdentity)
}

// ActiveCounts returns a copy of identity -> live-connection-count.
func (ir *IdentityResolver) ActiveCounts() map[string]int {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	counts := make(map[string]int, len(ir.byIdentity))
	for identity, set := range ir.byIdentity {
		counts[identity] = len(set)
	}
	return counts
}

// removeLocked removes connID from identity's set, deleting the set when it
// empties. Caller holds ir.mu.
func (ir *IdentityResolver) removeLocked(connID, identity string) {
	if set, ok := ir.byIdentity[identity]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(ir.byIdentity, identity)
		}
	}
	delete(ir.byConn, connID)
}
