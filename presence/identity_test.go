package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityResolver_AttachDetach(t *testing.T) {
	ir := NewIdentityResolver()

	ir.Attach("c1", "idA")
	ir.Attach("c2", "idA")
	ir.Attach("c3", "idB")

	assert.Equal(t, 2, ir.DistinctIdentities())
	assert.Equal(t, map[string]int{"idA": 2, "idB": 1}, ir.ActiveCounts())

	assert.Equal(t, "idA", ir.Detach("c1"))
	assert.Equal(t, map[string]int{"idA": 1, "idB": 1}, ir.ActiveCounts())

	// Detaching the last connection removes the identity entirely.
	assert.Equal(t, "idA", ir.Detach("c2"))
	counts := ir.ActiveCounts()
	_, present := counts["idA"]
	assert.False(t, present)
	assert.Equal(t, 1, ir.DistinctIdentities())
}

func TestIdentityResolver_DetachUnknownIsNoop(t *testing.T) {
	ir := NewIdentityResolver()
	assert.Equal(t, "", ir.Detach("never-attached"))
	assert.Equal(t, 0, ir.DistinctIdentities())
}

func TestIdentityResolver_AttachIsIdempotent(t *testing.T) {
	ir := NewIdentityResolver()
	ir.Attach("c1", "idA")
	ir.Attach("c1", "idA")
	ir.Attach("c1", "idA")

	assert.Equal(t, map[string]int{"idA": 1}, ir.ActiveCounts())
}

func TestIdentityResolver_ReattachMigratesIdentity(t *testing.T) {
	ir := NewIdentityResolver()
	ir.Attach("c1", "idA")
	ir.Attach("c1", "idB")

	// The connection belongs to exactly one identity, and the old
	// identity's emptied set is gone.
	assert.Equal(t, "idB", ir.Identity("c1"))
	assert.Equal(t, map[string]int{"idB": 1}, ir.ActiveCounts())
	assert.Equal(t, 1, ir.DistinctIdentities())
}

func TestIdentityResolver_EmptyIdentityIgnored(t *testing.T) {
	ir := NewIdentityResolver()
	ir.Attach("c1", "")
	assert.Equal(t, 0, ir.DistinctIdentities())
	assert.Equal(t, "", ir.Identity("c1"))
}
