package chainbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gadget is a second object type, separate from widget in index_test.go,
// used here to exercise the undo stack directly through Index rather
// than recreating undoStack's private plumbing by hand.
type gadget struct {
	Base
	Tag string
}

func newGadgetIndex() *Index[gadget, *gadget] {
	return NewIndex[gadget, *gadget]("gadgets", 2, defaultSnapshotThreshold)
}

func TestUndoRevertsCreate(t *testing.T) {
	ix := newGadgetIndex()
	ix.StartUndo(1)

	g, err := ix.Create(func(g *gadget) { g.Tag = "fresh" })
	require.NoError(t, err)
	require.Equal(t, 1, ix.Len())

	require.NoError(t, ix.UndoTop())
	assert.Equal(t, 0, ix.Len())
	_, err = ix.Get(g.ID())
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestUndoRevertsModify(t *testing.T) {
	ix := newGadgetIndex()
	g, err := ix.Create(func(g *gadget) { g.Tag = "before" })
	require.NoError(t, err)

	ix.StartUndo(1)
	require.NoError(t, ix.Modify(g, func(g *gadget) { g.Tag = "after" }))
	assert.Equal(t, "after", g.Tag)

	require.NoError(t, ix.UndoTop())
	restored, err := ix.Get(g.ID())
	require.NoError(t, err)
	assert.Equal(t, "before", restored.Tag)
}

func TestUndoRevertsRemove(t *testing.T) {
	ix := newGadgetIndex()
	g, err := ix.Create(func(g *gadget) { g.Tag = "keepme" })
	require.NoError(t, err)

	ix.StartUndo(1)
	require.NoError(t, ix.Remove(g))
	assert.Equal(t, 0, ix.Len())

	require.NoError(t, ix.UndoTop())
	restored, err := ix.Get(g.ID())
	require.NoError(t, err)
	assert.Equal(t, "keepme", restored.Tag)
}

func TestUndoNextIDRollsBack(t *testing.T) {
	ix := newGadgetIndex()
	ix.StartUndo(1)
	_, err := ix.Create(func(g *gadget) {})
	require.NoError(t, err)
	require.NoError(t, ix.UndoTop())

	g, err := ix.Create(func(g *gadget) {})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g.ID(), "id allocated before the undo must be reusable afterward")
}

func TestSquashMergesIntoParent(t *testing.T) {
	ix := newGadgetIndex()
	ix.StartUndo(1)
	g, err := ix.Create(func(g *gadget) { g.Tag = "outer" })
	require.NoError(t, err)

	ix.StartUndo(2)
	require.NoError(t, ix.Modify(g, func(g *gadget) { g.Tag = "inner" }))
	ix.SquashTop()

	assert.Equal(t, 1, ix.UndoDepth(), "squash must discard the inner frame")
	require.NoError(t, ix.UndoTop())
	assert.Equal(t, 0, ix.Len(), "undoing the merged outer frame must also undo the create")
}

func TestSquashKeepsOuterModifyWhenInnerRemoves(t *testing.T) {
	ix := newGadgetIndex()
	g, err := ix.Create(func(g *gadget) { g.Tag = "original" })
	require.NoError(t, err)

	ix.StartUndo(1)
	require.NoError(t, ix.Modify(g, func(g *gadget) { g.Tag = "modified" }))

	ix.StartUndo(2)
	require.NoError(t, ix.Remove(g))
	ix.SquashTop()

	assert.Equal(t, 1, ix.UndoDepth(), "squash must discard the inner frame")
	require.NoError(t, ix.UndoTop())

	restored, err := ix.Get(g.ID())
	require.NoError(t, err)
	assert.Equal(t, "original", restored.Tag, "squash must keep the outer frame's pre-modify snapshot, not replay the inner remove's own snapshot")
}

func TestCommitDiscardsUpToRevision(t *testing.T) {
	ix := newGadgetIndex()
	ix.StartUndo(1)
	_, err := ix.Create(func(g *gadget) { g.Tag = "rev1" })
	require.NoError(t, err)
	ix.CommitUpTo(1)

	assert.Equal(t, 0, ix.UndoDepth())
	assert.Equal(t, 1, ix.Len(), "committed creates must survive")
}

func TestUndoStackCreateThenRemoveSameSessionDropsNewID(t *testing.T) {
	ix := newGadgetIndex()
	ix.StartUndo(1)
	g, err := ix.Create(func(g *gadget) { g.Tag = "ephemeral" })
	require.NoError(t, err)
	require.NoError(t, ix.Remove(g))

	// Nothing should be left to restore: the object never existed before
	// this session, so removing it inside the same session just cancels
	// the create.
	require.NoError(t, ix.UndoTop())
	assert.Equal(t, 0, ix.Len())
}
