package chainbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testDatabase builds a Database with no backing segment, enough for
// exercising the undo-session protocol across AddIndex'd participants
// without touching the filesystem.
func testDatabase() *Database {
	return &Database{
		mode:       ReadWrite,
		registered: make(map[TypeTag]string),
		log:        zap.NewNop(),
	}
}

func TestSessionCloseWithoutPushUndoesEverything(t *testing.T) {
	db := testDatabase()
	ix, err := AddIndex[widget, *widget](db, "widgets", 1)
	require.NoError(t, err)

	sess := db.StartUndoSession(true)
	_, err = ix.Create(func(w *widget) { w.Name = "scratch" })
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	assert.Equal(t, 0, ix.Len())
}

func TestSessionPushKeepsMutation(t *testing.T) {
	db := testDatabase()
	ix, err := AddIndex[widget, *widget](db, "widgets", 1)
	require.NoError(t, err)

	sess := db.StartUndoSession(true)
	_, err = ix.Create(func(w *widget) { w.Name = "kept" })
	require.NoError(t, err)
	sess.Push()

	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 0, db.Depth())
}

func TestSessionNestedPushSquashesIntoParent(t *testing.T) {
	db := testDatabase()
	ix, err := AddIndex[widget, *widget](db, "widgets", 1)
	require.NoError(t, err)

	outer := db.StartUndoSession(true)
	w, err := ix.Create(func(w *widget) { w.Name = "outer" })
	require.NoError(t, err)

	inner := db.StartUndoSession(true)
	require.NoError(t, ix.Modify(w, func(w *widget) { w.Name = "inner" }))
	inner.Push()

	assert.Equal(t, 1, db.Depth(), "pushing the inner session must squash into the outer frame")

	require.NoError(t, outer.Close())
	assert.Equal(t, 0, ix.Len(), "closing the outer frame without push must undo the squashed-in change too")
}

func TestSessionDisabledIsNoOp(t *testing.T) {
	db := testDatabase()
	ix, err := AddIndex[widget, *widget](db, "widgets", 1)
	require.NoError(t, err)

	sess := db.StartUndoSession(false)
	_, err = ix.Create(func(w *widget) { w.Name = "untracked" })
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	assert.Equal(t, 1, ix.Len(), "a disabled session must never undo")
}
