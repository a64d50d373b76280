package chainbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Base
	Name  string
	Price int
}

func newWidgetIndex() *Index[widget, *widget] {
	return NewIndex[widget, *widget]("widgets", 1, defaultSnapshotThreshold)
}

func TestIndexCreateAssignsSequentialIDs(t *testing.T) {
	ix := newWidgetIndex()
	a, err := ix.Create(func(w *widget) { w.Name = "a" })
	require.NoError(t, err)
	b, err := ix.Create(func(w *widget) { w.Name = "b" })
	require.NoError(t, err)

	assert.Equal(t, uint64(0), a.ID())
	assert.Equal(t, uint64(1), b.ID())
	assert.Equal(t, 2, ix.Len())
}

func TestIndexGetFind(t *testing.T) {
	ix := newWidgetIndex()
	w, err := ix.Create(func(w *widget) { w.Name = "gizmo" })
	require.NoError(t, err)

	got, err := ix.Get(w.ID())
	require.NoError(t, err)
	assert.Same(t, w, got)

	assert.Nil(t, ix.Find(999))
	_, err = ix.Get(999)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestIndexUniqueSecondaryRejectsDuplicate(t *testing.T) {
	ix := newWidgetIndex()
	AddSecondary(ix, "widgets.by_name", true,
		func(w *widget) string { return w.Name }, CompareString)

	_, err := ix.Create(func(w *widget) { w.Name = "dup" })
	require.NoError(t, err)

	_, err = ix.Create(func(w *widget) { w.Name = "dup" })
	assert.ErrorIs(t, err, ErrUniqueness)
	assert.Equal(t, 1, ix.Len(), "failed create must not leave a partial object behind")
}

func TestIndexModifyRekeysSecondary(t *testing.T) {
	ix := newWidgetIndex()
	byName := AddSecondary(ix, "widgets.by_name", true,
		func(w *widget) string { return w.Name }, CompareString)

	w, err := ix.Create(func(w *widget) { w.Name = "old" })
	require.NoError(t, err)

	err = ix.Modify(w, func(w *widget) { w.Name = "new" })
	require.NoError(t, err)

	_, ok := GetUnique(byName, "old")
	assert.False(t, ok, "old key must no longer resolve after rekey")
	id, ok := GetUnique(byName, "new")
	assert.True(t, ok)
	assert.Equal(t, w.ID(), id)
}

func TestIndexModifyUniquenessFailureRemovesObject(t *testing.T) {
	ix := newWidgetIndex()
	AddSecondary(ix, "widgets.by_name", true,
		func(w *widget) string { return w.Name }, CompareString)

	_, err := ix.Create(func(w *widget) { w.Name = "taken" })
	require.NoError(t, err)
	w2, err := ix.Create(func(w *widget) { w.Name = "free" })
	require.NoError(t, err)

	err = ix.Modify(w2, func(w *widget) { w.Name = "taken" })
	assert.ErrorIs(t, err, ErrUniqueness)

	assert.Equal(t, 1, ix.Len(), "rekey failure must remove the object rather than leave it inconsistent")
	_, getErr := ix.Get(w2.ID())
	assert.ErrorIs(t, getErr, ErrOutOfRange)
}

func TestIndexRemove(t *testing.T) {
	ix := newWidgetIndex()
	byName := AddSecondary(ix, "widgets.by_name", true,
		func(w *widget) string { return w.Name }, CompareString)

	w, err := ix.Create(func(w *widget) { w.Name = "gone" })
	require.NoError(t, err)

	require.NoError(t, ix.Remove(w))
	assert.Equal(t, 0, ix.Len())
	_, ok := GetUnique(byName, "gone")
	assert.False(t, ok)
}

func TestIndexNonUniqueSecondaryRange(t *testing.T) {
	ix := newWidgetIndex()
	byPrice := AddSecondary(ix, "widgets.by_price", false,
		func(w *widget) int { return w.Price },
		func(a, b int) int { return a - b })

	_, err := ix.Create(func(w *widget) { w.Price = 5 })
	require.NoError(t, err)
	_, err = ix.Create(func(w *widget) { w.Price = 5 })
	require.NoError(t, err)
	_, err = ix.Create(func(w *widget) { w.Price = 9 })
	require.NoError(t, err)

	ids := Range(byPrice, 5)
	assert.ElementsMatch(t, []uint64{0, 1}, ids)
	assert.Equal(t, []uint64{2}, Range(byPrice, 9))
	assert.Empty(t, Range(byPrice, 42))
}
