package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/chainbase"
)

func TestShellCreateGetFindRemoveDatabase(t *testing.T) {
	sh := NewShell(nil)

	db, err := sh.CreateDatabase("test")
	require.NoError(t, err)
	assert.Equal(t, "test", db.Name)

	_, err = sh.CreateDatabase("test")
	assert.ErrorIs(t, err, chainbase.ErrExists)

	got, err := sh.GetDatabase("test")
	require.NoError(t, err)
	assert.Same(t, db, got)

	assert.Nil(t, sh.FindDatabase("missing"))
	_, err = sh.GetDatabase("missing")
	assert.ErrorIs(t, err, chainbase.ErrNotFound)

	require.NoError(t, sh.RemoveDatabase("test"))
	assert.Nil(t, sh.FindDatabase("test"))
}

func TestDatabaseAddTableAndRecordLookups(t *testing.T) {
	sh := NewShell(nil)
	db, err := sh.CreateDatabase("test")
	require.NoError(t, err)

	tbl, err := db.AddTable("balances", CompareUnsigned, CompareString, 0)
	require.NoError(t, err)
	assert.Equal(t, "balances", tbl.Name)

	_, err = db.AddTable("balances", CompareUnsigned, CompareString, 0)
	assert.ErrorIs(t, err, chainbase.ErrExists)

	primary := KeyFromUint64(42)
	secondary := KeyFromString("alice")
	rec, err := tbl.Index.Create(primary, secondary, []byte("hello"))
	require.NoError(t, err)

	byID, err := tbl.Index.GetByID(rec.ID())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), byID.Value)

	byPrimary, err := tbl.Index.GetByPrimary(primary)
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), byPrimary.ID())

	bySecondary, err := tbl.Index.GetBySecondary(secondary)
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), bySecondary.ID())

	_, err = tbl.Index.GetByPrimary(KeyFromUint64(999))
	assert.ErrorIs(t, err, chainbase.ErrOutOfRange)
}

func TestDatabaseUndoSessionSpansMultipleTables(t *testing.T) {
	sh := NewShell(nil)
	db, err := sh.CreateDatabase("bank")
	require.NoError(t, err)

	balances, err := db.AddTable("balances", CompareUnsigned, CompareUnsigned, 0)
	require.NoError(t, err)
	ledger, err := db.AddTable("ledger", CompareUnsigned, CompareUnsigned, 0)
	require.NoError(t, err)

	sess := db.StartUndoSession(true)
	_, err = balances.Index.Create(KeyFromUint64(1), KeyFromUint64(0), nil)
	require.NoError(t, err)
	_, err = ledger.Index.Create(KeyFromUint64(1), KeyFromUint64(0), nil)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	assert.Equal(t, 0, balances.Index.Len(), "undo must revert every table sharing the session")
	assert.Equal(t, 0, ledger.Index.Len())
}

func TestShellModifyRollsBackTableAddOnError(t *testing.T) {
	sh := NewShell(nil)
	db, err := sh.CreateDatabase("test")
	require.NoError(t, err)

	boomErr := assert.AnError
	err = sh.Modify(db, func(db *Database) error {
		if _, err := db.AddTable("temp", CompareUnsigned, CompareUnsigned, 0); err != nil {
			return err
		}
		return boomErr
	})
	assert.ErrorIs(t, err, boomErr)
	assert.Nil(t, db.FindTable("temp"), "a failed mutator's table add must be rolled back")
}

func TestDynamicIndexFixedComparisonMode(t *testing.T) {
	idx, err := NewIndex("signed", CompareSigned, CompareMemory, 0)
	require.NoError(t, err)
	neg, err := idx.Create(KeyFromInt64(-5), KeyFromBytes([]byte("x")), nil)
	require.NoError(t, err)
	pos, err := idx.Create(KeyFromInt64(5), KeyFromBytes([]byte("y")), nil)
	require.NoError(t, err)

	found := idx.FindByPrimary(KeyFromInt64(-5))
	require.NotNil(t, found)
	assert.Equal(t, neg.ID(), found.ID())

	found = idx.FindByPrimary(KeyFromInt64(5))
	require.NotNil(t, found)
	assert.Equal(t, pos.ID(), found.ID())
}

func TestShellOpenPersistsTableAcrossReattach(t *testing.T) {
	dir := t.TempDir()

	sh := NewShell(nil)
	require.NoError(t, sh.Open(dir, chainbase.ReadWrite, chainbase.Config{}))

	db, err := sh.CreateDatabase("bank")
	require.NoError(t, err)
	tbl, err := db.AddTable("balances", CompareUnsigned, CompareString, 0)
	require.NoError(t, err)

	primary := KeyFromUint64(7)
	secondary := KeyFromString("alice")
	rec, err := tbl.Index.Create(primary, secondary, []byte("hello"))
	require.NoError(t, err)
	wantID := rec.ID()

	require.NoError(t, sh.Close())

	sh2 := NewShell(nil)
	require.NoError(t, sh2.Open(dir, chainbase.ReadWrite, chainbase.Config{}))
	defer sh2.Close()

	db2, err := sh2.CreateDatabase("bank")
	require.NoError(t, err)
	tbl2, err := db2.AddTable("balances", CompareUnsigned, CompareString, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, tbl2.Index.Len(), "table contents must survive a Shell close/reopen")

	byID, err := tbl2.Index.GetByID(wantID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), byID.Value)

	byPrimary, err := tbl2.Index.GetByPrimary(primary)
	require.NoError(t, err)
	assert.Equal(t, wantID, byPrimary.ID())

	bySecondary, err := tbl2.Index.GetBySecondary(secondary)
	require.NoError(t, err)
	assert.Equal(t, wantID, bySecondary.ID())
}
