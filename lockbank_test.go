package chainbase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockBankCursorRotatesAndIsSharedAcrossHandles(t *testing.T) {
	dir := t.TempDir()

	writer, err := openLockBank(dir, ReadWrite, 4, nil)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := openLockBank(dir, ReadOnly, 4, nil)
	require.NoError(t, err)
	defer reader.Close()

	start := writer.CurrentLock()
	assert.Equal(t, start, reader.CurrentLock(), "a handle that never wrote must see the same cursor")

	for i := 0; i < 3; i++ {
		require.NoError(t, writer.WithWriteLock(context.Background(), time.Second, func() error { return nil }))
	}

	assert.Equal(t, (start+3)%4, writer.CurrentLock())
	assert.Equal(t, writer.CurrentLock(), reader.CurrentLock(),
		"the cursor must be observable identically from a handle that performed no writes itself")
}

func TestLockBankWriteLockDoesNotAdvanceOnFailure(t *testing.T) {
	dir := t.TempDir()
	lb, err := openLockBank(dir, ReadWrite, 4, nil)
	require.NoError(t, err)
	defer lb.Close()

	start := lb.CurrentLock()
	boom := errors.New("boom")
	err = lb.WithWriteLock(context.Background(), time.Second, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, start, lb.CurrentLock(), "a failed write must not advance the cursor")
}

func TestLockBankReadLockDoesNotAdvance(t *testing.T) {
	dir := t.TempDir()
	lb, err := openLockBank(dir, ReadWrite, 4, nil)
	require.NoError(t, err)
	defer lb.Close()

	start := lb.CurrentLock()
	require.NoError(t, lb.WithReadLock(context.Background(), time.Second, func() error { return nil }))
	assert.Equal(t, start, lb.CurrentLock())
}

// Note: acquiring the same byte-range lock twice from two lockBanks
// opened within this same test process cannot exercise a real timeout
// here — fcntl byte-range locks are scoped to (process, inode), so a
// second lock request from the same process on a region it already
// holds is granted rather than blocked. Real contention needs separate
// OS processes; no test in this package exercises it.
