package chainbase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locked.bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFileLockExcludesSecondHandle(t *testing.T) {
	f := openTestFile(t)

	a := &fileLock{}
	a.setFile(f)
	require.NoError(t, a.TryLock())

	f2, err := os.OpenFile(f.Name(), os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f2.Close()

	b := &fileLock{}
	b.setFile(f2)
	assert.Error(t, b.TryLock(), "a second handle must not acquire an already-held exclusive lock")

	require.NoError(t, a.Unlock())
	assert.NoError(t, b.TryLock(), "releasing the first lock must let the second handle acquire it")
}

func TestFileLockNilFileIsNoOp(t *testing.T) {
	l := &fileLock{}
	assert.NoError(t, l.TryLock())
	assert.NoError(t, l.Unlock())
}
