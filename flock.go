// Per-process exclusive advisory lock gating write attach (spec.md
// §4.3: "At open time, a per-file exclusive advisory lock is attempted;
// failure fails open with already in use."). Adapted directly from the
// teacher's lock.go/lock_unix.go/lock_windows.go trio: same fileLock
// shape (a mutex guarding the *os.File's lifetime against a concurrent
// flock syscall), generalized with a non-blocking TryLock used once at
// Open instead of a blocking Lock used on every access.
package chainbase

import (
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking, reused
// both by the whole-file process lock here and by the RW lock bank in
// lockbank.go.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// fileLock coordinates OS-level file locks with safe handle teardown.
// mu serializes flock/LockFileEx syscalls against setFile so a
// concurrent Close cannot invalidate the fd mid-syscall.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// TryLock attempts a non-blocking exclusive lock over the whole file.
// Returns the OS error if another handle already holds it; Open reports
// that as ErrAlreadyInUse.
func (l *fileLock) TryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.tryLock()
}

// Unlock releases a lock acquired by TryLock.
func (l *fileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// setFile swaps the underlying file handle. Passing nil drains any
// in-flight syscall (blocks until the mutex is available) and disables
// further locking.
func (l *fileLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}
