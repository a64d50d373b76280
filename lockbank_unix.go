//go:build unix || linux || darwin

// fcntl(2) byte-range locking for the RW lock bank: each of the N locks
// occupies its own region of shared_memory.meta, so a single file hosts
// all N locks (spec.md §4.3) rather than N separate lock files.
package chainbase

import "golang.org/x/sys/unix"

func tryLockRegion(fd int, mode LockMode, start, length int64) error {
	typ := int16(unix.F_RDLCK)
	if mode == LockExclusive {
		typ = unix.F_WRLCK
	}
	lk := unix.Flock_t{
		Type:  typ,
		Start: start,
		Len:   length,
	}
	return unix.FcntlFlock(uintptr(fd), unix.F_SETLK, &lk)
}

func unlockRegion(fd int, start, length int64) error {
	lk := unix.Flock_t{
		Type:  unix.F_UNLCK,
		Start: start,
		Len:   length,
	}
	return unix.FcntlFlock(uintptr(fd), unix.F_SETLK, &lk)
}
