//go:build windows

// LockFileEx/UnlockFileEx byte-range locking for the RW lock bank.
// Unlike Unix flock(2), Windows' own whole-file lock primitive already
// supports an offset and length, so this reuses the same API the
// process-wide lock in flock_windows.go uses, just with a non-zero
// offset per lock region and always the FAIL_IMMEDIATELY flag, so each
// attempt is non-blocking (the bank's acquire loop in lockbank.go
// supplies its own retry/timeout).
package chainbase

import "golang.org/x/sys/windows"

func tryLockRegion(handle int, mode LockMode, start, length int64) error {
	var flags uint32 = windows.LOCKFILE_FAIL_IMMEDIATELY
	if mode == LockExclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	var ol windows.Overlapped
	ol.Offset = uint32(start)
	ol.OffsetHigh = uint32(start >> 32)
	return windows.LockFileEx(windows.Handle(handle), flags, 0, uint32(length), uint32(length>>32), &ol)
}

func unlockRegion(handle int, start, length int64) error {
	var ol windows.Overlapped
	ol.Offset = uint32(start)
	ol.OffsetHigh = uint32(start >> 32)
	return windows.UnlockFileEx(windows.Handle(handle), 0, uint32(length), uint32(length>>32), &ol)
}
