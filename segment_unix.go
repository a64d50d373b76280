//go:build unix || linux || darwin

// mmap(2)/munmap(2)/msync(2) implementation for Unix platforms.
package chainbase

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int64, mode OpenMode) ([]byte, error) {
	prot := unix.PROT_READ
	if mode == ReadWrite {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
}

func unmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

func syncFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}
