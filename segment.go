// Mapped segment manager: owns the backing file(s), grows them on
// request, and exposes an allocator scoped to the mapped region.
//
// Per directory, two files are kept: shared_memory.bin (the primary
// segment, memory-mapped and read/written directly) and
// shared_memory.meta (the lock bank, kept in a separate mapping so a
// crash mid-write to the primary segment cannot corrupt lock state).
package chainbase

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenMode selects read-only or read-write attach.
type OpenMode int

const (
	// ReadOnly requires both files and all registered indices to already
	// exist; it never grows, creates or locks exclusively.
	ReadOnly OpenMode = iota
	// ReadWrite creates missing files, creates missing indices, and
	// takes the exclusive per-file lock.
	ReadWrite
)

const (
	binFileName  = "shared_memory.bin"
	metaFileName = "shared_memory.meta"
)

// DefaultLockCount is CHAINBASE_NUM_RW_LOCKS: the size of the RW lock
// bank kept in the meta mapping.
const DefaultLockCount = 10

// metaFileSize is sized for the lock bank struct with headroom for
// future lock-bank fields, per spec.md §6.
const metaFileSize = 4096

// segment owns one memory-mapped file and the allocator scoped to it.
// Pointers into the segment are never raw Go pointers; see slab.go's Ref.
type segment struct {
	path string
	file *os.File
	data []byte // the live mapping; grows by remapping in Grow
	size int64
}

// openSegmentFile opens (creating if needed and permitted) and maps name
// to at least size bytes. A size of 0 with mode ReadWrite means "use the
// existing file size, or fail if it doesn't exist".
func openSegmentFile(dir, name string, mode OpenMode, size int64) (*segment, error) {
	path := filepath.Join(dir, name)

	if _, err := os.Stat(dir); err != nil {
		if mode != ReadWrite {
			return nil, fmt.Errorf("open %s: %w", dir, ErrNotFound)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open %s: %w", dir, err)
		}
	}

	flags := os.O_RDONLY
	if mode == ReadWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	current := info.Size()

	target := current
	if mode == ReadWrite && size > current {
		target = size
	}
	if target == 0 {
		// Fresh file with no requested size: nothing sensible to map.
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, ErrGrowFailed)
	}
	if target != current {
		if mode != ReadWrite {
			f.Close()
			return nil, fmt.Errorf("grow %s: %w", path, ErrNotWritable)
		}
		if err := f.Truncate(target); err != nil {
			f.Close()
			return nil, fmt.Errorf("grow %s: %w", path, ErrGrowFailed)
		}
	}

	data, err := mapFile(f, target, mode)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, ErrGrowFailed)
	}

	return &segment{path: path, file: f, data: data, size: target}, nil
}

// Grow extends the segment to newSize, which must be strictly larger
// than the current size; shrinking is never supported (spec.md §4.2).
func (s *segment) Grow(newSize int64) error {
	if newSize <= s.size {
		return ErrShrinkNotSupported
	}
	if err := unmapFile(s.data); err != nil {
		return fmt.Errorf("grow %s: %w", s.path, ErrGrowFailed)
	}
	if err := s.file.Truncate(newSize); err != nil {
		return fmt.Errorf("grow %s: %w", s.path, ErrGrowFailed)
	}
	data, err := mapFile(s.file, newSize, ReadWrite)
	if err != nil {
		return fmt.Errorf("grow %s: %w", s.path, ErrGrowFailed)
	}
	s.data = data
	s.size = newSize
	return nil
}

// Close unmaps and closes the backing file.
func (s *segment) Close() error {
	if s.data != nil {
		if err := unmapFile(s.data); err != nil {
			return err
		}
		s.data = nil
	}
	return s.file.Close()
}

// Sync flushes the mapping's dirty pages to disk.
func (s *segment) Sync() error {
	return syncFile(s.data)
}
