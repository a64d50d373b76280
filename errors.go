// Package chainbase provides an embedded, transactional, in-process object
// store whose working set lives in a memory-mapped file. Objects are
// grouped into strongly typed indices with one primary key and zero or
// more secondary keys, mutated only through create/modify/remove, and
// protected by a stack of undo sessions that can revert any sequence of
// mutations.
package chainbase

import "errors"

// Sentinel errors returned by store operations. Call sites wrap these with
// %w and positional context (e.g. "open: %w") rather than introducing new
// error values, so callers can always errors.Is against this set.
var (
	// ErrNotFound is returned when the segment directory or its files are
	// missing and the open mode cannot create them.
	ErrNotFound = errors.New("segment not found")

	// ErrIncompatibleBuild is returned when a segment's environment
	// fingerprint does not match the attaching process's fingerprint.
	ErrIncompatibleBuild = errors.New("incompatible build")

	// ErrGrowFailed is returned when growing the backing file or its
	// mapping fails.
	ErrGrowFailed = errors.New("segment grow failed")

	// ErrShrinkNotSupported is returned by Grow when the requested size
	// is not larger than the current size.
	ErrShrinkNotSupported = errors.New("segment shrink not supported")

	// ErrAlreadyInUse is returned when a read-write attach cannot acquire
	// the per-file exclusive lock because another process holds it.
	ErrAlreadyInUse = errors.New("segment already in use")

	// ErrTimeout is returned when lock acquisition exceeds its deadline.
	ErrTimeout = errors.New("lock acquisition timed out")

	// ErrNotWritable is returned when a mutating call is attempted on a
	// read-only attach.
	ErrNotWritable = errors.New("segment not writable")

	// ErrAlreadyRegistered is returned by AddIndex when the type tag is
	// already registered on this database.
	ErrAlreadyRegistered = errors.New("index already registered")

	// ErrIndexNotRegistered is returned when a read-only attach is missing
	// an index the caller expects to already exist.
	ErrIndexNotRegistered = errors.New("index not registered")

	// ErrUniqueness is returned by Create/Modify when an object's primary
	// or a unique secondary key collides with an existing object.
	ErrUniqueness = errors.New("uniqueness constraint violated")

	// ErrOutOfRange is returned by Get when no object exists for the id.
	ErrOutOfRange = errors.New("id out of range")

	// ErrClosed is returned when operating on a closed store handle.
	ErrClosed = errors.New("store is closed")

	// ErrDirtySegment is returned by a read-write Open when the segment's
	// dirty flag is still set because a prior writer did not Close
	// cleanly; see SPEC_FULL.md §4.13.
	ErrDirtySegment = errors.New("segment closed uncleanly and requires external replay")

	// ErrCorruptFingerprint is returned when the fingerprint block fails
	// its checksum, independent of the byte-for-byte build comparison.
	ErrCorruptFingerprint = errors.New("corrupt fingerprint")

	// ErrExists is returned when a named entity (database, table) already
	// exists where uniqueness by name is required.
	ErrExists = errors.New("already exists")
)
