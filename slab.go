// Slab allocator scoped to one segment. Allocations are addressed by
// offset from the segment base (Ref), never by Go pointer, so the file
// survives a remap at a different base address (Design Notes §9).
package chainbase

// Ref is a position-independent reference into a segment: a byte offset
// from the mapping's base address. The zero Ref is reserved and never
// returned by Alloc, so it doubles as a "null" sentinel.
type Ref uint64

// allocatorHeaderSize reserves room at the front of the segment for the
// fingerprint block, the allocator's own bookkeeping (the bump pointer)
// and the index tag directory (catalog.go). Allocations never happen
// below this offset.
const allocatorHeaderSize = directoryOffset + directorySize

// bumpOffset is where the allocator persists its free pointer, so a
// process that reattaches to an existing segment resumes allocating
// after the last-used byte instead of overwriting live data.
const bumpOffset = FingerprintSize

// allocator is a bump-pointer arena over a segment's mapping. There is no
// free list: per spec.md's Non-goals, the mapped file is never compacted
// or garbage collected, so reclaiming freed bytes mid-session is out of
// scope. There is no Free.
type allocator struct {
	seg *segment
}

func newAllocator(seg *segment) *allocator {
	return &allocator{seg: seg}
}

// bump reads/writes the allocator's free pointer, which lives in the
// segment itself so every attached process agrees on where free space
// begins.
func (a *allocator) bump() uint64 {
	v := getUint64(a.seg.data[bumpOffset : bumpOffset+8])
	if v == 0 {
		return allocatorHeaderSize
	}
	return v
}

func (a *allocator) setBump(v uint64) {
	putUint64(a.seg.data[bumpOffset:bumpOffset+8], v)
}

// Alloc reserves n zeroed bytes and returns their offset. It grows the
// underlying segment (doubling, like a typical arena) when the request
// would overrun the current mapping.
func (a *allocator) Alloc(n uint32) (Ref, error) {
	start := a.bump()
	end := start + uint64(n)
	if int64(end) > a.seg.size {
		newSize := a.seg.size * 2
		for newSize < int64(end) {
			newSize *= 2
		}
		if err := a.seg.Grow(newSize); err != nil {
			return 0, err
		}
	}
	for i := start; i < end; i++ {
		a.seg.data[i] = 0
	}
	a.setBump(end)
	return Ref(start), nil
}

// Bytes returns a live slice of n bytes at ref, backed directly by the
// mapping (writes through it mutate the segment in place).
func (a *allocator) Bytes(ref Ref, n uint32) []byte {
	return a.seg.data[uint64(ref) : uint64(ref)+uint64(n)]
}

// Reset rewinds the bump pointer to the allocator's starting offset.
// Nothing in the package calls it (Wipe removes the backing files
// instead); ordinary undo never reclaims slab space (objects
// snapshot their encoded bytes into the undo stack, not their slab Ref).
func (a *allocator) Reset() {
	a.setBump(allocatorHeaderSize)
}
