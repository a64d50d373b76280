// Segment-resident index directory: the fixed-size tag -> Ref table that
// lets a Database reattach find each registered index's persisted object
// table. This is what turns slab.go's allocator from a bump pointer that
// backs nothing into real cross-attach persistence (spec.md §1/§3):
// Index.Persist encodes its whole object table through allocator.Alloc
// and records the resulting Ref here; Index.Rehydrate reads it back.
package chainbase

import (
	"encoding/binary"

	json "github.com/goccy/go-json"
)

// maxCatalogEntries bounds how many distinct TypeTags one segment can
// register. A directory slot, not a free list: entries are never
// reclaimed within a session, mirroring the allocator's own "no
// compaction mid-session" Non-goal.
const maxCatalogEntries = 64

// catalogEntrySize is the fixed width of one directory slot: tag(2) +
// used(1) + pad(1) + length(4) + ref(8).
const catalogEntrySize = 16

// directoryOffset is where the tag directory begins, immediately after
// the allocator's bump pointer.
const directoryOffset = bumpOffset + 8

// directorySize reserves room for maxCatalogEntries slots.
const directorySize = maxCatalogEntries * catalogEntrySize

func directoryEntryOffset(slot int) int { return directoryOffset + slot*catalogEntrySize }

// findDirectoryEntry scans the fixed directory for tag. found reports
// whether an entry already exists for tag (in which case slot, ref and
// length describe it); otherwise hasFree/free identify the first unused
// slot a new entry can be written into.
func findDirectoryEntry(data []byte, tag TypeTag) (slot int, ref Ref, length uint32, found bool, free int, hasFree bool) {
	free = -1
	for i := 0; i < maxCatalogEntries; i++ {
		off := directoryEntryOffset(i)
		used := data[off+2] == 1
		if !used {
			if !hasFree {
				free, hasFree = i, true
			}
			continue
		}
		t := TypeTag(binary.LittleEndian.Uint16(data[off : off+2]))
		if t == tag {
			l := binary.LittleEndian.Uint32(data[off+4 : off+8])
			r := Ref(getUint64(data[off+8 : off+16]))
			return i, r, l, true, free, hasFree
		}
	}
	return 0, 0, 0, false, free, hasFree
}

func writeDirectoryEntry(data []byte, slot int, tag TypeTag, ref Ref, length uint32) {
	off := directoryEntryOffset(slot)
	binary.LittleEndian.PutUint16(data[off:off+2], uint16(tag))
	data[off+2] = 1
	data[off+3] = 0
	binary.LittleEndian.PutUint32(data[off+4:off+8], length)
	putUint64(data[off+8:off+16], uint64(ref))
}

// catalogBlob is the whole-table snapshot Index.Persist writes and
// Index.Rehydrate reads: every live object plus the id counter needed to
// resume allocating ids where the last attach left off. Per-object slab
// records would require reflection-based field layout for an arbitrary
// T; a whole-table blob through the same allocator gives the identical
// "survives Close/reattach" guarantee at the granularity the teacher's
// own format (line-delimited JSON, one document at a time) already works
// at — see DESIGN.md.
type catalogBlob[T any] struct {
	NextID  uint64
	Objects map[uint64]*T
}

func encodeCatalog[T any](nextID uint64, objects map[uint64]*T) ([]byte, error) {
	return json.Marshal(catalogBlob[T]{NextID: nextID, Objects: objects})
}

func decodeCatalog[T any](data []byte) (catalogBlob[T], error) {
	var blob catalogBlob[T]
	err := json.Unmarshal(data, &blob)
	return blob, err
}
