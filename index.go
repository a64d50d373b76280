// Typed Index (C4): a generic, single-type collection keyed by a
// monotonic uint64 id, with zero or more secondary orderings built on
// ordered.go's persistent trees. Mirrors spec.md §4.4 exactly, including
// the re-keying-failure-removes-the-object rule in Modify and the
// create/modify/remove hooks into the per-index undo stack (undo.go).
package chainbase

import "fmt"

// TypeTag identifies a registered index within a Database; assigned by
// the caller at AddIndex time, it keys the index's entry in the
// segment's tag directory (catalog.go) and the duplicate-registration
// check.
type TypeTag uint16

// Base is embedded by value in every type stored in an Index. It carries
// the object's immutable id. Embedding (rather than requiring callers to
// hand-roll an ID method) is what lets Index assign and read ids without
// exposing a mutable field on the domain type itself.
type Base struct {
	id uint64
}

// ID returns the object's id, assigned once by Index.Create and never
// changed afterward.
func (b *Base) ID() uint64 { return b.id }

func (b *Base) setID(id uint64) { b.id = id }

// object is satisfied by *Base, and therefore by any *T that embeds
// Base. It is unexported because setID must not be callable outside
// this package; PT's embedding of Base still lets *T satisfy it.
type object interface {
	ID() uint64
	setID(id uint64)
}

// Index is a typed, single-collection store of *T objects keyed by id.
// PT exists only to let Index call the pointer-receiver methods Base
// provides without requiring callers to implement anything themselves:
// PT is always *T for a T that embeds Base.
type Index[T any, PT interface {
	*T
	object
}] struct {
	name        string
	tag         TypeTag
	objects     map[uint64]PT
	nextID      uint64
	secondaries []secondaryIndex[T]
	undo        *undoStack[T]

	// seg/alloc bind this index to a segment's slab allocator (nil for an
	// index never attached to one, e.g. a bare NewIndex used in tests or
	// the dynamic package's standalone mode). readOnly mirrors the
	// Database's open mode. persisted/dirRef/dirLen cache what
	// bindStorage found in the segment's tag directory at registration
	// time, so Rehydrate can decode lazily after every AddSecondary call
	// for this index has run.
	seg        *segment
	alloc      *allocator
	readOnly   bool
	persisted  bool
	rehydrated bool
	dirRef     Ref
	dirLen     uint32
}

// NewIndex constructs an empty index. snapshotThreshold is the byte size
// past which undo snapshots are zstd-compressed (see undo.go); zero or a
// negative value disables compression.
func NewIndex[T any, PT interface {
	*T
	object
}](name string, tag TypeTag, snapshotThreshold int) *Index[T, PT] {
	return &Index[T, PT]{
		name:    name,
		tag:     tag,
		objects: make(map[uint64]PT),
		undo:    newUndoStack[T](snapshotThreshold),
	}
}

// SetNextID overrides the id the next Create call will assign. Valid
// only before the first Create; the dynamic package uses it to start
// record ids at 1 instead of the typed-index default of 0.
func (ix *Index[T, PT]) SetNextID(id uint64) { ix.nextID = id }

// AddSecondary registers a secondary ordering extracted from each object
// by extract, compared with cmp. It is a free function rather than a
// method because Go methods cannot introduce a type parameter (K here)
// beyond the receiver's own. The returned handle is used with GetUnique
// and Range to query this ordering.
func AddSecondary[T any, PT interface {
	*T
	object
}, K any](ix *Index[T, PT], name string, unique bool, extract func(*T) K, cmp Comparator[K]) *Secondary[T, K] {
	s := newOrderedSecondary[T, K](name, unique, extract, cmp)
	ix.secondaries = append(ix.secondaries, s)
	return s
}

// Name returns the index's registered name.
func (ix *Index[T, PT]) Name() string { return ix.name }

// Tag returns the index's type tag.
func (ix *Index[T, PT]) Tag() TypeTag { return ix.tag }

// Len returns the number of live objects.
func (ix *Index[T, PT]) Len() int { return len(ix.objects) }

func (ix *Index[T, PT]) insertSecondaries(id uint64, obj *T) error {
	restores := make([]func(), 0, len(ix.secondaries))
	for _, s := range ix.secondaries {
		restores = append(restores, s.snapshot())
		if !s.tryInsert(id, obj) {
			for _, restore := range restores {
				restore()
			}
			return fmt.Errorf("%s.%s: %w", ix.name, s.name(), ErrUniqueness)
		}
	}
	return nil
}

func (ix *Index[T, PT]) removeSecondaries(id uint64, obj *T) {
	for _, s := range ix.secondaries {
		s.delete(id, obj)
	}
}

// Create allocates the next id, builds a new T with init, and inserts it
// into every secondary ordering. On a uniqueness violation the object is
// discarded entirely and ErrUniqueness is returned; next_id is not
// consumed by a failed create.
func (ix *Index[T, PT]) Create(init func(*T)) (PT, error) {
	if ix.readOnly {
		return nil, fmt.Errorf("%s: %w", ix.name, ErrNotWritable)
	}
	id := ix.nextID
	obj := new(T)
	if init != nil {
		init(obj)
	}
	PT(obj).setID(id)

	if err := ix.insertSecondaries(id, obj); err != nil {
		return nil, err
	}
	ix.objects[id] = PT(obj)
	ix.nextID++
	ix.undo.recordCreate(id)
	return PT(obj), nil
}

// Modify applies mutator to obj in place. If re-indexing obj under its
// new field values violates a uniqueness constraint, obj is removed from
// the index entirely (spec.md §4.4: "the object must be removed rather
// than left in an inconsistent position") and ErrUniqueness is returned.
func (ix *Index[T, PT]) Modify(obj PT, mutator func(*T)) error {
	if ix.readOnly {
		return fmt.Errorf("%s: %w", ix.name, ErrNotWritable)
	}
	id := obj.ID()
	live, ok := ix.objects[id]
	if !ok || live != obj {
		return fmt.Errorf("%s: %w", ix.name, ErrNotFound)
	}

	if err := ix.undo.recordModify(id, (*T)(obj)); err != nil {
		return err
	}

	ix.removeSecondaries(id, (*T)(obj))
	mutator((*T)(obj))
	PT(obj).setID(id)

	if err := ix.insertSecondaries(id, (*T)(obj)); err != nil {
		delete(ix.objects, id)
		return err
	}
	return nil
}

// Remove deletes obj from the index and every secondary ordering.
func (ix *Index[T, PT]) Remove(obj PT) error {
	if ix.readOnly {
		return fmt.Errorf("%s: %w", ix.name, ErrNotWritable)
	}
	id := obj.ID()
	live, ok := ix.objects[id]
	if !ok || live != obj {
		return fmt.Errorf("%s: %w", ix.name, ErrNotFound)
	}
	if err := ix.undo.recordRemove(id, (*T)(obj)); err != nil {
		return err
	}
	ix.removeSecondaries(id, (*T)(obj))
	delete(ix.objects, id)
	return nil
}

// Get returns the object with the given id, or ErrOutOfRange on miss.
func (ix *Index[T, PT]) Get(id uint64) (PT, error) {
	obj, ok := ix.objects[id]
	if !ok {
		return nil, fmt.Errorf("%s: id %d: %w", ix.name, id, ErrOutOfRange)
	}
	return obj, nil
}

// Find returns the object with the given id, or nil if there is none.
func (ix *Index[T, PT]) Find(id uint64) PT {
	return ix.objects[id]
}

// All returns every live object, in unspecified order; callers needing
// a stable order should query a secondary index instead.
func (ix *Index[T, PT]) All() []PT {
	out := make([]PT, 0, len(ix.objects))
	for _, obj := range ix.objects {
		out = append(out, obj)
	}
	return out
}

// --- undoActions[T] plumbing: invoked by undoStack.undo via the
// Database's fan-out over every registered index. ---

func (ix *Index[T, PT]) removeForUndo(id uint64) {
	if obj, ok := ix.objects[id]; ok {
		ix.removeSecondaries(id, (*T)(obj))
		delete(ix.objects, id)
	}
}

func (ix *Index[T, PT]) restoreForUndo(id uint64, obj *T) {
	if old, ok := ix.objects[id]; ok {
		ix.removeSecondaries(id, (*T)(old))
	}
	PT(obj).setID(id)
	ix.objects[id] = PT(obj)
	// tryInsert cannot fail here: restoring a snapshot never introduces
	// a uniqueness conflict that wasn't already resolved when it was
	// first recorded.
	ix.insertSecondaries(id, obj)
}

func (ix *Index[T, PT]) resetNextID(id uint64) {
	ix.nextID = id
}

// StartUndo, UndoTop, SquashTop, CommitUpTo, UndoDepth and TopRevision
// below are the Index-side half of the Session/undo-stack protocol
// (session.go), exported so Database and the dynamic package's own
// Database can fan them out across UndoParticipant.

func (ix *Index[T, PT]) StartUndo(revision uint64) {
	ix.undo.start(ix.nextID, revision)
}

func (ix *Index[T, PT]) UndoTop() error {
	return ix.undo.undo(ix)
}

func (ix *Index[T, PT]) SquashTop() {
	ix.undo.squash()
}

func (ix *Index[T, PT]) CommitUpTo(revision uint64) {
	ix.undo.commit(revision)
}

func (ix *Index[T, PT]) UndoDepth() int {
	return ix.undo.depth()
}

func (ix *Index[T, PT]) TopRevision() uint64 {
	return ix.undo.topRevision()
}

// bindStorage attaches ix to a segment's allocator and peeks the tag
// directory for a previously persisted object table, without decoding
// it yet. seg is nil for an index that was never registered against a
// Database (e.g. constructed directly via NewIndex). Called once by
// AddIndex, before any AddSecondary call for this index.
func (ix *Index[T, PT]) bindStorage(seg *segment, alloc *allocator, readOnly bool) {
	ix.seg = seg
	ix.alloc = alloc
	ix.readOnly = readOnly
	if seg == nil {
		return
	}
	_, ref, length, found, _, _ := findDirectoryEntry(seg.data, ix.tag)
	ix.persisted = found
	ix.dirRef = ref
	ix.dirLen = length
}

// Rehydrate decodes this index's persisted object table, if bindStorage
// found one, and replays every object into memory along with every
// secondary ordering currently registered. It is a no-op if ix was never
// bound to a segment, nothing was ever persisted under its tag, or it
// was already rehydrated. Callers must register every AddSecondary call
// for this index before calling Rehydrate — it rebuilds each secondary's
// contents as it replays, so a secondary added afterward would silently
// miss every rehydrated object.
func (ix *Index[T, PT]) Rehydrate() error {
	if ix.rehydrated || ix.seg == nil || !ix.persisted {
		ix.rehydrated = true
		return nil
	}
	ix.rehydrated = true

	blob, err := decodeCatalog[T](ix.alloc.Bytes(ix.dirRef, ix.dirLen))
	if err != nil {
		return fmt.Errorf("%s: rehydrate: %w", ix.name, err)
	}
	ix.nextID = blob.NextID
	for id, obj := range blob.Objects {
		p := PT(obj)
		p.setID(id)
		ix.objects[id] = p
		if err := ix.insertSecondaries(id, obj); err != nil {
			return fmt.Errorf("%s: rehydrate: %w", ix.name, err)
		}
	}
	return nil
}

// Persist writes ix's complete object table into the segment through
// the slab allocator and records the resulting Ref in the segment's tag
// directory, so a later attach's Rehydrate can find it. A no-op if ix
// was never bound to a segment. Database.Close calls this for every
// registered index on a read-write attach.
func (ix *Index[T, PT]) Persist() error {
	if ix.seg == nil {
		return nil
	}
	objects := make(map[uint64]*T, len(ix.objects))
	for id, obj := range ix.objects {
		objects[id] = (*T)(obj)
	}
	data, err := encodeCatalog(ix.nextID, objects)
	if err != nil {
		return fmt.Errorf("%s: persist: %w", ix.name, err)
	}

	ref, err := ix.alloc.Alloc(uint32(len(data)))
	if err != nil {
		return fmt.Errorf("%s: persist: %w", ix.name, err)
	}
	copy(ix.alloc.Bytes(ref, uint32(len(data))), data)

	slot, _, _, found, free, hasFree := findDirectoryEntry(ix.seg.data, ix.tag)
	if !found {
		if !hasFree {
			return fmt.Errorf("%s: %w", ix.name, ErrGrowFailed)
		}
		slot = free
	}
	writeDirectoryEntry(ix.seg.data, slot, ix.tag, ref, uint32(len(data)))
	ix.dirRef, ix.dirLen, ix.persisted = ref, uint32(len(data)), true
	return nil
}
