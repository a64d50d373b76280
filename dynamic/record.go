// Dynamic Index (C7): a schema-less collection of (id, primary,
// secondary, value) records with three orderings, built directly on top
// of the static Typed Index machinery (chainbase.Index) rather than
// reimplementing it — spec.md §4.7 describes the dynamic variant as
// mirroring §4.4-§4.6 "but with one record schema", which is exactly
// what instantiating chainbase.Index[Record, *Record] gives for free.
package dynamic

import "github.com/jpl-au/chainbase"

// Record is the dynamic store's one schema: an id plus a primary and
// secondary 128-bit key and an opaque value. Record embeds
// chainbase.Base the same way any static object type would, so
// chainbase.Index's id bookkeeping applies unchanged.
type Record struct {
	chainbase.Base
	Primary   Key
	Secondary Key
	Value     []byte
}

// Index is a Dynamic Index: one Record collection ordered by id (via
// chainbase.Index's primary map) plus by primary and by secondary key.
// Every (primary,secondary,id) triple is automatically distinct because
// id is always unique, so spec.md §3's "three unique orderings" never
// actually rejects an insert; the primary/secondary orderings here are
// non-unique compositions (ties broken by id), which give the same get
// by/find by/iterate behavior without a spurious uniqueness check that
// nothing in the spec exercises. See DESIGN.md.
type Index struct {
	primaryMode   Mode
	secondaryMode Mode

	records   *chainbase.Index[Record, *Record]
	byPrimary *chainbase.Secondary[Record, Key]
	bySecond  *chainbase.Secondary[Record, Key]
}

// NewIndex constructs a standalone Dynamic Index backed by process
// memory only — no segment, so it never survives a process restart.
// Used directly by tests and by any Table added to a Database whose
// owning Shell was never Open'd. primaryMode and secondaryMode are fixed
// for the lifetime of the index (Design Notes §9): every record
// inserted afterward is ordered under these modes.
func NewIndex(name string, primaryMode, secondaryMode Mode, snapshotThreshold int) (*Index, error) {
	ix := chainbase.NewIndex[Record, *Record](name, 0, snapshotThreshold)
	return newIndexOn(ix, primaryMode, secondaryMode)
}

// newIndexOn wraps an already-constructed chainbase.Index — either a
// bare NewIndex (standalone mode) or one returned by chainbase.AddIndex
// and therefore bound to a segment (Shell-attached mode) — with the two
// secondary orderings every Dynamic Index needs, then rehydrates it.
// Rehydration must happen after both secondaries are registered, or a
// persisted table's records would be replayed into an index with no
// orderings yet to join.
func newIndexOn(ix *chainbase.Index[Record, *Record], primaryMode, secondaryMode Mode) (*Index, error) {
	ix.SetNextID(1) // spec.md §4.7: dynamic ids start at 1, not 0; Rehydrate overrides this if a table already exists.

	idx := &Index{primaryMode: primaryMode, secondaryMode: secondaryMode, records: ix}

	cmpPrimary := func(a, b Key) int { return Compare(idx.primaryMode, a, b) }
	cmpSecondary := func(a, b Key) int { return Compare(idx.secondaryMode, a, b) }

	idx.byPrimary = chainbase.AddSecondary(ix, ix.Name()+".by_primary", false,
		func(r *Record) Key { return r.Primary }, cmpPrimary)
	idx.bySecond = chainbase.AddSecondary(ix, ix.Name()+".by_secondary", false,
		func(r *Record) Key { return r.Secondary }, cmpSecondary)

	if err := ix.Rehydrate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Create assigns the next id, copies value into a new buffer, and
// inserts the record into all three orderings.
func (ix *Index) Create(primary, secondary Key, value []byte) (*Record, error) {
	buf := make([]byte, len(value))
	copy(buf, value)
	return ix.records.Create(func(r *Record) {
		r.Primary = primary
		r.Secondary = secondary
		r.Value = buf
	})
}

// Modify applies mutator to rec in place, re-indexing it under its new
// keys; see chainbase.Index.Modify for the uniqueness-failure contract.
func (ix *Index) Modify(rec *Record, mutator func(*Record)) error {
	return ix.records.Modify(rec, mutator)
}

// Remove deletes rec from the index.
func (ix *Index) Remove(rec *Record) error {
	return ix.records.Remove(rec)
}

// GetByID returns the record with the given id, or ErrOutOfRange.
func (ix *Index) GetByID(id uint64) (*Record, error) {
	return ix.records.Get(id)
}

// FindByID returns the record with the given id, or nil.
func (ix *Index) FindByID(id uint64) *Record {
	return ix.records.Find(id)
}

// GetByPrimary returns the lowest-id record with the given primary key.
func (ix *Index) GetByPrimary(primary Key) (*Record, error) {
	ids := chainbase.Range(ix.byPrimary, primary)
	if len(ids) == 0 {
		return nil, fmtOutOfRange("primary", primary)
	}
	return ix.records.Get(ids[0])
}

// FindByPrimary returns the lowest-id record with the given primary
// key, or nil.
func (ix *Index) FindByPrimary(primary Key) *Record {
	ids := chainbase.Range(ix.byPrimary, primary)
	if len(ids) == 0 {
		return nil
	}
	return ix.records.Find(ids[0])
}

// GetBySecondary returns the lowest-id record with the given secondary
// key.
func (ix *Index) GetBySecondary(secondary Key) (*Record, error) {
	ids := chainbase.Range(ix.bySecond, secondary)
	if len(ids) == 0 {
		return nil, fmtOutOfRange("secondary", secondary)
	}
	return ix.records.Get(ids[0])
}

// FindBySecondary returns the lowest-id record with the given secondary
// key, or nil.
func (ix *Index) FindBySecondary(secondary Key) *Record {
	ids := chainbase.Range(ix.bySecond, secondary)
	if len(ids) == 0 {
		return nil
	}
	return ix.records.Find(ids[0])
}

func fmtOutOfRange(field string, key Key) error {
	return &lookupError{field: field, key: key}
}

type lookupError struct {
	field string
	key   Key
}

func (e *lookupError) Error() string {
	return e.field + " " + string(e.key[:]) + ": " + chainbase.ErrOutOfRange.Error()
}

func (e *lookupError) Unwrap() error { return chainbase.ErrOutOfRange }

// Len returns the number of live records.
func (ix *Index) Len() int { return ix.records.Len() }
