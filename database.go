// Database Façade (C6): registers typed indices, exposes the undo
// session / commit / revision API, and delegates locking to the RW Lock
// Manager (C3). Spec.md §4.6. Adapted from the teacher's db.go, whose
// State/Cond pattern gated structural access to a single shared file;
// here that same "one façade owns the segment, the allocator and the
// lock bank" shape carries the undo-session bookkeeping instead.
package chainbase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Database is a read-only or read-write attach to one chainbase
// directory. Per spec.md §5, a Database is not safe for concurrent use
// by multiple goroutines; callers either use one Database per goroutine
// or serialize access externally. Cross-process coordination goes
// through WithReadLock/WithWriteLock and the RW Lock Manager.
type Database struct {
	dir    string
	mode   OpenMode
	fp     Fingerprint
	seg    *segment
	alloc  *allocator
	locks  *lockBank
	plock  *fileLock
	cfg    Config
	log    *zap.Logger

	registered   map[TypeTag]string
	participants []UndoParticipant
	storages     []indexStorage

	top             *Session
	revisionCounter uint64

	closed bool
}

// indexStorage is the segment-persistence half of an *Index[T, PT],
// fanned out by Database.Load (rehydrate every registered index once
// its schema is fully registered) and Database.Close (persist every
// registered index before the segment unmaps).
type indexStorage interface {
	Persist() error
	Rehydrate() error
}

// Open attaches to the chainbase directory at dir. ReadWrite creates
// missing files and takes the per-process exclusive file lock (failing
// with ErrAlreadyInUse if another process already holds it); ReadOnly
// requires both shared_memory.bin and shared_memory.meta to already
// exist.
func Open(dir string, mode OpenMode, cfg Config) (*Database, error) {
	log := cfg.logger()

	seg, err := openSegmentFile(dir, binFileName, mode, cfg.size())
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}

	fp, err := attachFingerprint(seg, mode, cfg.checksumAlgorithm())
	if err != nil {
		seg.Close()
		return nil, err
	}

	locks, err := openLockBank(dir, mode, cfg.lockCount(), cfg.Metrics)
	if err != nil {
		seg.Close()
		return nil, fmt.Errorf("open lock bank: %w", err)
	}

	var plock *fileLock
	if mode == ReadWrite {
		plock = &fileLock{}
		plock.setFile(seg.file)
		if err := plock.TryLock(); err != nil {
			locks.Close()
			seg.Close()
			return nil, fmt.Errorf("acquire process lock: %w", ErrAlreadyInUse)
		}
		if isDirty(seg.data[:FingerprintSize]) {
			log.Warn("segment closed uncleanly on last write attach; refusing to attach", zap.String("dir", dir))
			plock.Unlock()
			locks.Close()
			seg.Close()
			return nil, ErrDirtySegment
		}
		seg.data[dirtyOffset] = encodeDirty(true)
	}

	db := &Database{
		dir:        dir,
		mode:       mode,
		fp:         fp,
		seg:        seg,
		alloc:      newAllocator(seg),
		locks:      locks,
		plock:      plock,
		cfg:        cfg,
		log:        log,
		registered: make(map[TypeTag]string),
	}
	log.Info("attached", zap.String("dir", dir), zap.Bool("writable", mode == ReadWrite))
	return db, nil
}

func attachFingerprint(seg *segment, mode OpenMode, alg ChecksumAlgorithm) (Fingerprint, error) {
	current := currentFingerprint(alg)
	block := seg.data[:FingerprintSize]
	blank := true
	for _, b := range block {
		if b != 0 && b != ' ' {
			blank = false
			break
		}
	}
	if blank {
		if mode != ReadWrite {
			return Fingerprint{}, ErrNotFound
		}
		encoded, err := current.encode()
		if err != nil {
			return Fingerprint{}, err
		}
		copy(block, encoded)
		return current, nil
	}

	stored, err := decodeFingerprint(block)
	if err != nil {
		return Fingerprint{}, err
	}
	if !stored.Equal(current) {
		return Fingerprint{}, ErrIncompatibleBuild
	}
	return stored, nil
}

// AddIndex registers a typed index under tag, binding it to the
// segment's slab allocator so its object table survives Close/reattach
// (catalog.go). Registering the same tag twice on one Database handle
// fails with ErrAlreadyRegistered. A read-only attach may only register
// a tag that was already persisted by some earlier write attach — one
// registering a tag with nothing behind it fails with
// ErrIndexNotRegistered, per spec.md's "ReadOnly requires ... all
// registered indices to already exist".
//
// AddIndex binds storage and registers the index's schema but does not
// decode any persisted data yet; call Database.Load once every AddIndex
// and AddSecondary call is done, before using the database, so secondary
// orderings exist before rehydrated objects are replayed into them.
// AddIndex is a free function, not a method, because Go methods cannot
// introduce a new type parameter (T) beyond the receiver's own.
func AddIndex[T any, PT interface {
	*T
	object
}](db *Database, name string, tag TypeTag) (*Index[T, PT], error) {
	if db.closed {
		return nil, ErrClosed
	}
	if _, ok := db.registered[tag]; ok {
		return nil, fmt.Errorf("tag %d: %w", tag, ErrAlreadyRegistered)
	}
	ix := NewIndex[T, PT](name, tag, db.cfg.snapshotThreshold())
	ix.bindStorage(db.seg, db.alloc, db.mode != ReadWrite)
	if db.mode != ReadWrite && !ix.persisted {
		return nil, fmt.Errorf("%s: %w", name, ErrIndexNotRegistered)
	}
	db.registered[tag] = name
	db.participants = append(db.participants, ix)
	db.storages = append(db.storages, ix)
	return ix, nil
}

// Load rehydrates every index registered on db from its persisted
// state, if any. Must be called once, after every AddIndex and
// AddSecondary call has run, and before the database is put to use.
func (db *Database) Load() error {
	for _, s := range db.storages {
		if err := s.Rehydrate(); err != nil {
			return err
		}
	}
	return nil
}

// StartUndoSession returns a scoped handle owning one frame on every
// registered index's undo stack, eagerly created when enabled is true
// (see session.go for why eager rather than lazy). enabled=false
// returns a no-op Session whose Close never undoes anything.
func (db *Database) StartUndoSession(enabled bool) *Session {
	sess := &Session{db: db, parent: db.top, enabled: enabled, id: uuid.New()}
	if db.top != nil {
		sess.parentID = db.top.id
	}
	db.top = sess
	if enabled {
		db.revisionCounter++
		rev := db.revisionCounter
		for _, ix := range db.participants {
			ix.StartUndo(rev)
		}
	}
	db.log.Debug("session started",
		zap.String("session", sess.id.String()),
		zap.String("parent", sess.parentID.String()),
		zap.Bool("enabled", enabled))
	return sess
}

// Metrics returns the Metrics instrumentation configured via Config, or
// nil if none was supplied.
func (db *Database) Metrics() *Metrics { return db.cfg.Metrics }

// Undo reverts the top undo state across every registered index.
func (db *Database) Undo() error {
	for _, ix := range db.participants {
		if err := ix.UndoTop(); err != nil {
			return err
		}
	}
	return nil
}

// UndoAll reverts every open undo state, across every registered index,
// down to a clean base.
func (db *Database) UndoAll() error {
	for db.Depth() > 0 {
		if err := db.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// Commit discards every undo state whose revision is <= revision,
// across every registered index.
func (db *Database) Commit(revision uint64) {
	for _, ix := range db.participants {
		ix.CommitUpTo(revision)
	}
}

// Revision returns the top revision currently on the undo stack, or 0
// if the stack is empty.
func (db *Database) Revision() uint64 {
	if len(db.participants) == 0 {
		return 0
	}
	return db.participants[0].TopRevision()
}

// Depth reports how many undo states are on the stack, counting both
// open sessions and frames left by a pushed outermost session.
func (db *Database) Depth() int {
	if len(db.participants) == 0 {
		return 0
	}
	return db.participants[0].UndoDepth()
}

// WithReadLock acquires the RW lock bank's current lock in shared mode
// and runs fn, per spec.md §4.3.
func (db *Database) WithReadLock(ctx context.Context, wait time.Duration, fn func() error) error {
	return db.locks.WithReadLock(ctx, wait, fn)
}

// WithWriteLock acquires the RW lock bank's current lock in exclusive
// mode and runs fn, advancing the cursor on success, per spec.md §4.3.
func (db *Database) WithWriteLock(ctx context.Context, wait time.Duration, fn func() error) error {
	return db.locks.WithWriteLock(ctx, wait, fn)
}

// CurrentLock returns the RW lock bank's rotating cursor.
func (db *Database) CurrentLock() int { return db.locks.CurrentLock() }

// Close persists every registered index's object table into the
// segment, then releases the segment and lock-bank mappings and the
// process lock, marking the segment cleanly closed so a future attach
// does not see the crash-dirty flag set.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	if db.mode == ReadWrite {
		for _, s := range db.storages {
			if err := s.Persist(); err != nil {
				db.seg.Close()
				return err
			}
		}
		db.seg.data[dirtyOffset] = encodeDirty(false)
		db.seg.Sync()
	}
	if db.plock != nil {
		db.plock.Unlock()
		db.plock.setFile(nil)
	}
	if err := db.locks.Close(); err != nil {
		db.seg.Close()
		return err
	}
	return db.seg.Close()
}

// Wipe closes the store and removes its backing files. dir must match
// the directory db was opened against.
func (db *Database) Wipe(dir string) error {
	if err := db.Close(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, binFileName)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(filepath.Join(dir, metaFileName)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
