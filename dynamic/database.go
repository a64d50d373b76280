// Dynamic Database (part of spec.md §4.7): a named collection of Tables
// that share a single undo stack. Mirrors chainbase.Database's
// registration/undo-session surface (database.go), fanning undo
// operations out across each Table's underlying chainbase.Index instead
// of a caller-registered set of typed indices — the same
// chainbase.UndoParticipant protocol, one level further down.
package dynamic

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jpl-au/chainbase"
)

// Database is a named group of Tables. All mutations across every Table
// in a Database share that Database's single undo stack (spec.md §4.7):
// StartUndoSession/Undo/Commit act on every Table at once, never on one
// Table alone.
type Database struct {
	Name string

	// cb is the owning Shell's segment-backed chainbase.Database, set by
	// Shell.CreateDatabase when the Shell has been Open'd. nil means
	// every Table added to this Database is process-memory-only.
	cb *chainbase.Database

	tables          map[string]*Table
	participants    []chainbase.UndoParticipant
	revisionCounter uint64
	top             *session
	log             *zap.Logger
}

func newDatabase(name string, cb *chainbase.Database, log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	return &Database{Name: name, cb: cb, tables: make(map[string]*Table), log: log}
}

// tableTag derives a chainbase.TypeTag for (databaseName, tableName) by
// hashing both into an FNV-1a checksum and truncating to the tag's 16
// bits. Collisions across many tables sharing one Shell segment are
// possible but unlikely at the scale this store targets; see DESIGN.md.
func tableTag(databaseName, tableName string) chainbase.TypeTag {
	h := fnv.New32a()
	_, _ = h.Write([]byte(databaseName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(tableName))
	return chainbase.TypeTag(h.Sum32())
}

// AddTable registers a new Table named name, ordered by primaryMode on
// its primary key and secondaryMode on its secondary key. Table names
// are unique within a Database; re-registering an existing name fails
// with chainbase.ErrExists. If db's owning Shell was Open'd, the table's
// records are persisted through that Shell's segment and rehydrated
// here if the table already existed on disk.
func (db *Database) AddTable(name string, primaryMode, secondaryMode Mode, snapshotThreshold int) (*Table, error) {
	if _, ok := db.tables[name]; ok {
		return nil, fmt.Errorf("table %q: %w", name, chainbase.ErrExists)
	}

	var (
		idx *Index
		err error
	)
	if db.cb != nil {
		cbIndex, aerr := chainbase.AddIndex[Record, *Record](db.cb, db.Name+"."+name, tableTag(db.Name, name))
		if aerr != nil {
			return nil, aerr
		}
		idx, err = newIndexOn(cbIndex, primaryMode, secondaryMode)
	} else {
		idx, err = NewIndex(name, primaryMode, secondaryMode, snapshotThreshold)
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Name: name, Index: idx}
	db.tables[name] = t
	db.participants = append(db.participants, idx.records)
	db.log.Debug("table added", zap.String("database", db.Name), zap.String("table", name))
	return t, nil
}

// GetTable returns the named table, or chainbase.ErrNotFound.
func (db *Database) GetTable(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, chainbase.ErrNotFound)
	}
	return t, nil
}

// FindTable returns the named table, or nil if it does not exist.
func (db *Database) FindTable(name string) *Table {
	return db.tables[name]
}

// RemoveTable drops a table entirely. Removal is a structural change,
// not an undoable record mutation: spec.md §4.7/§4.8 scope the undo
// stack to record-level create/modify/remove within existing tables,
// the same way a typed chainbase.Database's undo stack never covers
// AddIndex. The owning Shell's Modify (shell.go) puts a removed table
// back only when its mutator fails.
func (db *Database) RemoveTable(name string) error {
	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("table %q: %w", name, chainbase.ErrNotFound)
	}
	delete(db.tables, name)
	db.participants = nil
	for _, t := range db.tables {
		db.participants = append(db.participants, t.Index.records)
	}
	db.log.Debug("table removed", zap.String("database", db.Name), zap.String("table", name))
	return nil
}

// session is a Dynamic Database's undo-session handle: the same
// push/close-undoes-on-drop shape as chainbase.Session, scoped to every
// Table registered in this Database at the time the session started.
type session struct {
	db      *Database
	parent  *session
	enabled bool
	pushed  bool
	closed  bool
	id      uuid.UUID
}

// StartUndoSession starts one undo frame across every Table currently
// registered in db. Tables added after the session starts are not
// covered by it, mirroring chainbase.Database's per-registration undo
// participation.
func (db *Database) StartUndoSession(enabled bool) *session {
	sess := &session{db: db, parent: db.top, enabled: enabled, id: uuid.New()}
	db.top = sess
	if enabled {
		db.revisionCounter++
		rev := db.revisionCounter
		for _, ix := range db.participants {
			ix.StartUndo(rev)
		}
	}
	db.log.Debug("dynamic session started", zap.String("database", db.Name), zap.String("session", sess.id.String()))
	return sess
}

func (s *session) checkTop() {
	if s.db.top != s {
		panic("chainbase/dynamic: session closed out of LIFO order")
	}
}

// Push keeps this session's mutations, squashing into the parent frame
// if nested.
func (s *session) Push() {
	if s.closed {
		return
	}
	if s.enabled {
		s.checkTop()
		s.db.top = s.parent
		if s.parent != nil {
			for _, ix := range s.db.participants {
				ix.SquashTop()
			}
		}
	} else if s.db.top == s {
		s.db.top = s.parent
	}
	s.pushed = true
	s.closed = true
}

// Close undoes this session's mutations across every participating
// table, unless Push was already called.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.enabled {
		if s.db.top == s {
			s.db.top = s.parent
		}
		return nil
	}
	s.checkTop()
	s.db.top = s.parent
	for _, ix := range s.db.participants {
		if err := ix.UndoTop(); err != nil {
			return err
		}
	}
	return nil
}

// Undo reverts the top undo state across every table in db.
func (db *Database) Undo() error {
	for _, ix := range db.participants {
		if err := ix.UndoTop(); err != nil {
			return err
		}
	}
	return nil
}

// UndoAll reverts every open undo state across every table in db.
func (db *Database) UndoAll() error {
	for db.Depth() > 0 {
		if err := db.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// Commit discards every undo state whose revision is <= revision,
// across every table in db.
func (db *Database) Commit(revision uint64) {
	for _, ix := range db.participants {
		ix.CommitUpTo(revision)
	}
}

// Revision returns the top revision currently on db's shared undo
// stack, or 0 if the stack is empty or db has no tables yet.
func (db *Database) Revision() uint64 {
	if len(db.participants) == 0 {
		return 0
	}
	return db.participants[0].TopRevision()
}

// Depth reports how many undo states are on db's shared stack, counting
// both open sessions and frames left by a pushed outermost session.
func (db *Database) Depth() int {
	if len(db.participants) == 0 {
		return 0
	}
	return db.participants[0].UndoDepth()
}
