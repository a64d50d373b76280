// Multi-Database Shell (C8): the schema-less counterpart to
// chainbase.Database's single-store facade, holding any number of named
// Dynamic Databases (spec.md §4.8). Shell.Modify runs a structural
// mutation (table add/remove) inside one of the owning Database's undo
// sessions: if the mutation fails, the table registry and the session's
// record mutations are rolled back together. Undoing that session after
// a successful Modify reverts the record mutations only.
package dynamic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jpl-au/chainbase"
)

// Shell owns any number of named Dynamic Databases and, once Open, the
// single segment they all share — the schema-less counterpart to
// chainbase.Database, with an identical open/close/wipe/lock surface
// (spec.md §4.8). A Shell that is never Open'd still works as a pure
// in-process registry over Databases whose Tables are process-memory
// only; Open is what gives every subsequently created Database's Tables
// a real mmap'd, cross-attach-persistent backing. Database names are
// unique within a Shell.
type Shell struct {
	databases map[string]*Database
	log       *zap.Logger
	cb        *chainbase.Database
}

// NewShell constructs an empty, unopened Shell. A nil logger defaults to
// zap.NewNop(), matching chainbase.Config's "logging is optional,
// silent by default" default.
func NewShell(log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shell{databases: make(map[string]*Database), log: log}
}

// Open attaches sh to the chainbase directory at dir, mirroring
// chainbase.Open's contract exactly (ReadWrite creates missing files
// and takes the exclusive process lock; ReadOnly requires the segment
// to already exist). Every Database subsequently created via
// CreateDatabase registers its Tables against this one segment. Calling
// Open on an already-open Shell fails.
func (sh *Shell) Open(dir string, mode chainbase.OpenMode, cfg chainbase.Config) error {
	if sh.cb != nil {
		return fmt.Errorf("dynamic: shell already open")
	}
	cb, err := chainbase.Open(dir, mode, cfg)
	if err != nil {
		return err
	}
	sh.cb = cb
	sh.log.Debug("shell opened", zap.String("dir", dir), zap.Bool("writable", mode == chainbase.ReadWrite))
	return nil
}

// Close releases the shell's segment and lock-bank mappings, persisting
// every Database's Tables first (mirrors chainbase.Database.Close). A
// no-op if the Shell was never Open'd.
func (sh *Shell) Close() error {
	if sh.cb == nil {
		return nil
	}
	err := sh.cb.Close()
	sh.cb = nil
	return err
}

// Wipe closes the shell and removes its backing files. A no-op if the
// Shell was never Open'd.
func (sh *Shell) Wipe(dir string) error {
	if sh.cb == nil {
		return nil
	}
	err := sh.cb.Wipe(dir)
	sh.cb = nil
	return err
}

// WithReadLock acquires the underlying segment's RW lock bank in shared
// mode and runs fn. Valid only after Open.
func (sh *Shell) WithReadLock(ctx context.Context, wait time.Duration, fn func() error) error {
	if sh.cb == nil {
		return chainbase.ErrClosed
	}
	return sh.cb.WithReadLock(ctx, wait, fn)
}

// WithWriteLock acquires the underlying segment's RW lock bank in
// exclusive mode and runs fn. Valid only after Open.
func (sh *Shell) WithWriteLock(ctx context.Context, wait time.Duration, fn func() error) error {
	if sh.cb == nil {
		return chainbase.ErrClosed
	}
	return sh.cb.WithWriteLock(ctx, wait, fn)
}

// CreateDatabase registers a new, empty Dynamic Database named name.
// Re-creating an existing name fails with chainbase.ErrExists. If sh has
// been Open'd, db's Tables will register against sh's segment.
func (sh *Shell) CreateDatabase(name string) (*Database, error) {
	if _, ok := sh.databases[name]; ok {
		return nil, fmt.Errorf("database %q: %w", name, chainbase.ErrExists)
	}
	db := newDatabase(name, sh.cb, sh.log)
	sh.databases[name] = db
	sh.log.Debug("database created", zap.String("database", name))
	return db, nil
}

// GetDatabase returns the named database, or chainbase.ErrNotFound.
func (sh *Shell) GetDatabase(name string) (*Database, error) {
	db, ok := sh.databases[name]
	if !ok {
		return nil, fmt.Errorf("database %q: %w", name, chainbase.ErrNotFound)
	}
	return db, nil
}

// FindDatabase returns the named database, or nil if it does not exist.
func (sh *Shell) FindDatabase(name string) *Database {
	return sh.databases[name]
}

// RemoveDatabase drops a database and every table it holds.
func (sh *Shell) RemoveDatabase(name string) error {
	if _, ok := sh.databases[name]; !ok {
		return fmt.Errorf("database %q: %w", name, chainbase.ErrNotFound)
	}
	delete(sh.databases, name)
	sh.log.Debug("database removed", zap.String("database", name))
	return nil
}

// Modify applies mutator to db's table registry (AddTable/RemoveTable
// calls) as a single step of db's own undo stack: mutator runs inside a
// session that is pushed only if it returns without error, so a schema
// change and the session's other record-level mutations undo together
// on failure (spec.md §4.8). On failure db's table registry is put back
// as it was before mutator ran; a table added by the failed mutator on an
// Open'd Shell stays registered against the segment under its tag. After
// a successful Modify, undoing the pushed session reverts record
// mutations only, not the table registry.
func (sh *Shell) Modify(db *Database, mutator func(*Database) error) error {
	tables := make(map[string]*Table, len(db.tables))
	for name, t := range db.tables {
		tables[name] = t
	}
	participants := append([]chainbase.UndoParticipant(nil), db.participants...)
	sess := db.StartUndoSession(true)
	if err := mutator(db); err != nil {
		db.tables, db.participants = tables, participants
		_ = sess.Close()
		return err
	}
	sess.Push()
	return nil
}
