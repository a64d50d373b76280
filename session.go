// Undo Session: a process-level handle owning one frame on every
// registered index's undo stack, per spec.md §3/§4.6.
//
// Frames are pushed eagerly, on every registered index, the moment the
// session starts — not lazily on first mutation. spec.md §3 describes
// per-index lazy creation, but squash (§4.5) merges a frame into "the
// one below it", which only ever exists if starting a session always
// gives every index a frame to squash into. Eager creation is the only
// reading of the two sections that keeps that invariant, so that is what
// Session implements; see DESIGN.md.
package chainbase

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UndoParticipant is the subset of Index[T, PT]'s undo-stack plumbing
// that Session and Database need, independent of T — every registered
// index, regardless of its object type, satisfies this.
type UndoParticipant interface {
	StartUndo(revision uint64)
	UndoTop() error
	SquashTop()
	CommitUpTo(revision uint64)
	UndoDepth() int
	TopRevision() uint64
}

// Session is returned by Database.StartUndoSession. It must be closed
// exactly once, in LIFO order relative to any session nested inside it.
// Closing without calling Push first undoes everything done during the
// session (spec.md §4.5's "undo, applied when the top session drops
// without push").
type Session struct {
	db      *Database
	parent  *Session
	enabled bool
	pushed  bool
	closed  bool

	// id and parentID exist purely for log correlation across a nested
	// undo-session sequence; they are never persisted and have no
	// bearing on any invariant.
	id       uuid.UUID
	parentID uuid.UUID
}

func (s *Session) checkTop(db *Database) {
	if db.top != s {
		panic("chainbase: session closed out of LIFO order")
	}
}

// Push keeps this session's mutations. If this is the outermost open
// session, its frames simply remain on each index's undo stack,
// available for a later explicit Undo or Commit. If it is nested inside
// another session, its frames are squashed into the parent's immediately.
func (s *Session) Push() {
	if s.closed {
		return
	}
	if s.enabled {
		s.checkTop(s.db)
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
	s.db.log.Debug("session pushed", zap.String("session", s.id.String()))
}

// Close ends the session. If Push was not called first, every mutation
// made during the session is undone. Close is safe to call more than
// once; only the first call (without a prior Push) has an effect.
func (s *Session) Close() error {
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
	s.checkTop(s.db)
	s.db.top = s.parent
	for _, ix := range s.db.participants {
		if err := ix.UndoTop(); err != nil {
			return err
		}
	}
	s.db.log.Debug("session undone", zap.String("session", s.id.String()))
	return nil
}
