// Per-index undo stack: captures enough state to revert one session's
// creates, modifies and removes, and to squash an inner session's state
// into its parent's when the inner session ends with Push().
//
// Object snapshots are encoded with github.com/goccy/go-json (already a
// teacher dependency, used there to encode/decode every record) and, past
// Config.SnapshotCompressionThreshold, compressed with
// github.com/klauspost/compress/zstd — grounded on the teacher's
// compress.go, which compresses a document's prior content for its
// History feature. An undo-state snapshot is the same shape of data: a
// past version of a record kept around for recovery.
package chainbase

import (
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var (
	snapshotEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	snapshotDecoder, _ = zstd.NewReader(nil)
)

// defaultSnapshotThreshold mirrors Config.SnapshotCompressionThreshold's default.
const defaultSnapshotThreshold = 256

// snapshot is an encoded, possibly-compressed copy of one object.
type snapshot struct {
	data       []byte
	compressed bool
}

func encodeSnapshot[T any](obj *T, threshold int) (snapshot, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return snapshot{}, err
	}
	if threshold > 0 && len(data) > threshold {
		return snapshot{data: snapshotEncoder.EncodeAll(data, nil), compressed: true}, nil
	}
	return snapshot{data: data}, nil
}

func decodeSnapshot[T any](s snapshot) (*T, error) {
	data := s.data
	if s.compressed {
		var err error
		data, err = snapshotDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, err
		}
	}
	var obj T
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// undoState captures one session's worth of mutations against a single
// index, per spec.md §3/§4.5.
type undoState[T any] struct {
	newIDs        map[uint64]struct{}
	oldValues     map[uint64]snapshot
	removedValues map[uint64]snapshot
	oldNextID     uint64
	revision      uint64
}

func newUndoState[T any](nextID, revision uint64) *undoState[T] {
	return &undoState[T]{
		newIDs:        make(map[uint64]struct{}),
		oldValues:     make(map[uint64]snapshot),
		removedValues: make(map[uint64]snapshot),
		oldNextID:     nextID,
		revision:      revision,
	}
}

// hasSnapshot reports whether id already has a recorded prior value in
// this state, via either path — Modify only snapshots the *first* time
// an id is touched in a session (spec.md §4.4).
func (s *undoState[T]) hasSnapshot(id uint64) bool {
	if _, ok := s.oldValues[id]; ok {
		return true
	}
	_, ok := s.removedValues[id]
	return ok
}

func (s *undoState[T]) isNew(id uint64) bool {
	_, ok := s.newIDs[id]
	return ok
}

// undoStack is the per-index stack of undo states, in push order; the
// bottom of the stack is the earliest still-reversible mutation.
type undoStack[T any] struct {
	states    []*undoState[T]
	threshold int
}

func newUndoStack[T any](threshold int) *undoStack[T] {
	return &undoStack[T]{threshold: threshold}
}

// active returns the top state, or nil if there is no open session frame.
func (st *undoStack[T]) active() *undoState[T] {
	if len(st.states) == 0 {
		return nil
	}
	return st.states[len(st.states)-1]
}

// start pushes a new empty frame carrying nextID and revision.
func (st *undoStack[T]) start(nextID, revision uint64) {
	st.states = append(st.states, newUndoState[T](nextID, revision))
}

// recordCreate appends id to the active frame's newIDs, if a session is
// open.
func (st *undoStack[T]) recordCreate(id uint64) {
	s := st.active()
	if s == nil {
		return
	}
	s.newIDs[id] = struct{}{}
}

// recordModify snapshots obj into oldValues the first time id is touched
// in the active frame. It records nothing and returns nil if there is no
// open session, the frame created id, or the id was already recorded.
func (st *undoStack[T]) recordModify(id uint64, obj *T) error {
	s := st.active()
	if s == nil {
		return nil
	}
	if s.isNew(id) || s.hasSnapshot(id) {
		return nil
	}
	snap, err := encodeSnapshot(obj, st.threshold)
	if err != nil {
		return err
	}
	s.oldValues[id] = snap
	return nil
}

// recordRemove moves obj into removedValues if it predates the session,
// or simply drops it from newIDs if the session itself created it.
func (st *undoStack[T]) recordRemove(id uint64, obj *T) error {
	s := st.active()
	if s == nil {
		return nil
	}
	if s.isNew(id) {
		delete(s.newIDs, id)
		return nil
	}
	if !s.hasSnapshot(id) {
		snap, err := encodeSnapshot(obj, st.threshold)
		if err != nil {
			return err
		}
		s.removedValues[id] = snap
	} else if snap, ok := s.oldValues[id]; ok {
		// A prior Modify already snapshotted the pre-session value;
		// that snapshot is the correct thing to restore on Undo, so it
		// moves to removedValues and is dropped from oldValues.
		delete(s.oldValues, id)
		s.removedValues[id] = snap
	}
	return nil
}

// undoActions is what undo() (and the per-id restoration inside squash)
// needs from the index: remove a created object, restore a snapshot, and
// reset next_id.
type undoActions[T any] interface {
	removeForUndo(id uint64)
	restoreForUndo(id uint64, obj *T)
	resetNextID(id uint64)
}

// topRevision returns the revision of the top frame, or 0 if the stack
// is empty.
func (st *undoStack[T]) topRevision() uint64 {
	s := st.active()
	if s == nil {
		return 0
	}
	return s.revision
}

// depth reports how many open frames are on the stack.
func (st *undoStack[T]) depth() int { return len(st.states) }

// undo pops the top frame and reverts its effects, per spec.md §4.5:
// (1) remove every id in newIDs, (2) restore every oldValues snapshot,
// (3) re-insert every removedValues snapshot, (4) reset next_id.
func (st *undoStack[T]) undo(actions undoActions[T]) error {
	s := st.active()
	if s == nil {
		return nil
	}
	for id := range s.newIDs {
		actions.removeForUndo(id)
	}
	for id, snap := range s.oldValues {
		obj, err := decodeSnapshot[T](snap)
		if err != nil {
			return err
		}
		actions.restoreForUndo(id, obj)
	}
	for id, snap := range s.removedValues {
		obj, err := decodeSnapshot[T](snap)
		if err != nil {
			return err
		}
		actions.restoreForUndo(id, obj)
	}
	actions.resetNextID(s.oldNextID)
	st.states = st.states[:len(st.states)-1]
	return nil
}

// squash merges the top frame into the one below it, per spec.md §4.5,
// and discards the top frame. It is an error to call squash with fewer
// than two frames on the stack.
func (st *undoStack[T]) squash() {
	n := len(st.states)
	top := st.states[n-1]
	lower := st.states[n-2]

	for id := range top.newIDs {
		lower.newIDs[id] = struct{}{}
	}
	for id, snap := range top.oldValues {
		if lower.isNew(id) {
			continue // created by the lower frame; its undo removes it
		}
		if lower.hasSnapshot(id) {
			continue // earlier snapshot wins
		}
		lower.oldValues[id] = snap
	}
	for id, snap := range top.removedValues {
		if lower.isNew(id) {
			// The object never existed from the lower session's
			// perspective; it was created there, so a deeper removal
			// just means "never mind, don't create it".
			delete(lower.newIDs, id)
			continue
		}
		if lower.hasSnapshot(id) {
			continue // earlier snapshot wins
		}
		lower.removedValues[id] = snap
	}
	// lower.oldNextID and lower.revision are unchanged: the lower
	// frame's values win.
	st.states = st.states[:n-1]
}

// commit discards every frame whose revision is <= revision, per
// spec.md §4.5. Frames are pushed in increasing revision order, so the
// discard set is always a prefix of the stack.
func (st *undoStack[T]) commit(revision uint64) {
	i := 0
	for i < len(st.states) && st.states[i].revision <= revision {
		i++
	}
	st.states = st.states[i:]
}
