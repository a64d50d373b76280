// Ordered index trees shared by the static typed Index (index.go) and,
// via the dynamic package's own instantiation, the schema-less Dynamic
// Index. Built on github.com/benbjohnson/immutable's persistent sorted
// map: Design Notes §9 calls for "ordered index trees parameterized by
// extractor and comparator sharing the slab" — a persistent tree gives
// that plus a free, O(1) full-tree snapshot (the old root pointer),
// which is exactly what Modify's re-keying rollback and Undo's
// squash/restore need.
package chainbase

import "github.com/benbjohnson/immutable"

// Comparator orders two keys of type K: negative if a<b, zero if equal,
// positive if a>b.
type Comparator[K any] func(a, b K) int

// funcComparer adapts a Comparator to immutable.Comparer.
type funcComparer[K any] struct {
	cmp Comparator[K]
}

func (f funcComparer[K]) Compare(a, b K) int { return f.cmp(a, b) }

// compositeKey orders by (key, id) so that non-unique secondary indices
// keep a stable, collision-free ordering: two objects with the same
// secondary key value are then ordered by their (unique) primary id.
type compositeKey[K any] struct {
	key K
	id  uint64
}

func compositeComparer[K any](cmp Comparator[K]) immutable.Comparer[compositeKey[K]] {
	return funcComparer[compositeKey[K]]{cmp: func(a, b compositeKey[K]) int {
		if c := cmp(a.key, b.key); c != 0 {
			return c
		}
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	}}
}

// CompareUint64 is a ready-made Comparator[uint64], used for the id
// ordering and offered to callers for integer secondary keys.
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareString is a ready-made Comparator[string] for string secondary
// keys.
func CompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// secondaryIndex is the type-erased interface Index[T] holds a slice of,
// since Go methods cannot introduce their own type parameters: each
// concrete *Secondary[T, K] satisfies this without exposing K to
// Index[T] itself.
type secondaryIndex[T any] interface {
	// name identifies the secondary index for error messages.
	name() string
	// tryInsert attempts to add obj's key to the tree. On uniqueness
	// failure for a unique index it returns false and leaves the tree
	// unchanged.
	tryInsert(id uint64, obj *T) bool
	// delete removes obj's key from the tree.
	delete(id uint64, obj *T)
	// snapshot captures the current tree root (an O(1) persistent-tree
	// operation) for later restore.
	snapshot() func()
}

// Secondary is one secondary ordering over objects of type T,
// keyed by K. Unique indices store key->id directly; non-unique indices
// store compositeKey{key,id}->id so that distinct objects sharing a key
// remain individually addressable and iteration order is stable.
type Secondary[T any, K any] struct {
	indexName string
	unique    bool
	extract   func(*T) K
	cmp       Comparator[K]

	uniqueTree    *immutable.SortedMap[K, uint64]
	compositeTree *immutable.SortedMap[compositeKey[K], uint64]
}

func newOrderedSecondary[T any, K any](name string, unique bool, extract func(*T) K, cmp Comparator[K]) *Secondary[T, K] {
	s := &Secondary[T, K]{indexName: name, unique: unique, extract: extract, cmp: cmp}
	if unique {
		s.uniqueTree = immutable.NewSortedMap[K, uint64](funcComparer[K]{cmp: cmp})
	} else {
		s.compositeTree = immutable.NewSortedMap[compositeKey[K], uint64](compositeComparer(cmp))
	}
	return s
}

func (s *Secondary[T, K]) name() string { return s.indexName }

func (s *Secondary[T, K]) tryInsert(id uint64, obj *T) bool {
	key := s.extract(obj)
	if s.unique {
		if _, ok := s.uniqueTree.Get(key); ok {
			return false
		}
		s.uniqueTree = s.uniqueTree.Set(key, id)
		return true
	}
	s.compositeTree = s.compositeTree.Set(compositeKey[K]{key, id}, id)
	return true
}

func (s *Secondary[T, K]) delete(id uint64, obj *T) {
	key := s.extract(obj)
	if s.unique {
		s.uniqueTree = s.uniqueTree.Delete(key)
		return
	}
	s.compositeTree = s.compositeTree.Delete(compositeKey[K]{key, id})
}

// snapshot returns a closure that restores the tree roots captured at
// call time; the persistent tree makes this an O(1) capture regardless
// of tree size.
func (s *Secondary[T, K]) snapshot() func() {
	u, c := s.uniqueTree, s.compositeTree
	return func() {
		s.uniqueTree = u
		s.compositeTree = c
	}
}

// GetUnique looks up the id stored under key in a unique secondary
// index created with AddSecondary(..., unique: true, ...).
func GetUnique[T any, K any](s *Secondary[T, K], key K) (uint64, bool) {
	if !s.unique {
		panic("chainbase: GetUnique called on a non-unique secondary index")
	}
	return s.uniqueTree.Get(key)
}

// Range returns every id whose composite key matches the given
// secondary key value, in ascending id order, for a non-unique
// secondary index.
func Range[T any, K any](s *Secondary[T, K], key K) []uint64 {
	var ids []uint64
	if s.unique {
		if id, ok := s.uniqueTree.Get(key); ok {
			ids = append(ids, id)
		}
		return ids
	}
	itr := s.compositeTree.Iterator()
	itr.Seek(compositeKey[K]{key: key})
	for !itr.Done() {
		k, id, _ := itr.Next()
		if s.cmp(k.key, key) != 0 {
			break
		}
		ids = append(ids, id)
	}
	return ids
}
