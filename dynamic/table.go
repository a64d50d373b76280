package dynamic

// Table is a name plus one Dynamic Index, unique by name within its
// Dynamic Database (spec.md §4.7). Constructed by Database.AddTable,
// which decides whether the underlying Index is segment-backed or
// standalone.
type Table struct {
	Name  string
	Index *Index
}
