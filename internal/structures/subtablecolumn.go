package structures

import "github.com/scigolib/tdbcore/internal/writer"

// SubtableColumn is a refs Array whose entries are the root refs of
// nested tables. NullRef means "not yet materialised"; it is
// the caller's (Table's) job to materialise an empty nested table and
// call SetRef the first time such a cell is read, since building a
// nested TopLevelTable needs the schema-array logic that lives in the
// root package, not here.
//
// Unlike IntColumn/AdaptiveStringColumn this does not promote to a
// B+tree node form: sub-table columns are expected to stay small (one
// entry per parent row, rarely tens of thousands of rows in the
// reference workloads this engine targets) and the 5% weight budget for
// this component does not justify duplicating the split/bubble-up
// machinery a third time. Documented as a simplification in DESIGN.md.
type SubtableColumn struct {
	alloc *writer.Allocator
	root  *Array
}

// NewSubtableColumn creates an empty sub-table column.
func NewSubtableColumn(alloc *writer.Allocator) (*SubtableColumn, error) {
	root, err := Create(alloc, true)
	if err != nil {
		return nil, err
	}
	return &SubtableColumn{alloc: alloc, root: root}, nil
}

// OpenSubtableColumn reopens a sub-table column rooted at ref.
func OpenSubtableColumn(alloc *writer.Allocator, ref Ref, parent *Array, indexInParent int) (*SubtableColumn, error) {
	root, err := Open(alloc, ref, parent, indexInParent)
	if err != nil {
		return nil, err
	}
	return &SubtableColumn{alloc: alloc, root: root}, nil
}

// Ref returns the column's root ref.
func (c *SubtableColumn) Ref() Ref { return c.root.Ref() }

// Size returns the row count (one entry per parent row).
func (c *SubtableColumn) Size() int { return c.root.Size() }

// GetRef returns the nested table root ref at row (NullRef if unmaterialised).
func (c *SubtableColumn) GetRef(row int) (Ref, error) { return c.root.GetRef(row) }

// SetRef overwrites the nested table root ref at row.
func (c *SubtableColumn) SetRef(row int, ref Ref) error { return c.root.SetRef(row, ref) }

// Insert inserts a NullRef ("unmaterialised") entry at row.
func (c *SubtableColumn) Insert(row int) error { return c.root.InsertRef(row, NullRef) }

// Add appends a NullRef entry.
func (c *SubtableColumn) Add() error { return c.root.AddRef(NullRef) }

// Erase removes the entry at row. It does not recursively destroy the
// nested table the ref may point to — Table.EraseRow is responsible for
// that, since only it knows whether the nested table should be
// destroyed or is still reachable some other way.
func (c *SubtableColumn) Erase(row int) error { return c.root.Erase(row) }

// Destroy recursively frees the refs array and every materialised
// nested table it points to (Array.Destroy already walks non-null
// has_refs children).
func (c *SubtableColumn) Destroy() error {
	return c.root.Destroy()
}
