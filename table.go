package tdbcore

import (
	"fmt"

	"github.com/scigolib/tdbcore/internal/config"
	"github.com/scigolib/tdbcore/internal/structures"
	"github.com/scigolib/tdbcore/internal/writer"
)

// columnSlot is the in-memory typed accessor for one column, selected
// by ColumnType at register time.
type columnSlot struct {
	typ    ColumnType
	name   string
	intCol *structures.IntColumn
	strCol *structures.AdaptiveStringColumn
	subCol *structures.SubtableColumn
}

func (s *columnSlot) size() (int, error) {
	switch {
	case s.intCol != nil:
		return s.intCol.Size()
	case s.strCol != nil:
		return s.strCol.Size()
	case s.subCol != nil:
		return s.subCol.Size(), nil
	default:
		return 0, fmt.Errorf("column %q has no backing storage", s.name)
	}
}

func (s *columnSlot) ref() structures.Ref {
	switch {
	case s.intCol != nil:
		return s.intCol.Ref()
	case s.strCol != nil:
		return s.strCol.Ref()
	case s.subCol != nil:
		return s.subCol.Ref()
	default:
		return structures.NullRef
	}
}

// Table is an ordered list of columns sharing one row count (m_size)
// and a schema, It owns the schema Arrays (column
// types, column names) and a refs Array of column roots.
type Table struct {
	alloc  *writer.Allocator
	limits config.Limits

	root        *structures.Array // has_refs=true, 3 entries: [typesRef, namesRef, columnsRefsRef]
	types       *structures.Array
	names       *structures.AdaptiveStringColumn
	columnsRefs *structures.Array

	columns []*columnSlot
	size    int
}

// newTable creates a brand-new, empty table (no columns, no rows) owned
// by the given allocator.
func newTable(alloc *writer.Allocator, limits config.Limits) (*Table, error) {
	t := &Table{alloc: alloc, limits: limits}

	types, err := structures.Create(alloc, false)
	if err != nil {
		return nil, err
	}
	names, err := structures.NewAdaptiveStringColumn(alloc, limits)
	if err != nil {
		return nil, err
	}
	columnsRefs, err := structures.Create(alloc, true)
	if err != nil {
		return nil, err
	}
	root, err := structures.Create(alloc, true)
	if err != nil {
		return nil, err
	}
	if err := root.AddRef(types.Ref()); err != nil {
		return nil, err
	}
	if err := root.AddRef(names.Ref()); err != nil {
		return nil, err
	}
	if err := root.AddRef(columnsRefs.Ref()); err != nil {
		return nil, err
	}

	t.root, t.types, t.names, t.columnsRefs = root, types, names, columnsRefs
	types.SetParent(root, 0)
	columnsRefs.SetParent(root, 2)
	return t, nil
}

// openTable reopens a table rooted at ref inside an already-open group.
func openTable(alloc *writer.Allocator, ref structures.Ref, parent *structures.Array, indexInParent int, limits config.Limits) (*Table, error) {
	root, err := structures.Open(alloc, ref, parent, indexInParent)
	if err != nil {
		return nil, err
	}
	typesRef, err := root.GetRef(0)
	if err != nil {
		return nil, err
	}
	namesRef, err := root.GetRef(1)
	if err != nil {
		return nil, err
	}
	columnsRefsRef, err := root.GetRef(2)
	if err != nil {
		return nil, err
	}

	types, err := structures.Open(alloc, typesRef, root, 0)
	if err != nil {
		return nil, err
	}
	names, err := structures.OpenAdaptiveStringColumn(alloc, namesRef, root, 1, limits)
	if err != nil {
		return nil, err
	}
	columnsRefs, err := structures.Open(alloc, columnsRefsRef, root, 2)
	if err != nil {
		return nil, err
	}

	t := &Table{alloc: alloc, limits: limits, root: root, types: types, names: names, columnsRefs: columnsRefs}

	n := types.Size()
	t.columns = make([]*columnSlot, n)
	for i := 0; i < n; i++ {
		tag, err := types.Get(i)
		if err != nil {
			return nil, err
		}
		name, err := names.Get(i)
		if err != nil {
			return nil, err
		}
		colRef, err := columnsRefs.GetRef(i)
		if err != nil {
			return nil, err
		}
		slot, err := openColumnSlot(alloc, ColumnType(tag), name, colRef, columnsRefs, i, limits)
		if err != nil {
			return nil, err
		}
		t.columns[i] = slot
	}
	if n > 0 {
		size, err := t.columns[0].size()
		if err != nil {
			return nil, err
		}
		t.size = size
	}
	return t, nil
}

func openColumnSlot(alloc *writer.Allocator, typ ColumnType, name string, ref structures.Ref, parent *structures.Array, idx int, limits config.Limits) (*columnSlot, error) {
	slot := &columnSlot{typ: typ, name: name}
	switch typ {
	case TypeInt, TypeBool, TypeEnum, TypeDate:
		col, err := structures.OpenIntColumn(alloc, ref, parent, idx, limits)
		if err != nil {
			return nil, err
		}
		slot.intCol = col
	case TypeString, TypeBinary, TypeMixed:
		col, err := structures.OpenAdaptiveStringColumn(alloc, ref, parent, idx, limits)
		if err != nil {
			return nil, err
		}
		slot.strCol = col
	case TypeTable:
		col, err := structures.OpenSubtableColumn(alloc, ref, parent, idx)
		if err != nil {
			return nil, err
		}
		slot.subCol = col
	default:
		return nil, fmt.Errorf("unknown column type tag %d", typ)
	}
	return slot, nil
}

// RegisterColumn appends a new column of the given type and name. Only
// valid before any row has been inserted.
func (t *Table) RegisterColumn(typ ColumnType, name string) error {
	if t.size != 0 {
		return fmt.Errorf("register_column: table already has %d rows", t.size)
	}
	if err := t.types.Add(int64(typ)); err != nil {
		return err
	}
	if err := t.names.Add(name); err != nil {
		return err
	}

	var slot *columnSlot
	switch typ {
	case TypeInt, TypeBool, TypeEnum, TypeDate:
		col, err := structures.NewIntColumn(t.alloc, t.limits)
		if err != nil {
			return err
		}
		slot = &columnSlot{typ: typ, name: name, intCol: col}
	case TypeString, TypeBinary, TypeMixed:
		col, err := structures.NewAdaptiveStringColumn(t.alloc, t.limits)
		if err != nil {
			return err
		}
		slot = &columnSlot{typ: typ, name: name, strCol: col}
	case TypeTable:
		col, err := structures.NewSubtableColumn(t.alloc)
		if err != nil {
			return err
		}
		slot = &columnSlot{typ: typ, name: name, subCol: col}
	default:
		return fmt.Errorf("register_column: unknown type tag %d", typ)
	}

	if err := t.columnsRefs.AddRef(slot.ref()); err != nil {
		return err
	}
	t.columns = append(t.columns, slot)
	return nil
}

// ColumnCount returns the number of registered columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnName returns the name of column col.
func (t *Table) ColumnName(col int) string { return t.columns[col].name }

// ColumnType returns the type tag of column col.
func (t *Table) ColumnType(col int) ColumnType { return t.columns[col].typ }

// FindColumn returns the index of the column named name, or -1.
func (t *Table) FindColumn(name string) int {
	for i, c := range t.columns {
		if c.name == name {
			return i
		}
	}
	return -1
}

// Size returns the table's row count (m_size).
func (t *Table) Size() int { return t.size }

// Clear removes every row from the table (columns are re-created empty).
func (t *Table) Clear() error {
	for _, c := range t.columns {
		switch {
		case c.intCol != nil:
			if err := c.intCol.Destroy(); err != nil {
				return err
			}
			col, err := structures.NewIntColumn(t.alloc, t.limits)
			if err != nil {
				return err
			}
			c.intCol = col
		case c.strCol != nil:
			if err := c.strCol.Destroy(); err != nil {
				return err
			}
			col, err := structures.NewAdaptiveStringColumn(t.alloc, t.limits)
			if err != nil {
				return err
			}
			c.strCol = col
		case c.subCol != nil:
			if err := c.subCol.Destroy(); err != nil {
				return err
			}
			col, err := structures.NewSubtableColumn(t.alloc)
			if err != nil {
				return err
			}
			c.subCol = col
		}
	}
	for i, c := range t.columns {
		if err := t.columnsRefs.SetRef(i, c.ref()); err != nil {
			return err
		}
	}
	t.size = 0
	return nil
}

// AddEmptyRow appends one row, inserting a zero value into every
// column. insertDone is implicitly satisfied: every column is mutated
// before the row count is bumped and made visible to readers.
func (t *Table) AddEmptyRow() error {
	row := t.size
	for i, c := range t.columns {
		if err := t.insertDefaultAt(c, row); err != nil {
			return err
		}
		if err := t.columnsRefs.SetRef(i, c.ref()); err != nil {
			return err
		}
	}
	t.size++
	return nil
}

func (t *Table) insertDefaultAt(c *columnSlot, row int) error {
	switch {
	case c.intCol != nil:
		return c.intCol.Insert(row, 0)
	case c.strCol != nil:
		return c.strCol.Insert(row, "")
	case c.subCol != nil:
		return c.subCol.Insert(row)
	default:
		return fmt.Errorf("column %q has no backing storage", c.name)
	}
}

// EraseRow removes row from every column.
func (t *Table) EraseRow(row int) error {
	if row < 0 || row >= t.size {
		panic(fmt.Sprintf("erase_row: index %d out of bounds (size %d)", row, t.size))
	}
	for i, c := range t.columns {
		var err error
		switch {
		case c.intCol != nil:
			err = c.intCol.Erase(row)
		case c.strCol != nil:
			err = c.strCol.Erase(row)
		case c.subCol != nil:
			err = c.subCol.Erase(row)
		}
		if err != nil {
			return err
		}
		if err := t.columnsRefs.SetRef(i, c.ref()); err != nil {
			return err
		}
	}
	t.size--
	return nil
}

// InsertDone is the `insert_done` barrier: it checks that every column
// reports exactly Size() rows and returns an error naming the first
// column that does not. Every public mutator above already leaves the
// columns and the row count consistent before returning, so there is
// no pending state to flush; the check is the whole of its work.
func (t *Table) InsertDone() error {
	for _, c := range t.columns {
		n, err := c.size()
		if err != nil {
			return err
		}
		if n != t.size {
			return fmt.Errorf("row-count coherence violated: column %q has %d rows, table has %d", c.name, n, t.size)
		}
	}
	return nil
}

func (t *Table) col(idx int) *columnSlot {
	if idx < 0 || idx >= len(t.columns) {
		panic(fmt.Sprintf("column index %d out of bounds (count %d)", idx, len(t.columns)))
	}
	return t.columns[idx]
}

// GetInt returns the int64 stored at (col, row).
func (t *Table) GetInt(col, row int) (int64, error) {
	c := t.col(col)
	if c.intCol == nil {
		panic(fmt.Sprintf("column %q is not an int-backed column", c.name))
	}
	return c.intCol.Get(row)
}

// SetInt overwrites the int64 stored at (col, row).
func (t *Table) SetInt(col, row int, v int64) error {
	c := t.col(col)
	if c.intCol == nil {
		panic(fmt.Sprintf("column %q is not an int-backed column", c.name))
	}
	if err := c.intCol.Set(row, v); err != nil {
		return err
	}
	return t.columnsRefs.SetRef(col, c.ref())
}

// InsertInt writes v into the existing row (col, row) and re-syncs the
// column's root ref. It does not add a row or change Size(); rows are
// added with AddEmptyRow.
func (t *Table) InsertInt(col, row int, v int64) error {
	c := t.col(col)
	if c.intCol == nil {
		panic(fmt.Sprintf("column %q is not an int-backed column", c.name))
	}
	if err := c.intCol.Set(row, v); err != nil {
		return err
	}
	return t.columnsRefs.SetRef(col, c.ref())
}

// GetBool returns the bool stored at (col, row).
func (t *Table) GetBool(col, row int) (bool, error) {
	v, err := t.GetInt(col, row)
	return v != 0, err
}

// SetBool overwrites the bool stored at (col, row).
func (t *Table) SetBool(col, row int, v bool) error {
	var iv int64
	if v {
		iv = 1
	}
	return t.SetInt(col, row, iv)
}

// GetString returns the string stored at (col, row).
func (t *Table) GetString(col, row int) (string, error) {
	c := t.col(col)
	if c.strCol == nil {
		panic(fmt.Sprintf("column %q is not a string-backed column", c.name))
	}
	return c.strCol.Get(row)
}

// SetString overwrites the string stored at (col, row).
func (t *Table) SetString(col, row int, s string) error {
	c := t.col(col)
	if c.strCol == nil {
		panic(fmt.Sprintf("column %q is not a string-backed column", c.name))
	}
	if err := c.strCol.Set(row, s); err != nil {
		return err
	}
	return t.columnsRefs.SetRef(col, c.ref())
}

// GetSubtable returns the nested table at (col, row), materialising an
// empty one in place on first access.
func (t *Table) GetSubtable(col, row int) (*Table, error) {
	c := t.col(col)
	if c.subCol == nil {
		panic(fmt.Sprintf("column %q is not a sub-table column", c.name))
	}
	ref, err := c.subCol.GetRef(row)
	if err != nil {
		return nil, err
	}
	if ref != structures.NullRef {
		return openTable(t.alloc, ref, nil, 0, t.limits)
	}
	nested, err := newTable(t.alloc, t.limits)
	if err != nil {
		return nil, err
	}
	if err := c.subCol.SetRef(row, nested.root.Ref()); err != nil {
		return nil, err
	}
	return nested, nil
}

// rootRef returns the table's root ref, used by Group to populate its
// top-level tables array.
func (t *Table) rootRef() structures.Ref { return t.root.Ref() }
