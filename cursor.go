package tdbcore

import "fmt"

// Cursor is a non-owning (table, row) handle proxying typed per-column
// access. Mutating operations that shift rows below
// the cursor's row (EraseRow on an earlier row) invalidate it logically;
// Valid reports whether the cursor still addresses a live row, but
// reading an invalidated cursor beyond that check is undefined, same as
// the underlying Table/Array precondition contract.
type Cursor struct {
	table *Table
	row   int
}

// NewCursor returns a cursor over table at row. row is not bounds
// checked until first use, matching the Array/Table precondition
// contract elsewhere in this package.
func NewCursor(table *Table, row int) *Cursor {
	return &Cursor{table: table, row: row}
}

// Row returns the cursor's current row index.
func (c *Cursor) Row() int { return c.row }

// Valid reports whether the cursor's row is still within the table's
// current bounds.
func (c *Cursor) Valid() bool {
	return c.row >= 0 && c.row < c.table.Size()
}

func (c *Cursor) checkValid(op string) error {
	if !c.Valid() {
		return fmt.Errorf("%s: cursor invalidated (row %d, table size %d)", op, c.row, c.table.Size())
	}
	return nil
}

// GetInt reads the int64 at (col, cursor row).
func (c *Cursor) GetInt(col int) (int64, error) {
	if err := c.checkValid("get_int"); err != nil {
		return 0, err
	}
	return c.table.GetInt(col, c.row)
}

// SetInt writes the int64 at (col, cursor row).
func (c *Cursor) SetInt(col int, v int64) error {
	if err := c.checkValid("set_int"); err != nil {
		return err
	}
	return c.table.SetInt(col, c.row, v)
}

// GetBool reads the bool at (col, cursor row).
func (c *Cursor) GetBool(col int) (bool, error) {
	if err := c.checkValid("get_bool"); err != nil {
		return false, err
	}
	return c.table.GetBool(col, c.row)
}

// SetBool writes the bool at (col, cursor row).
func (c *Cursor) SetBool(col int, v bool) error {
	if err := c.checkValid("set_bool"); err != nil {
		return err
	}
	return c.table.SetBool(col, c.row, v)
}

// GetString reads the string at (col, cursor row).
func (c *Cursor) GetString(col int) (string, error) {
	if err := c.checkValid("get_string"); err != nil {
		return "", err
	}
	return c.table.GetString(col, c.row)
}

// SetString writes the string at (col, cursor row).
func (c *Cursor) SetString(col int, s string) error {
	if err := c.checkValid("set_string"); err != nil {
		return err
	}
	return c.table.SetString(col, c.row, s)
}

// Subtable returns the nested table at (col, cursor row).
func (c *Cursor) Subtable(col int) (*Table, error) {
	if err := c.checkValid("get_subtable"); err != nil {
		return nil, err
	}
	return c.table.GetSubtable(col, c.row)
}
