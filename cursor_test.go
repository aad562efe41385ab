package tdbcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorGetSet(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "n"))
	require.NoError(t, tbl.RegisterColumn(TypeString, "s"))
	require.NoError(t, tbl.AddEmptyRow())

	c := NewCursor(tbl, 0)
	require.True(t, c.Valid())

	require.NoError(t, c.SetInt(0, 42))
	v, err := c.GetInt(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	require.NoError(t, c.SetString(1, "hi"))
	s, err := c.GetString(1)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
}

func TestCursorInvalidatedAfterRowRemoved(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "n"))
	require.NoError(t, tbl.AddEmptyRow())
	require.NoError(t, tbl.AddEmptyRow())

	c := NewCursor(tbl, 1)
	require.True(t, c.Valid())

	require.NoError(t, tbl.EraseRow(0))
	require.NoError(t, tbl.EraseRow(0))

	assert.False(t, c.Valid())
	_, err := c.GetInt(0)
	assert.Error(t, err)
}

func TestCursorSubtable(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeTable, "children"))
	require.NoError(t, tbl.AddEmptyRow())

	c := NewCursor(tbl, 0)
	nested, err := c.Subtable(0)
	require.NoError(t, err)
	assert.Equal(t, 0, nested.Size())
}
