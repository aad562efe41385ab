package tdbcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/tdbcore/internal/config"
	"github.com/scigolib/tdbcore/internal/writer"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	backend := writer.NewHeapBackend()
	alloc, err := writer.NewAllocator(backend, 0)
	require.NoError(t, err)
	tbl, err := newTable(alloc, config.Default())
	require.NoError(t, err)
	return tbl
}

func TestTableRegisterColumnAndAddRows(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "age"))
	require.NoError(t, tbl.RegisterColumn(TypeString, "name"))
	require.NoError(t, tbl.RegisterColumn(TypeBool, "active"))

	assert.Equal(t, 3, tbl.ColumnCount())
	assert.Equal(t, 0, tbl.FindColumn("age"))
	assert.Equal(t, -1, tbl.FindColumn("nope"))

	require.NoError(t, tbl.AddEmptyRow())
	require.NoError(t, tbl.AddEmptyRow())
	assert.Equal(t, 2, tbl.Size())

	require.NoError(t, tbl.SetInt(0, 0, 30))
	require.NoError(t, tbl.SetString(1, 0, "ada"))
	require.NoError(t, tbl.SetBool(2, 0, true))

	age, err := tbl.GetInt(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(30), age)

	name, err := tbl.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "ada", name)

	active, err := tbl.GetBool(2, 0)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, tbl.InsertDone())
}

func TestTableRegisterColumnFailsAfterRows(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "age"))
	require.NoError(t, tbl.AddEmptyRow())

	err := tbl.RegisterColumn(TypeString, "name")
	assert.Error(t, err)
}

func TestTableEraseRowShrinksEveryColumn(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "n"))
	for i := int64(0); i < 5; i++ {
		require.NoError(t, tbl.AddEmptyRow())
		require.NoError(t, tbl.SetInt(0, int(i), i))
	}

	require.NoError(t, tbl.EraseRow(1))
	assert.Equal(t, 4, tbl.Size())

	v, err := tbl.GetInt(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestTableClearResetsColumns(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "n"))
	for i := 0; i < 3; i++ {
		require.NoError(t, tbl.AddEmptyRow())
	}
	require.NoError(t, tbl.Clear())
	assert.Equal(t, 0, tbl.Size())
}

func TestTableGetSubtableMaterializesOnce(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeTable, "children"))
	require.NoError(t, tbl.AddEmptyRow())

	nested, err := tbl.GetSubtable(0, 0)
	require.NoError(t, err)
	require.NoError(t, nested.RegisterColumn(TypeInt, "x"))
	require.NoError(t, nested.AddEmptyRow())
	require.NoError(t, nested.SetInt(0, 0, 7))

	again, err := tbl.GetSubtable(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Size())
	v, err := again.GetInt(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestTableRowCountCoherenceAcrossColumns(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.RegisterColumn(TypeInt, "a"))
	require.NoError(t, tbl.RegisterColumn(TypeString, "b"))
	require.NoError(t, tbl.RegisterColumn(TypeTable, "c"))

	for i := 0; i < 20; i++ {
		require.NoError(t, tbl.AddEmptyRow())
	}
	require.NoError(t, tbl.InsertDone())
	assert.Equal(t, 20, tbl.Size())
}
