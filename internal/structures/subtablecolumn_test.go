package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubtableColumnInsertStartsNull(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewSubtableColumn(alloc)
	require.NoError(t, err)

	require.NoError(t, c.Add())
	require.NoError(t, c.Add())
	assert.Equal(t, 2, c.Size())

	ref, err := c.GetRef(0)
	require.NoError(t, err)
	assert.Equal(t, NullRef, ref)
}

func TestSubtableColumnSetRefMaterializes(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewSubtableColumn(alloc)
	require.NoError(t, err)
	require.NoError(t, c.Add())

	nested, err := Create(alloc, true)
	require.NoError(t, err)
	require.NoError(t, c.SetRef(0, nested.Ref()))

	got, err := c.GetRef(0)
	require.NoError(t, err)
	assert.Equal(t, nested.Ref(), got)
}

func TestSubtableColumnDestroyCascades(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewSubtableColumn(alloc)
	require.NoError(t, err)
	require.NoError(t, c.Add())

	nested, err := Create(alloc, true)
	require.NoError(t, err)
	require.NoError(t, nested.AddRef(NullRef))
	require.NoError(t, c.SetRef(0, nested.Ref()))

	require.NoError(t, c.Destroy())
}

func TestSubtableColumnErase(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewSubtableColumn(alloc)
	require.NoError(t, err)
	require.NoError(t, c.Add())
	require.NoError(t, c.Add())
	require.NoError(t, c.Erase(0))
	assert.Equal(t, 1, c.Size())
}
