package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/tdbcore/internal/config"
)

func smallLimits() config.Limits {
	l := config.Default()
	l.IntLeafSoftLimit = 4
	l.MaxNodeEntries = 4
	l.StringLeafSoftLimit = 4
	return l
}

func TestIntColumnAddAndGet(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, config.Default())
	require.NoError(t, err)

	for i := int64(0); i < 50; i++ {
		require.NoError(t, c.Add(i * 2))
	}
	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	for i := 0; i < 50; i++ {
		v, err := c.Get(i)
		require.NoError(t, err)
		assert.Equal(t, int64(i*2), v)
	}
}

func TestIntColumnSplitsIntoBTree(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)

	for i := int64(0); i < 200; i++ {
		require.NoError(t, c.Add(i))
	}
	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	root, err := Open(alloc, c.Ref(), nil, 0)
	require.NoError(t, err)
	assert.True(t, root.IsNode(), "column should have split into a B+tree node")

	for i := 0; i < 200; i++ {
		v, err := c.Get(i)
		require.NoError(t, err)
		assert.Equal(t, int64(i), v)
	}
}

func TestIntColumnInsertAtMiddle(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)

	for i := int64(0); i < 100; i++ {
		require.NoError(t, c.Add(i))
	}
	require.NoError(t, c.Insert(50, 999))

	v, err := c.Get(50)
	require.NoError(t, err)
	assert.Equal(t, int64(999), v)
	v, err = c.Get(51)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)
	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 101, n)
}

func TestIntColumnErase(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, c.Add(i))
	}
	require.NoError(t, c.Erase(10))

	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 99, n)

	v, err := c.Get(10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)
}

func TestIntColumnFindFirstAndFindAll(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)
	for _, v := range []int64{3, 1, 4, 1, 5, 9, 1} {
		require.NoError(t, c.Add(v))
	}

	idx, err := c.FindFirst(1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	out, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)
	require.NoError(t, c.FindAll(1, out))
	n, err := out.Size()
	require.NoError(t, err)
	rows := make([]int64, n)
	for i := 0; i < n; i++ {
		rows[i], err = out.Get(i)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 3, 6}, rows)
}

func TestIntColumnMinMaxSumAverage(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, config.Default())
	require.NoError(t, err)
	for _, v := range []int64{5, 1, 9, 3} {
		require.NoError(t, c.Add(v))
	}

	min, ok, err := c.Min()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), min)

	max, ok, err := c.Max()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), max)

	sum, err := c.Sum()
	require.NoError(t, err)
	assert.Equal(t, int64(18), sum)

	avg, err := c.Average()
	require.NoError(t, err)
	assert.InDelta(t, 4.5, avg, 0.0001)
}

func TestIntColumnDestroy(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewIntColumn(alloc, smallLimits())
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, c.Add(i))
	}
	require.NoError(t, c.Destroy())
}
