package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/tdbcore/internal/writer"
)

func newTestAllocator(t *testing.T) *writer.Allocator {
	t.Helper()
	backend := writer.NewHeapBackend()
	alloc, err := writer.NewAllocator(backend, 0)
	require.NoError(t, err)
	return alloc
}

func TestArrayCreateEmpty(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Size())
	assert.False(t, a.HasRefs())
}

func TestArrayAddAndGet(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)

	for i := int64(0); i < 10; i++ {
		require.NoError(t, a.Add(i*i))
	}
	assert.Equal(t, 10, a.Size())
	for i := 0; i < 10; i++ {
		v, err := a.Get(i)
		require.NoError(t, err)
		assert.Equal(t, int64(i*i), v)
	}
}

func TestArrayWidensOnLargeValue(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)

	require.NoError(t, a.Add(1))
	require.NoError(t, a.Add(1))
	require.NoError(t, a.Add(1 << 40))

	v, err := a.Get(2)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), v)
	v, err = a.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestArrayWidthMinimalForNegatives(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)

	require.NoError(t, a.Add(-1))
	v, err := a.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestArrayInsertShiftsTail(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)

	for _, v := range []int64{1, 2, 3} {
		require.NoError(t, a.Add(v))
	}
	require.NoError(t, a.Insert(1, 99))

	got, err := a.AsSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 99, 2, 3}, got)
}

func TestArrayErase(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)

	for _, v := range []int64{1, 2, 3} {
		require.NoError(t, a.Add(v))
	}
	require.NoError(t, a.Erase(1))

	got, err := a.AsSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, got)
}

func TestArrayOpenRoundTrip(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)
	for _, v := range []int64{5, 6, 7} {
		require.NoError(t, a.Add(v))
	}

	reopened, err := Open(alloc, a.Ref(), nil, 0)
	require.NoError(t, err)
	got, err := reopened.AsSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7}, got)
}

func TestArrayDestroyRecursesHasRefs(t *testing.T) {
	alloc := newTestAllocator(t)
	child, err := Create(alloc, false)
	require.NoError(t, err)
	require.NoError(t, child.Add(42))

	parent, err := Create(alloc, true)
	require.NoError(t, err)
	require.NoError(t, parent.AddRef(child.Ref()))

	require.NoError(t, parent.Destroy())
}

func TestArrayClear(t *testing.T) {
	alloc := newTestAllocator(t)
	a, err := Create(alloc, false)
	require.NoError(t, err)
	for _, v := range []int64{1, 2, 3} {
		require.NoError(t, a.Add(v))
	}
	require.NoError(t, a.Clear())
	assert.Equal(t, 0, a.Size())
}
