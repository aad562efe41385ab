package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorAllocGrows(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	off1, err := alloc.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off1)

	off2, err := alloc.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), off2)
}

func TestAllocatorFreeAndReuse(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	off, err := alloc.Alloc(16)
	require.NoError(t, err)
	alloc.Free(off, 16)

	reused, err := alloc.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, off, reused, "freed span of exact size should be reused before growing")
}

func TestAllocatorCoalescesAdjacentSpans(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	a, err := alloc.Alloc(16)
	require.NoError(t, err)
	b, err := alloc.Alloc(16)
	require.NoError(t, err)

	alloc.Free(a, 16)
	alloc.Free(b, 16)

	// The two adjacent 16-byte spans should have coalesced into one
	// 32-byte span, satisfiable without growing the backend further.
	lenBefore := alloc.Backend().Len()
	off, err := alloc.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, a, off)
	assert.Equal(t, lenBefore, alloc.Backend().Len())
}

func TestAllocatorReallocGrowExtendsInPlaceWhenAdjacentFree(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	off, err := alloc.Alloc(16)
	require.NoError(t, err)
	tail, err := alloc.Alloc(16)
	require.NoError(t, err)
	alloc.Free(tail, 16)

	newOff, err := alloc.Realloc(off, 16, 32)
	require.NoError(t, err)
	assert.Equal(t, off, newOff, "growing into an adjacent free span should not relocate")
}

func TestAllocatorReallocShrinkFreesTail(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	off, err := alloc.Alloc(32)
	require.NoError(t, err)

	newOff, err := alloc.Realloc(off, 32, 16)
	require.NoError(t, err)
	assert.Equal(t, off, newOff)

	reused, err := alloc.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, off+16, reused, "the freed tail half should be reusable")
}

func TestAllocatorFreeListSnapshotRoundTrip(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	a, err := alloc.Alloc(16)
	require.NoError(t, err)
	_, err = alloc.Alloc(16)
	require.NoError(t, err)
	alloc.Free(a, 16)

	positions, sizes := alloc.FreeListSnapshot()
	require.Len(t, positions, 1)
	require.Len(t, sizes, 1)

	other := NewHeapBackend()
	require.NoError(t, other.Grow(backend.Len()))
	alloc2, err := NewAllocator(other, 0)
	require.NoError(t, err)
	require.NoError(t, alloc2.RestoreFreeList(positions, sizes))

	reused, err := alloc2.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, a, reused)
}

func TestAllocatorBestFitAboveHashThreshold(t *testing.T) {
	backend := NewHeapBackend()
	alloc, err := NewAllocator(backend, 0)
	require.NoError(t, err)

	// Alternate sizes so every other span stays allocated: freeing only
	// the odd-indexed ones leaves many non-adjacent free spans instead
	// of one coalesced span, exercising the size index once the free
	// list grows past FreeListHashThreshold.
	var offsets []uint64
	for i := 0; i < 2*(FreeListHashThreshold+10); i++ {
		off, err := alloc.Alloc(8)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	for i, off := range offsets {
		if i%2 == 1 {
			alloc.Free(off, 8)
		}
	}

	off, err := alloc.Alloc(8)
	require.NoError(t, err)
	assert.Contains(t, offsets, off)
}
