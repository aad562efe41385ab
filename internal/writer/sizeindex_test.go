package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClassGeometricBucketing(t *testing.T) {
	assert.Equal(t, uint64(0), sizeClass(0))
	assert.Equal(t, uint64(0), sizeClass(1))
	assert.Equal(t, uint64(4), sizeClass(16))
	assert.Equal(t, uint64(5), sizeClass(17))
	assert.Equal(t, uint64(5), sizeClass(32))
}

func TestSizeIndexRebuildAndCandidates(t *testing.T) {
	spans := []freeSpan{
		{Offset: 0, Size: 16},
		{Offset: 16, Size: 64},
		{Offset: 80, Size: 1000},
	}
	idx := newSizeIndex()
	idx.rebuild(spans)

	cands := idx.candidates(50, spans)
	assert.Contains(t, cands, 1)
	assert.NotContains(t, cands, 0)
}

func TestSizeIndexResetClearsBuckets(t *testing.T) {
	idx := newSizeIndex()
	idx.add(0, 100)
	assert.NotEmpty(t, idx.buckets)
	idx.reset()
	assert.Empty(t, idx.buckets)
}
