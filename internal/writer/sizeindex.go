package writer

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// sizeIndex buckets free spans by size so a best-fit lookup over a large
// free list degrades to O(1) average instead of the documented O(n)
// linear scan. It is a pure performance
// accelerant: FreeListHashThreshold gates whether the allocator consults
// it at all, and the linear scan remains the correctness fallback used
// below that threshold and whenever the index disagrees (it never
// should, but Allocator.bestFit always falls back on a miss).
type sizeIndex struct {
	buckets map[uint64][]int // hash(size-class) -> positions in spans, sorted by size ascending within class
}

func newSizeIndex() *sizeIndex {
	return &sizeIndex{buckets: make(map[uint64][]int)}
}

// sizeClass buckets sizes geometrically (powers of two) so near-miss
// sizes land in the same bucket as an exact match, matching how a
// best-fit allocator tolerates using a larger free span.
func sizeClass(size uint64) uint64 {
	class := uint64(0)
	for (uint64(1) << class) < size {
		class++
	}
	return class
}

func hashSizeClass(class uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], class)
	return xxhash.Sum64(buf[:])
}

func (idx *sizeIndex) reset() {
	idx.buckets = make(map[uint64][]int)
}

func (idx *sizeIndex) add(spanIdx int, size uint64) {
	h := hashSizeClass(sizeClass(size))
	idx.buckets[h] = append(idx.buckets[h], spanIdx)
}

// rebuild recomputes the index from the current span slice. Called by
// Allocator.bestFit on every lookup while the free list exceeds
// FreeListHashThreshold.
func (idx *sizeIndex) rebuild(spans []freeSpan) {
	idx.reset()
	for i, s := range spans {
		idx.add(i, s.Size)
	}
}

// candidates returns the indices of spans that fit size and whose size
// class is the requested size's class or one of the next two, sorted by
// size ascending. Spans in larger classes are not returned; when none of
// these fits, Allocator.bestFit falls back to its linear scan.
func (idx *sizeIndex) candidates(size uint64, spans []freeSpan) []int {
	want := sizeClass(size)
	var out []int
	for class := want; class <= want+2; class++ {
		h := hashSizeClass(class)
		for _, i := range idx.buckets[h] {
			if i < len(spans) && spans[i].Size >= size {
				out = append(out, i)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return spans[out[i]].Size < spans[out[j]].Size })
	return out
}
