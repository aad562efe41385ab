package writer

import (
	"fmt"
	"sort"

	"github.com/scigolib/tdbcore/internal/utils"
)

// FreeListHashThreshold is the free-list length above which the
// allocator additionally consults the xxhash size index rather than
// scanning linearly for a best fit.
const FreeListHashThreshold = 64

// freeSpan is one entry of the allocator's free list: an unused byte
// range [Offset, Offset+Size) inside the backing region.
type freeSpan struct {
	Offset uint64
	Size   uint64
}

// Allocator hands out and reclaims byte ranges inside a Backend. It
// implements the region-allocator contract: alloc/realloc/
// free/translate, plus the read-only watermark guard that triggers
// copy-on-write relocation.
type Allocator struct {
	backend Backend
	spans   []freeSpan // sorted by Offset, ascending; adjacent spans never touch (always coalesced)
	index   *sizeIndex
}

// NewAllocator wraps backend with an empty free list. initialTop is the
// first offset available for allocation (the backend's existing content,
// e.g. a just-written top-array header, occupies [0, initialTop)).
func NewAllocator(backend Backend, initialTop uint64) (*Allocator, error) {
	if backend.Len() < initialTop {
		if err := backend.Grow(initialTop); err != nil {
			return nil, utils.WrapKind("allocator init", utils.ErrAllocFailed, err)
		}
	}
	return &Allocator{backend: backend, index: newSizeIndex()}, nil
}

// Backend returns the underlying region backend.
func (a *Allocator) Backend() Backend { return a.backend }

// IsReadOnly reports whether ref lies below the backend's read-only
// watermark and must not be mutated in place.
func (a *Allocator) IsReadOnly(ref uint64) bool {
	return ref < a.backend.Watermark()
}

// Translate has no pointer-arithmetic meaning in this Go port (Backend
// already indexes by logical offset); it exists to keep the public
// contract symmetrical with Backend's and is used by callers that want
// to assert a ref is currently valid.
func (a *Allocator) Translate(ref uint64) (uint64, error) {
	if ref > a.backend.Len() {
		return 0, fmt.Errorf("ref %d beyond region length %d", ref, a.backend.Len())
	}
	return ref, nil
}

// Alloc reserves size bytes, preferring a best-fit free span before
// growing the backend, and returns its offset.
func (a *Allocator) Alloc(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("alloc: zero size")
	}

	if i, ok := a.bestFit(size); ok {
		span := a.spans[i]
		a.removeSpan(i)
		if span.Size > size {
			a.insertSpan(freeSpan{Offset: span.Offset + size, Size: span.Size - size})
		}
		return span.Offset, nil
	}

	off := a.backend.Len()
	if err := a.backend.Grow(off + size); err != nil {
		return 0, utils.WrapKind("alloc grow", utils.ErrAllocFailed, err)
	}
	return off, nil
}

// bestFit finds the smallest free span that fits size, returning its
// index in a.spans. Below FreeListHashThreshold entries it scans
// linearly (documented policy); above it, it first asks the size index
// and falls back to a linear scan if the index yields nothing (it
// should never disagree with the list, only be stale immediately after
// a bulk mutation before rebuild() runs). Spans below the backend's
// read-only watermark are skipped: a group reopened from disk restores
// its free list from the file as it stood at save time, so some spans
// may sit inside the now-read-only mapped prefix and cannot be written
// to directly.
func (a *Allocator) bestFit(size uint64) (int, bool) {
	watermark := a.backend.Watermark()

	if len(a.spans) > FreeListHashThreshold {
		a.index.rebuild(a.spans)
		for _, i := range a.index.candidates(size, a.spans) {
			if a.spans[i].Offset >= watermark {
				return i, true
			}
		}
	}

	best := -1
	for i, s := range a.spans {
		if s.Offset < watermark {
			continue
		}
		if s.Size >= size && (best < 0 || s.Size < a.spans[best].Size) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// Free returns [ref, ref+size) to the free list, coalescing with an
// immediately adjacent left or right neighbor span. This resolves the
// free-list coalescing policy: adjacent frees DO coalesce,
// bounding free-list growth under repeated alloc/free of neighboring
// spans, though it cannot reclaim fragmentation from non-adjacent spans.
func (a *Allocator) Free(ref, size uint64) {
	if size == 0 {
		return
	}
	a.insertSpan(freeSpan{Offset: ref, Size: size})
}

// insertSpan inserts span in Offset order and coalesces with neighbors.
func (a *Allocator) insertSpan(span freeSpan) {
	i := sort.Search(len(a.spans), func(i int) bool { return a.spans[i].Offset >= span.Offset })
	a.spans = append(a.spans, freeSpan{})
	copy(a.spans[i+1:], a.spans[i:])
	a.spans[i] = span

	// Coalesce with right neighbor.
	if i+1 < len(a.spans) && a.spans[i].Offset+a.spans[i].Size == a.spans[i+1].Offset {
		a.spans[i].Size += a.spans[i+1].Size
		a.spans = append(a.spans[:i+1], a.spans[i+2:]...)
	}
	// Coalesce with left neighbor.
	if i > 0 && a.spans[i-1].Offset+a.spans[i-1].Size == a.spans[i].Offset {
		a.spans[i-1].Size += a.spans[i].Size
		a.spans = append(a.spans[:i], a.spans[i+1:]...)
	}
}

func (a *Allocator) removeSpan(i int) {
	a.spans = append(a.spans[:i], a.spans[i+1:]...)
}

// Realloc grows or shrinks the allocation at ref from oldSize to
// newSize, extending in place when the immediately following span is
// free and large enough, otherwise allocating fresh, copying, and
// freeing the old span. A ref below the backend's read-only watermark
// can never be extended, shrunk, or freed in place — it always
// relocates to a fresh span, implementing the copy-on-write guard a
// mapped group's read-only prefix requires.
func (a *Allocator) Realloc(ref, oldSize, newSize uint64) (uint64, error) {
	if a.IsReadOnly(ref) {
		return a.relocate(ref, oldSize, newSize)
	}

	if newSize <= oldSize {
		if newSize < oldSize {
			a.Free(ref+newSize, oldSize-newSize)
		}
		return ref, nil
	}

	grow := newSize - oldSize
	for i, s := range a.spans {
		if s.Offset == ref+oldSize && s.Size >= grow {
			a.removeSpan(i)
			if s.Size > grow {
				a.insertSpan(freeSpan{Offset: s.Offset + grow, Size: s.Size - grow})
			}
			if err := a.backend.Grow(ref + newSize); err != nil {
				return 0, utils.WrapKind("realloc extend", utils.ErrAllocFailed, err)
			}
			return ref, nil
		}
	}

	newRef, err := a.Alloc(newSize)
	if err != nil {
		return 0, err
	}
	buf := utils.GetBuffer(int(oldSize))
	defer utils.ReleaseBuffer(buf)
	if err := a.backend.Read(ref, buf); err != nil {
		return 0, utils.WrapKind("realloc copy read", utils.ErrAllocFailed, err)
	}
	if err := a.backend.Write(newRef, buf); err != nil {
		return 0, utils.WrapKind("realloc copy write", utils.ErrAllocFailed, err)
	}
	a.Free(ref, oldSize)
	return newRef, nil
}

// relocate copies the oldSize bytes at ref into a freshly allocated span
// sized newSize and returns the new ref. Used for any ref the backend
// cannot be written to in place (below the read-only watermark); ref
// itself is never freed afterward since it is not a span this allocator
// owns — it belongs to the backend's immutable mapped prefix.
func (a *Allocator) relocate(ref, oldSize, newSize uint64) (uint64, error) {
	newRef, err := a.Alloc(newSize)
	if err != nil {
		return 0, utils.WrapKind("relocate alloc", utils.ErrAllocFailed, err)
	}
	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}
	if copySize > 0 {
		buf := utils.GetBuffer(int(copySize))
		defer utils.ReleaseBuffer(buf)
		if err := a.backend.Read(ref, buf); err != nil {
			return 0, utils.WrapKind("relocate copy read", utils.ErrAllocFailed, err)
		}
		if err := a.backend.Write(newRef, buf); err != nil {
			return 0, utils.WrapKind("relocate copy write", utils.ErrAllocFailed, err)
		}
	}
	return newRef, nil
}

// EnsureWritable returns ref unchanged if it already lies above the
// read-only watermark, or relocates the size bytes at ref into a fresh
// span and returns the new ref otherwise. Used by callers that mutate a
// fixed-size region in place (no Realloc call of their own) and so must
// perform the copy-on-write check themselves before writing.
func (a *Allocator) EnsureWritable(ref, size uint64) (uint64, error) {
	if !a.IsReadOnly(ref) {
		return ref, nil
	}
	return a.relocate(ref, size, size)
}

// FreeListSnapshot returns the current free spans as parallel
// positions/sizes slices, the in-memory form of the group top array's
// free_positions/free_sizes Arrays.
func (a *Allocator) FreeListSnapshot() (positions, sizes []uint64) {
	positions = make([]uint64, len(a.spans))
	sizes = make([]uint64, len(a.spans))
	for i, s := range a.spans {
		positions[i] = s.Offset
		sizes[i] = s.Size
	}
	return positions, sizes
}

// RestoreFreeList replaces the free list wholesale, used when reopening
// a group whose free-list Arrays were just read back from the region.
func (a *Allocator) RestoreFreeList(positions, sizes []uint64) error {
	if len(positions) != len(sizes) {
		return fmt.Errorf("free list position/size length mismatch: %d vs %d", len(positions), len(sizes))
	}
	a.spans = a.spans[:0]
	for i := range positions {
		a.insertSpan(freeSpan{Offset: positions[i], Size: sizes[i]})
	}
	return nil
}
