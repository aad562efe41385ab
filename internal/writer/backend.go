// Package writer provides the region backing store and free-space
// allocator for tdbcore. The Allocator hands out and reclaims byte
// ranges inside a Backend; two Backend implementations share one
// contract: a growable heap buffer for
// transient in-memory groups, and a read-only memory-mapped file with a
// growable heap overflow for groups opened from disk.
package writer

import (
	"fmt"

	"github.com/go-mmap/mmap"

	"github.com/scigolib/tdbcore/internal/utils"
)

// Backend abstracts the byte region an Allocator carves spans out of.
// Every offset (ref) passed to a Backend method is relative to offset 0
// of the logical region, regardless of how many physical segments back
// it.
type Backend interface {
	// Read copies len(p) bytes starting at off into p.
	Read(off uint64, p []byte) error
	// Write copies p into the region starting at off. Writing below
	// Watermark must never be attempted; callers are expected to have
	// already copy-on-write relocated (see Allocator.EnsureWritable).
	Write(off uint64, p []byte) error
	// Len returns the current logical region length.
	Len() uint64
	// Grow extends the logical region to at least newLen, zero-filling
	// the new span.
	Grow(newLen uint64) error
	// Watermark returns the offset below which bytes are backed by a
	// read-only mapping (0 for a purely heap-backed region).
	Watermark() uint64
	// Close releases any OS resources (mmap, file handle).
	Close() error
}

// HeapBackend is a growable, heap-owned byte buffer. Used for transient
// in-memory groups created with NewGroup (no read-only prefix).
type HeapBackend struct {
	buf          []byte
	growthFactor uint64
}

// NewHeapBackend creates an empty growable heap-backed region.
func NewHeapBackend() *HeapBackend {
	return &HeapBackend{buf: make([]byte, 0, 4096), growthFactor: 2}
}

// SetGrowthFactor overrides the doubling multiplier Grow uses when
// extending the backing buffer; factor must be at least 2 or it is
// ignored (growth must make progress every iteration).
func (b *HeapBackend) SetGrowthFactor(factor int) {
	if factor >= 2 {
		b.growthFactor = uint64(factor)
	}
}

func (b *HeapBackend) Read(off uint64, p []byte) error {
	if off+uint64(len(p)) > uint64(len(b.buf)) {
		return fmt.Errorf("heap backend read out of range: off=%d len=%d size=%d", off, len(p), len(b.buf))
	}
	copy(p, b.buf[off:off+uint64(len(p))])
	return nil
}

func (b *HeapBackend) Write(off uint64, p []byte) error {
	end := off + uint64(len(p))
	if end > uint64(len(b.buf)) {
		if err := b.Grow(end); err != nil {
			return err
		}
	}
	copy(b.buf[off:end], p)
	return nil
}

func (b *HeapBackend) Len() uint64 { return uint64(len(b.buf)) }

func (b *HeapBackend) Grow(newLen uint64) error {
	if newLen <= uint64(len(b.buf)) {
		return nil
	}
	// Geometric growth policy, never below newLen.
	target := uint64(cap(b.buf))
	if target == 0 {
		target = 4096
	}
	for target < newLen {
		target *= b.growthFactor
	}
	if target > uint64(cap(b.buf)) {
		grown := make([]byte, len(b.buf), target)
		copy(grown, b.buf)
		b.buf = grown
	}
	b.buf = b.buf[:newLen]
	return nil
}

func (b *HeapBackend) Watermark() uint64 { return 0 }

func (b *HeapBackend) Close() error { return nil }

// Bytes returns the live backing slice (for Group.Write flattening).
func (b *HeapBackend) Bytes() []byte { return b.buf }

// MappedBackend memory-maps a read-only region prefix (the bytes as
// they existed at open time) and backs anything at or above that
// watermark with a growable heap overflow, exactly the split the
// copy-on-write read-only guard assumes: relocated/new Arrays always
// land above the watermark.
type MappedBackend struct {
	mapped       *mmap.File
	mapData      []byte
	overflow     []byte // bytes at [watermark, watermark+len(overflow))
	watermark    uint64
	growthFactor uint64
}

// SetGrowthFactor overrides the doubling multiplier Grow uses when
// extending the heap overflow; factor must be at least 2 or it is
// ignored (growth must make progress every iteration).
func (b *MappedBackend) SetGrowthFactor(factor int) {
	if factor >= 2 {
		b.growthFactor = uint64(factor)
	}
}

// OpenMappedBackend memory-maps path read-only and prepares a zero-length
// heap overflow directly above it.
func OpenMappedBackend(path string) (*MappedBackend, error) {
	f, err := mmap.OpenFile(path, mmap.Read)
	if err != nil {
		return nil, utils.WrapError("mmap open failed", err)
	}
	data := f.Bytes()
	return &MappedBackend{
		mapped:       f,
		mapData:      data,
		watermark:    uint64(len(data)),
		growthFactor: 2,
	}, nil
}

// OpenMappedBuffer adopts a caller-owned byte slice as a read-only
// mapping substitute (OpenGroupBuffer), without touching the OS mmap
// machinery.
func OpenMappedBuffer(buf []byte) *MappedBackend {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return &MappedBackend{mapData: cp, watermark: uint64(len(cp)), growthFactor: 2}
}

func (b *MappedBackend) Read(off uint64, p []byte) error {
	if off+uint64(len(p)) <= b.watermark {
		copy(p, b.mapData[off:off+uint64(len(p))])
		return nil
	}
	if off >= b.watermark {
		rel := off - b.watermark
		if rel+uint64(len(p)) > uint64(len(b.overflow)) {
			return fmt.Errorf("mapped backend read out of range: off=%d len=%d size=%d", off, len(p), b.Len())
		}
		copy(p, b.overflow[rel:rel+uint64(len(p))])
		return nil
	}
	return fmt.Errorf("mapped backend read straddles watermark: off=%d len=%d watermark=%d", off, len(p), b.watermark)
}

func (b *MappedBackend) Write(off uint64, p []byte) error {
	if off < b.watermark {
		return fmt.Errorf("mapped backend write below watermark %d at off %d: caller must copy-on-write first", b.watermark, off)
	}
	end := off + uint64(len(p))
	if end > b.Len() {
		if err := b.Grow(end); err != nil {
			return err
		}
	}
	rel := off - b.watermark
	copy(b.overflow[rel:rel+uint64(len(p))], p)
	return nil
}

func (b *MappedBackend) Len() uint64 { return b.watermark + uint64(len(b.overflow)) }

func (b *MappedBackend) Grow(newLen uint64) error {
	if newLen <= b.Len() {
		return nil
	}
	needed := newLen - b.watermark
	target := uint64(cap(b.overflow))
	if target == 0 {
		target = 4096
	}
	for target < needed {
		target *= b.growthFactor
	}
	if target > uint64(cap(b.overflow)) {
		grown := make([]byte, len(b.overflow), target)
		copy(grown, b.overflow)
		b.overflow = grown
	}
	b.overflow = b.overflow[:needed]
	return nil
}

func (b *MappedBackend) Watermark() uint64 { return b.watermark }

func (b *MappedBackend) Close() error {
	if b.mapped != nil {
		return b.mapped.Close()
	}
	return nil
}

// SnapshotBelowWatermark returns the byte-identical read-only prefix,
// used by copy-on-write isolation tests.
func (b *MappedBackend) SnapshotBelowWatermark() []byte {
	out := make([]byte, len(b.mapData))
	copy(out, b.mapData)
	return out
}

// Flatten returns the full logical region (mapped prefix plus heap
// overflow) as one contiguous slice, used by Group.Write to re-persist
// a group that was opened from an existing file.
func (b *MappedBackend) Flatten() []byte {
	out := make([]byte, b.Len())
	copy(out, b.mapData)
	copy(out[b.watermark:], b.overflow)
	return out
}
