// Package structures implements the packed Array node and the B+tree
// logic layered above it: integer columns, adaptive string columns and
// sub-table columns. Arrays are the universal on-region node — node vs.
// leaf vs. refs vs. index is purely header flags, never a distinct Go
// type, the same way an HDF5 object header's messages share one wire
// shape across many logical roles.
package structures

import (
	"fmt"

	"github.com/scigolib/tdbcore/internal/core"
	"github.com/scigolib/tdbcore/internal/utils"
	"github.com/scigolib/tdbcore/internal/writer"
)

// Ref is a non-negative offset into a region; zero is the null ref.
type Ref uint64

// NullRef is the "no array" sentinel.
const NullRef Ref = 0

// Array is the in-memory accessor for one on-region packed array node.
// It caches the decoded header and holds a back-reference to its parent
// accessor so a grow-induced relocation can propagate the new ref
// upward. Go's garbage collector makes a direct
// parent pointer safe and idiomatic here, unlike the arena-of-indices
// fallback the design notes suggest for languages without raw mutable
// pointers into shared state — see DESIGN.md for that decision.
type Array struct {
	alloc *writer.Allocator
	ref   Ref

	isNode      bool
	hasRefs     bool
	isIndexNode bool
	width       int
	n           uint32
	capacity    uint32 // allocated payload bytes

	parent        *Array
	indexInParent int
}

// refWidth is the width used for has_refs arrays on this (64-bit ref)
// addressing scheme.
const refWidth = 64

// Create allocates a fresh, empty Array (n=0, w=0) and returns its
// accessor.
func Create(alloc *writer.Allocator, hasRefs bool) (*Array, error) {
	a := &Array{alloc: alloc, hasRefs: hasRefs}
	if hasRefs {
		a.width = refWidth
	}
	if err := a.allocateHeader(0); err != nil {
		return nil, err
	}
	return a, nil
}

// Open re-derives an Array accessor from an existing ref, re-reading its
// header. parent/indexInParent may be nil/0
// for a root array.
func Open(alloc *writer.Allocator, ref Ref, parent *Array, indexInParent int) (*Array, error) {
	a := &Array{alloc: alloc, ref: ref, parent: parent, indexInParent: indexInParent}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Array) reload() error {
	hdr := utils.GetBuffer(core.HeaderSize)
	defer utils.ReleaseBuffer(hdr)
	if err := a.alloc.Backend().Read(uint64(a.ref), hdr); err != nil {
		return utils.WrapKind("array header read", utils.ErrCorruptRegion, err)
	}
	decoded, err := core.DecodeHeader(hdr)
	if err != nil {
		return err
	}
	a.isNode = decoded.IsNode
	a.hasRefs = decoded.HasRefs
	a.isIndexNode = decoded.IsIndexNode
	a.width = decoded.Width
	a.n = decoded.Count
	a.capacity = decoded.Capacity
	return nil
}

// allocateHeader writes a brand-new header+payload for n elements at the
// current width, allocating through the Allocator, and sets a.ref.
func (a *Array) allocateHeader(n uint32) error {
	payload := core.AlignUp8(core.PayloadBytes(a.width, n))
	size := uint64(core.HeaderSize) + uint64(payload)
	ref, err := a.alloc.Alloc(size)
	if err != nil {
		return utils.WrapKind("array create", utils.ErrAllocFailed, err)
	}
	a.ref = Ref(ref)
	a.n = n
	a.capacity = payload
	return a.writeHeader()
}

func (a *Array) writeHeader() error {
	if err := a.ensureWritable(); err != nil {
		return err
	}
	h := core.ArrayHeader{
		IsNode: a.isNode, HasRefs: a.hasRefs, IsIndexNode: a.isIndexNode,
		Width: a.width, Count: a.n, Capacity: a.capacity,
	}
	enc, err := h.Encode()
	if err != nil {
		return err
	}
	if err := a.alloc.Backend().Write(uint64(a.ref), enc[:]); err != nil {
		return utils.WrapKind("array header write", utils.ErrAllocFailed, err)
	}
	return nil
}

// ensureWritable guards against writing through a ref that still lies
// below the backend's read-only watermark (e.g. an array opened from a
// mapped group that hasn't been touched since). If the ref needs to
// relocate, it copies the existing header+payload bytes to the fresh ref
// and notifies the parent, the same propagation a Realloc-driven
// relocation performs.
func (a *Array) ensureWritable() error {
	if a.ref == NullRef {
		return nil
	}
	size := uint64(core.HeaderSize) + uint64(a.capacity)
	newRef, err := a.alloc.EnsureWritable(uint64(a.ref), size)
	if err != nil {
		return utils.WrapKind("array ensure writable", utils.ErrAllocFailed, err)
	}
	if Ref(newRef) == a.ref {
		return nil
	}
	a.ref = Ref(newRef)
	return a.propagateRelocation()
}

// Ref returns this array's current ref.
func (a *Array) Ref() Ref { return a.ref }

// Size returns the element count n.
func (a *Array) Size() int { return int(a.n) }

// IsNode reports the is_node header flag.
func (a *Array) IsNode() bool { return a.isNode }

// HasRefs reports the has_refs header flag.
func (a *Array) HasRefs() bool { return a.hasRefs }

// SetIsNode sets the is_node flag and persists the header (used when
// promoting a leaf Array into a B+tree inner node root).
func (a *Array) SetIsNode(v bool) error {
	a.isNode = v
	return a.writeHeader()
}

// payloadOffset is where the packed payload begins, just past the header.
func (a *Array) payloadOffset() uint64 { return uint64(a.ref) + core.HeaderSize }

// readPayload reads the full current payload into a scratch buffer.
func (a *Array) readPayload() ([]byte, error) {
	buf := make([]byte, a.capacity)
	if len(buf) == 0 {
		return buf, nil
	}
	if err := a.alloc.Backend().Read(a.payloadOffset(), buf); err != nil {
		return nil, utils.WrapKind("array payload read", utils.ErrCorruptRegion, err)
	}
	return buf, nil
}

// Get returns the signed value at logical index i.
func (a *Array) Get(i int) (int64, error) {
	if i < 0 || uint32(i) >= a.n {
		panic(fmt.Sprintf("array get: index %d out of bounds (size %d)", i, a.n))
	}
	if a.width == 0 {
		return 0, nil
	}
	payload, err := a.readPayload()
	if err != nil {
		return 0, err
	}
	return unpackSigned(payload, a.width, i), nil
}

// GetRef returns the ref stored at index i of a has_refs array.
func (a *Array) GetRef(i int) (Ref, error) {
	if !a.hasRefs {
		panic("array get_ref: not a has_refs array")
	}
	v, err := a.Get(i)
	if err != nil {
		return 0, err
	}
	return Ref(uint64(v)), nil
}

// minWidthFor returns 0 for zero and otherwise the smallest of 8, 16, 32
// and 64 that fits v as signed. The sub-byte widths 1, 2 and 4 are never
// chosen, so any nonzero value occupies at least 8 bits per element.
func minWidthFor(v int64) int {
	switch {
	case v == 0:
		return 0
	case v >= -128 && v <= 127:
		return 8
	case v >= -32768 && v <= 32767:
		return 16
	case v >= -(1<<31) && v <= (1<<31)-1:
		return 32
	default:
		return 64
	}
}

// widthAtLeast returns the next standard width >= w (used to force
// has_refs arrays to pointer width, and to find "next wider" on widen).
func widthAtLeast(w int) int {
	for _, cand := range [...]int{0, 1, 2, 4, 8, 16, 32, 64} {
		if cand >= w {
			return cand
		}
	}
	return 64
}

// Set overwrites the value at index i, widening the array first if v
// does not fit the current width.
func (a *Array) Set(i int, v int64) error {
	if i < 0 || uint32(i) >= a.n {
		panic(fmt.Sprintf("array set: index %d out of bounds (size %d)", i, a.n))
	}
	required := minWidthFor(v)
	if a.hasRefs {
		required = widthAtLeast(required)
		if required < refWidth {
			required = refWidth
		}
	}
	if required > a.width {
		if err := a.widen(required); err != nil {
			return err
		}
	}
	return a.writeElement(i, v)
}

// SetRef overwrites the ref stored at index i of a has_refs array.
func (a *Array) SetRef(i int, ref Ref) error {
	if !a.hasRefs {
		panic("array set_ref: not a has_refs array")
	}
	return a.Set(i, int64(ref))
}

func (a *Array) writeElement(i int, v int64) error {
	if err := a.ensureWritable(); err != nil {
		return err
	}
	payload, err := a.readPayload()
	if err != nil {
		return err
	}
	packSigned(payload, a.width, i, v)
	if err := a.alloc.Backend().Write(a.payloadOffset(), payload); err != nil {
		return utils.WrapKind("array element write", utils.ErrAllocFailed, err)
	}
	return nil
}

// widen reallocates the array's storage to newWidth, unpacking every
// element at the old width and repacking at the new one in a single
// pass. Realloc may move the array to a new ref; only when it does is
// the parent notified of the new ref.
func (a *Array) widen(newWidth int) error {
	old, err := a.readPayload()
	if err != nil {
		return err
	}
	values := make([]int64, a.n)
	for i := range values {
		values[i] = unpackSigned(old, a.width, i)
	}

	newPayloadLen := core.AlignUp8(core.PayloadBytes(newWidth, a.n))
	oldSize := uint64(core.HeaderSize) + uint64(a.capacity)
	newSize := uint64(core.HeaderSize) + uint64(newPayloadLen)

	newRef, err := a.alloc.Realloc(uint64(a.ref), oldSize, newSize)
	if err != nil {
		return utils.WrapKind("array widen realloc", utils.ErrAllocFailed, err)
	}
	relocated := Ref(newRef) != a.ref
	a.ref = Ref(newRef)
	a.width = newWidth
	a.capacity = newPayloadLen

	packed := make([]byte, newPayloadLen)
	for i, v := range values {
		packSigned(packed, newWidth, i, v)
	}
	if err := a.writeHeader(); err != nil {
		return err
	}
	if len(packed) > 0 {
		if err := a.alloc.Backend().Write(a.payloadOffset(), packed); err != nil {
			return utils.WrapKind("array widen payload write", utils.ErrAllocFailed, err)
		}
	}
	if relocated {
		return a.propagateRelocation()
	}
	return nil
}

// propagateRelocation notifies the parent accessor that this array's ref
// changed, updating the parent's stored child ref at indexInParent.
func (a *Array) propagateRelocation() error {
	if a.parent == nil {
		return nil
	}
	return a.parent.SetRef(a.indexInParent, a.ref)
}

// UpdateParentRef is the external callback a relocating Array invokes,
// invoked by a caller that relocated this array out-of-band (e.g. a
// B+tree split that moved a leaf into a new sibling ref).
func (a *Array) UpdateParentRef(newRef Ref) error {
	a.ref = newRef
	return a.propagateRelocation()
}

// SetParent rebinds this accessor's back-reference, used when a caller
// re-parents an array (e.g. after wrapping it under a fresh root).
func (a *Array) SetParent(parent *Array, indexInParent int) {
	a.parent = parent
	a.indexInParent = indexInParent
}

// grow reallocates to hold n elements at the current width, doubling
// capacity and relocating via the Allocator.
func (a *Array) grow(n uint32) error {
	needed := core.AlignUp8(core.PayloadBytes(a.width, n))
	if needed <= a.capacity {
		return nil
	}
	newCap := a.capacity
	if newCap == 0 {
		newCap = 8
	}
	for newCap < needed {
		newCap *= 2
	}

	oldSize := uint64(core.HeaderSize) + uint64(a.capacity)
	newSize := uint64(core.HeaderSize) + uint64(newCap)
	newRef, err := a.alloc.Realloc(uint64(a.ref), oldSize, newSize)
	if err != nil {
		return utils.WrapKind("array grow realloc", utils.ErrAllocFailed, err)
	}
	relocated := Ref(newRef) != a.ref
	a.ref = Ref(newRef)
	a.capacity = newCap
	if err := a.writeHeader(); err != nil {
		return err
	}
	if relocated {
		return a.propagateRelocation()
	}
	return nil
}

// Insert inserts v at logical index i, shifting subsequent elements
// right, widening/growing storage as needed.
func (a *Array) Insert(i int, v int64) error {
	if i < 0 || uint32(i) > a.n {
		panic(fmt.Sprintf("array insert: index %d out of bounds (size %d)", i, a.n))
	}

	required := minWidthFor(v)
	targetWidth := a.width
	if required > targetWidth {
		targetWidth = required
	}
	if a.hasRefs && targetWidth < refWidth {
		targetWidth = refWidth
	}

	// Read all current values at the old width before any reallocation.
	oldValues := make([]int64, a.n)
	if a.width > 0 {
		old, err := a.readPayload()
		if err != nil {
			return err
		}
		for j := range oldValues {
			oldValues[j] = unpackSigned(old, a.width, j)
		}
	}

	newValues := make([]int64, a.n+1)
	copy(newValues[:i], oldValues[:i])
	newValues[i] = v
	copy(newValues[i+1:], oldValues[i:])

	if err := a.rewrite(targetWidth, newValues); err != nil {
		return err
	}
	return nil
}

// Add appends v to the end of the array.
func (a *Array) Add(v int64) error {
	return a.Insert(int(a.n), v)
}

// InsertRef inserts a child ref at index i of a has_refs array.
func (a *Array) InsertRef(i int, ref Ref) error {
	if !a.hasRefs {
		panic("array insert_ref: not a has_refs array")
	}
	return a.Insert(i, int64(ref))
}

// AddRef appends a child ref to a has_refs array.
func (a *Array) AddRef(ref Ref) error {
	return a.InsertRef(int(a.n), ref)
}

// rewrite replaces the entire logical content with values at width w,
// reallocating as needed. This is the single-pass repack this column format
// documents for both widening and growth; it is used by Insert and by
// explicit promotions (e.g. AdaptiveStringColumn short-slot widening).
func (a *Array) rewrite(width int, values []int64) error {
	n := uint32(len(values))
	payloadLen := core.AlignUp8(core.PayloadBytes(width, n))
	oldSize := uint64(core.HeaderSize) + uint64(a.capacity)
	newSize := uint64(core.HeaderSize) + uint64(payloadLen)

	var newRef uint64
	var err error
	if a.ref == NullRef {
		newRef, err = a.alloc.Alloc(newSize)
	} else {
		newRef, err = a.alloc.Realloc(uint64(a.ref), oldSize, newSize)
	}
	if err != nil {
		return utils.WrapKind("array rewrite alloc", utils.ErrAllocFailed, err)
	}
	relocated := Ref(newRef) != a.ref
	a.ref = Ref(newRef)
	a.width = width
	a.n = n
	a.capacity = payloadLen

	if err := a.writeHeader(); err != nil {
		return err
	}
	if payloadLen > 0 {
		packed := make([]byte, payloadLen)
		for i, v := range values {
			packSigned(packed, width, i, v)
		}
		if err := a.alloc.Backend().Write(a.payloadOffset(), packed); err != nil {
			return utils.WrapKind("array rewrite payload write", utils.ErrAllocFailed, err)
		}
	}
	if relocated {
		return a.propagateRelocation()
	}
	return nil
}

// Erase removes the element at index i, shifting subsequent elements
// left. Width is intentionally NOT shrunk on erase — this avoids a
// repack on every delete at the cost of retaining an over-wide array
// after a large value is removed.
func (a *Array) Erase(i int) error {
	if i < 0 || uint32(i) >= a.n {
		panic(fmt.Sprintf("array erase: index %d out of bounds (size %d)", i, a.n))
	}
	values := make([]int64, a.n)
	if a.width > 0 {
		old, err := a.readPayload()
		if err != nil {
			return err
		}
		for j := range values {
			values[j] = unpackSigned(old, a.width, j)
		}
	}
	values = append(values[:i], values[i+1:]...)
	return a.rewrite(a.width, values) // same width: no shrink
}

// Clear truncates the array to zero elements, keeping its current width
// (not shrunk, consistent with the Erase policy).
func (a *Array) Clear() error {
	return a.rewrite(a.width, nil)
}

// Destroy recursively frees this array and, if has_refs, every non-null
// child ref.
func (a *Array) Destroy() error {
	if a.hasRefs {
		for i := 0; i < int(a.n); i++ {
			ref, err := a.GetRef(i)
			if err != nil {
				return err
			}
			if ref == NullRef {
				continue
			}
			child, err := Open(a.alloc, ref, nil, 0)
			if err != nil {
				return err
			}
			if err := child.Destroy(); err != nil {
				return err
			}
		}
	}
	size := uint64(core.HeaderSize) + uint64(a.capacity)
	a.alloc.Free(uint64(a.ref), size)
	return nil
}

// AsSlice materializes the full element list (used by column traversal
// and tests; not part of the on-disk representation).
func (a *Array) AsSlice() ([]int64, error) {
	out := make([]int64, a.n)
	if a.width == 0 {
		return out, nil
	}
	payload, err := a.readPayload()
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = unpackSigned(payload, a.width, i)
	}
	return out, nil
}
