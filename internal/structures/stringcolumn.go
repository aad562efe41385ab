package structures

import (
	"bytes"
	"fmt"

	"github.com/scigolib/tdbcore/internal/config"
	"github.com/scigolib/tdbcore/internal/core"
	"github.com/scigolib/tdbcore/internal/utils"
	"github.com/scigolib/tdbcore/internal/writer"
)

// stringLeafForm tags which of the two leaf storage strategies a leaf
// wrapper currently holds.
type stringLeafForm int64

const (
	formShort stringLeafForm = 0
	formLong  stringLeafForm = 1
)

// AdaptiveStringColumn is a logical string sequence addressed by row
// index. Its root is either a leaf wrapper Array (a small has_refs
// tagged record: form, param, primary ref, secondary ref, count) or a
// B+tree node Array identical in shape to IntColumn's (offsets + refs
// children), so the same descend() helper from intcolumn.go drives
// navigation once promoted.
type AdaptiveStringColumn struct {
	alloc  *writer.Allocator
	limits config.Limits
	root   *Array
}

// NewAdaptiveStringColumn creates an empty column in short form at the
// narrowest slot width.
func NewAdaptiveStringColumn(alloc *writer.Allocator, limits config.Limits) (*AdaptiveStringColumn, error) {
	leaf, err := newShortLeaf(alloc, limits.ShortStringSlotWidths[0])
	if err != nil {
		return nil, err
	}
	return &AdaptiveStringColumn{alloc: alloc, limits: limits, root: leaf}, nil
}

// OpenAdaptiveStringColumn reopens a string column rooted at ref.
func OpenAdaptiveStringColumn(alloc *writer.Allocator, ref Ref, parent *Array, indexInParent int, limits config.Limits) (*AdaptiveStringColumn, error) {
	root, err := Open(alloc, ref, parent, indexInParent)
	if err != nil {
		return nil, err
	}
	return &AdaptiveStringColumn{alloc: alloc, limits: limits, root: root}, nil
}

// Ref returns the column's current root ref.
func (c *AdaptiveStringColumn) Ref() Ref { return c.root.Ref() }

func leafWrapperFields(leaf *Array) (form stringLeafForm, param int, primary, secondary Ref, count int, err error) {
	f0, err := leaf.Get(0)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	f1, err := leaf.Get(1)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	f2, err := leaf.Get(2)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	f3, err := leaf.Get(3)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	f4, err := leaf.Get(4)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	return stringLeafForm(f0), int(f1), Ref(uint64(f2)), Ref(uint64(f3)), int(f4), nil
}

func writeLeafWrapper(leaf *Array, form stringLeafForm, param int, primary, secondary Ref, count int) error {
	vals := []int64{int64(form), int64(param), int64(primary), int64(secondary), int64(count)}
	return leaf.rewrite(refWidth, vals)
}

func newShortLeaf(alloc *writer.Allocator, slotBits int) (*Array, error) {
	leaf, err := Create(alloc, true)
	if err != nil {
		return nil, err
	}
	if err := writeLeafWrapper(leaf, formShort, slotBits, NullRef, NullRef, 0); err != nil {
		return nil, err
	}
	return leaf, nil
}

// slotBytesFor returns the content+NUL byte width for a short-form slot
// of slotBits bits ("capped at w/8 - 1 bytes" content).
func slotBytesFor(slotBits int) int { return slotBits / 8 }

// allocRaw writes data as a brand-new raw byte span (no header), used
// for short-form slabs and long-form blobs.
func allocRaw(alloc *writer.Allocator, data []byte) (Ref, error) {
	if len(data) == 0 {
		return NullRef, nil
	}
	ref, err := alloc.Alloc(uint64(len(data)))
	if err != nil {
		return 0, utils.WrapKind("string slab alloc", utils.ErrAllocFailed, err)
	}
	if err := alloc.Backend().Write(ref, data); err != nil {
		return 0, utils.WrapKind("string slab write", utils.ErrAllocFailed, err)
	}
	return Ref(ref), nil
}

func readRaw(alloc *writer.Allocator, ref Ref, size int) ([]byte, error) {
	if size == 0 || ref == NullRef {
		return nil, nil
	}
	buf := make([]byte, size)
	if err := alloc.Backend().Read(uint64(ref), buf); err != nil {
		return nil, utils.WrapKind("string slab read", utils.ErrCorruptRegion, err)
	}
	return buf, nil
}

// replaceRaw frees the old span (if any) and writes data as a fresh span.
func replaceRaw(alloc *writer.Allocator, oldRef Ref, oldSize int, data []byte) (Ref, error) {
	if oldRef != NullRef {
		alloc.Free(uint64(oldRef), uint64(oldSize))
	}
	return allocRaw(alloc, data)
}

// Size returns the column's total row count.
func (c *AdaptiveStringColumn) Size() (int, error) { return c.sizeRec(c.root) }

func (c *AdaptiveStringColumn) sizeRec(node *Array) (int, error) {
	if !node.IsNode() {
		_, _, _, _, count, err := leafWrapperFields(node)
		return count, err
	}
	return rowCount(c.alloc, node)
}

// Get returns the string stored at row.
func (c *AdaptiveStringColumn) Get(row int) (string, error) { return c.getRec(c.root, row) }

func (c *AdaptiveStringColumn) getRec(node *Array, row int) (string, error) {
	if !node.IsNode() {
		return getFromLeaf(c.alloc, node, row)
	}
	offsets, refs, err := stringNodeParts(c.alloc, node)
	if err != nil {
		return "", err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return "", err
	}
	child, err := openChild(c.alloc, refs, idx)
	if err != nil {
		return "", err
	}
	return c.getRec(child, local)
}

func stringNodeParts(alloc *writer.Allocator, node *Array) (offsets, refs *Array, err error) {
	offsetsRef, err := node.GetRef(0)
	if err != nil {
		return nil, nil, err
	}
	refsRef, err := node.GetRef(1)
	if err != nil {
		return nil, nil, err
	}
	offsets, err = Open(alloc, offsetsRef, node, 0)
	if err != nil {
		return nil, nil, err
	}
	refs, err = Open(alloc, refsRef, node, 1)
	if err != nil {
		return nil, nil, err
	}
	return offsets, refs, nil
}

func openChild(alloc *writer.Allocator, refs *Array, idx int) (*Array, error) {
	ref, err := refs.GetRef(idx)
	if err != nil {
		return nil, err
	}
	return Open(alloc, ref, refs, idx)
}

func getFromLeaf(alloc *writer.Allocator, leaf *Array, row int) (string, error) {
	form, param, primary, secondary, count, err := leafWrapperFields(leaf)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= count {
		panic(fmt.Sprintf("string column get: index %d out of bounds (size %d)", row, count))
	}
	switch form {
	case formShort:
		slotBytes := slotBytesFor(param)
		data, err := readRaw(alloc, primary, count*slotBytes)
		if err != nil {
			return "", err
		}
		slot := data[row*slotBytes : (row+1)*slotBytes]
		end := bytes.IndexByte(slot, 0)
		if end < 0 {
			end = len(slot)
		}
		return string(slot[:end]), nil
	case formLong:
		offsets, err := Open(alloc, primary, leaf, 2)
		if err != nil {
			return "", err
		}
		offVals, err := offsets.AsSlice()
		if err != nil {
			return "", err
		}
		start := 0
		if row > 0 {
			start = int(offVals[row-1])
		}
		end := int(offVals[row])
		blobLen := 0
		if len(offVals) > 0 {
			blobLen = int(offVals[len(offVals)-1])
		}
		blob, err := readRaw(alloc, secondary, blobLen)
		if err != nil {
			return "", err
		}
		return string(blob[start:end]), nil
	default:
		return "", fmt.Errorf("unknown string leaf form %d", form)
	}
}

// Insert inserts s at row, promoting short->wider-short->long and
// splitting leaves/nodes on overflow exactly like IntColumn.
func (c *AdaptiveStringColumn) Insert(row int, s string) error {
	res, err := c.insertRec(c.root, row, s)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return c.wrapNewRoot(res.sibling)
}

// Add appends s to the end of the column.
func (c *AdaptiveStringColumn) Add(s string) error {
	n, err := c.Size()
	if err != nil {
		return err
	}
	return c.Insert(n, s)
}

// Set overwrites the string at row in place. There is no single-pass
// in-place rewrite for variable-length cells in either leaf form, so
// this erases the old value and re-inserts the new one at the same
// row, matching how the B+tree shape already handles promotion and
// resizing elsewhere in this file.
func (c *AdaptiveStringColumn) Set(row int, s string) error {
	if err := c.eraseRec(c.root, row); err != nil {
		return err
	}
	res, err := c.insertRec(c.root, row, s)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return c.wrapNewRoot(res.sibling)
}

func (c *AdaptiveStringColumn) insertRec(node *Array, row int, s string) (*splitResult, error) {
	if !node.IsNode() {
		if err := insertIntoLeaf(c.alloc, node, row, s, c.limits.ShortStringSlotWidths); err != nil {
			return nil, err
		}
		size, err := c.sizeRec(node)
		if err != nil {
			return nil, err
		}
		if size <= c.limits.StringLeafSoftLimit {
			return nil, nil
		}
		sibling, err := c.splitLeaf(node)
		if err != nil {
			return nil, err
		}
		return &splitResult{sibling: sibling}, nil
	}

	offsets, refs, err := stringNodeParts(c.alloc, node)
	if err != nil {
		return nil, err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return nil, err
	}
	child, err := openChild(c.alloc, refs, idx)
	if err != nil {
		return nil, err
	}
	childRes, err := c.insertRec(child, local, s)
	if err != nil {
		return nil, err
	}
	if childRes == nil {
		return nil, c.recomputeStringOffsets(offsets, refs)
	}
	if err := refs.InsertRef(idx+1, childRes.sibling.Ref()); err != nil {
		return nil, err
	}
	if err := c.recomputeStringOffsets(offsets, refs); err != nil {
		return nil, err
	}
	if refs.Size() <= c.limits.MaxNodeEntries {
		return nil, nil
	}
	siblingNode, err := c.splitNode(offsets, refs)
	if err != nil {
		return nil, err
	}
	return &splitResult{sibling: siblingNode}, nil
}

func (c *AdaptiveStringColumn) recomputeStringOffsets(offsets, refs *Array) error {
	n := refs.Size()
	sums := make([]int64, n)
	running := 0
	for i := 0; i < n; i++ {
		child, err := openChild(c.alloc, refs, i)
		if err != nil {
			return err
		}
		size, err := c.sizeRec(child)
		if err != nil {
			return err
		}
		running += size
		sums[i] = int64(running)
	}
	width := arrayMinWidth(sums)
	if width < offsets.width {
		width = offsets.width
	}
	return offsets.rewrite(width, sums)
}

// insertIntoLeaf handles both short-form and long-form leaf insertion,
// performing the short->wider-short->long promotion chain this column
// documents, and is the only place that decides to promote.
func insertIntoLeaf(alloc *writer.Allocator, leaf *Array, row int, s string, ladder []int) error {
	form, param, primary, secondary, count, err := leafWrapperFields(leaf)
	if err != nil {
		return err
	}
	value := []byte(s)

	if form == formLong {
		return insertIntoLong(alloc, leaf, row, value, primary, secondary, count)
	}

	// Short form: does the value fit the current slot width?
	if len(value)+1 <= slotBytesFor(param) {
		return insertIntoShort(alloc, leaf, row, value, param, primary, count)
	}

	// Promote: find the next wider short slot that fits, else go long.
	for _, wider := range ladder {
		if wider <= param {
			continue
		}
		if len(value)+1 <= slotBytesFor(wider) {
			if err := rewriteShortAtWidth(alloc, leaf, wider, param, primary, count); err != nil {
				return err
			}
			_, _, newPrimary, _, newCount, err := leafWrapperFields(leaf)
			if err != nil {
				return err
			}
			return insertIntoShort(alloc, leaf, row, value, wider, newPrimary, newCount)
		}
	}
	// Exceeds the widest short slot: promote straight to long form.
	return promoteToLong(alloc, leaf, row, value, param, primary, count)
}

func insertIntoShort(alloc *writer.Allocator, leaf *Array, row int, value []byte, slotBits int, primary Ref, count int) error {
	slotBytes := slotBytesFor(slotBits)
	old, err := readRaw(alloc, primary, count*slotBytes)
	if err != nil {
		return err
	}
	newData := make([]byte, (count+1)*slotBytes)
	copy(newData[:row*slotBytes], old[:row*slotBytes])
	copy(newData[row*slotBytes:row*slotBytes+len(value)], value)
	copy(newData[(row+1)*slotBytes:], old[row*slotBytes:])

	newRef, err := replaceRaw(alloc, primary, count*slotBytes, newData)
	if err != nil {
		return err
	}
	return writeLeafWrapper(leaf, formShort, slotBits, newRef, NullRef, count+1)
}

// rewriteShortAtWidth repacks every existing short-form slot at a wider
// slot size, the "promotion of the leaf slot width" path.
func rewriteShortAtWidth(alloc *writer.Allocator, leaf *Array, newSlotBits, oldSlotBits int, primary Ref, count int) error {
	oldSlotBytes := slotBytesFor(oldSlotBits)
	newSlotBytes := slotBytesFor(newSlotBits)
	old, err := readRaw(alloc, primary, count*oldSlotBytes)
	if err != nil {
		return err
	}
	newData := make([]byte, count*newSlotBytes)
	for i := 0; i < count; i++ {
		src := old[i*oldSlotBytes : (i+1)*oldSlotBytes]
		end := bytes.IndexByte(src, 0)
		if end < 0 {
			end = len(src)
		}
		copy(newData[i*newSlotBytes:i*newSlotBytes+end], src[:end])
	}
	newRef, err := replaceRaw(alloc, primary, count*oldSlotBytes, newData)
	if err != nil {
		return err
	}
	return writeLeafWrapper(leaf, formShort, newSlotBits, newRef, NullRef, count)
}

// promoteToLong rewrites a short-form leaf into long (offsets+blob) form
// and performs the pending insert. Once in long form, a column never
// demotes.
func promoteToLong(alloc *writer.Allocator, leaf *Array, row int, value []byte, oldSlotBits int, oldPrimary Ref, count int) error {
	oldSlotBytes := slotBytesFor(oldSlotBits)
	old, err := readRaw(alloc, oldPrimary, count*oldSlotBytes)
	if err != nil {
		return err
	}

	strs := make([][]byte, count)
	for i := 0; i < count; i++ {
		src := old[i*oldSlotBytes : (i+1)*oldSlotBytes]
		end := bytes.IndexByte(src, 0)
		if end < 0 {
			end = len(src)
		}
		strs[i] = src[:end]
	}
	if oldPrimary != NullRef {
		alloc.Free(uint64(oldPrimary), uint64(count*oldSlotBytes))
	}

	offsetsArr, err := Create(alloc, false)
	if err != nil {
		return err
	}
	var blob bytes.Buffer
	offVals := make([]int64, 0, count+1)
	for i := 0; i < count; i++ {
		blob.Write(strs[i])
		offVals = append(offVals, int64(blob.Len()))
	}
	blobRef, err := allocRaw(alloc, blob.Bytes())
	if err != nil {
		return err
	}
	if err := offsetsArr.rewrite(arrayMinWidth(offVals), offVals); err != nil {
		return err
	}
	if err := writeLeafWrapper(leaf, formLong, 0, offsetsArr.Ref(), blobRef, count); err != nil {
		return err
	}
	return insertIntoLong(alloc, leaf, row, value, offsetsArr.Ref(), blobRef, count)
}

func insertIntoLong(alloc *writer.Allocator, leaf *Array, row int, value []byte, offsetsRef, blobRef Ref, count int) error {
	offsetsArr, err := Open(alloc, offsetsRef, leaf, 2)
	if err != nil {
		return err
	}
	offVals, err := offsetsArr.AsSlice()
	if err != nil {
		return err
	}
	blobLen := 0
	if len(offVals) > 0 {
		blobLen = int(offVals[len(offVals)-1])
	}
	start := 0
	if row > 0 {
		start = int(offVals[row-1])
	}
	blob, err := readRaw(alloc, blobRef, blobLen)
	if err != nil {
		return err
	}
	newBlob := make([]byte, 0, blobLen+len(value))
	newBlob = append(newBlob, blob[:start]...)
	newBlob = append(newBlob, value...)
	newBlob = append(newBlob, blob[start:]...)

	newBlobRef, err := replaceRaw(alloc, blobRef, blobLen, newBlob)
	if err != nil {
		return err
	}

	newOffVals := make([]int64, len(offVals)+1)
	copy(newOffVals[:row], offVals[:row])
	newOffVals[row] = int64(start + len(value))
	for i := row + 1; i <= len(offVals); i++ {
		newOffVals[i] = offVals[i-1] + int64(len(value))
	}
	if err := offsetsArr.rewrite(arrayMinWidth(newOffVals), newOffVals); err != nil {
		return err
	}
	return writeLeafWrapper(leaf, formLong, 0, offsetsArr.Ref(), newBlobRef, count+1)
}

func (c *AdaptiveStringColumn) splitLeaf(node *Array) (*Array, error) {
	form, param, primary, secondary, count, err := leafWrapperFields(node)
	if err != nil {
		return nil, err
	}
	mid := count / 2

	strs := make([]string, count)
	for i := 0; i < count; i++ {
		s, err := getFromLeaf(c.alloc, node, i)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}

	var sibling *Array
	if form == formShort {
		sibling, err = newShortLeaf(c.alloc, param)
	} else {
		sibling, err = newShortLeaf(c.alloc, c.limits.ShortStringSlotWidths[0])
	}
	if err != nil {
		return nil, err
	}
	for i, s := range strs[mid:] {
		if err := insertIntoLeaf(c.alloc, sibling, i, s, c.limits.ShortStringSlotWidths); err != nil {
			return nil, err
		}
	}

	// Free the left leaf's backing storage and rebuild it in place with
	// only the retained left half.
	if primary != NullRef {
		if form == formShort {
			c.alloc.Free(uint64(primary), uint64(count*slotBytesFor(param)))
		}
	}
	if form == formLong && secondary != NullRef {
		offsetsArr, err := Open(c.alloc, primary, node, 2)
		if err == nil {
			offsetsArr.Destroy() //nolint:errcheck // best-effort reclaim during split
		}
	}

	origRef, origCap := node.ref, node.capacity
	parent, indexInParent := node.parent, node.indexInParent
	fresh, err := newShortLeaf(c.alloc, param)
	if err != nil {
		return nil, err
	}
	*node = *fresh
	node.SetParent(parent, indexInParent)
	if err := node.propagateRelocation(); err != nil {
		return nil, err
	}
	c.alloc.Free(uint64(origRef), uint64(core.HeaderSize)+uint64(origCap))
	for i, s := range strs[:mid] {
		if err := insertIntoLeaf(c.alloc, node, i, s, c.limits.ShortStringSlotWidths); err != nil {
			return nil, err
		}
	}
	return sibling, nil
}

func (c *AdaptiveStringColumn) splitNode(offsets, refs *Array) (*Array, error) {
	refValues, err := refs.AsSlice()
	if err != nil {
		return nil, err
	}
	mid := len(refValues) / 2
	leftRefs, rightRefs := refValues[:mid], refValues[mid:]

	if err := refs.rewrite(refWidth, leftRefs); err != nil {
		return nil, err
	}
	if err := c.recomputeStringOffsets(offsets, refs); err != nil {
		return nil, err
	}

	siblingOffsets, err := Create(c.alloc, false)
	if err != nil {
		return nil, err
	}
	siblingRefs, err := Create(c.alloc, true)
	if err != nil {
		return nil, err
	}
	if err := siblingRefs.rewrite(refWidth, rightRefs); err != nil {
		return nil, err
	}
	if err := c.recomputeStringOffsets(siblingOffsets, siblingRefs); err != nil {
		return nil, err
	}
	siblingNode, err := createNodeArray(c.alloc)
	if err != nil {
		return nil, err
	}
	if err := siblingNode.AddRef(siblingOffsets.Ref()); err != nil {
		return nil, err
	}
	if err := siblingNode.AddRef(siblingRefs.Ref()); err != nil {
		return nil, err
	}
	return siblingNode, nil
}

func (c *AdaptiveStringColumn) wrapNewRoot(sibling *Array) error {
	leftSize, err := c.sizeRec(c.root)
	if err != nil {
		return err
	}
	rightSize, err := c.sizeRec(sibling)
	if err != nil {
		return err
	}

	newOffsets, err := Create(c.alloc, false)
	if err != nil {
		return err
	}
	newRefs, err := Create(c.alloc, true)
	if err != nil {
		return err
	}
	if err := newRefs.AddRef(c.root.Ref()); err != nil {
		return err
	}
	if err := newRefs.AddRef(sibling.Ref()); err != nil {
		return err
	}
	offVals := []int64{int64(leftSize), int64(leftSize + rightSize)}
	if err := newOffsets.rewrite(arrayMinWidth(offVals), offVals); err != nil {
		return err
	}

	newRoot, err := createNodeArray(c.alloc)
	if err != nil {
		return err
	}
	if err := newRoot.AddRef(newOffsets.Ref()); err != nil {
		return err
	}
	if err := newRoot.AddRef(newRefs.Ref()); err != nil {
		return err
	}
	c.root = newRoot
	return nil
}

// Erase removes the string at row.
func (c *AdaptiveStringColumn) Erase(row int) error { return c.eraseRec(c.root, row) }

func (c *AdaptiveStringColumn) eraseRec(node *Array, row int) error {
	if !node.IsNode() {
		return eraseFromLeaf(c.alloc, node, row)
	}
	offsets, refs, err := stringNodeParts(c.alloc, node)
	if err != nil {
		return err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return err
	}
	child, err := openChild(c.alloc, refs, idx)
	if err != nil {
		return err
	}
	if err := c.eraseRec(child, local); err != nil {
		return err
	}
	return c.recomputeStringOffsets(offsets, refs)
}

func eraseFromLeaf(alloc *writer.Allocator, leaf *Array, row int) error {
	form, param, primary, secondary, count, err := leafWrapperFields(leaf)
	if err != nil {
		return err
	}
	if form == formShort {
		slotBytes := slotBytesFor(param)
		old, err := readRaw(alloc, primary, count*slotBytes)
		if err != nil {
			return err
		}
		newData := append(append([]byte{}, old[:row*slotBytes]...), old[(row+1)*slotBytes:]...)
		newRef, err := replaceRaw(alloc, primary, count*slotBytes, newData)
		if err != nil {
			return err
		}
		return writeLeafWrapper(leaf, formShort, param, newRef, NullRef, count-1)
	}

	offsetsArr, err := Open(alloc, primary, leaf, 2)
	if err != nil {
		return err
	}
	offVals, err := offsetsArr.AsSlice()
	if err != nil {
		return err
	}
	start := 0
	if row > 0 {
		start = int(offVals[row-1])
	}
	end := int(offVals[row])
	blobLen := 0
	if len(offVals) > 0 {
		blobLen = int(offVals[len(offVals)-1])
	}
	blob, err := readRaw(alloc, secondary, blobLen)
	if err != nil {
		return err
	}
	newBlob := append(append([]byte{}, blob[:start]...), blob[end:]...)
	newBlobRef, err := replaceRaw(alloc, secondary, blobLen, newBlob)
	if err != nil {
		return err
	}
	removed := int64(end - start)
	newOffVals := make([]int64, 0, len(offVals)-1)
	for i, v := range offVals {
		if i == row {
			continue
		}
		if i > row {
			v -= removed
		}
		newOffVals = append(newOffVals, v)
	}
	if err := offsetsArr.rewrite(offsetsArr.width, newOffVals); err != nil {
		return err
	}
	return writeLeafWrapper(leaf, formLong, 0, offsetsArr.Ref(), newBlobRef, count-1)
}

// Destroy recursively frees every Array/slab backing this column.
func (c *AdaptiveStringColumn) Destroy() error {
	return c.destroyRec(c.root)
}

func (c *AdaptiveStringColumn) destroyRec(node *Array) error {
	if !node.IsNode() {
		form, param, primary, secondary, count, err := leafWrapperFields(node)
		if err != nil {
			return err
		}
		if form == formShort && primary != NullRef {
			c.alloc.Free(uint64(primary), uint64(count*slotBytesFor(param)))
		}
		if form == formLong {
			if primary != NullRef {
				offsetsArr, err := Open(c.alloc, primary, node, 2)
				if err == nil {
					blobLen := 0
					if vals, aerr := offsetsArr.AsSlice(); aerr == nil && len(vals) > 0 {
						blobLen = int(vals[len(vals)-1])
					}
					if secondary != NullRef {
						c.alloc.Free(uint64(secondary), uint64(blobLen))
					}
					offsetsArr.Destroy() //nolint:errcheck // best-effort during full teardown
				}
			}
		}
		return node.Destroy()
	}
	return node.Destroy()
}

// FindFirst returns the first absolute row index whose value equals s.
func (c *AdaptiveStringColumn) FindFirst(s string) (int, error) {
	found := -1
	err := c.walkStrLeaves(c.root, 0, func(start int, leaf *Array) error {
		if found >= 0 {
			return nil
		}
		_, _, _, _, count, err := leafWrapperFields(leaf)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			v, err := getFromLeaf(c.alloc, leaf, i)
			if err != nil {
				return err
			}
			if v == s {
				found = start + i
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (c *AdaptiveStringColumn) walkStrLeaves(node *Array, startRow int, fn leafWalker) error {
	if !node.IsNode() {
		return fn(startRow, node)
	}
	offsets, refs, err := stringNodeParts(c.alloc, node)
	if err != nil {
		return err
	}
	offVals, err := offsets.AsSlice()
	if err != nil {
		return err
	}
	prev := 0
	for i := 0; i < refs.Size(); i++ {
		child, err := openChild(c.alloc, refs, i)
		if err != nil {
			return err
		}
		if err := c.walkStrLeaves(child, startRow+prev, fn); err != nil {
			return err
		}
		prev = int(offVals[i])
	}
	return nil
}
