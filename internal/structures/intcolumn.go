package structures

import (
	"fmt"

	"github.com/scigolib/tdbcore/internal/config"
	"github.com/scigolib/tdbcore/internal/writer"
)

// IntColumn is a logical signed-integer sequence addressed by row index
//. Physically either a leaf Array, or a B+tree-shaped node
// Array whose two children are an offsets Array (prefix sums of child
// row counts) and a refs Array (one ref per child subtree) — uniform at
// every depth, so splitting and root-wrapping need no special case for
// "first inner level" vs. deeper levels.
type IntColumn struct {
	alloc  *writer.Allocator
	limits config.Limits
	root   *Array
}

// NewIntColumn creates an empty leaf-form integer column.
func NewIntColumn(alloc *writer.Allocator, limits config.Limits) (*IntColumn, error) {
	root, err := Create(alloc, false)
	if err != nil {
		return nil, err
	}
	return &IntColumn{alloc: alloc, limits: limits, root: root}, nil
}

// OpenIntColumn reopens an integer column rooted at ref.
func OpenIntColumn(alloc *writer.Allocator, ref Ref, parent *Array, indexInParent int, limits config.Limits) (*IntColumn, error) {
	root, err := Open(alloc, ref, parent, indexInParent)
	if err != nil {
		return nil, err
	}
	return &IntColumn{alloc: alloc, limits: limits, root: root}, nil
}

// Ref returns the column's current root ref (for schema persistence).
func (c *IntColumn) Ref() Ref { return c.root.Ref() }

// Root exposes the root Array accessor (used by Table to rebind its own
// refs Array entry after a root-level split).
func (c *IntColumn) Root() *Array { return c.root }

func createNodeArray(alloc *writer.Allocator) (*Array, error) {
	a, err := Create(alloc, true)
	if err != nil {
		return nil, err
	}
	if err := a.SetIsNode(true); err != nil {
		return nil, err
	}
	return a, nil
}

// nodeParts opens the offsets and refs child arrays of an inner node.
func (c *IntColumn) nodeParts(node *Array) (offsets, refs *Array, err error) {
	offsetsRef, err := node.GetRef(0)
	if err != nil {
		return nil, nil, err
	}
	refsRef, err := node.GetRef(1)
	if err != nil {
		return nil, nil, err
	}
	offsets, err = Open(c.alloc, offsetsRef, node, 0)
	if err != nil {
		return nil, nil, err
	}
	refs, err = Open(c.alloc, refsRef, node, 1)
	if err != nil {
		return nil, nil, err
	}
	return offsets, refs, nil
}

// descend finds the smallest child index i such that row < offsets[i],
// and the row index local to that child. A row equal to the total count
// (the append position) maps to the end of the last child.
func descend(offsets *Array, row int) (childIdx, localRow int, err error) {
	values, err := offsets.AsSlice()
	if err != nil {
		return 0, 0, err
	}
	for i, v := range values {
		if int64(row) < v {
			local := row
			if i > 0 {
				local -= int(values[i-1])
			}
			return i, local, nil
		}
	}
	if n := len(values); n > 0 && int64(row) == values[n-1] {
		local := row
		if n > 1 {
			local -= int(values[n-2])
		}
		return n - 1, local, nil
	}
	return 0, 0, fmt.Errorf("row %d out of range", row)
}

// rowCount returns the total logical row count rooted at node.
func rowCount(alloc *writer.Allocator, node *Array) (int, error) {
	if !node.IsNode() {
		return node.Size(), nil
	}
	offsetsRef, err := node.GetRef(0)
	if err != nil {
		return 0, err
	}
	offsets, err := Open(alloc, offsetsRef, node, 0)
	if err != nil {
		return 0, err
	}
	if offsets.Size() == 0 {
		return 0, nil
	}
	v, err := offsets.Get(offsets.Size() - 1)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// recomputeOffsets rebuilds offsets as the prefix sums of each child's
// current row count. Bounded by MaxNodeEntries children, so this O(k)
// rebuild after every structural child change stays cheap in practice.
func (c *IntColumn) recomputeOffsets(offsets, refs *Array) error {
	n := refs.Size()
	sums := make([]int64, n)
	running := 0
	for i := 0; i < n; i++ {
		childRef, err := refs.GetRef(i)
		if err != nil {
			return err
		}
		child, err := Open(c.alloc, childRef, refs, i)
		if err != nil {
			return err
		}
		size, err := rowCount(c.alloc, child)
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

// Size returns the column's total row count.
func (c *IntColumn) Size() (int, error) { return rowCount(c.alloc, c.root) }

// Get returns the value at row.
func (c *IntColumn) Get(row int) (int64, error) { return c.getRec(c.root, row) }

func (c *IntColumn) getRec(node *Array, row int) (int64, error) {
	if !node.IsNode() {
		return node.Get(row)
	}
	offsets, refs, err := c.nodeParts(node)
	if err != nil {
		return 0, err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return 0, err
	}
	childRef, err := refs.GetRef(idx)
	if err != nil {
		return 0, err
	}
	child, err := Open(c.alloc, childRef, refs, idx)
	if err != nil {
		return 0, err
	}
	return c.getRec(child, local)
}

// Set overwrites the value at row.
func (c *IntColumn) Set(row int, v int64) error { return c.setRec(c.root, row, v) }

func (c *IntColumn) setRec(node *Array, row int, v int64) error {
	if !node.IsNode() {
		return node.Set(row, v)
	}
	offsets, refs, err := c.nodeParts(node)
	if err != nil {
		return err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return err
	}
	childRef, err := refs.GetRef(idx)
	if err != nil {
		return err
	}
	child, err := Open(c.alloc, childRef, refs, idx)
	if err != nil {
		return err
	}
	return c.setRec(child, local, v)
}

// splitResult reports that a node overflowed its soft limit / fan-out
// bound and had to split; sibling is the new right-hand Array (leaf or
// node — uniform, so the parent treats both cases identically).
type splitResult struct {
	sibling *Array
}

func arrayMinWidth(values []int64) int {
	w := 0
	for _, v := range values {
		if mw := minWidthFor(v); mw > w {
			w = mw
		}
	}
	return w
}

// splitLeaf moves the right half of node's values into a freshly
// created sibling leaf, trimming node to the left half in place
// ("split into two leaves of roughly equal size").
func (c *IntColumn) splitLeaf(node *Array) (*Array, error) {
	values, err := node.AsSlice()
	if err != nil {
		return nil, err
	}
	mid := len(values) / 2
	left, right := values[:mid], values[mid:]

	sibling, err := Create(c.alloc, false)
	if err != nil {
		return nil, err
	}
	if err := sibling.rewrite(arrayMinWidth(right), right); err != nil {
		return nil, err
	}
	if err := node.rewrite(arrayMinWidth(left), left); err != nil {
		return nil, err
	}
	return sibling, nil
}

// splitNode moves the right half of an inner node's children into a
// freshly created sibling node, trimming the original offsets/refs
// arrays to the left half in place.
func (c *IntColumn) splitNode(offsets, refs *Array) (*Array, error) {
	refValues, err := refs.AsSlice()
	if err != nil {
		return nil, err
	}
	mid := len(refValues) / 2
	leftRefs, rightRefs := refValues[:mid], refValues[mid:]

	if err := refs.rewrite(refWidth, leftRefs); err != nil {
		return nil, err
	}
	if err := c.recomputeOffsets(offsets, refs); err != nil {
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
	if err := c.recomputeOffsets(siblingOffsets, siblingRefs); err != nil {
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

// Insert inserts v at row, descending to the target leaf, splitting
// leaves/nodes on overflow and bubbling the new sibling up to the
// parent; if the root itself splits, both halves are wrapped under a
// freshly created root (height grows by one).
func (c *IntColumn) Insert(row int, v int64) error {
	res, err := c.insertRec(c.root, row, v)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return c.wrapNewRoot(res.sibling)
}

// Add appends v to the end of the column.
func (c *IntColumn) Add(v int64) error {
	n, err := c.Size()
	if err != nil {
		return err
	}
	return c.Insert(n, v)
}

func (c *IntColumn) wrapNewRoot(sibling *Array) error {
	leftSize, err := rowCount(c.alloc, c.root)
	if err != nil {
		return err
	}
	rightSize, err := rowCount(c.alloc, sibling)
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
	if err := newOffsets.rewrite(arrayMinWidth([]int64{int64(leftSize), int64(leftSize + rightSize)}),
		[]int64{int64(leftSize), int64(leftSize + rightSize)}); err != nil {
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

func (c *IntColumn) insertRec(node *Array, row int, v int64) (*splitResult, error) {
	if !node.IsNode() {
		if err := node.Insert(row, v); err != nil {
			return nil, err
		}
		if node.Size() <= c.limits.IntLeafSoftLimit {
			return nil, nil
		}
		sibling, err := c.splitLeaf(node)
		if err != nil {
			return nil, err
		}
		return &splitResult{sibling: sibling}, nil
	}

	offsets, refs, err := c.nodeParts(node)
	if err != nil {
		return nil, err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return nil, err
	}
	childRef, err := refs.GetRef(idx)
	if err != nil {
		return nil, err
	}
	child, err := Open(c.alloc, childRef, refs, idx)
	if err != nil {
		return nil, err
	}

	childRes, err := c.insertRec(child, local, v)
	if err != nil {
		return nil, err
	}
	if childRes == nil {
		return nil, c.recomputeOffsets(offsets, refs)
	}

	if err := refs.InsertRef(idx+1, childRes.sibling.Ref()); err != nil {
		return nil, err
	}
	if err := c.recomputeOffsets(offsets, refs); err != nil {
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

// Erase removes the row at the given index (no rebalancing of
// underflowed siblings is performed).
func (c *IntColumn) Erase(row int) error {
	return c.eraseRec(c.root, row)
}

func (c *IntColumn) eraseRec(node *Array, row int) error {
	if !node.IsNode() {
		return node.Erase(row)
	}
	offsets, refs, err := c.nodeParts(node)
	if err != nil {
		return err
	}
	idx, local, err := descend(offsets, row)
	if err != nil {
		return err
	}
	childRef, err := refs.GetRef(idx)
	if err != nil {
		return err
	}
	child, err := Open(c.alloc, childRef, refs, idx)
	if err != nil {
		return err
	}
	if err := c.eraseRec(child, local); err != nil {
		return err
	}
	return c.recomputeOffsets(offsets, refs)
}

// Destroy recursively frees every Array backing this column.
func (c *IntColumn) Destroy() error { return c.root.Destroy() }

// leafWalker is called once per leaf Array with the absolute row index
// its first element occupies.
type leafWalker func(startRow int, leaf *Array) error

func (c *IntColumn) walkLeaves(node *Array, startRow int, fn leafWalker) error {
	if !node.IsNode() {
		return fn(startRow, node)
	}
	offsets, refs, err := c.nodeParts(node)
	if err != nil {
		return err
	}
	offsetValues, err := offsets.AsSlice()
	if err != nil {
		return err
	}
	prev := 0
	for i := 0; i < refs.Size(); i++ {
		childRef, err := refs.GetRef(i)
		if err != nil {
			return err
		}
		child, err := Open(c.alloc, childRef, refs, i)
		if err != nil {
			return err
		}
		if err := c.walkLeaves(child, startRow+prev, fn); err != nil {
			return err
		}
		prev = int(offsetValues[i])
	}
	return nil
}

// FindFirst returns the first absolute row index whose value equals v,
// or -1 if none match.
func (c *IntColumn) FindFirst(v int64) (int, error) {
	found := -1
	err := c.walkLeaves(c.root, 0, func(start int, leaf *Array) error {
		if found >= 0 {
			return nil
		}
		values, err := leaf.AsSlice()
		if err != nil {
			return err
		}
		for i, x := range values {
			if x == v {
				found = start + i
				return nil
			}
		}
		return nil
	})
	return found, err
}

// FindAll appends every absolute row index whose value equals v into
// out, in ascending order.
func (c *IntColumn) FindAll(v int64, out *IntColumn) error {
	return c.walkLeaves(c.root, 0, func(start int, leaf *Array) error {
		values, err := leaf.AsSlice()
		if err != nil {
			return err
		}
		for i, x := range values {
			if x == v {
				if err := out.Add(int64(start + i)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Sum returns the sum of every element. Values are accumulated in a
// plain int64; a dataset whose true sum would overflow int64 is outside
// this implementation's supported range (see the note on 128-bit
// widening, deferred as a documented simplification).
func (c *IntColumn) Sum() (int64, error) {
	var total int64
	err := c.walkLeaves(c.root, 0, func(_ int, leaf *Array) error {
		values, err := leaf.AsSlice()
		if err != nil {
			return err
		}
		for _, v := range values {
			total += v
		}
		return nil
	})
	return total, err
}

// Min returns the minimum element, or (0, false) if the column is empty.
func (c *IntColumn) Min() (int64, bool, error) {
	return c.extremum(func(a, b int64) bool { return a < b })
}

// Max returns the maximum element, or (0, false) if the column is empty.
func (c *IntColumn) Max() (int64, bool, error) {
	return c.extremum(func(a, b int64) bool { return a > b })
}

func (c *IntColumn) extremum(better func(a, b int64) bool) (int64, bool, error) {
	var best int64
	found := false
	err := c.walkLeaves(c.root, 0, func(_ int, leaf *Array) error {
		values, err := leaf.AsSlice()
		if err != nil {
			return err
		}
		for _, v := range values {
			if !found || better(v, best) {
				best = v
				found = true
			}
		}
		return nil
	})
	return best, found, err
}

// Average returns the arithmetic mean of every element.
func (c *IntColumn) Average() (float64, error) {
	size, err := c.Size()
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}
	sum, err := c.Sum()
	if err != nil {
		return 0, err
	}
	return float64(sum) / float64(size), nil
}
