package tdbcore

import (
	"errors"
	"fmt"
	"os"

	"github.com/scigolib/tdbcore/internal/config"
	"github.com/scigolib/tdbcore/internal/structures"
	"github.com/scigolib/tdbcore/internal/utils"
	"github.com/scigolib/tdbcore/internal/writer"
)

// topHeaderSize is the 8-byte top_ref prefix every persisted group file
// carries: "[top_ref: 64-bit little-endian][region bytes]".
const topHeaderSize = 8

// Group names tables inside one backing region and owns the free-list
// and top-array ref used to reopen a saved region. A
// Group admits zero writers plus many readers, or one writer plus zero
// readers; this package does not itself arbitrate that, it
// is a documented caller contract.
type Group struct {
	alloc  *writer.Allocator
	limits config.Limits

	top         *structures.Array // has_refs=true, 4 entries: [namesRef, tablesRefsRef, freePosRef, freeSizeRef]
	names       *structures.AdaptiveStringColumn
	tablesRefs  *structures.Array
	freePos     *structures.Array
	freeSize    *structures.Array

	tables map[string]*Table
}

// GroupOption configures NewGroup/OpenGroup/OpenGroupBuffer (currently
// only limits).
type GroupOption func(*groupOptions)

type groupOptions struct {
	limits config.Limits
}

// WithLimits overrides the default config.Limits used for every table
// created inside this group.
func WithLimits(l config.Limits) GroupOption {
	return func(o *groupOptions) { o.limits = l }
}

func resolveOptions(opts []GroupOption) groupOptions {
	o := groupOptions{limits: config.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewGroup creates a fresh, empty group backed by a growable heap
// region.
func NewGroup(opts ...GroupOption) (*Group, error) {
	o := resolveOptions(opts)

	backend := writer.NewHeapBackend()
	backend.SetGrowthFactor(o.limits.RegionGrowthFactor)
	alloc, err := writer.NewAllocator(backend, topHeaderSize)
	if err != nil {
		return nil, err
	}

	g := &Group{alloc: alloc, limits: o.limits, tables: make(map[string]*Table)}
	if err := g.initEmpty(); err != nil {
		return nil, err
	}
	return g, nil
}

// OpenGroup memory-maps path read-only and adopts it; writes relocate
// copy-on-write into freshly allocated spans above the file's original
// length. A file starting with the "TDBZ"
// magic (written via WithCompression) is transparently decompressed
// into a heap buffer first, since lz4 frames can't be mapped in place.
func OpenGroup(path string, opts ...GroupOption) (*Group, error) {
	o := resolveOptions(opts)

	if compressed, err := isCompressedFile(path); err != nil {
		return nil, err
	} else if compressed {
		region, err := readCompressed(path)
		if err != nil {
			return nil, err
		}
		return openGroupOnBackend(writer.OpenMappedBuffer(region), o)
	}

	backend, err := writer.OpenMappedBackend(path)
	if err != nil {
		return nil, err
	}
	return openGroupOnBackend(backend, o)
}

// OpenGroupBuffer adopts a caller-owned byte slice the same way
// OpenGroup adopts a file.
func OpenGroupBuffer(buf []byte, opts ...GroupOption) (*Group, error) {
	o := resolveOptions(opts)
	backend := writer.OpenMappedBuffer(buf)
	return openGroupOnBackend(backend, o)
}

func openGroupOnBackend(backend *writer.MappedBackend, o groupOptions) (*Group, error) {
	if backend.Len() < topHeaderSize {
		return nil, utils.WrapKind("open group", utils.ErrCorruptRegion, fmt.Errorf("region too small (%d bytes)", backend.Len()))
	}
	var hdr [topHeaderSize]byte
	if err := backend.Read(0, hdr[:]); err != nil {
		return nil, err
	}
	topRef := utils.NativeOrder.Uint64(hdr[:])

	backend.SetGrowthFactor(o.limits.RegionGrowthFactor)
	alloc, err := writer.NewAllocator(backend, backend.Len())
	if err != nil {
		return nil, err
	}

	g := &Group{alloc: alloc, limits: o.limits, tables: make(map[string]*Table)}
	if err := g.loadFromTopRef(structures.Ref(topRef)); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) initEmpty() error {
	names, err := structures.NewAdaptiveStringColumn(g.alloc, g.limits)
	if err != nil {
		return err
	}
	tablesRefs, err := structures.Create(g.alloc, true)
	if err != nil {
		return err
	}
	freePos, err := structures.Create(g.alloc, false)
	if err != nil {
		return err
	}
	freeSize, err := structures.Create(g.alloc, false)
	if err != nil {
		return err
	}
	top, err := structures.Create(g.alloc, true)
	if err != nil {
		return err
	}
	if err := top.AddRef(names.Ref()); err != nil {
		return err
	}
	if err := top.AddRef(tablesRefs.Ref()); err != nil {
		return err
	}
	if err := top.AddRef(freePos.Ref()); err != nil {
		return err
	}
	if err := top.AddRef(freeSize.Ref()); err != nil {
		return err
	}

	g.top, g.names, g.tablesRefs, g.freePos, g.freeSize = top, names, tablesRefs, freePos, freeSize
	return nil
}

func (g *Group) loadFromTopRef(topRef structures.Ref) error {
	top, err := structures.Open(g.alloc, topRef, nil, 0)
	if err != nil {
		return err
	}
	namesRef, err := top.GetRef(0)
	if err != nil {
		return err
	}
	tablesRefsRef, err := top.GetRef(1)
	if err != nil {
		return err
	}
	freePosRef, err := top.GetRef(2)
	if err != nil {
		return err
	}
	freeSizeRef, err := top.GetRef(3)
	if err != nil {
		return err
	}

	names, err := structures.OpenAdaptiveStringColumn(g.alloc, namesRef, top, 0, g.limits)
	if err != nil {
		return err
	}
	tablesRefs, err := structures.Open(g.alloc, tablesRefsRef, top, 1)
	if err != nil {
		return err
	}
	freePos, err := structures.Open(g.alloc, freePosRef, top, 2)
	if err != nil {
		return err
	}
	freeSize, err := structures.Open(g.alloc, freeSizeRef, top, 3)
	if err != nil {
		return err
	}

	positions, err := freePos.AsSlice()
	if err != nil {
		return err
	}
	sizes, err := freeSize.AsSlice()
	if err != nil {
		return err
	}
	posU := make([]uint64, len(positions))
	sizeU := make([]uint64, len(sizes))
	for i, v := range positions {
		posU[i] = uint64(v)
	}
	for i, v := range sizes {
		sizeU[i] = uint64(v)
	}
	if err := g.alloc.RestoreFreeList(posU, sizeU); err != nil {
		return err
	}

	g.top, g.names, g.tablesRefs, g.freePos, g.freeSize = top, names, tablesRefs, freePos, freeSize
	return nil
}

// TableNames returns the names of every table registered in the group,
// in registration order.
func (g *Group) TableNames() ([]string, error) {
	n, err := g.names.Size()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, err := g.names.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// HasTable reports whether name is registered.
func (g *Group) HasTable(name string) (bool, error) {
	n, err := g.names.Size()
	if err != nil {
		return false, err
	}
	for i := 0; i < n; i++ {
		s, err := g.names.Get(i)
		if err != nil {
			return false, err
		}
		if s == name {
			return true, nil
		}
	}
	return false, nil
}

// GetTable looks up name by linear scan of the names Array;
// it does not create a missing table. Use GetOrCreateTable for that.
func (g *Group) GetTable(name string) (*Table, error) {
	if t, ok := g.tables[name]; ok {
		return t, nil
	}
	n, err := g.names.Size()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		s, err := g.names.Get(i)
		if err != nil {
			return nil, err
		}
		if s != name {
			continue
		}
		ref, err := g.tablesRefs.GetRef(i)
		if err != nil {
			return nil, err
		}
		t, err := openTable(g.alloc, ref, g.tablesRefs, i, g.limits)
		if err != nil {
			return nil, err
		}
		g.tables[name] = t
		return t, nil
	}
	return nil, utils.WrapKind(fmt.Sprintf("table %q", name), utils.ErrNotFound, fmt.Errorf("no such table"))
}

// GetOrCreateTable returns the named table, registering a fresh empty
// one if it doesn't exist yet.
func (g *Group) GetOrCreateTable(name string) (*Table, error) {
	t, err := g.GetTable(name)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}

	t, err = newTable(g.alloc, g.limits)
	if err != nil {
		return nil, err
	}
	if err := g.names.Add(name); err != nil {
		return nil, err
	}
	if err := g.tablesRefs.AddRef(t.rootRef()); err != nil {
		return nil, err
	}
	g.tables[name] = t
	return t, nil
}

// flush writes every live table's current root ref back into
// tablesRefs before the top array (or free-list) is serialised, since
// Table mutations may have relocated the table's root Array.
func (g *Group) flush() error {
	n, err := g.names.Size()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := g.names.Get(i)
		if err != nil {
			return err
		}
		t, ok := g.tables[name]
		if !ok {
			continue
		}
		if err := g.tablesRefs.SetRef(i, t.rootRef()); err != nil {
			return err
		}
	}

	positions, sizes := g.alloc.FreeListSnapshot()
	if err := rewritePlainArray(g.freePos, positions); err != nil {
		return err
	}
	if err := rewritePlainArray(g.freeSize, sizes); err != nil {
		return err
	}
	if err := g.top.SetRef(0, g.names.Ref()); err != nil {
		return err
	}
	if err := g.top.SetRef(1, g.tablesRefs.Ref()); err != nil {
		return err
	}
	if err := g.top.SetRef(2, g.freePos.Ref()); err != nil {
		return err
	}
	if err := g.top.SetRef(3, g.freeSize.Ref()); err != nil {
		return err
	}
	return nil
}

// rewritePlainArray replaces a's entire contents with values, growing
// or widening as needed (used for the free-list arrays, which are
// rebuilt wholesale from the allocator's live span list on every flush).
func rewritePlainArray(a *structures.Array, values []uint64) error {
	if err := a.Clear(); err != nil {
		return err
	}
	for _, v := range values {
		if err := a.Add(int64(v)); err != nil {
			return err
		}
	}
	return nil
}

// WriteOption configures Group.Write (currently only compression).
type WriteOption func(*writeOptions)

type writeOptions struct {
	compress bool
}

// tdbzMagic prefixes a compressed group file: "TDBZ" + uncompressed
// length + lz4 frame.
var tdbzMagic = [4]byte{'T', 'D', 'B', 'Z'}

// WithCompression enables lz4-framed compression of the flattened
// region on Write.
func WithCompression() WriteOption {
	return func(o *writeOptions) { o.compress = true }
}

// Write flattens the group's current state to path as
// "[top_ref (8 bytes)][packed arrays...]", optionally
// wrapped in an lz4 frame behind a "TDBZ" magic + length prefix.
func (g *Group) Write(path string, opts ...WriteOption) error {
	var wo writeOptions
	for _, fn := range opts {
		fn(&wo)
	}

	if err := g.flush(); err != nil {
		return err
	}

	region, err := g.flattenRegion()
	if err != nil {
		return err
	}

	var hdr [topHeaderSize]byte
	utils.NativeOrder.PutUint64(hdr[:], uint64(g.top.Ref()))
	copy(region[:topHeaderSize], hdr[:])

	if !wo.compress {
		return os.WriteFile(path, region, 0o644)
	}
	return writeCompressed(path, region)
}

func (g *Group) flattenRegion() ([]byte, error) {
	switch b := g.alloc.Backend().(type) {
	case *writer.HeapBackend:
		out := make([]byte, len(b.Bytes()))
		copy(out, b.Bytes())
		return out, nil
	case *writer.MappedBackend:
		return b.Flatten(), nil
	default:
		return nil, fmt.Errorf("write: unsupported backend %T", b)
	}
}

// Close releases any OS resources the group's backend holds (no-op for
// heap-backed groups).
func (g *Group) Close() error {
	return g.alloc.Backend().Close()
}
