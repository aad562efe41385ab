package core

import (
	"bytes"
	"io"

	"github.com/gonuts/binary"

	"github.com/scigolib/tdbcore/internal/utils"
)

// TableEntry names one table and records the ref of its TopLevelTable
// root Array, mirroring the parallel names/tables_refs arrays of the
// group top array in a flat, side-channel record form.
type TableEntry struct {
	Name string
	Ref  uint64
}

// Manifest is a redundant, reconstructible summary of a Group's top
// array: the table directory plus the region's logical size. It is not
// load-bearing for correctness: OpenGroup never reads it and rebuilds
// the directory from the top array on every open. Group.Write does not
// emit a manifest, and cmd/tdbcat does not read one; the type and its
// codec stand alone.
type Manifest struct {
	TopRef     uint64
	RegionSize uint64
	Tables     []TableEntry
}

// EncodeManifest serializes a Manifest using the gonuts/binary codec,
// the same struct-reflection encoder the pack's HEP tooling uses for
// framed records.
func EncodeManifest(w io.Writer, m *Manifest) error {
	enc := binary.NewEncoder(w)
	enc.Order = utils.NativeOrder

	if err := enc.Encode(m.TopRef); err != nil {
		return utils.WrapError("manifest encode top ref", err)
	}
	if err := enc.Encode(m.RegionSize); err != nil {
		return utils.WrapError("manifest encode region size", err)
	}
	count := uint32(len(m.Tables))
	if err := enc.Encode(count); err != nil {
		return utils.WrapError("manifest encode table count", err)
	}
	for _, t := range m.Tables {
		nameBytes := []byte(t.Name)
		nlen := uint32(len(nameBytes))
		if err := enc.Encode(nlen); err != nil {
			return utils.WrapError("manifest encode name length", err)
		}
		if _, err := w.Write(nameBytes); err != nil {
			return utils.WrapError("manifest encode name bytes", err)
		}
		if err := enc.Encode(t.Ref); err != nil {
			return utils.WrapError("manifest encode table ref", err)
		}
	}
	return nil
}

// DecodeManifest reconstructs a Manifest written by EncodeManifest.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	dec := binary.NewDecoder(r)
	dec.Order = utils.NativeOrder

	m := &Manifest{}
	if err := dec.Decode(&m.TopRef); err != nil {
		return nil, utils.WrapKind("manifest decode top ref", utils.ErrCorruptRegion, err)
	}
	if err := dec.Decode(&m.RegionSize); err != nil {
		return nil, utils.WrapKind("manifest decode region size", utils.ErrCorruptRegion, err)
	}
	var count uint32
	if err := dec.Decode(&count); err != nil {
		return nil, utils.WrapKind("manifest decode table count", utils.ErrCorruptRegion, err)
	}

	m.Tables = make([]TableEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var nlen uint32
		if err := dec.Decode(&nlen); err != nil {
			return nil, utils.WrapKind("manifest decode name length", utils.ErrCorruptRegion, err)
		}
		nameBuf := make([]byte, nlen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, utils.WrapKind("manifest decode name bytes", utils.ErrCorruptRegion, err)
		}
		var ref uint64
		if err := dec.Decode(&ref); err != nil {
			return nil, utils.WrapKind("manifest decode table ref", utils.ErrCorruptRegion, err)
		}
		m.Tables = append(m.Tables, TableEntry{Name: string(nameBuf), Ref: ref})
	}
	return m, nil
}

// ManifestBytes is a convenience wrapper returning the encoded manifest
// as a standalone byte slice.
func ManifestBytes(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeManifest(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
