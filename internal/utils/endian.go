package utils

import "encoding/binary"

// ReaderAt is a minimal interface over io.ReaderAt, kept separate so core
// and structures packages do not need to import io for signature checks.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// NativeOrder is the on-disk byte order for every tdbcore region: fixed
// little-endian regardless of host. Regions written on a big-endian host
// still byte-swap to this order; readers never need to detect endianness.
var NativeOrder binary.ByteOrder = binary.LittleEndian

// ReadUint64At reads a little-endian uint64 at the given offset.
func ReadUint64At(r ReaderAt, offset int64) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return NativeOrder.Uint64(buf), nil
}
