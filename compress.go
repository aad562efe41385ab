package tdbcore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/scigolib/tdbcore/internal/utils"
)

// writeCompressed lz4-frames region behind the "TDBZ" magic and an
// 8-byte little-endian uncompressed length, per SPEC_FULL.md's
// compressed persistence format.
func writeCompressed(path string, region []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return utils.WrapError("write compressed group", err)
	}
	defer f.Close()

	if _, err := f.Write(tdbzMagic[:]); err != nil {
		return utils.WrapError("write compressed group", err)
	}
	var lenBuf [8]byte
	utils.NativeOrder.PutUint64(lenBuf[:], uint64(len(region)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return utils.WrapError("write compressed group", err)
	}

	zw := lz4.NewWriter(f)
	if _, err := zw.Write(region); err != nil {
		return utils.WrapError("lz4 compress", err)
	}
	return zw.Close()
}

// isCompressedFile reports whether path starts with the "TDBZ" magic.
func isCompressedFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, utils.WrapError("open group file", err)
	}
	defer f.Close()

	var magic [4]byte
	n, err := io.ReadFull(f, magic[:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, utils.WrapError("open group file", err)
	}
	return n == 4 && magic == tdbzMagic, nil
}

// readCompressed reverses writeCompressed: validates the magic and
// length prefix, then inflates the lz4 frame into a heap buffer.
func readCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("read compressed group", err)
	}
	defer f.Close()

	var hdr [4 + 8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, utils.WrapKind("read compressed group", utils.ErrCorruptRegion, err)
	}
	var magic [4]byte
	copy(magic[:], hdr[:4])
	if magic != tdbzMagic {
		return nil, utils.WrapKind("read compressed group", utils.ErrCorruptRegion, fmt.Errorf("bad magic"))
	}
	uncompressedLen := binary.LittleEndian.Uint64(hdr[4:])

	out := make([]byte, uncompressedLen)
	zr := lz4.NewReader(f)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, utils.WrapKind("read compressed group", utils.ErrCorruptRegion, err)
	}
	return out, nil
}
