// Package core provides the on-disk structure parsing and generation for
// tdbcore regions: the Array header encoding and a standalone manifest
// record codec. It has no knowledge of in-memory accessor objects — that
// lives in internal/structures.
package core

import (
	"fmt"

	"github.com/scigolib/tdbcore/internal/utils"
)

// HeaderSize is the fixed 8-byte Array header length.
const HeaderSize = 8

// widthCodes maps a 3-bit width code to the number of bits per element.
var widthCodes = [8]int{0, 1, 2, 4, 8, 16, 32, 64}

// widthCodeFor returns the 3-bit code for a standard width, or -1.
func widthCodeFor(w int) int {
	for code, width := range widthCodes {
		if width == w {
			return code
		}
	}
	return -1
}

// ArrayHeader is the decoded form of the 8-byte on-region Array header.
type ArrayHeader struct {
	IsNode      bool
	HasRefs     bool
	IsIndexNode bool
	Width       int    // one of 0,1,2,4,8,16,32,64
	Count       uint32 // element count n, fits in 24 bits
	Capacity    uint32 // allocated payload bytes
}

// Encode packs the header into its 8-byte on-region representation.
func (h ArrayHeader) Encode() ([HeaderSize]byte, error) {
	var out [HeaderSize]byte

	code := widthCodeFor(h.Width)
	if code < 0 {
		return out, fmt.Errorf("invalid array width %d", h.Width)
	}
	if h.Count > 0xFFFFFF {
		return out, fmt.Errorf("array element count %d exceeds 24-bit limit", h.Count)
	}

	var flags byte
	if h.IsNode {
		flags |= 1 << 7
	}
	if h.HasRefs {
		flags |= 1 << 6
	}
	if h.IsIndexNode {
		flags |= 1 << 5
	}
	flags |= byte(code) & 0x07

	out[0] = flags
	out[1] = byte(h.Count)
	out[2] = byte(h.Count >> 8)
	out[3] = byte(h.Count >> 16)
	utils.NativeOrder.PutUint32(out[4:8], h.Capacity)

	return out, nil
}

// DecodeHeader parses the 8-byte on-region header representation.
func DecodeHeader(b []byte) (ArrayHeader, error) {
	var h ArrayHeader
	if len(b) < HeaderSize {
		return h, utils.WrapKind("array header decode", utils.ErrCorruptRegion,
			fmt.Errorf("need %d bytes, got %d", HeaderSize, len(b)))
	}

	flags := b[0]
	code := int(flags & 0x07)
	if code >= len(widthCodes) {
		return h, utils.WrapKind("array header decode", utils.ErrCorruptRegion,
			fmt.Errorf("unknown width code %d", code))
	}

	h.IsNode = flags&(1<<7) != 0
	h.HasRefs = flags&(1<<6) != 0
	h.IsIndexNode = flags&(1<<5) != 0
	h.Width = widthCodes[code]
	h.Count = uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16
	h.Capacity = utils.NativeOrder.Uint32(b[4:8])

	return h, nil
}

// PayloadBytes returns the number of bytes needed to store n elements of
// width w (width 0 needs no payload bytes).
func PayloadBytes(w int, n uint32) uint32 {
	if w == 0 {
		return 0
	}
	bits := uint64(w) * uint64(n)
	return uint32((bits + 7) / 8)
}

// AlignUp8 pads size up to the next 8-byte boundary, matching the region
// layout's payload alignment rule.
func AlignUp8(size uint32) uint32 {
	return (size + 7) &^ 7
}
