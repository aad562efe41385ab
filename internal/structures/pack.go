package structures

import "github.com/scigolib/tdbcore/internal/utils"

// unpackSigned reads the i-th w-bit signed element from payload, per
// Bit packing: widths <8 pack multiple values per byte,
// little-endian, right-aligned within the last byte; widths >=8 are
// native little-endian integers, sign-extended from their stored width.
func unpackSigned(payload []byte, w, i int) int64 {
	switch w {
	case 0:
		return 0
	case 8:
		return int64(int8(payload[i]))
	case 16:
		v := utils.NativeOrder.Uint16(payload[i*2 : i*2+2])
		return int64(int16(v))
	case 32:
		v := utils.NativeOrder.Uint32(payload[i*4 : i*4+4])
		return int64(int32(v))
	case 64:
		v := utils.NativeOrder.Uint64(payload[i*8 : i*8+8])
		return int64(v)
	default:
		// Sub-byte widths: valuesPerByte = 8/w; bit offset within byte.
		perByte := 8 / w
		byteIdx := i / perByte
		bitOff := (i % perByte) * w
		mask := uint8((1 << uint(w)) - 1)
		raw := (payload[byteIdx] >> uint(bitOff)) & mask
		return signExtend(uint64(raw), w)
	}
}

// packSigned writes v as a w-bit signed element at index i into payload.
func packSigned(payload []byte, w, i int, v int64) {
	switch w {
	case 0:
		// All-zero width stores nothing; caller must widen before
		// writing any nonzero value.
	case 8:
		payload[i] = byte(int8(v))
	case 16:
		utils.NativeOrder.PutUint16(payload[i*2:i*2+2], uint16(int16(v)))
	case 32:
		utils.NativeOrder.PutUint32(payload[i*4:i*4+4], uint32(int32(v)))
	case 64:
		utils.NativeOrder.PutUint64(payload[i*8:i*8+8], uint64(v))
	default:
		perByte := 8 / w
		byteIdx := i / perByte
		bitOff := (i % perByte) * w
		mask := uint8((1 << uint(w)) - 1)
		cleared := payload[byteIdx] &^ (mask << uint(bitOff))
		payload[byteIdx] = cleared | (uint8(v) & mask)
	}
}

// signExtend interprets the low w bits of raw as a signed w-bit value.
func signExtend(raw uint64, w int) int64 {
	signBit := uint64(1) << uint(w-1)
	if raw&signBit != 0 {
		return int64(raw) - int64(uint64(1)<<uint(w))
	}
	return int64(raw)
}
