package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := ArrayHeader{
		IsNode:      true,
		HasRefs:     true,
		IsIndexNode: false,
		Width:       16,
		Count:       1234,
		Capacity:    5678,
	}
	enc, err := h.Encode()
	require.NoError(t, err)

	got, err := DecodeHeader(enc[:])
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestArrayHeaderEncodeRejectsBadWidth(t *testing.T) {
	h := ArrayHeader{Width: 3}
	_, err := h.Encode()
	assert.Error(t, err)
}

func TestArrayHeaderEncodeRejectsOverflowCount(t *testing.T) {
	h := ArrayHeader{Width: 8, Count: 0xFFFFFF + 1}
	_, err := h.Encode()
	assert.Error(t, err)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPayloadBytes(t *testing.T) {
	assert.Equal(t, uint32(0), PayloadBytes(0, 100))
	assert.Equal(t, uint32(1), PayloadBytes(1, 8))
	assert.Equal(t, uint32(2), PayloadBytes(1, 9))
	assert.Equal(t, uint32(8), PayloadBytes(64, 1))
}

func TestAlignUp8(t *testing.T) {
	assert.Equal(t, uint32(0), AlignUp8(0))
	assert.Equal(t, uint32(8), AlignUp8(1))
	assert.Equal(t, uint32(8), AlignUp8(8))
	assert.Equal(t, uint32(16), AlignUp8(9))
}
