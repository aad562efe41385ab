package utils

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUint64AtLittleEndian(t *testing.T) {
	want := uint64(0x1122334455667788)
	data := make([]byte, 3)
	encoded := make([]byte, 8)
	binary.LittleEndian.PutUint64(encoded, want)
	data = append(data, encoded...)

	v, err := ReadUint64At(bytes.NewReader(data), 3)
	require.NoError(t, err)
	assert.Equal(t, want, v)
}

func TestReadUint64AtPropagatesShortReadError(t *testing.T) {
	_, err := ReadUint64At(bytes.NewReader([]byte{1, 2, 3}), 0)
	assert.Error(t, err)
}
