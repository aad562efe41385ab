package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapBackendWriteReadGrow(t *testing.T) {
	b := NewHeapBackend()
	require.NoError(t, b.Write(10, []byte("hello")))
	assert.Equal(t, uint64(15), b.Len())

	out := make([]byte, 5)
	require.NoError(t, b.Read(10, out))
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, uint64(0), b.Watermark())
}

func TestHeapBackendReadOutOfRangeFails(t *testing.T) {
	b := NewHeapBackend()
	require.NoError(t, b.Grow(4))
	err := b.Read(0, make([]byte, 10))
	assert.Error(t, err)
}

func TestMappedBackendReadOnlyPrefixAndOverflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o644))

	b, err := OpenMappedBackend(path)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	assert.Equal(t, uint64(8), b.Watermark())

	out := make([]byte, 4)
	require.NoError(t, b.Read(0, out))
	assert.Equal(t, "abcd", string(out))

	err = b.Write(2, []byte("xx"))
	assert.Error(t, err)

	require.NoError(t, b.Write(8, []byte("ZZ")))
	out2 := make([]byte, 2)
	require.NoError(t, b.Read(8, out2))
	assert.Equal(t, "ZZ", string(out2))
}

func TestMappedBackendFlatten(t *testing.T) {
	buf := []byte("0123456789")
	b := OpenMappedBuffer(buf)
	require.NoError(t, b.Write(10, []byte("AB")))

	flat := b.Flatten()
	assert.Equal(t, "0123456789AB", string(flat))
}

func TestMappedBackendSnapshotBelowWatermarkIsIsolated(t *testing.T) {
	buf := []byte("hello")
	b := OpenMappedBuffer(buf)
	snap := b.SnapshotBelowWatermark()
	snap[0] = 'X'
	assert.Equal(t, "hello", string(b.mapData))
}
