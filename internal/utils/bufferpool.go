// Package utils provides shared low-level helpers for tdbcore: pooled
// scratch buffers, contextual error wrapping, endianness and overflow
// checked arithmetic used by the allocator, array and column packers.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a scratch byte slice of the requested length from the
// pool. Callers must return it with ReleaseBuffer when done.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer obtained from GetBuffer to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
