package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBufferReturnsRequestedLength(t *testing.T) {
	buf := GetBuffer(128)
	assert.Len(t, buf, 128)
	ReleaseBuffer(buf)
}

func TestGetBufferGrowsBeyondPooledCapacity(t *testing.T) {
	buf := GetBuffer(8192)
	assert.Len(t, buf, 8192)
	ReleaseBuffer(buf)
}

func TestReleaseBufferAllowsReuse(t *testing.T) {
	buf := GetBuffer(64)
	ReleaseBuffer(buf)
	buf2 := GetBuffer(32)
	assert.Len(t, buf2, 32)
}
