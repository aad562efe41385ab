package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMultiplyOverflows(t *testing.T) {
	v, err := SafeMultiply(2, 3)
	assert.NoError(t, err)
	assert.Equal(t, uint64(6), v)

	_, err = SafeMultiply(math.MaxUint64, 2)
	assert.Error(t, err)
}

func TestSafeMultiplyZeroNeverOverflows(t *testing.T) {
	v, err := SafeMultiply(0, math.MaxUint64)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestSafeAddOverflows(t *testing.T) {
	v, err := SafeAdd(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	_, err = SafeAdd(math.MaxUint64, 1)
	assert.Error(t, err)
}

func TestValidateBufferSize(t *testing.T) {
	assert.Error(t, ValidateBufferSize(0, 100, "buf"))
	assert.Error(t, ValidateBufferSize(200, 100, "buf"))
	assert.NoError(t, ValidateBufferSize(50, 100, "buf"))
}
