package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLimits(t *testing.T) {
	l := Default()
	assert.Equal(t, 1000, l.MaxNodeEntries)
	assert.Equal(t, 1000, l.IntLeafSoftLimit)
	assert.Equal(t, 200, l.StringLeafSoftLimit)
	assert.Equal(t, []int{64, 128, 256}, l.ShortStringSlotWidths)
	assert.Equal(t, 2, l.RegionGrowthFactor)
}

func TestLoadTOMLOverlaysPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.toml")
	content := `
int_leaf_soft_limit = 50
region_growth_factor = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := LoadTOML(path)
	require.NoError(t, err)

	assert.Equal(t, 50, l.IntLeafSoftLimit)
	assert.Equal(t, 4, l.RegionGrowthFactor)
	// fields absent from the file keep their compiled-in default
	assert.Equal(t, 1000, l.MaxNodeEntries)
	assert.Equal(t, 200, l.StringLeafSoftLimit)
}

func TestLoadTOMLMissingFileFails(t *testing.T) {
	_, err := LoadTOML(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
