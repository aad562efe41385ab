// Package config holds the engine's tunable soft thresholds: the B+tree
// fan-out bound, the leaf promotion soft limits for integer and string
// columns, and the string short-form slot width ladder. Defaults match
// the engine's hard-coded constants; a TOML file may override them,
// layered over compiled-in defaults via BurntSushi/toml.
package config

import "github.com/BurntSushi/toml"

// Limits bundles every tunable soft limit an engine component consults.
type Limits struct {
	// MaxNodeEntries bounds B+tree node fan-out.
	MaxNodeEntries int `toml:"max_node_entries"`
	// IntLeafSoftLimit is the element count above which an integer
	// column leaf promotes to a B+tree node.
	IntLeafSoftLimit int `toml:"int_leaf_soft_limit"`
	// StringLeafSoftLimit is the lower soft limit for string columns.
	StringLeafSoftLimit int `toml:"string_leaf_soft_limit"`
	// ShortStringSlotWidths is the short-form promotion ladder in bits
	// per slot.
	ShortStringSlotWidths []int `toml:"short_string_slot_widths"`
	// RegionGrowthFactor is the backend doubling multiplier; kept configurable for tests that want tighter
	// reallocation cadence to exercise relocation paths.
	RegionGrowthFactor int `toml:"region_growth_factor"`
}

// Default returns the engine's built-in limits.
func Default() Limits {
	return Limits{
		MaxNodeEntries:        1000,
		IntLeafSoftLimit:      1000,
		StringLeafSoftLimit:   200,
		ShortStringSlotWidths: []int{64, 128, 256},
		RegionGrowthFactor:    2,
	}
}

// LoadTOML overlays a TOML file's present fields onto the default
// limits; absent fields keep their compiled-in default.
func LoadTOML(path string) (Limits, error) {
	l := Default()
	if _, err := toml.DecodeFile(path, &l); err != nil {
		return Limits{}, err
	}
	return l, nil
}
