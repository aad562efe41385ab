package structures

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/tdbcore/internal/config"
)

func TestAdaptiveStringColumnShortForm(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewAdaptiveStringColumn(alloc, config.Default())
	require.NoError(t, err)

	words := []string{"foo", "bar", "baz", ""}
	for _, w := range words {
		require.NoError(t, c.Add(w))
	}
	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, len(words), n)

	for i, w := range words {
		got, err := c.Get(i)
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestAdaptiveStringColumnPromotesToLongForm(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewAdaptiveStringColumn(alloc, config.Default())
	require.NoError(t, err)

	require.NoError(t, c.Add("short"))
	long := strings.Repeat("x", 300) // exceeds every short slot width (max 256 bits = 32 bytes)
	require.NoError(t, c.Add(long))

	got, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "short", got)

	got, err = c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestAdaptiveStringColumnPromotionIsMonotonic(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewAdaptiveStringColumn(alloc, config.Default())
	require.NoError(t, err)

	require.NoError(t, c.Add(strings.Repeat("y", 300)))
	require.NoError(t, c.Erase(0))
	// A later short insert must not cause the leaf to demote back to
	// short form once it has been promoted to long form.
	require.NoError(t, c.Add("tiny"))

	got, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "tiny", got)
}

func TestAdaptiveStringColumnSplitsIntoBTree(t *testing.T) {
	alloc := newTestAllocator(t)
	l := config.Default()
	l.StringLeafSoftLimit = 4
	l.MaxNodeEntries = 4
	c, err := NewAdaptiveStringColumn(alloc, l)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, c.Add(strings.Repeat("a", i%7+1)))
	}
	n, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	for i := 0; i < 100; i++ {
		got, err := c.Get(i)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", i%7+1), got)
	}
}

func TestAdaptiveStringColumnSetOverwrites(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewAdaptiveStringColumn(alloc, config.Default())
	require.NoError(t, err)
	require.NoError(t, c.Add("one"))
	require.NoError(t, c.Add("two"))

	require.NoError(t, c.Set(0, "uno"))
	got, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "uno", got)
	got, err = c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "two", got)
}

func TestAdaptiveStringColumnFindFirst(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := NewAdaptiveStringColumn(alloc, config.Default())
	require.NoError(t, err)
	for _, w := range []string{"a", "b", "c", "b"} {
		require.NoError(t, c.Add(w))
	}

	idx, err := c.FindFirst("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestAdaptiveStringColumnDestroy(t *testing.T) {
	alloc := newTestAllocator(t)
	l := config.Default()
	l.StringLeafSoftLimit = 4
	c, err := NewAdaptiveStringColumn(alloc, l)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Add(strings.Repeat("z", i%5+1)))
	}
	require.NoError(t, c.Destroy())
}
