package orange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIsTotal(t *testing.T) {
	d, _, _ := newFakeDevice(t)
	for _, c := range Categories() {
		require.NotNil(t, d.Resolve(c), "category %s must resolve", c)
	}
	// Out-of-range categories fall back to the primary path rather than
	// indexing out of the table.
	ep := d.Resolve(ActionCategory(200))
	require.NotNil(t, ep)
	assert.EqualValues(t, indexColorPath1, ep.Index)
}

func TestRoutingTableORANGE(t *testing.T) {
	d, _, _ := newFakeDevice(t)
	for _, c := range Categories() {
		want := uint8(indexColorPath1)
		if c == CategoryIRControl || c == CategoryFrameDepth {
			want = indexMonoPath
		}
		assert.EqualValues(t, want, d.Resolve(c).Index, "category %s", c)
	}
}

func TestRoutingTableLegacyPID(t *testing.T) {
	table := routingTableFor(0x0101)
	for _, c := range Categories() {
		assert.EqualValues(t, indexColorPath0, table[c], "category %s", c)
	}
}

func TestCategoryStrings(t *testing.T) {
	for _, c := range Categories() {
		assert.NotEqual(t, "unknown", c.String(), "category %d has no name", c)
	}
	assert.Equal(t, "unknown", ActionCategory(200).String())
}
