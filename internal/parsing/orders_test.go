package parsing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("parses well-formed lines", func(t *testing.T) {
		input := "11d13h31m:45,43,c-167,9m3,36h\n1d0h0m:-5,-10,c-1,25m3,12h\n"
		orders, diags := ParseOrders(strings.NewReader(input), base)

		require.Empty(t, diags)
		require.Len(t, orders, 2)

		assert.Equal(t, 45, orders[0].CustomerPos.X)
		assert.Equal(t, 43, orders[0].CustomerPos.Y)
		assert.Equal(t, 9, orders[0].RequestedM3)
		assert.Equal(t, base.AddDate(0, 0, 10).Add(13*time.Hour+31*time.Minute), orders[0].ArrivalTime)
		assert.Equal(t, orders[0].ArrivalTime.Add(36*time.Hour), orders[0].DueTime)

		assert.Equal(t, -5, orders[1].CustomerPos.X)
		assert.Equal(t, -10, orders[1].CustomerPos.Y)
	})

	t.Run("collects a diagnostic per malformed line and keeps going", func(t *testing.T) {
		input := "not a valid line\n11d13h31m:45,43,c-167,9m3,36h\n"
		orders, diags := ParseOrders(strings.NewReader(input), base)

		require.Len(t, diags, 1)
		assert.Equal(t, 1, diags[0].Line)
		require.Len(t, orders, 1)
	})

	t.Run("skips blank lines without a diagnostic", func(t *testing.T) {
		input := "\n11d13h31m:45,43,c-167,9m3,36h\n\n"
		orders, diags := ParseOrders(strings.NewReader(input), base)

		assert.Empty(t, diags)
		assert.Len(t, orders, 1)
	})
}
