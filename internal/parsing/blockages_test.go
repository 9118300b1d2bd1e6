package parsing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockages(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("parses a well-formed polyline", func(t *testing.T) {
		input := "1d0h0m-1d8h0m:0,0,5,0,5,5\n"
		blockages, diags := ParseBlockages(strings.NewReader(input), base)

		require.Empty(t, diags)
		require.Len(t, blockages, 1)
		assert.Equal(t, base, blockages[0].StartTime)
		assert.Equal(t, base.Add(8*time.Hour), blockages[0].EndTime)
		require.Len(t, blockages[0].Points, 3)
		assert.True(t, blockages[0].ClosesEdge(blockages[0].Points[0], blockages[0].Points[1]))
	})

	t.Run("rejects an odd coordinate count", func(t *testing.T) {
		input := "1d0h0m-1d8h0m:0,0,5\n"
		blockages, diags := ParseBlockages(strings.NewReader(input), base)

		assert.Empty(t, blockages)
		require.Len(t, diags, 1)
	})

	t.Run("rejects a header that doesn't match the expected shape", func(t *testing.T) {
		input := "garbage\n"
		blockages, diags := ParseBlockages(strings.NewReader(input), base)

		assert.Empty(t, blockages)
		require.Len(t, diags, 1)
	})
}
