package parsing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

func TestParseBreakdownCatalog(t *testing.T) {
	t.Run("parses shift/vehicle/severity", func(t *testing.T) {
		entries, diags := ParseBreakdownCatalog(strings.NewReader("T2_TA01_TI3\n"))

		require.Empty(t, diags)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.ShiftT2, entries[0].Shift)
		assert.Equal(t, "TA01", entries[0].VehicleID)
		assert.Equal(t, domain.TI3, entries[0].Type)
	})

	t.Run("rejects an out-of-range shift digit", func(t *testing.T) {
		entries, diags := ParseBreakdownCatalog(strings.NewReader("T9_TA01_TI1\n"))

		assert.Empty(t, entries)
		require.Len(t, diags, 1)
	})
}
