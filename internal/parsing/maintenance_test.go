package parsing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMaintenance(t *testing.T) {
	t.Run("parses a well-formed task line", func(t *testing.T) {
		tasks, diags := ParseMaintenance(strings.NewReader("20260315:TA01\n"))

		require.Empty(t, diags)
		require.Len(t, tasks, 1)
		assert.Equal(t, "TA01", tasks[0].VehicleID)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), tasks[0].Day)
	})

	t.Run("rejects an invalid calendar date", func(t *testing.T) {
		tasks, diags := ParseMaintenance(strings.NewReader("20261332:TA01\n"))

		assert.Empty(t, tasks)
		require.Len(t, diags, 1)
	})

	t.Run("rejects a malformed vehicle token", func(t *testing.T) {
		tasks, diags := ParseMaintenance(strings.NewReader("20260315:nope\n"))

		assert.Empty(t, tasks)
		require.Len(t, diags, 1)
	})
}
