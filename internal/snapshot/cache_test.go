package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/lpgdispatch/internal/environment"
)

func TestCacheStoreAndLatest(t *testing.T) {
	t.Run("returns false before anything is stored", func(t *testing.T) {
		c, err := NewCache("")
		require.NoError(t, err)

		_, _, ok := c.Latest()
		assert.False(t, ok)
	})

	t.Run("returns the most recently stored snapshot and tick", func(t *testing.T) {
		c, err := NewCache("")
		require.NoError(t, err)

		snap := environment.Snapshot{Now: time.Now()}
		c.Store(context.Background(), 5, snap)

		got, tick, ok := c.Latest()
		require.True(t, ok)
		assert.Equal(t, int64(5), tick)
		assert.Equal(t, snap.Now, got.Now)

		c.Store(context.Background(), 6, environment.Snapshot{Now: snap.Now.Add(time.Second)})
		_, tick, ok = c.Latest()
		require.True(t, ok)
		assert.Equal(t, int64(6), tick)
	})
}

func TestNewCacheRejectsInvalidURL(t *testing.T) {
	t.Run("propagates a Redis URL parse error", func(t *testing.T) {
		_, err := NewCache("not-a-valid-redis-url")
		assert.Error(t, err)
	})
}
