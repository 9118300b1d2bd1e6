package circuit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardOptimize(t *testing.T) {
	t.Run("passes through a successful run", func(t *testing.T) {
		b := NewBreaker(OptimizerBreakerConfig())
		err := GuardOptimize(context.Background(), b, func() error { return nil })
		require.NoError(t, err)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("recovers a panic as ErrOptimizePanicked", func(t *testing.T) {
		b := NewBreaker(OptimizerBreakerConfig())
		err := GuardOptimize(context.Background(), b, func() error {
			panic("optimizer blew up")
		})
		assert.ErrorIs(t, err, ErrOptimizePanicked)
	})

	t.Run("opens after MaxFailures and skips subsequent runs", func(t *testing.T) {
		b := NewBreaker(OptimizerBreakerConfig())
		boom := errors.New("boom")
		for i := 0; i < 3; i++ {
			_ = GuardOptimize(context.Background(), b, func() error { return boom })
		}
		assert.Equal(t, StateOpen, b.State())

		err := GuardOptimize(context.Background(), b, func() error { return nil })
		assert.Equal(t, ErrCircuitOpen, err)
	})
}
