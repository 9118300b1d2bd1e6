package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusPublishSubscribe(t *testing.T) {
	t.Run("delivers to every subscriber of the subject", func(t *testing.T) {
		bus := NewLocalBus()
		var mu sync.Mutex
		var received []string

		require.NoError(t, bus.Subscribe(SubjectOrderSubmit, func(env Envelope) {
			mu.Lock()
			received = append(received, "a")
			mu.Unlock()
		}))
		require.NoError(t, bus.Subscribe(SubjectOrderSubmit, func(env Envelope) {
			mu.Lock()
			received = append(received, "b")
			mu.Unlock()
		}))

		env, err := NewEnvelope(SubjectOrderSubmit, "corr-1", OrderSubmitIntent{OrderID: "o1"})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), env))

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"a", "b"}, received)
	})

	t.Run("ignores subjects with no subscribers", func(t *testing.T) {
		bus := NewLocalBus()
		env, err := NewEnvelope(SubjectControlPause, "", struct{}{})
		require.NoError(t, err)
		assert.NoError(t, bus.Publish(context.Background(), env))
	})
}

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Run("decodes the payload it was built from", func(t *testing.T) {
		intent := VehicleBreakdownIntent{VehicleID: "TA01", Reason: "flat tire"}
		env, err := NewEnvelope(SubjectVehicleBreakdown, "corr-2", intent)
		require.NoError(t, err)
		assert.Equal(t, SubjectVehicleBreakdown, env.Subject)
		assert.WithinDuration(t, time.Now(), env.Timestamp, time.Second)

		var decoded VehicleBreakdownIntent
		require.NoError(t, env.Decode(&decoded))
		assert.Equal(t, intent, decoded)
	})
}
