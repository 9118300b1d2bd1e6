package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrdersByTimeThenKindThenEntity(t *testing.T) {
	t.Run("pops the earliest time first", func(t *testing.T) {
		q := NewEventQueue()
		base := time.Now()
		q.Push(&Event{At: base.Add(time.Minute), Kind: EventOrderArrival, EntityID: "b"})
		q.Push(&Event{At: base, Kind: EventOrderArrival, EntityID: "a"})

		first, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, "a", first.EntityID)
	})

	t.Run("breaks same-timestamp ties by the fixed kind priority", func(t *testing.T) {
		q := NewEventQueue()
		at := time.Now()
		q.Push(&Event{At: at, Kind: EventSimulationEnd, EntityID: "x"})
		q.Push(&Event{At: at, Kind: EventOrderArrival, EntityID: "x"})
		q.Push(&Event{At: at, Kind: EventBlockageStart, EntityID: "x"})

		order := []EventKind{}
		for {
			ev, ok := q.Pop()
			if !ok {
				break
			}
			order = append(order, ev.Kind)
		}

		assert.Equal(t, []EventKind{EventOrderArrival, EventBlockageStart, EventSimulationEnd}, order)
	})

	t.Run("breaks same time+kind ties by entity id", func(t *testing.T) {
		q := NewEventQueue()
		at := time.Now()
		q.Push(&Event{At: at, Kind: EventOrderArrival, EntityID: "z"})
		q.Push(&Event{At: at, Kind: EventOrderArrival, EntityID: "a"})

		first, _ := q.Pop()
		assert.Equal(t, "a", first.EntityID)
	})

	t.Run("PeekTime and Len reflect queue state without popping", func(t *testing.T) {
		q := NewEventQueue()
		_, ok := q.PeekTime()
		assert.False(t, ok)
		assert.Equal(t, 0, q.Len())

		at := time.Now()
		q.Push(&Event{At: at, Kind: EventOrderArrival, EntityID: "a"})
		peeked, ok := q.PeekTime()
		require.True(t, ok)
		assert.Equal(t, at, peeked)
		assert.Equal(t, 1, q.Len())
	})
}
