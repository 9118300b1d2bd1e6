package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabuListFIFOEviction(t *testing.T) {
	t.Run("evicts the oldest entry once over capacity", func(t *testing.T) {
		tl := newTabuList(2)
		m1 := Move{Kind: MoveSwap, SourceVehicleID: "TA01"}
		m2 := Move{Kind: MoveSwap, SourceVehicleID: "TA02"}
		m3 := Move{Kind: MoveSwap, SourceVehicleID: "TA03"}

		tl.push(m1)
		tl.push(m2)
		assert.True(t, tl.contains(m1))
		assert.True(t, tl.contains(m2))

		tl.push(m3)
		assert.False(t, tl.contains(m1))
		assert.True(t, tl.contains(m2))
		assert.True(t, tl.contains(m3))
	})

	t.Run("treats capacity <= 0 as capacity 1", func(t *testing.T) {
		tl := newTabuList(0)
		m1 := Move{Kind: MoveReorder, SourceVehicleID: "TA01"}
		m2 := Move{Kind: MoveReorder, SourceVehicleID: "TA02"}

		tl.push(m1)
		tl.push(m2)
		assert.False(t, tl.contains(m1))
		assert.True(t, tl.contains(m2))
	})
}
