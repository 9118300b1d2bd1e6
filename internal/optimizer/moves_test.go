package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

func TestInverse(t *testing.T) {
	t.Run("swap is its own inverse", func(t *testing.T) {
		m := Move{Kind: MoveSwap, SourceVehicleID: "TA01", SourceIndex: 0, TargetVehicleID: "TA02", TargetIndex: 1}
		assert.Equal(t, m, Inverse(m))
	})

	t.Run("transfer inverse swaps source and target", func(t *testing.T) {
		m := Move{Kind: MoveTransfer, SourceVehicleID: "TA01", SourceIndex: 0, TargetVehicleID: "TA02", TargetIndex: 2}
		inv := Inverse(m)
		assert.Equal(t, MoveTransfer, inv.Kind)
		assert.Equal(t, "TA02", inv.SourceVehicleID)
		assert.Equal(t, 2, inv.SourceIndex)
		assert.Equal(t, "TA01", inv.TargetVehicleID)
		assert.Equal(t, 0, inv.TargetIndex)
	})

	t.Run("reorder inverse swaps source and target index on the same vehicle", func(t *testing.T) {
		m := Move{Kind: MoveReorder, SourceVehicleID: "TA01", SourceIndex: 0, TargetVehicleID: "TA01", TargetIndex: 3}
		inv := Inverse(m)
		assert.Equal(t, MoveReorder, inv.Kind)
		assert.Equal(t, 3, inv.SourceIndex)
		assert.Equal(t, 0, inv.TargetIndex)
	})
}

func TestApplySwapRoundTrip(t *testing.T) {
	t.Run("applying a swap then its inverse restores the original solution", func(t *testing.T) {
		sol := &domain.Solution{Assignments: map[string][]domain.DeliveryInstruction{
			"TA01": {{OrderID: "o1"}, {OrderID: "o2"}},
			"TA02": {{OrderID: "o3"}},
		}}
		m := Move{Kind: MoveSwap, SourceVehicleID: "TA01", SourceIndex: 0, TargetVehicleID: "TA02", TargetIndex: 0}

		swapped := Apply(sol, m)
		restored := Apply(swapped, Inverse(m))

		assert.Equal(t, sol.Assignments["TA01"][0].OrderID, restored.Assignments["TA01"][0].OrderID)
		assert.Equal(t, sol.Assignments["TA02"][0].OrderID, restored.Assignments["TA02"][0].OrderID)
	})
}
