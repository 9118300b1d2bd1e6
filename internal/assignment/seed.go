// Package assignment implements the initial assignment constructor (C6,
// §4.5): a greedy-with-randomization seed Solution the tabu search (C7)
// starts from.
package assignment

import (
	"math/rand"
	"sort"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// MinSplitM3 is the default minimum instruction size (§4.5).
const MinSplitM3 = 1

// Build constructs a seed Solution over the given pending orders and
// available vehicles. rng is injected so tests (and the optimizer's
// diversification step) can control reproducibility.
func Build(orders []*domain.Order, vehicles []*domain.Vehicle, rng *rand.Rand) *domain.Solution {
	sol := domain.NewSolution()
	for _, v := range vehicles {
		sol.Assignments[v.ID] = nil
	}
	if len(orders) == 0 || len(vehicles) == 0 {
		for _, o := range orders {
			if o.RemainingM3 > 0 {
				sol.Unassigned[o.ID] = o.RemainingM3
			}
		}
		return sol
	}

	sortedOrders := make([]*domain.Order, len(orders))
	copy(sortedOrders, orders)
	sort.Slice(sortedOrders, func(i, j int) bool {
		a, b := sortedOrders[i], sortedOrders[j]
		if a.DueTime.IsZero() != b.DueTime.IsZero() {
			return b.DueTime.IsZero() // nulls last
		}
		if !a.DueTime.Equal(b.DueTime) {
			return a.DueTime.Before(b.DueTime)
		}
		return a.ID < b.ID
	})

	// Remaining-LPG headroom per vehicle, tracked locally so repeated
	// orders don't over-assign beyond capacity during seeding.
	headroom := make(map[string]int, len(vehicles))
	for _, v := range vehicles {
		headroom[v.ID] = v.Type.CapacityM3
	}

	for _, order := range sortedOrders {
		remaining := order.RemainingM3
		if remaining <= 0 {
			continue
		}

		byProximity := make([]*domain.Vehicle, len(vehicles))
		copy(byProximity, vehicles)
		sort.Slice(byProximity, func(i, j int) bool {
			di := domain.ManhattanDistance(byProximity[i].Position, order.CustomerPos)
			dj := domain.ManhattanDistance(byProximity[j].Position, order.CustomerPos)
			if di != dj {
				return di < dj
			}
			return byProximity[i].ID < byProximity[j].ID
		})

		for _, v := range byProximity {
			if remaining <= 0 {
				break
			}
			room := headroom[v.ID]
			if room <= 0 {
				continue
			}
			cap := room
			if remaining < cap {
				cap = remaining
			}
			if cap < MinSplitM3 {
				continue
			}
			amount := MinSplitM3
			if cap > MinSplitM3 {
				amount = MinSplitM3 + rng.Intn(cap-MinSplitM3+1)
			}
			if amount > remaining {
				amount = remaining
			}

			sol.Assignments[v.ID] = append(sol.Assignments[v.ID], domain.DeliveryInstruction{
				OrderID:  order.ID,
				AmountM3: amount,
			})
			headroom[v.ID] -= amount
			remaining -= amount
		}

		if remaining > 0 {
			sol.Unassigned[order.ID] = remaining
		}
	}

	return sol
}
