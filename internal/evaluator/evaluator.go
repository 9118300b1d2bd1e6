// Package evaluator implements the pure cost/feasibility scoring function
// (C5, §4.4). It is grounded on the teacher's internal/risk.Calculator:
// a stateless set of float64 metrics folded into one scalar, with no
// hidden mutable state — the same "pure function of inputs" shape, just
// scoring a dispatch Solution instead of a trading position.
package evaluator

import (
	"math"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/pathfinding"
	"github.com/fleetops/lpgdispatch/internal/planner"
)

// Weights collects the evaluator's tunable coefficients (§4.4), so tests
// can exercise edge cases without hardcoding magic numbers inline.
type Weights struct {
	CompletedOrderReward float64
	PartialCreditFactor  float64
	EarlyBonusCapMinutes float64
	EarlyBonusPerMinute  float64
	LateExponent         float64 // alpha in [1.3, 1.7]
	LatePenaltyPerMinute float64
	UnderDeliveryWeight  float64
	DistanceWeight       float64
	MissingOrderFactor   float64 // multiplies the incomplete penalty
}

// DefaultWeights returns the reference coefficients used throughout the
// spec's worked examples.
func DefaultWeights() Weights {
	return Weights{
		CompletedOrderReward: 100,
		PartialCreditFactor:  0.5,
		EarlyBonusCapMinutes: 60,
		EarlyBonusPerMinute:  0.5,
		LateExponent:         1.5,
		LatePenaltyPerMinute: 1.0,
		UnderDeliveryWeight:  50,
		DistanceWeight:       0.1,
		MissingOrderFactor:   2.0,
	}
}

// Result breaks the score down for diagnostics/telemetry (§4.14); only
// Score feeds back into the optimizer.
type Result struct {
	Score             float64
	CompletedReward   float64
	DueDateComponent  float64
	UnderDeliveryCost float64
	DistanceCost      float64
	MissingOrderCost  float64
}

// Evaluate scores a Solution against an Environment snapshot. It is a pure
// function: calling it twice with the same (snapshot, solution) pair must
// return identical scores (§4.4, §8) — it neither mutates its arguments
// nor consults wall-clock time or randomness.
func Evaluate(
	grid domain.Grid,
	snap environment.Snapshot,
	sol *domain.Solution,
	w Weights,
	transferMinutes int,
) Result {
	var res Result

	blockages := staticBlockageSource{snap.Blockages, snap.Now}

	for vehicleID, instrs := range sol.Assignments {
		v, ok := snap.Vehicles[vehicleID]
		if !ok {
			continue
		}
		clone := v.Clone()
		depots := depotList(snap)
		plan, ok := planner.Build(grid, blockages, orderLookup{snap.Orders}, depots, clone, instrs, snap.Now, transferMinutes)
		res.DistanceCost += w.DistanceWeight * float64(planDistance(plan, ok))

		arrival := snap.Now
		runningKm := 0
		for _, a := range planActions(plan, ok) {
			if a.Kind == domain.ActionDrive {
				runningKm += a.DistanceKm
				arrival = a.End
			}
			if a.Kind == domain.ActionServe {
				res.DueDateComponent += dueDateScore(snap.Orders[a.OrderID], arrival, w)
			}
		}
	}

	for _, order := range snap.Orders {
		if order.RequestedM3 <= 0 {
			continue
		}
		assigned := sol.TotalAssignedM3(order.ID)
		if assigned >= order.RemainingM3 && order.RemainingM3 > 0 {
			res.CompletedReward += w.CompletedOrderReward
		} else if assigned > 0 {
			frac := float64(assigned) / float64(order.RemainingM3)
			res.CompletedReward += w.CompletedOrderReward * w.PartialCreditFactor * frac
		}

		uncovered := order.RemainingM3 - assigned
		if uncovered < 0 {
			uncovered = 0
		}
		if order.RequestedM3 > 0 {
			fraction := float64(uncovered) / float64(order.RequestedM3)
			penalty := w.UnderDeliveryWeight * fraction * fraction
			if assigned == 0 {
				penalty *= w.MissingOrderFactor
				res.MissingOrderCost += penalty
			} else {
				res.UnderDeliveryCost += penalty
			}
		}
	}

	res.Score = res.CompletedReward + res.DueDateComponent -
		res.UnderDeliveryCost - res.DistanceCost - res.MissingOrderCost
	return res
}

func dueDateScore(order *domain.Order, arrival time.Time, w Weights) float64 {
	if order == nil {
		return 0
	}
	minutesEarly := order.DueTime.Sub(arrival).Minutes()
	if minutesEarly >= 0 {
		bonus := math.Min(minutesEarly, w.EarlyBonusCapMinutes) * w.EarlyBonusPerMinute
		return bonus
	}
	minutesLate := -minutesEarly
	return -w.LatePenaltyPerMinute * math.Pow(minutesLate, w.LateExponent)
}

func planDistance(plan *domain.VehiclePlan, ok bool) int {
	if !ok || plan == nil {
		return 0
	}
	return plan.TotalDistanceKm
}

func planActions(plan *domain.VehiclePlan, ok bool) []domain.Action {
	if !ok || plan == nil {
		return nil
	}
	return plan.Actions
}

func depotList(snap environment.Snapshot) []*domain.Depot {
	out := make([]*domain.Depot, 0, 1+len(snap.AuxDepots))
	if snap.MainDepot != nil {
		out = append(out, snap.MainDepot.Clone())
	}
	for _, d := range snap.AuxDepots {
		out = append(out, d.Clone())
	}
	return out
}

type orderLookup struct {
	orders map[string]*domain.Order
}

func (o orderLookup) FindOrderByID(id string) (*domain.Order, bool) {
	ord, ok := o.orders[id]
	return ord, ok
}

// staticBlockageSource answers blockage queries from the snapshot's frozen
// blockage set, filtering it by each query's time t, so planned legs see
// the blockages active when they are driven; the set itself never changes
// during an evaluation pass (§4.4 "evaluator must be a pure function").
type staticBlockageSource struct {
	blockages map[string]*domain.Blockage
	at        time.Time
}

func (s staticBlockageSource) ActiveBlockagesAt(t time.Time) []*domain.Blockage {
	out := make([]*domain.Blockage, 0)
	for _, b := range s.blockages {
		if b.IsActive(t) {
			out = append(out, b)
		}
	}
	return out
}

var _ pathfinding.BlockageSource = staticBlockageSource{}
