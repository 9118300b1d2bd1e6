// Package planner implements the plan builder (C4, §4.3): it lowers an
// ordered list of DeliveryInstructions for one vehicle into a concrete
// VehiclePlan of DRIVE/REFUEL/RELOAD/SERVE/MAINTENANCE actions, inserting
// refuel and reload detours on demand.
package planner

import (
	"math"
	"sort"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/pathfinding"
)

// fuelEpsilon absorbs floating point slop around the "currentFuel - ε"
// reachability check in §4.3 step 2.
const fuelEpsilon = 1e-6

// OrderLookup resolves an order by id, needed to read its CustomerPos.
type OrderLookup interface {
	FindOrderByID(id string) (*domain.Order, bool)
}

// Build realizes instructions into a VehiclePlan for vehicle, starting at
// startTime. vehicle is mutated in place to reflect the plan's end state
// (callers pass a clone when they don't want that); each depot used for a
// RELOAD is likewise drawn down in place. It returns (nil, false)
// when a leg's reachability cannot be repaired by a single refuel hop
// (§4.3: "the plan is returned as null").
func Build(
	grid domain.Grid,
	blockageSrc pathfinding.BlockageSource,
	orders OrderLookup,
	depots []*domain.Depot,
	vehicle *domain.Vehicle,
	instructions []domain.DeliveryInstruction,
	startTime time.Time,
	transferMinutes int,
) (*domain.VehiclePlan, bool) {
	plan := &domain.VehiclePlan{VehicleID: vehicle.ID, StartTime: startTime}
	t := startTime

	for _, instr := range instructions {
		order, ok := orders.FindOrderByID(instr.OrderID)
		if !ok {
			return nil, false
		}

		// Step 1: LPG sufficiency.
		if vehicle.LpgM3 < float64(instr.AmountM3) {
			depot, ok := nearestDepotWithCapacity(depots, vehicle.Position, float64(instr.AmountM3))
			if !ok {
				return nil, false
			}
			if !reload(grid, blockageSrc, depots, vehicle, plan, depot, &t, transferMinutes) {
				return nil, false
			}
		}

		// Step 2: reachability check for the leg to the customer.
		legPath, err := pathfinding.FindPath(grid, blockageSrc, vehicle.Position, order.CustomerPos, t)
		if err != nil {
			return nil, false
		}
		fuelNeeded := vehicle.FuelForLeg(legPath.DistanceKm).Float()
		if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
			if !refuelDetour(grid, blockageSrc, depots, vehicle, plan, &t, transferMinutes) {
				return nil, false
			}
			// Recompute the leg from the post-refuel position.
			legPath, err = pathfinding.FindPath(grid, blockageSrc, vehicle.Position, order.CustomerPos, t)
			if err != nil {
				return nil, false
			}
			fuelNeeded = vehicle.FuelForLeg(legPath.DistanceKm).Float()
			if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
				// A single refuel hop did not repair reachability.
				return nil, false
			}
		}

		// Step 3: drive to customer.
		driveAction := makeDriveAction(legPath, t)
		driveAction.FuelDeltaGallons = fuelNeeded
		plan.Actions = append(plan.Actions, driveAction)
		vehicle.Position = order.CustomerPos
		vehicle.FuelGal -= fuelNeeded
		vehicle.TotalKm += float64(legPath.DistanceKm)
		t = driveAction.End

		// Step 4: serve.
		serveEnd := t.Add(domain.ServiceDurationMinutes * time.Minute)
		plan.Actions = append(plan.Actions, domain.Action{
			Kind:        domain.ActionServe,
			Start:       t,
			End:         serveEnd,
			Destination: vehicle.Position,
			OrderID:     order.ID,
			DeliveredM3: instr.AmountM3,
		})
		vehicle.LpgM3 -= float64(instr.AmountM3)
		t = serveEnd
	}

	mainDepot := mainDepotOf(depots)
	if mainDepot != nil {
		homePath, err := pathfinding.FindPath(grid, blockageSrc, vehicle.Position, mainDepot.Position, t)
		if err != nil {
			return nil, false
		}
		fuelNeeded := vehicle.FuelForLeg(homePath.DistanceKm).Float()
		if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
			if !refuelDetour(grid, blockageSrc, depots, vehicle, plan, &t, transferMinutes) {
				return nil, false
			}
			homePath, err = pathfinding.FindPath(grid, blockageSrc, vehicle.Position, mainDepot.Position, t)
			if err != nil {
				return nil, false
			}
			fuelNeeded = vehicle.FuelForLeg(homePath.DistanceKm).Float()
			if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
				return nil, false
			}
		}
		driveHome := makeDriveAction(homePath, t)
		driveHome.FuelDeltaGallons = fuelNeeded
		plan.Actions = append(plan.Actions, driveHome)
		vehicle.Position = mainDepot.Position
		vehicle.FuelGal -= fuelNeeded
		vehicle.TotalKm += float64(homePath.DistanceKm)
		t = driveHome.End

		maintEnd := t.Add(domain.MaintenanceExitMinutes * time.Minute)
		plan.Actions = append(plan.Actions, domain.Action{
			Kind:        domain.ActionMaintenance,
			Start:       t,
			End:         maintEnd,
			Destination: mainDepot.Position,
		})
		t = maintEnd
	}

	plan.Finalize()
	return plan, true
}

// reload drives to depot (inserting a refuel detour first if needed),
// fills the vehicle's LPG headroom up to capacity, limited by the depot's
// current stock, and returns false if any leg is unreachable.
func reload(
	grid domain.Grid,
	blockageSrc pathfinding.BlockageSource,
	depots []*domain.Depot,
	vehicle *domain.Vehicle,
	plan *domain.VehiclePlan,
	depot *domain.Depot,
	t *time.Time,
	transferMinutes int,
) bool {
	path, err := pathfinding.FindPath(grid, blockageSrc, vehicle.Position, depot.Position, *t)
	if err != nil {
		return false
	}
	fuelNeeded := vehicle.FuelForLeg(path.DistanceKm).Float()
	if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
		if !refuelDetour(grid, blockageSrc, depots, vehicle, plan, t, transferMinutes) {
			return false
		}
		path, err = pathfinding.FindPath(grid, blockageSrc, vehicle.Position, depot.Position, *t)
		if err != nil {
			return false
		}
		fuelNeeded = vehicle.FuelForLeg(path.DistanceKm).Float()
		if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
			return false
		}
	}

	driveAction := makeDriveAction(path, *t)
	driveAction.FuelDeltaGallons = fuelNeeded
	plan.Actions = append(plan.Actions, driveAction)
	vehicle.Position = depot.Position
	vehicle.FuelGal -= fuelNeeded
	vehicle.TotalKm += float64(path.DistanceKm)
	*t = driveAction.End

	headroom := float64(vehicle.Type.CapacityM3) - vehicle.LpgM3
	amount := math.Min(headroom, depot.CurrentLpgM3)
	reloadEnd := t.Add(time.Duration(transferMinutes) * time.Minute)
	plan.Actions = append(plan.Actions, domain.Action{
		Kind:        domain.ActionReload,
		Start:       *t,
		End:         reloadEnd,
		Destination: depot.Position,
		DepotID:     depot.ID,
		AmountM3:    amount,
	})
	depot.Withdraw(amount)
	vehicle.LpgM3 += amount
	*t = reloadEnd
	return true
}

// refuelDetour drives to the nearest fuel-capable depot reachable with
// current fuel and tops the tank back to full.
func refuelDetour(
	grid domain.Grid,
	blockageSrc pathfinding.BlockageSource,
	depots []*domain.Depot,
	vehicle *domain.Vehicle,
	plan *domain.VehiclePlan,
	t *time.Time,
	transferMinutes int,
) bool {
	depot, path, ok := nearestReachableFuelDepot(grid, blockageSrc, depots, vehicle, *t)
	if !ok {
		return false
	}

	legFuel := vehicle.FuelForLeg(path.DistanceKm).Float()
	driveAction := makeDriveAction(path, *t)
	driveAction.FuelDeltaGallons = legFuel
	plan.Actions = append(plan.Actions, driveAction)
	vehicle.Position = depot.Position
	vehicle.FuelGal -= legFuel
	vehicle.TotalKm += float64(path.DistanceKm)
	*t = driveAction.End

	refuelEnd := t.Add(time.Duration(transferMinutes) * time.Minute)
	plan.Actions = append(plan.Actions, domain.Action{
		Kind:        domain.ActionRefuel,
		Start:       *t,
		End:         refuelEnd,
		Destination: depot.Position,
		DepotID:     depot.ID,
	})
	vehicle.FuelGal = domain.FuelTankGallons
	*t = refuelEnd
	return true
}

func nearestReachableFuelDepot(
	grid domain.Grid,
	blockageSrc pathfinding.BlockageSource,
	depots []*domain.Depot,
	vehicle *domain.Vehicle,
	t time.Time,
) (*domain.Depot, pathfinding.PathResult, bool) {
	type candidate struct {
		depot *domain.Depot
		path  pathfinding.PathResult
	}
	var candidates []candidate
	for _, d := range depots {
		if !d.CanRefuel {
			continue
		}
		path, err := pathfinding.FindPath(grid, blockageSrc, vehicle.Position, d.Position, t)
		if err != nil {
			continue
		}
		fuelNeeded := vehicle.FuelForLeg(path.DistanceKm).Float()
		if fuelNeeded > vehicle.FuelGal-fuelEpsilon {
			continue
		}
		candidates = append(candidates, candidate{d, path})
	}
	if len(candidates) == 0 {
		return nil, pathfinding.PathResult{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].path.DistanceKm != candidates[j].path.DistanceKm {
			return candidates[i].path.DistanceKm < candidates[j].path.DistanceKm
		}
		return candidates[i].depot.ID < candidates[j].depot.ID
	})
	return candidates[0].depot, candidates[0].path, true
}

// nearestDepotWithCapacity prefers auxiliary depots with sufficient LPG,
// falling back to the main plant, which is always sufficient (§4.3 step 1).
func nearestDepotWithCapacity(depots []*domain.Depot, from domain.Position, amountM3 float64) (*domain.Depot, bool) {
	var auxCandidates []*domain.Depot
	var main *domain.Depot
	for _, d := range depots {
		if d.Kind == domain.DepotMain {
			main = d
			continue
		}
		if d.CanServe(amountM3) {
			auxCandidates = append(auxCandidates, d)
		}
	}
	if len(auxCandidates) > 0 {
		sort.Slice(auxCandidates, func(i, j int) bool {
			di := domain.ManhattanDistance(from, auxCandidates[i].Position)
			dj := domain.ManhattanDistance(from, auxCandidates[j].Position)
			if di != dj {
				return di < dj
			}
			return auxCandidates[i].ID < auxCandidates[j].ID
		})
		return auxCandidates[0], true
	}
	if main != nil && main.CanServe(amountM3) {
		return main, true
	}
	return nil, false
}

func mainDepotOf(depots []*domain.Depot) *domain.Depot {
	for _, d := range depots {
		if d.Kind == domain.DepotMain {
			return d
		}
	}
	return nil
}

// makeDriveAction wraps a PathResult into a DRIVE action. Duration is
// ceil(distanceKm / 50 * 60) minutes (§4.3).
func makeDriveAction(path pathfinding.PathResult, start time.Time) domain.Action {
	minutes := int(math.Ceil(float64(path.DistanceKm) / domain.SpeedKmh * 60))
	end := start.Add(time.Duration(minutes) * time.Minute)
	return domain.Action{
		Kind:           domain.ActionDrive,
		Start:          start,
		End:            end,
		Destination:    path.Positions[len(path.Positions)-1],
		Path:           path.Positions,
		PerNodeArrival: path.PerNodeArrivalTime,
		DistanceKm:     path.DistanceKm,
	}
}
