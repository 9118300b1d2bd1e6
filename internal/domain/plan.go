package domain

import "time"

// VehiclePlan is an ordered action timeline for one vehicle, plus derived
// totals. Plans reference vehicles by identity only (§9): the Environment
// holds the canonical Vehicle, the Plan just carries VehicleID.
type VehiclePlan struct {
	VehicleID string
	Actions   []Action
	StartTime time.Time

	// Cursor into Actions: index of the action currently executing (or
	// about to execute) in the orchestrator's tick loop.
	Cursor int

	// Derived totals, computed by Finalize.
	TotalDistanceKm  int
	TotalLpgM3       float64
	TotalFuelGallons float64
	Feasible         bool
}

// Finalize recomputes the plan's derived totals from its action list. The
// plan builder calls this once after assembling all actions.
func (p *VehiclePlan) Finalize() {
	p.TotalDistanceKm = 0
	p.TotalLpgM3 = 0
	p.TotalFuelGallons = 0
	for _, a := range p.Actions {
		switch a.Kind {
		case ActionDrive:
			p.TotalDistanceKm += a.DistanceKm
			p.TotalFuelGallons += a.FuelDeltaGallons
		case ActionServe:
			p.TotalLpgM3 += float64(a.DeliveredM3)
		}
	}
	p.Feasible = true
}

// CurrentAction returns the action at the cursor, or ok=false if the plan
// has been fully executed.
func (p *VehiclePlan) CurrentAction() (Action, bool) {
	if p.Cursor < 0 || p.Cursor >= len(p.Actions) {
		return Action{}, false
	}
	return p.Actions[p.Cursor], true
}

// Clone returns an independent deep copy.
func (p *VehiclePlan) Clone() *VehiclePlan {
	cp := *p
	cp.Actions = make([]Action, len(p.Actions))
	for i, a := range p.Actions {
		cp.Actions[i] = a
		cp.Actions[i].Path = append([]Position(nil), a.Path...)
		cp.Actions[i].PerNodeArrival = append([]time.Time(nil), a.PerNodeArrival...)
	}
	return &cp
}

// RemainingPath returns the yet-unreached portion of the current DRIVE
// action's path, for the §6.2 "remaining path" field of GET /environment.
// progress is a fraction in [0,1] of the current action's duration elapsed.
func (a Action) RemainingPath(progress float64) []Position {
	if a.Kind != ActionDrive || len(a.Path) == 0 {
		return nil
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	idx := int(progress * float64(len(a.Path)-1))
	if idx >= len(a.Path) {
		idx = len(a.Path) - 1
	}
	return a.Path[idx:]
}
