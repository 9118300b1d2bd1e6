package domain

// DepotKind distinguishes the unlimited main plant from the two auxiliary
// tanks that refill daily at midnight (§3).
type DepotKind string

const (
	DepotMain DepotKind = "main"
	DepotAux  DepotKind = "aux"
)

// AuxDepotEffectiveCapacityM3 is the capacity auxiliary depots refill to
// every day at 00:00.
const AuxDepotEffectiveCapacityM3 = 160

// MainDepotEffectiveCapacityM3 models the main plant as "effectively
// unlimited": a large constant, auto-refilled, rather than a literal
// infinity, so arithmetic over it stays well behaved.
const MainDepotEffectiveCapacityM3 = 1_000_000

// Depot is a refill/refuel location.
type Depot struct {
	ID           string
	Position     Position
	Kind         DepotKind
	CapacityM3   float64
	CurrentLpgM3 float64
	CanRefuel    bool // only the main plant dispenses fuel, per §9 Open Question
}

// NewMainDepot builds the spec's single main plant.
func NewMainDepot(id string, pos Position) *Depot {
	return &Depot{
		ID:           id,
		Position:     pos,
		Kind:         DepotMain,
		CapacityM3:   MainDepotEffectiveCapacityM3,
		CurrentLpgM3: MainDepotEffectiveCapacityM3,
		CanRefuel:    true,
	}
}

// NewAuxDepot builds an auxiliary depot; fuel is never dispensed there.
func NewAuxDepot(id string, pos Position) *Depot {
	return &Depot{
		ID:           id,
		Position:     pos,
		Kind:         DepotAux,
		CapacityM3:   AuxDepotEffectiveCapacityM3,
		CurrentLpgM3: AuxDepotEffectiveCapacityM3,
		CanRefuel:    false,
	}
}

// Clone returns an independent copy for snapshot/evaluator use.
func (d *Depot) Clone() *Depot {
	cp := *d
	return &cp
}

// CanServe reports whether the depot currently holds at least amountM3.
func (d *Depot) CanServe(amountM3 float64) bool {
	return d.CurrentLpgM3 >= amountM3
}

// Withdraw removes amountM3 from the depot, clamping at zero. Callers must
// have already checked CanServe; Withdraw does not itself error, matching
// the plan builder's "select another depot, else fall back to main" policy
// (§7) which checks capacity before ever calling Withdraw.
func (d *Depot) Withdraw(amountM3 float64) {
	d.CurrentLpgM3 -= amountM3
	if d.CurrentLpgM3 < 0 {
		d.CurrentLpgM3 = 0
	}
}

// RefillToEffectiveCapacity is invoked by the Environment at every
// midnight tick for auxiliary depots (§4.1 refillAuxDepots); the main
// plant auto-refills continuously and never needs it.
func (d *Depot) RefillToEffectiveCapacity() {
	if d.Kind == DepotAux {
		d.CurrentLpgM3 = AuxDepotEffectiveCapacityM3
	}
}
