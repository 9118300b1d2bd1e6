package domain

import (
	"fmt"
	"time"

	"github.com/fleetops/lpgdispatch/pkg/units"
)

// VehicleTypeCode identifies one of the four fixed truck variants.
type VehicleTypeCode string

const (
	TypeTA VehicleTypeCode = "TA"
	TypeTB VehicleTypeCode = "TB"
	TypeTC VehicleTypeCode = "TC"
	TypeTD VehicleTypeCode = "TD"
)

// VehicleType carries the fixed physical attributes of a truck variant.
type VehicleType struct {
	Code           VehicleTypeCode
	TareWeightTons float64
	CapacityM3     int
	FullWeightTons float64 // combined tare + max LPG load, in tons
	UnitCount      int
}

// FuelTankGallons is shared by every truck variant.
const FuelTankGallons = 25.0

// ServiceDurationMinutes, DefaultTransferMinutes, MaintenanceExitMinutes
// are the fixed action durations used by the plan builder (§4.3).
const (
	ServiceDurationMinutes     = 15
	DefaultTransferMinutes     = 10
	MaintenanceExitMinutes     = 15
)

// VehicleTypes is the canonical reference table (§3).
var VehicleTypes = map[VehicleTypeCode]VehicleType{
	TypeTA: {Code: TypeTA, TareWeightTons: 2.5, CapacityM3: 25, FullWeightTons: 15.0, UnitCount: 2},
	TypeTB: {Code: TypeTB, TareWeightTons: 2.0, CapacityM3: 15, FullWeightTons: 9.5, UnitCount: 4},
	TypeTC: {Code: TypeTC, TareWeightTons: 1.5, CapacityM3: 10, FullWeightTons: 6.5, UnitCount: 4},
	TypeTD: {Code: TypeTD, TareWeightTons: 1.0, CapacityM3: 5, FullWeightTons: 3.5, UnitCount: 10},
}

// CombinedWeightTons returns the truck's current weight (tare + current LPG
// load, prorated linearly between tare and full) given the load fraction.
func (vt VehicleType) CombinedWeightTons(currentLpgM3 float64) float64 {
	if vt.CapacityM3 == 0 {
		return vt.TareWeightTons
	}
	loadFraction := currentLpgM3 / float64(vt.CapacityM3)
	return vt.TareWeightTons + loadFraction*(vt.FullWeightTons-vt.TareWeightTons)
}

// VehicleStatus is the operational state machine for a Vehicle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "AVAILABLE"
	StatusDriving     VehicleStatus = "DRIVING"
	StatusRefueling   VehicleStatus = "REFUELING"
	StatusReloading   VehicleStatus = "RELOADING"
	StatusServing     VehicleStatus = "SERVING"
	StatusMaintenance VehicleStatus = "MAINTENANCE"
	StatusIdle        VehicleStatus = "IDLE"
	StatusUnavailable VehicleStatus = "UNAVAILABLE"
)

// Vehicle is a single truck. It is owned exclusively by the Environment;
// only the plan executor or explicit maintenance/incident handlers mutate
// it (§4.1).
type Vehicle struct {
	ID       string // TTNN, e.g. "TA01"
	Type     VehicleType
	Position Position
	LpgM3    float64
	FuelGal  float64
	Status   VehicleStatus

	TotalKm             float64
	LastMaintenanceDate  time.Time

	Plan *VehiclePlan // nil when idle
}

// Clone returns a deep copy suitable for evaluator/optimizer snapshots,
// which must never alias the Environment's canonical Vehicle (§3 Ownership).
func (v *Vehicle) Clone() *Vehicle {
	cp := *v
	if v.Plan != nil {
		cp.Plan = v.Plan.Clone()
	}
	return &cp
}

// ValidateInvariants checks the two per-vehicle invariants of §8:
// 0 <= lpg <= capacity and 0 <= fuel <= tank.
func (v *Vehicle) ValidateInvariants() error {
	if v.LpgM3 < 0 || v.LpgM3 > float64(v.Type.CapacityM3)+1e-9 {
		return fmt.Errorf("vehicle %s: lpg %.3f out of [0,%d]", v.ID, v.LpgM3, v.Type.CapacityM3)
	}
	if v.FuelGal < 0 || v.FuelGal > FuelTankGallons+1e-9 {
		return fmt.Errorf("vehicle %s: fuel %.3f out of [0,%.1f]", v.ID, v.FuelGal, FuelTankGallons)
	}
	return nil
}

// FuelForLeg computes the gallons burned driving km kilometers at the
// vehicle's current LPG load (§3).
func (v *Vehicle) FuelForLeg(km int) units.Fuel {
	weight := v.Type.CombinedWeightTons(v.LpgM3)
	return units.FuelForLeg(units.DistanceFromKm(km), weight)
}

// IsAvailable reports whether the vehicle can be assigned new instructions.
func (v *Vehicle) IsAvailable() bool {
	return v.Status == StatusAvailable
}
