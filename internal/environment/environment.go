// Package environment owns the single process-wide, mutable world state:
// the simulation clock, the vehicle table, the depot list, the order and
// blockage registries, active incidents and the maintenance schedule.
// Grounded on the teacher's internal/matching.Engine: a handful of maps
// behind one mutex, exposing narrow query and mutation methods rather than
// letting callers reach into the maps directly (§4.1, §5).
package environment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// Environment is the single owned aggregate passed by reference into the
// orchestrator; tests construct isolated instances. No singletons (§9).
type Environment struct {
	mu sync.Mutex

	now time.Time

	grid domain.Grid

	vehicles map[string]*domain.Vehicle
	mainDepot *domain.Depot
	auxDepots []*domain.Depot

	orders    map[string]*domain.Order
	blockages map[string]*domain.Blockage
	incidents map[string]*domain.Incident
	maintenance []domain.MaintenanceTask

	lastAuxRefillDay int // day-of-year of the last midnight refill, -1 initially
}

// New creates an Environment with the default 70x50 grid and no vehicles,
// depots, orders, blockages, incidents or maintenance tasks loaded yet.
func New(start time.Time) *Environment {
	return &Environment{
		now:              start,
		grid:             domain.DefaultGrid(),
		vehicles:         make(map[string]*domain.Vehicle),
		orders:           make(map[string]*domain.Order),
		blockages:        make(map[string]*domain.Blockage),
		incidents:        make(map[string]*domain.Incident),
		lastAuxRefillDay: -1,
	}
}

// Lock/Unlock expose the Environment's mutex to the orchestrator so a tick
// and any control-API mutation are mutually exclusive (§5). Nothing outside
// this package and the orchestrator should ever call these.
func (e *Environment) Lock()   { e.mu.Lock() }
func (e *Environment) Unlock() { e.mu.Unlock() }

// Grid returns the city bounds.
func (e *Environment) Grid() domain.Grid { return e.grid }

// Now returns the current simulation time. Caller must hold the lock.
func (e *Environment) Now() time.Time { return e.now }

// SetMainDepot installs the (singular) main plant.
func (e *Environment) SetMainDepot(d *domain.Depot) { e.mainDepot = d }

// AddAuxDepot registers an auxiliary depot.
func (e *Environment) AddAuxDepot(d *domain.Depot) { e.auxDepots = append(e.auxDepots, d) }

// MainDepot returns the main plant.
func (e *Environment) MainDepot() *domain.Depot { return e.mainDepot }

// AuxDepots returns the auxiliary depot list.
func (e *Environment) AuxDepots() []*domain.Depot { return e.auxDepots }

// AllDepots returns every depot, main first.
func (e *Environment) AllDepots() []*domain.Depot {
	out := make([]*domain.Depot, 0, 1+len(e.auxDepots))
	if e.mainDepot != nil {
		out = append(out, e.mainDepot)
	}
	out = append(out, e.auxDepots...)
	return out
}

// AddVehicle registers a vehicle.
func (e *Environment) AddVehicle(v *domain.Vehicle) { e.vehicles[v.ID] = v }

// Vehicle looks up a vehicle by id.
func (e *Environment) Vehicle(id string) (*domain.Vehicle, bool) {
	v, ok := e.vehicles[id]
	return v, ok
}

// AllVehicles returns every vehicle, sorted by id for deterministic
// iteration.
func (e *Environment) AllVehicles() []*domain.Vehicle {
	out := make([]*domain.Vehicle, 0, len(e.vehicles))
	for _, v := range e.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableVehicles returns vehicles with status AVAILABLE that are not
// currently held by maintenance or an incident (§4.1).
func (e *Environment) AvailableVehicles() []*domain.Vehicle {
	out := make([]*domain.Vehicle, 0)
	for _, v := range e.AllVehicles() {
		if v.Status == domain.StatusAvailable {
			out = append(out, v)
		}
	}
	return out
}

// addOrderLocked is the internal, lock-assumed-held mutator.
func (e *Environment) addOrderLocked(o *domain.Order) { e.orders[o.ID] = o }

// AddOrder registers a new order, taking the lock itself. Prefer this from
// outside the orchestrator's own locked sections; the orchestrator, which
// already holds the lock while draining events, should mutate the maps
// directly via the *Locked variants instead.
func (e *Environment) AddOrder(o *domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addOrderLocked(o)
}

// AddOrderLocked adds an order; caller must already hold the lock.
func (e *Environment) AddOrderLocked(o *domain.Order) { e.addOrderLocked(o) }

// FindOrderByID looks up an order.
func (e *Environment) FindOrderByID(id string) (*domain.Order, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// PendingOrders returns every order with RemainingM3 > 0, i.e. not yet
// fully delivered.
func (e *Environment) PendingOrders() []*domain.Order {
	out := make([]*domain.Order, 0)
	for _, o := range e.orders {
		if !o.IsServed() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddBlockageLocked registers a blockage; caller must hold the lock.
func (e *Environment) AddBlockageLocked(b *domain.Blockage) { e.blockages[b.ID] = b }

// AddBlockage registers a blockage, taking the lock itself.
func (e *Environment) AddBlockage(b *domain.Blockage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.AddBlockageLocked(b)
}

// ActiveBlockagesAt returns every blockage active at time t.
func (e *Environment) ActiveBlockagesAt(t time.Time) []*domain.Blockage {
	out := make([]*domain.Blockage, 0)
	for _, b := range e.blockages {
		if b.IsActive(t) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllBlockages returns every registered blockage, expired or not.
func (e *Environment) AllBlockages() []*domain.Blockage {
	out := make([]*domain.Blockage, 0, len(e.blockages))
	for _, b := range e.blockages {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddIncidentLocked registers an incident and marks its vehicle
// UNAVAILABLE; caller must hold the lock.
func (e *Environment) AddIncidentLocked(inc *domain.Incident) error {
	v, ok := e.vehicles[inc.VehicleID]
	if !ok {
		return fmt.Errorf("unknown vehicle %s", inc.VehicleID)
	}
	e.incidents[inc.ID] = inc
	v.Status = domain.StatusUnavailable
	v.Plan = nil
	return nil
}

// AddIncident registers an incident, taking the lock itself.
func (e *Environment) AddIncident(inc *domain.Incident) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.AddIncidentLocked(inc)
}

// ResolveIncidentLocked resolves every active incident on a vehicle and
// restores it to AVAILABLE; caller must hold the lock.
func (e *Environment) ResolveIncidentLocked(vehicleID string, at time.Time) error {
	v, ok := e.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("unknown vehicle %s", vehicleID)
	}
	found := false
	for _, inc := range e.incidents {
		if inc.VehicleID == vehicleID && inc.ResolvedAt == nil {
			inc.Resolve(at)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no active incident for vehicle %s", vehicleID)
	}
	v.Status = domain.StatusAvailable
	return nil
}

// ResolveIncident resolves a vehicle's active incidents, taking the lock.
func (e *Environment) ResolveIncident(vehicleID string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ResolveIncidentLocked(vehicleID, at)
}

// ActiveIncidents returns every currently-active incident.
func (e *Environment) ActiveIncidents(at time.Time) []*domain.Incident {
	out := make([]*domain.Incident, 0)
	for _, inc := range e.incidents {
		if inc.IsActive(at) {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddMaintenanceTask registers a preventive maintenance task.
func (e *Environment) AddMaintenanceTask(t domain.MaintenanceTask) {
	e.maintenance = append(e.maintenance, t)
}

// MaintenanceTasks returns every scheduled task.
func (e *Environment) MaintenanceTasks() []domain.MaintenanceTask { return e.maintenance }

// AdvanceClock moves the simulation clock forward by delta and, if this
// crosses a midnight boundary, refills the auxiliary depots (§4.1). Caller
// must hold the lock.
func (e *Environment) AdvanceClock(delta time.Duration) {
	e.now = e.now.Add(delta)
	day := e.now.YearDay()
	if day != e.lastAuxRefillDay {
		e.RefillAuxDepots()
		e.lastAuxRefillDay = day
	}
}

// RefillAuxDepots tops up every auxiliary depot to its effective capacity.
// Caller must hold the lock.
func (e *Environment) RefillAuxDepots() {
	for _, d := range e.auxDepots {
		d.RefillToEffectiveCapacity()
	}
}

// Snapshot returns a deep-cloned copy of the Environment's state for use
// by evaluators, the optimizer, and the snapshot API — none of which may
// ever mutate the canonical state (§3 Ownership, §5).
type Snapshot struct {
	Now       time.Time
	Grid      domain.Grid
	Vehicles  map[string]*domain.Vehicle
	MainDepot *domain.Depot
	AuxDepots []*domain.Depot
	Orders    map[string]*domain.Order
	Blockages map[string]*domain.Blockage
	Incidents map[string]*domain.Incident
}

// Snapshot clones the full Environment state. Caller must hold the lock
// for the duration of the call (the clones are independent afterwards).
func (e *Environment) Snapshot() Snapshot {
	s := Snapshot{
		Now:       e.now,
		Grid:      e.grid,
		Vehicles:  make(map[string]*domain.Vehicle, len(e.vehicles)),
		Orders:    make(map[string]*domain.Order, len(e.orders)),
		Blockages: make(map[string]*domain.Blockage, len(e.blockages)),
		Incidents: make(map[string]*domain.Incident, len(e.incidents)),
	}
	for id, v := range e.vehicles {
		s.Vehicles[id] = v.Clone()
	}
	if e.mainDepot != nil {
		s.MainDepot = e.mainDepot.Clone()
	}
	for _, d := range e.auxDepots {
		s.AuxDepots = append(s.AuxDepots, d.Clone())
	}
	for id, o := range e.orders {
		s.Orders[id] = o.Clone()
	}
	for id, b := range e.blockages {
		s.Blockages[id] = b.Clone()
	}
	for id, inc := range e.incidents {
		cp := *inc
		s.Incidents[id] = &cp
	}
	return s
}
