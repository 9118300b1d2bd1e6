// Package orchestrator implements the simulation driver (C8, §4.7-§4.8):
// a single tick-loop goroutine draining a time-ordered event queue,
// executing installed VehiclePlans action by action, and periodically
// invoking the tabu-search optimizer behind a circuit breaker. Grounded on
// the teacher's internal/matching.Engine: one goroutine owns the
// authoritative state and processes work serially, with the control
// surface arriving over a channel/bus instead of touching state directly.
package orchestrator

import (
	"context"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/fleetops/lpgdispatch/internal/assignment"
	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/evaluator"
	"github.com/fleetops/lpgdispatch/internal/optimizer"
	"github.com/fleetops/lpgdispatch/internal/parsing"
	"github.com/fleetops/lpgdispatch/internal/planner"
	"github.com/fleetops/lpgdispatch/internal/snapshot"
	"github.com/fleetops/lpgdispatch/internal/telemetry"
	"github.com/fleetops/lpgdispatch/pkg/circuit"
	"github.com/fleetops/lpgdispatch/pkg/messaging"
)

// minTickMillis/maxTickMillis bound POST /simulation/speed (§6.2).
const (
	minTickMillis = 50
	maxTickMillis = 10000
)

// Orchestrator owns the Environment and drives it forward one tick at a
// time. Control operations arrive over Bus and are folded into the event
// queue under the Environment's own mutex (§5): the gateway never mutates
// the Environment directly.
type Orchestrator struct {
	env  *environment.Environment
	bus  messaging.Bus
	cache *snapshot.Cache
	telem *telemetry.Writer
	breaker *circuit.Breaker

	weights         evaluator.Weights
	transferMinutes int
	optimizerCfg    optimizer.Config
	catalog         []parsing.CatalogEntry
	rng             *rand.Rand

	queue *EventQueue

	logger *log.Logger

	ctrlMu     sync.Mutex
	running    bool
	tickMillis int
	cancelOpt  chan struct{}
	stopCh     chan struct{}
	tickCount  int64
}

// New builds an Orchestrator wired to env. bus/cache/telem may be nil-ish
// zero values (NewLocalBus / NewCache("") / NewWriter("",...,...)) when the
// corresponding optional integration is disabled.
func New(
	env *environment.Environment,
	bus messaging.Bus,
	cache *snapshot.Cache,
	telem *telemetry.Writer,
	catalog []parsing.CatalogEntry,
	tickMillis int,
) *Orchestrator {
	o := &Orchestrator{
		env:             env,
		bus:             bus,
		cache:           cache,
		telem:           telem,
		breaker:         circuit.NewBreaker(circuit.OptimizerBreakerConfig()),
		weights:         evaluator.DefaultWeights(),
		transferMinutes: domain.DefaultTransferMinutes,
		optimizerCfg:    optimizer.DefaultConfig(),
		catalog:         catalog,
		rng:             rand.New(rand.NewSource(1)),
		queue:           NewEventQueue(),
		logger:          log.New(os.Stderr, "[orchestrator] ", log.LstdFlags),
		tickMillis:      tickMillis,
		stopCh:          make(chan struct{}),
	}
	o.subscribeBus()
	return o
}

// Seed preloads parsed orders, blockages, and maintenance tasks as initial
// queue events. Call once before Start.
func (o *Orchestrator) Seed(orders []*domain.Order, blockages []*domain.Blockage, tasks []domain.MaintenanceTask) {
	o.env.Lock()
	for _, b := range blockages {
		o.env.AddBlockageLocked(b)
	}
	o.env.Unlock()

	for _, ord := range orders {
		o.queue.Push(&Event{At: ord.ArrivalTime, Kind: EventOrderArrival, EntityID: ord.ID, Payload: ord})
	}
	for _, b := range blockages {
		o.queue.Push(&Event{At: b.StartTime, Kind: EventBlockageStart, EntityID: b.ID})
		o.queue.Push(&Event{At: b.EndTime, Kind: EventBlockageEnd, EntityID: b.ID})
	}
	for _, t := range tasks {
		start, end := t.Window()
		o.queue.Push(&Event{At: start, Kind: EventMaintenanceStart, EntityID: t.VehicleID, Payload: t})
		o.queue.Push(&Event{At: end, Kind: EventMaintenanceEnd, EntityID: t.VehicleID, Payload: t})
	}
}

// subscribeBus folds every control-API intent into the event queue or an
// immediate Environment mutation (§4.8).
func (o *Orchestrator) subscribeBus() {
	o.bus.Subscribe(messaging.SubjectOrderSubmit, func(env messaging.Envelope) {
		var intent messaging.OrderSubmitIntent
		if env.Decode(&intent) != nil {
			return
		}
		o.env.Lock()
		now := o.env.Now()
		o.env.Unlock()
		order := domain.NewOrder(intent.OrderID, domain.Position{X: intent.CustomerX, Y: intent.CustomerY}, now, intent.LimitHours, intent.RequestedM3)
		o.queue.Push(&Event{At: now, Kind: EventOrderArrival, EntityID: order.ID, Payload: order})
	})
	o.bus.Subscribe(messaging.SubjectVehicleBreakdown, func(env messaging.Envelope) {
		var intent messaging.VehicleBreakdownIntent
		if env.Decode(&intent) != nil {
			return
		}
		o.env.Lock()
		defer o.env.Unlock()
		o.env.AddIncidentLocked(&domain.Incident{
			ID:         intent.VehicleID + "-manual-" + time.Now().Format("150405"),
			VehicleID:  intent.VehicleID,
			OccurredAt: o.env.Now(),
			Type:       domain.TI2,
		})
	})
	o.bus.Subscribe(messaging.SubjectVehicleRepair, func(env messaging.Envelope) {
		var intent messaging.VehicleRepairIntent
		if env.Decode(&intent) != nil {
			return
		}
		o.env.Lock()
		defer o.env.Unlock()
		o.env.ResolveIncidentLocked(intent.VehicleID, o.env.Now())
	})
	o.bus.Subscribe(messaging.SubjectSpeedSet, func(env messaging.Envelope) {
		var intent messaging.SpeedSetIntent
		if env.Decode(&intent) != nil {
			return
		}
		o.SetSpeed(intent.TickMillis)
	})
	o.bus.Subscribe(messaging.SubjectControlPause, func(env messaging.Envelope) { o.Pause() })
	o.bus.Subscribe(messaging.SubjectControlResume, func(env messaging.Envelope) { o.Resume() })
	o.bus.Subscribe(messaging.SubjectControlReset, func(env messaging.Envelope) { o.Reset() })
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctrlMu.Lock()
	o.running = true
	o.ctrlMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		default:
		}

		o.ctrlMu.Lock()
		running := o.running
		period := time.Duration(o.tickMillis) * time.Millisecond
		o.ctrlMu.Unlock()

		if !running {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		o.tick(ctx)
		time.Sleep(period)
	}
}

// Stop halts the tick loop permanently.
func (o *Orchestrator) Stop() { close(o.stopCh) }

// Pause/Resume toggle whether the tick loop advances simulation time.
func (o *Orchestrator) Pause() {
	o.ctrlMu.Lock()
	o.running = false
	o.ctrlMu.Unlock()
}

func (o *Orchestrator) Resume() {
	o.ctrlMu.Lock()
	o.running = true
	o.ctrlMu.Unlock()
}

// Reset pauses the tick loop and discards every queued event. Vehicles,
// orders, depots, incidents and the simulation clock are left as they are.
func (o *Orchestrator) Reset() {
	o.ctrlMu.Lock()
	o.running = false
	o.ctrlMu.Unlock()
	o.queue = NewEventQueue()
}

// SetSpeed updates the tick period, clamped to [50,10000]ms (§6.2).
func (o *Orchestrator) SetSpeed(ms int) int {
	if ms < minTickMillis {
		ms = minTickMillis
	}
	if ms > maxTickMillis {
		ms = maxTickMillis
	}
	o.ctrlMu.Lock()
	o.tickMillis = ms
	o.ctrlMu.Unlock()
	return ms
}

// Status reports the reference fields of GET /simulation/status (§6.2).
type Status struct {
	Running    bool
	Now        time.Time
	TickMillis int
	TickCount  int64
}

func (o *Orchestrator) Status() Status {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	o.env.Lock()
	now := o.env.Now()
	o.env.Unlock()
	return Status{Running: o.running, Now: now, TickMillis: o.tickMillis, TickCount: o.tickCount}
}

// Snapshot returns the latest cached world snapshot, building a fresh one
// if the cache hasn't been populated for the current tick yet (§4.13).
func (o *Orchestrator) Snapshot() environment.Snapshot {
	o.ctrlMu.Lock()
	tick := o.tickCount
	o.ctrlMu.Unlock()

	if cached, cachedTick, ok := o.cache.Latest(); ok && cachedTick == tick {
		return cached
	}
	o.env.Lock()
	snap := o.env.Snapshot()
	o.env.Unlock()
	o.cache.Store(context.Background(), tick, snap)
	return snap
}

// tick advances simulation time by one period, drains due events, executes
// in-flight plan actions, and periodically replans (§4.7, §5).
func (o *Orchestrator) tick(ctx context.Context) {
	start := time.Now()

	o.ctrlMu.Lock()
	period := time.Duration(o.tickMillis) * time.Millisecond
	o.ctrlMu.Unlock()

	o.env.Lock()
	o.env.AdvanceClock(period)
	now := o.env.Now()

	for {
		at, ok := o.queue.PeekTime()
		if !ok || at.After(now) {
			break
		}
		ev, _ := o.queue.Pop()
		o.handleEventLocked(ev)
	}

	o.maybeTriggerIncidentLocked(now)
	o.executePlansLocked(now)

	pending := len(o.env.PendingOrders())
	activeIncidents := len(o.env.ActiveIncidents(now))
	grid := o.env.Grid()
	snap := o.env.Snapshot()
	o.env.Unlock()

	o.ctrlMu.Lock()
	o.tickCount++
	tick := o.tickCount
	o.ctrlMu.Unlock()

	o.cache.Store(ctx, tick, snap)
	o.telem.WriteTick(ctx, now, time.Since(start), pending, activeIncidents)

	if tick%10 == 0 && pending > 0 {
		o.replan(ctx, grid, snap)
	}
}

// handleEventLocked applies one event's effect. Caller must hold the
// Environment lock.
func (o *Orchestrator) handleEventLocked(ev *Event) {
	switch ev.Kind {
	case EventOrderArrival:
		if order, ok := ev.Payload.(*domain.Order); ok {
			o.env.AddOrderLocked(order)
		}
	case EventBlockageStart, EventBlockageEnd:
		// The blockage's own StartTime/EndTime already govern IsActive;
		// these events exist to mark that the active set just changed.
	case EventMaintenanceStart:
		if v, ok := o.env.Vehicle(ev.EntityID); ok {
			v.Status = domain.StatusMaintenance
			v.Plan = nil
		}
	case EventMaintenanceEnd:
		if v, ok := o.env.Vehicle(ev.EntityID); ok {
			v.Status = domain.StatusAvailable
			v.LastMaintenanceDate = ev.At
		}
	case EventIncidentTrigger:
		if inc, ok := ev.Payload.(*domain.Incident); ok {
			if err := o.env.AddIncidentLocked(inc); err == nil {
				o.queue.Push(&Event{At: inc.AvailableAt(), Kind: EventIncidentResolve, EntityID: inc.VehicleID})
			}
		}
	case EventIncidentResolve:
		o.env.ResolveIncidentLocked(ev.EntityID, ev.At)
	case EventReplan, EventSimulationEnd:
		// handled by the tick driver / Start loop, not here.
	}
}

// incidentTriggerProbability is the per-tick, per-eligible-catalog-entry
// chance of a stochastic breakdown (§6.1's averias.txt). The spec leaves
// the exact rate unspecified; this value keeps incidents rare enough that
// a short test run sees zero-to-a-handful, not a vehicle down every tick.
const incidentTriggerProbability = 0.0005

// maybeTriggerIncidentLocked draws one Bernoulli trial per catalog entry
// whose shift matches now, for vehicles currently available, and raises
// INCIDENT_TRIGGER for every one that fires. Caller must hold the
// Environment lock.
func (o *Orchestrator) maybeTriggerIncidentLocked(now time.Time) {
	shift := domain.ShiftOf(now)
	for _, entry := range o.catalog {
		if entry.Shift != shift {
			continue
		}
		v, ok := o.env.Vehicle(entry.VehicleID)
		if !ok || !v.IsAvailable() {
			continue
		}
		if o.rng.Float64() >= incidentTriggerProbability {
			continue
		}
		inc := &domain.Incident{
			ID:         entry.VehicleID + "-" + now.Format("20060102150405"),
			VehicleID:  entry.VehicleID,
			OccurredAt: now,
			Type:       entry.Type,
		}
		if err := o.env.AddIncidentLocked(inc); err == nil {
			o.queue.Push(&Event{At: inc.AvailableAt(), Kind: EventIncidentResolve, EntityID: inc.VehicleID})
		}
	}
}

// executePlansLocked advances every vehicle's installed plan to the
// current time, applying terminal effects for any action whose End has
// been reached. Caller must hold the Environment lock.
func (o *Orchestrator) executePlansLocked(now time.Time) {
	for _, v := range o.env.AllVehicles() {
		for v.Plan != nil {
			action, ok := v.Plan.CurrentAction()
			if !ok {
				v.Plan = nil
				v.Status = domain.StatusAvailable
				break
			}
			if now.Before(action.End) {
				v.Status = statusForAction(action.Kind)
				break
			}
			o.applyActionEffectsLocked(v, action)
			v.Plan.Cursor++
		}
	}
}

func statusForAction(kind domain.ActionKind) domain.VehicleStatus {
	switch kind {
	case domain.ActionDrive:
		return domain.StatusDriving
	case domain.ActionRefuel:
		return domain.StatusRefueling
	case domain.ActionReload:
		return domain.StatusReloading
	case domain.ActionServe:
		return domain.StatusServing
	case domain.ActionMaintenance:
		return domain.StatusMaintenance
	default:
		return domain.StatusIdle
	}
}

// applyActionEffectsLocked commits one completed action's effect to the
// real vehicle (and, for RELOAD, the real depot). Caller must hold the
// Environment lock.
func (o *Orchestrator) applyActionEffectsLocked(v *domain.Vehicle, action domain.Action) {
	switch action.Kind {
	case domain.ActionDrive:
		v.Position = action.Destination
		v.FuelGal -= action.FuelDeltaGallons
		v.TotalKm += float64(action.DistanceKm)
	case domain.ActionRefuel:
		v.FuelGal = domain.FuelTankGallons
	case domain.ActionReload:
		for _, d := range o.env.AllDepots() {
			if d.ID == action.DepotID {
				d.Withdraw(action.AmountM3)
				break
			}
		}
		v.LpgM3 += action.AmountM3
	case domain.ActionServe:
		if order, ok := o.env.FindOrderByID(action.OrderID); ok {
			order.ApplyDelivery(action.DeliveredM3)
		}
		v.LpgM3 -= float64(action.DeliveredM3)
	case domain.ActionMaintenance:
		v.LastMaintenanceDate = action.End
	}
	if v.FuelGal < 0 {
		v.FuelGal = 0
	}
	if v.LpgM3 < 0 {
		v.LpgM3 = 0
	}
}

// replan runs the tabu-search optimizer behind the circuit breaker and
// installs fresh plans for every vehicle with new instructions (§4.15).
// On breaker-open or optimizer failure it leaves the previously installed
// plans untouched (§7).
func (o *Orchestrator) replan(ctx context.Context, grid domain.Grid, snap environment.Snapshot) {
	o.ctrlMu.Lock()
	if o.cancelOpt != nil {
		close(o.cancelOpt)
	}
	cancel := make(chan struct{})
	o.cancelOpt = cancel
	o.ctrlMu.Unlock()

	var sol *domain.Solution
	var stats optimizer.Stats
	err := circuit.GuardOptimize(ctx, o.breaker, func() error {
		sol, stats = optimizer.Run(ctx, grid, snap, o.optimizerCfg, o.weights, o.transferMinutes, o.rng, cancel)
		return nil
	})
	if err != nil {
		o.logger.Printf("replan skipped: %v", err)
		return
	}

	o.telem.WriteOptimize(ctx, snap.Now, telemetry.OptimizeStats{
		Iterations: stats.IterationsRun,
		BestScore:  stats.BestScore,
		ElapsedMs:  stats.Elapsed.Milliseconds(),
		Cancelled:  stats.Cancelled,
	})

	o.installSolution(grid, sol)
}

// installSolution builds a concrete VehiclePlan for every vehicle with
// instructions and installs it on the real Environment vehicle, clearing
// the instructions' target quantities into SERVE actions for later
// execution. Vehicle position/fuel/LPG are left untouched here; they only
// change as executePlansLocked commits each action at its End time.
func (o *Orchestrator) installSolution(grid domain.Grid, sol *domain.Solution) {
	if sol == nil {
		return
	}
	o.env.Lock()
	defer o.env.Unlock()

	now := o.env.Now()
	depots := make([]*domain.Depot, 0)
	for _, d := range o.env.AllDepots() {
		depots = append(depots, d.Clone())
	}
	for vehicleID, instrs := range sol.Assignments {
		if len(instrs) == 0 {
			continue
		}
		v, ok := o.env.Vehicle(vehicleID)
		if !ok || !v.IsAvailable() {
			continue
		}
		clone := v.Clone()
		plan, feasible := planner.Build(grid, o.env, o.env, depots, clone, instrs, now, o.transferMinutes)
		if !feasible {
			continue
		}
		v.Plan = plan
	}
}

// SeedSolution produces the initial assignment (C6) for bootstrapping the
// very first replan without waiting for a tabu-search pass, used by
// cmd/serve on startup.
func (o *Orchestrator) SeedSolution() {
	o.env.Lock()
	orders := o.env.PendingOrders()
	vehicles := o.env.AvailableVehicles()
	grid := o.env.Grid()
	o.env.Unlock()

	sol := assignment.Build(orders, vehicles, o.rng)
	o.installSolution(grid, sol)
}
