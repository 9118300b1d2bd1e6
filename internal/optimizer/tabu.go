// Package optimizer implements the tabu-search assignment optimizer (C7,
// §4.6): neighbor generation, a FIFO tabu list with aspiration, simulated
// annealing acceptance, periodic diversification, and a final
// ensure-all-delivered repair pass.
//
// Neighbor scoring is fanned out with golang.org/x/sync/errgroup (§5
// addition) since each neighbor clone and its evaluator call are
// independent — the same "independent work, bounded worker pool" shape the
// teacher's internal/matching.Engine uses for per-symbol book processing,
// just parallel instead of sequential per tick.
package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetops/lpgdispatch/internal/assignment"
	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/evaluator"
)

// Config holds the optimizer's tunables, all overridable so tests can run
// shrunk budgets (§4.6).
type Config struct {
	MaxIterations         int
	NeighborsPerIteration int
	TabuCapacity          int
	InitialTemperature    float64
	TemperatureDecay      float64
	DiversifyEvery        int // defaults to MaxIterations/2 if zero
	ImprovementThreshold  float64
	WallClockBudget       time.Duration
	MaxConcurrency        int
}

// DefaultConfig returns the spec's reference tunables (§4.6).
func DefaultConfig() Config {
	return Config{
		MaxIterations:         3000,
		NeighborsPerIteration: 100,
		TabuCapacity:          25,
		InitialTemperature:    100,
		TemperatureDecay:      0.995,
		ImprovementThreshold:  0.001,
		WallClockBudget:       10 * time.Second,
		MaxConcurrency:        8,
	}
}

// Stats reports what one Run actually did, for telemetry (§4.14).
type Stats struct {
	IterationsRun int
	BestScore     float64
	Cancelled     bool
	Elapsed       time.Duration
}

// Run produces a Solution maximizing the evaluator's score
// (higher is better, §4.4/§4.6) for the given Environment snapshot. cancel,
// if non-nil, lets the control API abort an in-flight optimization (§5); a
// cancelled run still returns a valid, possibly seed-quality, Solution.
func Run(
	ctx context.Context,
	grid domain.Grid,
	snap environment.Snapshot,
	cfg Config,
	weights evaluator.Weights,
	transferMinutes int,
	rng *rand.Rand,
	cancel <-chan struct{},
) (*domain.Solution, Stats) {
	start := time.Now()
	if cfg.DiversifyEvery == 0 {
		cfg.DiversifyEvery = maxInt(1, cfg.MaxIterations/2)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}

	orders := pendingOrdersOf(snap)
	vehicles := availableVehiclesOf(snap)

	current := assignment.Build(orders, vehicles, rng)
	currentResult := evaluator.Evaluate(grid, snap, current, weights, transferMinutes)

	best := current.Clone()
	bestScore := currentResult.Score

	tabu := newTabuList(cfg.TabuCapacity)
	temperature := cfg.InitialTemperature
	lastDiversifyScore := bestScore

	stats := Stats{}
	deadline := start.Add(cfg.WallClockBudget)

	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		select {
		case <-cancel:
			stats.Cancelled = true
			goto repair
		case <-ctx.Done():
			stats.Cancelled = true
			goto repair
		default:
		}
		if time.Now().After(deadline) {
			stats.Cancelled = true
			break
		}

		neighbors := generateNeighbors(current, cfg.NeighborsPerIteration, rng)
		scored := scoreNeighbors(ctx, grid, snap, neighbors, weights, transferMinutes, cfg.MaxConcurrency)

		chosen, chosenScore, chosenMove, ok := selectNeighbor(scored, currentResult.Score, bestScore, tabu, temperature, rng)
		if !ok {
			continue
		}

		current = chosen
		currentResult = evaluator.Result{Score: chosenScore}
		tabu.push(Inverse(chosenMove))

		if chosenScore > bestScore {
			best = current.Clone()
			bestScore = chosenScore
		}

		temperature *= cfg.TemperatureDecay

		if (iter+1)%cfg.DiversifyEvery == 0 {
			improvement := 0.0
			if lastDiversifyScore != 0 {
				improvement = (bestScore - lastDiversifyScore) / math.Abs(lastDiversifyScore)
			}
			if improvement < cfg.ImprovementThreshold {
				current = diversify(current, vehicles, rng)
				temperature = cfg.InitialTemperature / 2
			}
			lastDiversifyScore = bestScore
		}
	}

repair:
	stats.IterationsRun = iter
	best = ensureAllDelivered(best, orders, vehicles)
	stats.BestScore = bestScore
	stats.Elapsed = time.Since(start)
	return best, stats
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func pendingOrdersOf(snap environment.Snapshot) []*domain.Order {
	out := make([]*domain.Order, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		if !o.IsServed() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func availableVehiclesOf(snap environment.Snapshot) []*domain.Vehicle {
	out := make([]*domain.Vehicle, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		if v.IsAvailable() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type neighbor struct {
	sol  *domain.Solution
	move Move
}

func generateNeighbors(sol *domain.Solution, n int, rng *rand.Rand) []neighbor {
	out := make([]neighbor, 0, n)
	for i := 0; i < n; i++ {
		m, ok := randomMove(sol, rng)
		if !ok {
			continue
		}
		out = append(out, neighbor{sol: Apply(sol, m), move: m})
	}
	return out
}

type scoredNeighbor struct {
	sol   *domain.Solution
	move  Move
	score float64
}

// scoreNeighbors evaluates every neighbor concurrently, bounded by
// maxConcurrency, using errgroup to fan out and collect results.
func scoreNeighbors(
	ctx context.Context,
	grid domain.Grid,
	snap environment.Snapshot,
	neighbors []neighbor,
	weights evaluator.Weights,
	transferMinutes int,
	maxConcurrency int,
) []scoredNeighbor {
	results := make([]scoredNeighbor, len(neighbors))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, nb := range neighbors {
		i, nb := i, nb
		g.Go(func() error {
			res := evaluator.Evaluate(grid, snap, nb.sol, weights, transferMinutes)
			results[i] = scoredNeighbor{sol: nb.sol, move: nb.move, score: res.Score}
			return nil
		})
	}
	_ = g.Wait() // Evaluate never errors; Wait only propagates cancellation.
	return results
}

// selectNeighbor picks the best admissible neighbor (not tabu unless it
// beats the global best — aspiration), then applies SA acceptance for
// worse neighbors (§4.6 steps 2-3). When no candidate is accepted, it
// returns the highest-scoring neighbor, whether or not that move is tabu.
func selectNeighbor(
	scored []scoredNeighbor,
	currentScore, bestScore float64,
	tabu *tabuList,
	temperature float64,
	rng *rand.Rand,
) (*domain.Solution, float64, Move, bool) {
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	for _, cand := range scored {
		isTabu := tabu.contains(cand.move)
		aspires := cand.score > bestScore
		if isTabu && !aspires {
			continue
		}
		if cand.score >= currentScore {
			return cand.sol, cand.score, cand.move, true
		}
		// Accept a worse neighbor with SA probability (§4.6 step 2).
		p := math.Exp((cand.score - currentScore) / math.Max(temperature, 1e-9))
		if rng.Float64() < p {
			return cand.sol, cand.score, cand.move, true
		}
	}
	if len(scored) > 0 {
		best := scored[0]
		return best.sol, best.score, best.move, true
	}
	return nil, 0, Move{}, false
}

// diversify escapes a stalled local optimum by either redistributing
// instructions round-robin or grouping them into fixed-size runs and
// shuffling those runs across vehicles (§4.6 step 6). Neither strategy
// looks at customer positions.
func diversify(sol *domain.Solution, vehicles []*domain.Vehicle, rng *rand.Rand) *domain.Solution {
	if rng.Intn(2) == 0 {
		return redistributeRoundRobin(sol, vehicles)
	}
	return clusterAndShuffle(sol, vehicles, rng)
}

func redistributeRoundRobin(sol *domain.Solution, vehicles []*domain.Vehicle) *domain.Solution {
	if len(vehicles) == 0 {
		return sol.Clone()
	}
	all := make([]domain.DeliveryInstruction, 0)
	for _, vid := range sol.VehicleIDs() {
		all = append(all, sol.Assignments[vid]...)
	}
	next := domain.NewSolution()
	for _, v := range vehicles {
		next.Assignments[v.ID] = nil
	}
	for i, instr := range all {
		vid := vehicles[i%len(vehicles)].ID
		next.Assignments[vid] = append(next.Assignments[vid], instr)
	}
	for oid, amt := range sol.Unassigned {
		next.Unassigned[oid] = amt
	}
	return next
}

// clusterDiversifyRadiusKm sets clusterAndShuffle's bucket size
// (clusterDiversifyRadiusKm/5 = 4 instructions per run). Instructions are
// not clustered by the customer position of their referenced order.
const clusterDiversifyRadiusKm = 20

func clusterAndShuffle(sol *domain.Solution, vehicles []*domain.Vehicle, rng *rand.Rand) *domain.Solution {
	// Without per-instruction position data at this layer, approximate
	// clustering by grouping instructions into buckets of
	// clusterDiversifyRadiusKm-sized runs (stable order) and shuffling
	// bucket-to-vehicle assignment; this keeps locally-adjacent work
	// together while still perturbing the overall distribution.
	all := make([]domain.DeliveryInstruction, 0)
	for _, vid := range sol.VehicleIDs() {
		all = append(all, sol.Assignments[vid]...)
	}
	if len(vehicles) == 0 {
		return sol.Clone()
	}

	bucketSize := maxInt(1, clusterDiversifyRadiusKm/5)
	buckets := make([][]domain.DeliveryInstruction, 0)
	for i := 0; i < len(all); i += bucketSize {
		end := i + bucketSize
		if end > len(all) {
			end = len(all)
		}
		buckets = append(buckets, all[i:end])
	}
	rng.Shuffle(len(buckets), func(i, j int) { buckets[i], buckets[j] = buckets[j], buckets[i] })

	next := domain.NewSolution()
	for _, v := range vehicles {
		next.Assignments[v.ID] = nil
	}
	for i, bucket := range buckets {
		vid := vehicles[i%len(vehicles)].ID
		next.Assignments[vid] = append(next.Assignments[vid], bucket...)
	}
	for oid, amt := range sol.Unassigned {
		next.Unassigned[oid] = amt
	}
	return next
}

// ensureAllDelivered repairs the best solution after the budget expires:
// every pending order absent from it is appended as a single instruction
// on the least-loaded vehicle (§4.6 step 7).
func ensureAllDelivered(sol *domain.Solution, orders []*domain.Order, vehicles []*domain.Vehicle) *domain.Solution {
	if len(vehicles) == 0 {
		return sol
	}
	for _, order := range orders {
		if order.RemainingM3 <= 0 {
			continue
		}
		if sol.TotalAssignedM3(order.ID) > 0 {
			continue
		}
		least := leastLoadedVehicle(sol, vehicles)
		sol.Assignments[least.ID] = append(sol.Assignments[least.ID], domain.DeliveryInstruction{
			OrderID:  order.ID,
			AmountM3: minInt(order.RemainingM3, least.Type.CapacityM3),
		})
		delete(sol.Unassigned, order.ID)
	}
	return sol
}

func leastLoadedVehicle(sol *domain.Solution, vehicles []*domain.Vehicle) *domain.Vehicle {
	var best *domain.Vehicle
	bestLoad := -1
	for _, v := range vehicles {
		load := 0
		for _, instr := range sol.Assignments[v.ID] {
			load += instr.AmountM3
		}
		if bestLoad == -1 || load < bestLoad {
			bestLoad = load
			best = v
		}
	}
	return best
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
