// Package pathfinding implements the time-aware A* shortest-path search
// over the city grid (§4.2). The open set is a container/heap min-heap
// keyed on f = g + h, the same heap.Interface shape the teacher's
// pkg/orderbook uses for its bid/ask heaps — here ordering on path cost
// instead of price.
package pathfinding

import (
	"container/heap"
	"errors"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// ErrNoPath is returned when the open set empties before the goal is
// reached (§4.2 Termination/Failure, §7 "No path found").
var ErrNoPath = errors.New("pathfinding: no path found")

// SecondsPerKm is the time to cross one grid edge at the constant 50 km/h
// speed: 3600/50 = 72 seconds.
const SecondsPerKm = 3600.0 / domain.SpeedKmh

// BlockageSource answers "what edges are closed, and when" for the search.
// The Environment satisfies this directly; tests can fake it.
type BlockageSource interface {
	ActiveBlockagesAt(t time.Time) []*domain.Blockage
}

// PathResult is the canonical shape: positions, the arrival time at each
// node, and the total distance. The source's two incompatible PathResult
// definitions are resolved to this one (§9 Open Question).
type PathResult struct {
	Positions          []domain.Position
	PerNodeArrivalTime []time.Time
	DistanceKm         int
}

type node struct {
	pos       domain.Position
	g         int // cost so far, in km
	f         int // g + heuristic
	arrival   time.Time
	parent    *node
	index     int // heap index
}

type openHeap []*node

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	// Tie-break: prefer higher g, i.e. more committed progress (§4.2).
	return h[i].g > h[j].g
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *openHeap) Push(x interface{}) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *openHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// edgeBlocked reports whether moving from u (at time tu) to v (arriving at
// time tv) is forbidden by any blockage active over [tu,tv] that closes
// either v or the (u,v) edge (§4.2).
func edgeBlocked(blockages []*domain.Blockage, u, v domain.Position, tu, tv time.Time) bool {
	for _, b := range blockages {
		if tv.Before(b.StartTime) || !tu.Before(b.EndTime) {
			continue // blockage window doesn't overlap [tu,tv]
		}
		if b.ClosesVertex(v) || b.ClosesEdge(u, v) {
			return true
		}
	}
	return false
}

// FindPath runs time-aware A* from start to goal, departing at t0. It
// returns ErrNoPath if the goal is unreachable given the blockages active
// over the course of the search.
func FindPath(grid domain.Grid, blockageSrc BlockageSource, start, goal domain.Position, t0 time.Time) (PathResult, error) {
	if start.Equal(goal) {
		return PathResult{
			Positions:          []domain.Position{start},
			PerNodeArrivalTime: []time.Time{t0},
			DistanceKm:         0,
		}, nil
	}

	startNode := &node{pos: start, g: 0, f: domain.ManhattanDistance(start, goal), arrival: t0}

	open := &openHeap{}
	heap.Init(open)
	heap.Push(open, startNode)

	bestG := map[domain.Position]int{start: 0}
	closed := map[domain.Position]bool{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)

		if closed[current.pos] {
			continue
		}
		if current.pos.Equal(goal) {
			return reconstruct(current), nil
		}
		closed[current.pos] = true

		blockages := blockageSrc.ActiveBlockagesAt(current.arrival)

		for _, next := range grid.Neighbors(current.pos) {
			tNext := current.arrival.Add(time.Duration(SecondsPerKm * float64(time.Second)))

			if edgeBlocked(blockages, current.pos, next, current.arrival, tNext) {
				continue
			}

			tentativeG := current.g + domain.KmPerGridUnit
			if prevBest, ok := bestG[next]; ok && prevBest <= tentativeG {
				continue
			}
			bestG[next] = tentativeG

			// Re-opening is permitted only when a strictly lower g is
			// found (§4.2); clearing closed[next] lets it be re-expanded.
			delete(closed, next)

			heap.Push(open, &node{
				pos:     next,
				g:       tentativeG,
				f:       tentativeG + domain.ManhattanDistance(next, goal),
				arrival: tNext,
				parent:  current,
			})
		}
	}

	return PathResult{}, ErrNoPath
}

func reconstruct(goalNode *node) PathResult {
	var positions []domain.Position
	var arrivals []time.Time
	for n := goalNode; n != nil; n = n.parent {
		positions = append(positions, n.pos)
		arrivals = append(arrivals, n.arrival)
	}
	// reverse
	for i, j := 0, len(positions)-1; i < j; i, j = i+1, j-1 {
		positions[i], positions[j] = positions[j], positions[i]
		arrivals[i], arrivals[j] = arrivals[j], arrivals[i]
	}
	return PathResult{
		Positions:          positions,
		PerNodeArrivalTime: arrivals,
		DistanceKm:         goalNode.g,
	}
}
