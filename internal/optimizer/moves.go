package optimizer

import (
	"math/rand"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// MoveKind is one of the three neighbor-generating move families (§4.6).
type MoveKind string

const (
	MoveTransfer MoveKind = "TRANSFER"
	MoveSwap     MoveKind = "SWAP"
	MoveReorder  MoveKind = "REORDER"
)

// Move identifies a single transformation of a Solution. Two moves are
// equal, for tabu purposes, iff all five fields match (§4.6).
type Move struct {
	Kind            MoveKind
	SourceVehicleID string
	SourceIndex     int
	TargetVehicleID string
	TargetIndex     int
}

// Equal compares two moves by their five-field identity.
func (m Move) Equal(o Move) bool {
	return m.Kind == o.Kind &&
		m.SourceVehicleID == o.SourceVehicleID &&
		m.SourceIndex == o.SourceIndex &&
		m.TargetVehicleID == o.TargetVehicleID &&
		m.TargetIndex == o.TargetIndex
}

// randomMove draws one of the three move families uniformly, restricted to
// REORDER when only one vehicle holds instructions (§4.6 step 1).
func randomMove(sol *domain.Solution, rng *rand.Rand) (Move, bool) {
	loaded := loadedVehicleIDs(sol)
	if len(loaded) == 0 {
		return Move{}, false
	}

	onlyReorder := len(loaded) == 1
	kind := MoveReorder
	if !onlyReorder {
		switch rng.Intn(3) {
		case 0:
			kind = MoveTransfer
		case 1:
			kind = MoveSwap
		case 2:
			kind = MoveReorder
		}
	}

	switch kind {
	case MoveTransfer:
		return randomTransfer(sol, loaded, rng)
	case MoveSwap:
		return randomSwap(sol, loaded, rng)
	default:
		return randomReorder(sol, loaded, rng)
	}
}

func loadedVehicleIDs(sol *domain.Solution) []string {
	ids := make([]string, 0)
	for _, vid := range sol.VehicleIDs() {
		if len(sol.Assignments[vid]) > 0 {
			ids = append(ids, vid)
		}
	}
	return ids
}

func randomTransfer(sol *domain.Solution, loaded []string, rng *rand.Rand) (Move, bool) {
	allVehicles := sol.VehicleIDs()
	if len(allVehicles) < 2 {
		return randomReorder(sol, loaded, rng)
	}
	src := loaded[rng.Intn(len(loaded))]
	srcInstrs := sol.Assignments[src]
	if len(srcInstrs) == 0 {
		return Move{}, false
	}
	dst := allVehicles[rng.Intn(len(allVehicles))]
	targetIndex := len(sol.Assignments[dst])
	if dst == src {
		targetIndex-- // the list is one shorter once the instruction is removed
	}
	return Move{
		Kind:            MoveTransfer,
		SourceVehicleID: src,
		SourceIndex:     rng.Intn(len(srcInstrs)),
		TargetVehicleID: dst,
		TargetIndex:     targetIndex,
	}, true
}

func randomSwap(sol *domain.Solution, loaded []string, rng *rand.Rand) (Move, bool) {
	if len(loaded) < 2 {
		return randomReorder(sol, loaded, rng)
	}
	a := loaded[rng.Intn(len(loaded))]
	b := loaded[rng.Intn(len(loaded))]
	for b == a && len(loaded) > 1 {
		b = loaded[rng.Intn(len(loaded))]
	}
	return Move{
		Kind:            MoveSwap,
		SourceVehicleID: a,
		SourceIndex:     rng.Intn(len(sol.Assignments[a])),
		TargetVehicleID: b,
		TargetIndex:     rng.Intn(len(sol.Assignments[b])),
	}, true
}

func randomReorder(sol *domain.Solution, loaded []string, rng *rand.Rand) (Move, bool) {
	if len(loaded) == 0 {
		return Move{}, false
	}
	v := loaded[rng.Intn(len(loaded))]
	n := len(sol.Assignments[v])
	if n < 2 {
		return Move{}, false
	}
	i := rng.Intn(n)
	j := rng.Intn(n)
	for j == i && n > 1 {
		j = rng.Intn(n)
	}
	return Move{
		Kind:            MoveReorder,
		SourceVehicleID: v,
		SourceIndex:     i,
		TargetVehicleID: v,
		TargetIndex:     j,
	}, true
}

// Apply returns a new Solution with the move applied, leaving sol intact.
func Apply(sol *domain.Solution, m Move) *domain.Solution {
	next := sol.Clone()
	switch m.Kind {
	case MoveTransfer:
		src := next.Assignments[m.SourceVehicleID]
		if m.SourceIndex < 0 || m.SourceIndex >= len(src) {
			return next
		}
		instr := src[m.SourceIndex]
		next.Assignments[m.SourceVehicleID] = append(src[:m.SourceIndex:m.SourceIndex], src[m.SourceIndex+1:]...)
		dst := next.Assignments[m.TargetVehicleID]
		target := m.TargetIndex
		if target < 0 {
			target = 0
		}
		if target > len(dst) {
			target = len(dst)
		}
		withInserted := make([]domain.DeliveryInstruction, 0, len(dst)+1)
		withInserted = append(withInserted, dst[:target]...)
		withInserted = append(withInserted, instr)
		withInserted = append(withInserted, dst[target:]...)
		next.Assignments[m.TargetVehicleID] = withInserted
	case MoveSwap:
		src := next.Assignments[m.SourceVehicleID]
		dst := next.Assignments[m.TargetVehicleID]
		if m.SourceIndex < 0 || m.SourceIndex >= len(src) || m.TargetIndex < 0 || m.TargetIndex >= len(dst) {
			return next
		}
		if m.SourceVehicleID == m.TargetVehicleID {
			src[m.SourceIndex], src[m.TargetIndex] = src[m.TargetIndex], src[m.SourceIndex]
		} else {
			src[m.SourceIndex], dst[m.TargetIndex] = dst[m.TargetIndex], src[m.SourceIndex]
		}
	case MoveReorder:
		list := next.Assignments[m.SourceVehicleID]
		if m.SourceIndex < 0 || m.SourceIndex >= len(list) || m.TargetIndex < 0 || m.TargetIndex >= len(list) {
			return next
		}
		instr := list[m.SourceIndex]
		withoutSrc := append(list[:m.SourceIndex:m.SourceIndex], list[m.SourceIndex+1:]...)
		target := m.TargetIndex
		if target > len(withoutSrc) {
			target = len(withoutSrc)
		}
		withInserted := make([]domain.DeliveryInstruction, 0, len(withoutSrc)+1)
		withInserted = append(withInserted, withoutSrc[:target]...)
		withInserted = append(withInserted, instr)
		withInserted = append(withInserted, withoutSrc[target:]...)
		next.Assignments[m.SourceVehicleID] = withInserted
	}
	return next
}

// Inverse returns the move that, applied to the result of m, recovers the
// original solution (§4.6 step 4, §8 "tabu idempotence").
func Inverse(m Move) Move {
	switch m.Kind {
	case MoveTransfer:
		return Move{
			Kind:            MoveTransfer,
			SourceVehicleID: m.TargetVehicleID,
			SourceIndex:     m.TargetIndex,
			TargetVehicleID: m.SourceVehicleID,
			TargetIndex:     m.SourceIndex,
		}
	case MoveSwap:
		// A swap exchanges the values held at two fixed slots; reapplying
		// the identical move exchanges them back, so SWAP is its own
		// inverse (§8 tabu idempotence).
		return m
	default: // MoveReorder
		return Move{
			Kind:            MoveReorder,
			SourceVehicleID: m.SourceVehicleID,
			SourceIndex:     m.TargetIndex,
			TargetVehicleID: m.TargetVehicleID,
			TargetIndex:     m.SourceIndex,
		}
	}
}
