// Package domain holds the types shared by every other package in the
// fleet dispatch core: positions, vehicles, depots, orders, blockages,
// maintenance, incidents, instructions, actions, plans and solutions.
// Nothing here owns mutable process-wide state — that lives in
// internal/environment.
package domain

import "fmt"

// DefaultGridLength and DefaultGridWidth describe the default city grid:
// 70 blocks east-west, 50 blocks north-south.
const (
	DefaultGridLength = 70
	DefaultGridWidth  = 50

	// KmPerGridUnit is the distance in kilometers between two adjacent
	// lattice points.
	KmPerGridUnit = 1

	// SpeedKmh is the constant truck speed used for ETA and A* arrival
	// times; no traffic model (Non-goal).
	SpeedKmh = 50.0
)

// Position is an integer lattice point on the city grid.
type Position struct {
	X int
	Y int
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Equal reports whether two positions denote the same lattice point.
func (p Position) Equal(o Position) bool { return p.X == o.X && p.Y == o.Y }

// ManhattanDistance returns the grid (rectilinear) distance in km between
// two positions. Distance is always Manhattan in this model — the source's
// occasional Euclidean (sqrt) computation is a bug, not a feature (§9).
func ManhattanDistance(a, b Position) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Grid describes the bounds of the city lattice.
type Grid struct {
	Length int // inclusive upper bound on X
	Width  int // inclusive upper bound on Y
}

// DefaultGrid returns the spec's default 70x50 city.
func DefaultGrid() Grid { return Grid{Length: DefaultGridLength, Width: DefaultGridWidth} }

// InBounds reports whether p lies within the grid [0,Length]x[0,Width].
func (g Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X <= g.Length && p.Y >= 0 && p.Y <= g.Width
}

// Neighbors returns the up-to-4 orthogonal neighbors of p that remain
// inside the grid. No diagonals.
func (g Grid) Neighbors(p Position) []Position {
	candidates := [4]Position{
		{p.X + 1, p.Y},
		{p.X - 1, p.Y},
		{p.X, p.Y + 1},
		{p.X, p.Y - 1},
	}
	out := make([]Position, 0, 4)
	for _, c := range candidates {
		if g.InBounds(c) {
			out = append(out, c)
		}
	}
	return out
}
