// Package occupancy builds traversability grids from top-down perception
// frames and maps between grid space and world space.
package occupancy

import (
	"gonum.org/v1/gonum/mat"
)

// Traversability values a grid cell can hold.
const (
	// Free marks a traversable cell (road surface or lane marking).
	Free = 0.0
	// Ego marks a cell covered by the ego vehicle's own footprint.
	Ego = 0.5
	// Occupied marks an obstacle or boundary cell.
	Occupied = 1.0
)

// Cell addresses one grid cell by row and column.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is a traversability grid derived from a single perception frame. It
// is rebuilt every control tick and never carried across ticks.
type Grid struct {
	cells *mat.Dense
}

// NewGrid returns an all-occupied grid of the given dimensions.
func NewGrid(rows, cols int) *Grid {
	cells := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells.Set(r, c, Occupied)
		}
	}
	return &Grid{cells: cells}
}

// Dims returns the grid's row and column counts.
func (g *Grid) Dims() (rows, cols int) {
	return g.cells.Dims()
}

// Contains reports whether the cell lies within the grid.
func (g *Grid) Contains(c Cell) bool {
	rows, cols := g.cells.Dims()
	return c.Row >= 0 && c.Row < rows && c.Col >= 0 && c.Col < cols
}

// At returns the traversability value at the cell.
func (g *Grid) At(c Cell) float64 {
	return g.cells.At(c.Row, c.Col)
}

// Traversable reports whether the cell is inside the grid and not occupied.
// The ego footprint counts as traversable.
func (g *Grid) Traversable(c Cell) bool {
	return g.Contains(c) && g.cells.At(c.Row, c.Col) != Occupied
}

// Matrix exposes the underlying matrix for read-only numeric use.
func (g *Grid) Matrix() mat.Matrix {
	return g.cells
}

func (g *Grid) set(c Cell, v float64) {
	g.cells.Set(c.Row, c.Col, v)
}
