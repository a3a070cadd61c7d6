package search

import (
	"context"
	"image"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/prarthanasigedar/CARLA-2/occupancy"
)

// openGrid returns a grid that is free everywhere except the cells listed as
// walls.
func openGrid(t *testing.T, rows, cols int, walls []occupancy.Cell) *occupancy.Grid {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for _, w := range walls {
		img.Pix[w.Row*img.Stride+w.Col] = 255
	}
	grid, err := occupancy.BuildGrid(img, occupancy.Palette{
		FreeValues: []uint8{0},
		EgoValue:   164,
	})
	test.That(t, err, test.ShouldBeNil)
	return grid
}

func pathConnected(path []occupancy.Cell, step float64) bool {
	for i := 1; i < len(path); i++ {
		if cellDist(path[i-1], path[i]) > step+1 {
			return false
		}
	}
	return true
}

func TestRRTOpenGrid(t *testing.T) {
	logger := golog.NewTestLogger(t)
	grid := openGrid(t, 100, 100, nil)

	start := occupancy.Cell{Row: 90, Col: 50}
	goal := occupancy.Cell{Row: 10, Col: 50}
	searcher := NewRRTSearcher(logger)

	path, err := searcher.Plan(context.Background(), start, goal, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldBeGreaterThan, 1)
	test.That(t, path[0], test.ShouldResemble, start)
	test.That(t, path[len(path)-1], test.ShouldResemble, goal)
	test.That(t, pathConnected(path, defaultStepSize), test.ShouldBeTrue)
	for _, c := range path[1:] {
		test.That(t, grid.Traversable(c), test.ShouldBeTrue)
	}
}

func TestRRTAvoidsWall(t *testing.T) {
	logger := golog.NewTestLogger(t)

	// A wall across the middle with a single gap at column 10.
	var walls []occupancy.Cell
	for col := 0; col < 50; col++ {
		if col == 10 {
			continue
		}
		walls = append(walls, occupancy.Cell{Row: 25, Col: col})
	}
	grid := openGrid(t, 50, 50, walls)

	start := occupancy.Cell{Row: 45, Col: 25}
	goal := occupancy.Cell{Row: 5, Col: 25}
	searcher := NewRRTSearcher(logger)

	path, err := searcher.Plan(context.Background(), start, goal, grid)
	test.That(t, err, test.ShouldBeNil)
	for _, c := range path {
		test.That(t, grid.Traversable(c), test.ShouldBeTrue)
	}
}

func TestRRTWalledGoal(t *testing.T) {
	logger := golog.NewTestLogger(t)

	// Box the goal in completely.
	goal := occupancy.Cell{Row: 10, Col: 10}
	var walls []occupancy.Cell
	for r := 8; r <= 12; r++ {
		for c := 8; c <= 12; c++ {
			if r == goal.Row && c == goal.Col {
				continue
			}
			walls = append(walls, occupancy.Cell{Row: r, Col: c})
		}
	}
	grid := openGrid(t, 40, 40, walls)

	opts := newRRTOptions()
	opts.PlanIter = 2000
	searcher := &rrtSearcher{opts: opts, logger: logger}
	_, err := searcher.Plan(context.Background(), occupancy.Cell{Row: 35, Col: 35}, goal, grid)
	test.That(t, err, test.ShouldBeError, ErrNoPath)
}

func TestRRTOccupiedGoal(t *testing.T) {
	logger := golog.NewTestLogger(t)
	grid := openGrid(t, 20, 20, []occupancy.Cell{{Row: 5, Col: 5}})

	searcher := NewRRTSearcher(logger)
	_, err := searcher.Plan(context.Background(), occupancy.Cell{Row: 15, Col: 15},
		occupancy.Cell{Row: 5, Col: 5}, grid)
	test.That(t, err, test.ShouldBeError, ErrNoPath)
}

func TestRRTTrivialCases(t *testing.T) {
	logger := golog.NewTestLogger(t)
	grid := openGrid(t, 20, 20, nil)
	searcher := NewRRTSearcher(logger)

	start := occupancy.Cell{Row: 3, Col: 3}
	path, err := searcher.Plan(context.Background(), start, start, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldResemble, []occupancy.Cell{start})

	_, err = searcher.Plan(context.Background(), occupancy.Cell{Row: -1, Col: 0},
		start, grid)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = searcher.Plan(context.Background(), start, occupancy.Cell{Row: 50, Col: 0}, grid)
	test.That(t, err, test.ShouldBeError, ErrNoPath)
}

func TestRRTReproducible(t *testing.T) {
	logger := golog.NewTestLogger(t)
	grid := openGrid(t, 60, 60, nil)
	searcher := NewRRTSearcher(logger)

	start := occupancy.Cell{Row: 55, Col: 30}
	goal := occupancy.Cell{Row: 5, Col: 30}

	first, err := searcher.Plan(context.Background(), start, goal, grid)
	test.That(t, err, test.ShouldBeNil)
	second, err := searcher.Plan(context.Background(), start, goal, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldResemble, first)
}
