package search

import (
	"context"
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/prarthanasigedar/CARLA-2/occupancy"
)

const (
	// Number of sampler iterations before giving up.
	defaultPlanIter = 20000
	// Maximum extension per iteration, in cells.
	defaultStepSize = 6.0
	// Probability of sampling the goal instead of a random cell.
	defaultGoalBias = 0.05
	// Distance at which a node counts as having reached the goal, in cells.
	defaultGoalRadius = 3.0

	ctxCheckEvery = 512
)

type rrtOptions struct {
	// Number of sampler iterations before giving up.
	PlanIter int `json:"plan_iter"`
	// Maximum extension per iteration, in cells.
	StepSize float64 `json:"step_size"`
	// Probability of sampling the goal instead of a random cell.
	GoalBias float64 `json:"goal_bias"`
	// Distance at which a node counts as having reached the goal, in cells.
	GoalRadius float64 `json:"goal_radius"`
	// Seed for the sampler. Fixed so that repeated plans over the same grid
	// are reproducible.
	Seed int64 `json:"seed"`
}

func newRRTOptions() *rrtOptions {
	return &rrtOptions{
		PlanIter:   defaultPlanIter,
		StepSize:   defaultStepSize,
		GoalBias:   defaultGoalBias,
		GoalRadius: defaultGoalRadius,
		Seed:       1,
	}
}

type rrtNode struct {
	cell   occupancy.Cell
	parent *rrtNode
}

type rrtSearcher struct {
	opts   *rrtOptions
	logger golog.Logger
}

// NewRRTSearcher returns a Searcher that grows a rapidly-exploring random
// tree from the start cell until it can connect to the goal. The sampler is
// seeded, so planning over the same grid is reproducible.
func NewRRTSearcher(logger golog.Logger) Searcher {
	return &rrtSearcher{opts: newRRTOptions(), logger: logger}
}

func (s *rrtSearcher) Plan(
	ctx context.Context,
	start, goal occupancy.Cell,
	grid *occupancy.Grid,
) ([]occupancy.Cell, error) {
	if grid == nil {
		return nil, errors.New("no grid to plan over")
	}
	if !grid.Contains(start) {
		return nil, errors.Errorf("start cell %v outside grid", start)
	}
	if !grid.Contains(goal) || !grid.Traversable(goal) {
		s.logger.Debugw("goal cell unreachable", "goal", goal)
		return nil, ErrNoPath
	}
	if start == goal {
		return []occupancy.Cell{start}, nil
	}

	rows, cols := grid.Dims()
	//nolint:gosec // reproducibility matters here, not cryptographic strength
	rnd := rand.New(rand.NewSource(s.opts.Seed))

	nodes := []*rrtNode{{cell: start}}
	for i := 0; i < s.opts.PlanIter; i++ {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		sample := goal
		if rnd.Float64() >= s.opts.GoalBias {
			sample = occupancy.Cell{Row: rnd.Intn(rows), Col: rnd.Intn(cols)}
		}

		nearest := nearestNode(nodes, sample)
		next := steer(nearest.cell, sample, s.opts.StepSize)
		if next == nearest.cell {
			continue
		}
		if !grid.Traversable(next) || !segmentFree(grid, nearest.cell, next) {
			continue
		}

		node := &rrtNode{cell: next, parent: nearest}
		nodes = append(nodes, node)

		if cellDist(next, goal) <= s.opts.GoalRadius && segmentFree(grid, next, goal) {
			path := extractPath(&rrtNode{cell: goal, parent: node})
			s.logger.Debugw("path found", "iterations", i, "length", len(path))
			return path, nil
		}
	}

	s.logger.Debugw("search budget exhausted", "iterations", s.opts.PlanIter)
	return nil, ErrNoPath
}

// nearestNode scans linearly for the tree node closest to the sample,
// breaking distance ties in favor of the earliest node.
func nearestNode(nodes []*rrtNode, sample occupancy.Cell) *rrtNode {
	best := nodes[0]
	bestDist := cellDist(best.cell, sample)
	for _, n := range nodes[1:] {
		if d := cellDist(n.cell, sample); d < bestDist {
			best = n
			bestDist = d
		}
	}
	return best
}

// steer moves from a cell toward a sample, at most stepSize cells.
func steer(from, toward occupancy.Cell, stepSize float64) occupancy.Cell {
	d := cellDist(from, toward)
	if d <= stepSize {
		return toward
	}
	scale := stepSize / d
	return occupancy.Cell{
		Row: from.Row + int(math.Round(float64(toward.Row-from.Row)*scale)),
		Col: from.Col + int(math.Round(float64(toward.Col-from.Col)*scale)),
	}
}

// segmentFree walks a straight line between two cells and reports whether
// every cell on it is traversable.
func segmentFree(grid *occupancy.Grid, from, to occupancy.Cell) bool {
	steps := maxInt(absInt(to.Row-from.Row), absInt(to.Col-from.Col))
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c := occupancy.Cell{
			Row: from.Row + int(math.Round(float64(to.Row-from.Row)*t)),
			Col: from.Col + int(math.Round(float64(to.Col-from.Col)*t)),
		}
		if !grid.Traversable(c) {
			return false
		}
	}
	return true
}

func extractPath(goal *rrtNode) []occupancy.Cell {
	path := make([]occupancy.Cell, 0)
	for n := goal; n != nil; n = n.parent {
		path = append(path, n.cell)
	}
	// reverse the slice
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func cellDist(a, b occupancy.Cell) float64 {
	return math.Hypot(float64(a.Row-b.Row), float64(a.Col-b.Col))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
