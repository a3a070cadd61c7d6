// Package search finds collision-free paths through occupancy grids.
package search

import (
	"context"

	"github.com/pkg/errors"

	"github.com/prarthanasigedar/CARLA-2/occupancy"
)

// ErrNoPath is returned when no collision-free path between start and goal
// could be found.
var ErrNoPath = errors.New("no collision-free path found")

// Searcher plans a path between two cells of an occupancy grid. The returned
// path is ordered start to goal; implementations return ErrNoPath when no
// path exists or the search budget is exhausted.
//
// Implementations are not required to be deterministic or complete; callers
// must treat a failed search as a recoverable condition.
type Searcher interface {
	Plan(ctx context.Context, start, goal occupancy.Cell, grid *occupancy.Grid) ([]occupancy.Cell, error)
}
