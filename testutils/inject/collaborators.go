package inject

import (
	"context"
	"image"

	"github.com/golang/geo/r3"

	"github.com/prarthanasigedar/CARLA-2/control"
	"github.com/prarthanasigedar/CARLA-2/occupancy"
	"github.com/prarthanasigedar/CARLA-2/search"
	"github.com/prarthanasigedar/CARLA-2/vehicle"
	"github.com/prarthanasigedar/CARLA-2/waypoint"
)

// Map is an injectable waypoint.Map.
type Map struct {
	waypoint.Map
	WaypointAtFunc func(ctx context.Context, loc r3.Vector) (waypoint.Waypoint, error)
}

// WaypointAt calls the injected WaypointAt or the real version.
func (m *Map) WaypointAt(ctx context.Context, loc r3.Vector) (waypoint.Waypoint, error) {
	if m.WaypointAtFunc == nil {
		return m.Map.WaypointAt(ctx, loc)
	}
	return m.WaypointAtFunc(ctx, loc)
}

// Searcher is an injectable search.Searcher.
type Searcher struct {
	search.Searcher
	PlanFunc func(
		ctx context.Context,
		start, goal occupancy.Cell,
		grid *occupancy.Grid,
	) ([]occupancy.Cell, error)
}

// Plan calls the injected Plan or the real version.
func (s *Searcher) Plan(
	ctx context.Context,
	start, goal occupancy.Cell,
	grid *occupancy.Grid,
) ([]occupancy.Cell, error) {
	if s.PlanFunc == nil {
		return s.Searcher.Plan(ctx, start, goal, grid)
	}
	return s.PlanFunc(ctx, start, goal, grid)
}

// Controller is an injectable control.Controller.
type Controller struct {
	control.Controller
	RunStepFunc func(
		ctx context.Context,
		targetSpeed float64,
		target waypoint.Waypoint,
		gains control.Gains,
	) (vehicle.Control, error)
}

// RunStep calls the injected RunStep or the real version.
func (c *Controller) RunStep(
	ctx context.Context,
	targetSpeed float64,
	target waypoint.Waypoint,
	gains control.Gains,
) (vehicle.Control, error) {
	if c.RunStepFunc == nil {
		return c.Controller.RunStep(ctx, targetSpeed, target, gains)
	}
	return c.RunStepFunc(ctx, targetSpeed, target, gains)
}

// Perception is an injectable perception source.
type Perception struct {
	NextFrameFunc func(ctx context.Context) (image.Image, error)
}

// NextFrame calls the injected NextFrame.
func (p *Perception) NextFrame(ctx context.Context) (image.Image, error) {
	return p.NextFrameFunc(ctx)
}
