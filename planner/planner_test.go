package planner

import (
	"context"
	"image"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/prarthanasigedar/CARLA-2/control"
	"github.com/prarthanasigedar/CARLA-2/occupancy"
	"github.com/prarthanasigedar/CARLA-2/search"
	"github.com/prarthanasigedar/CARLA-2/testutils/inject"
	"github.com/prarthanasigedar/CARLA-2/vehicle"
	"github.com/prarthanasigedar/CARLA-2/waypoint"
)

// freeFrame is an all-road perception frame matching the stock sensor
// resolution.
func freeFrame() image.Image {
	return image.NewGray(image.Rect(0, 0, 150, 336))
}

// routeEntries returns n lane-follow entries spaced 10 m apart along +Y,
// starting well away from the vehicle so none get purged by accident.
func routeEntries(n int) []waypoint.PlanEntry {
	entries := make([]waypoint.PlanEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, waypoint.PlanEntry{
			Waypoint: waypoint.New(r3.Vector{X: 0, Y: float64(100 + 10*i)}, 0),
			Option:   waypoint.LaneFollow,
		})
	}
	return entries
}

type plannerParts struct {
	planner    *LocalPlanner
	vehicle    *inject.Vehicle
	searcher   *inject.Searcher
	controller *inject.Controller
	tracked    *waypoint.Waypoint
}

func newTestPlanner(t *testing.T) *plannerParts {
	t.Helper()
	logger := golog.NewTestLogger(t)

	veh := &inject.Vehicle{}
	veh.PoseFunc = func(ctx context.Context) (vehicle.Pose, error) {
		return vehicle.Pose{}, nil
	}
	veh.SpeedFunc = func(ctx context.Context) (float64, error) { return 10, nil }
	veh.SpeedLimitFunc = func(ctx context.Context) (float64, error) { return 30, nil }
	veh.ApplyControlFunc = func(ctx context.Context, control vehicle.Control) error { return nil }

	roadMap := &inject.Map{}
	roadMap.WaypointAtFunc = func(ctx context.Context, loc r3.Vector) (waypoint.Waypoint, error) {
		return waypoint.New(loc, 0), nil
	}

	searcher := &inject.Searcher{}
	searcher.PlanFunc = func(
		ctx context.Context, start, goal occupancy.Cell, grid *occupancy.Grid,
	) ([]occupancy.Cell, error) {
		return nil, search.ErrNoPath
	}

	parts := &plannerParts{vehicle: veh, searcher: searcher}
	parts.controller = &inject.Controller{}
	parts.controller.RunStepFunc = func(
		ctx context.Context, targetSpeed float64, target waypoint.Waypoint, gains control.Gains,
	) (vehicle.Control, error) {
		parts.tracked = &target
		return vehicle.Control{Throttle: 0.5}, nil
	}

	p, err := NewLocalPlanner(Config{}, veh, roadMap, searcher, parts.controller, logger)
	test.That(t, err, test.ShouldBeNil)
	parts.planner = p
	return parts
}

func TestRunStepNoPlan(t *testing.T) {
	parts := newTestPlanner(t)

	command, err := parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, command, test.ShouldResemble, vehicle.Control{
		Steer:           0.0,
		Throttle:        0.0,
		Brake:           1.0,
		HandBrake:       false,
		ManualGearShift: false,
	})
	test.That(t, parts.planner.HasGlobalPlan(), test.ShouldBeFalse)
}

func TestSetGlobalPlanClean(t *testing.T) {
	parts := newTestPlanner(t)
	entries := routeEntries(10)

	parts.planner.SetGlobalPlan(entries, true)
	test.That(t, parts.planner.HasGlobalPlan(), test.ShouldBeTrue)

	// A clean install refills the buffer directly from the queue front,
	// without the skip stride.
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, 5)
	front, _ := parts.planner.buffer.Front()
	test.That(t, front, test.ShouldResemble, entries[0])
	test.That(t, parts.planner.queue.Len(), test.ShouldEqual, 5)
}

func TestRefillBufferSkipStride(t *testing.T) {
	parts := newTestPlanner(t)
	entries := routeEntries(10)

	parts.planner.SetGlobalPlan(entries, false)
	parts.planner.refillBuffer()

	// With a stride of 4, entries 0-3 are discarded and entry 4 becomes the
	// buffer head; 5-8 are discarded and 9 follows it.
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, 2)
	first, _ := parts.planner.buffer.At(0)
	test.That(t, first, test.ShouldResemble, entries[4])
	second, _ := parts.planner.buffer.At(1)
	test.That(t, second, test.ShouldResemble, entries[9])
	test.That(t, parts.planner.queue.Len(), test.ShouldEqual, 0)
}

func TestRefillBufferOnlyWhenEmpty(t *testing.T) {
	parts := newTestPlanner(t)
	parts.planner.SetGlobalPlan(routeEntries(30), true)

	buffered := parts.planner.buffer.Len()
	queued := parts.planner.queue.Len()
	parts.planner.refillBuffer()
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, buffered)
	test.That(t, parts.planner.queue.Len(), test.ShouldEqual, queued)
}

func TestPurgeConsumedPrefix(t *testing.T) {
	parts := newTestPlanner(t)

	near := waypoint.New(r3.Vector{X: 0, Y: 1}, 0)
	far := waypoint.New(r3.Vector{X: 0, Y: 100}, 0)
	for _, wp := range []waypoint.Waypoint{far, near, far, far} {
		parts.planner.buffer.PushBack(waypoint.PlanEntry{Waypoint: wp, Option: waypoint.LaneFollow})
	}

	// Index 1 is within range, so indexes 0 and 1 are both consumed even
	// though index 0 is far away: the purge always removes a prefix.
	parts.planner.purgeConsumed(vehicle.Pose{})
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, 2)
	front, _ := parts.planner.buffer.Front()
	test.That(t, front.Waypoint, test.ShouldEqual, far)

	// No entry in range: purge is a no-op.
	parts.planner.purgeConsumed(vehicle.Pose{Location: r3.Vector{X: 500}})
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, 2)
}

func TestIncomingWaypoint(t *testing.T) {
	parts := newTestPlanner(t)

	entry, ok := parts.planner.IncomingWaypoint(3)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, entry.Option, test.ShouldEqual, waypoint.Void)
	test.That(t, entry.Waypoint, test.ShouldBeNil)

	entries := routeEntries(5)
	parts.planner.SetGlobalPlan(entries, false)

	entry, ok = parts.planner.IncomingWaypoint(3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, entry, test.ShouldResemble, entries[3])

	// Beyond the queue the lookahead degrades to the last entry instead of
	// failing.
	entry, ok = parts.planner.IncomingWaypoint(50)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, entry, test.ShouldResemble, entries[4])

	entry, ok = parts.planner.IncomingWaypoint(-1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, entry, test.ShouldResemble, entries[4])
}

func TestRunStepSearchFailureFallback(t *testing.T) {
	parts := newTestPlanner(t)
	parts.planner.SetGlobalPlan(routeEntries(10), true)
	globalTarget, _ := parts.planner.buffer.Front()

	// The default injected searcher always fails, so the planner must track
	// the global target directly and leave the local queue empty.
	_, err := parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parts.tracked, test.ShouldNotBeNil)
	test.That(t, *parts.tracked, test.ShouldEqual, globalTarget.Waypoint)
	test.That(t, parts.planner.localTargets.Len(), test.ShouldEqual, 0)

	// The failed search does not consume the global target.
	front, _ := parts.planner.buffer.Front()
	test.That(t, front, test.ShouldResemble, globalTarget)
}

func TestRunStepLocalPathTracking(t *testing.T) {
	parts := newTestPlanner(t)
	parts.planner.SetGlobalPlan(routeEntries(10), true)

	origin := parts.planner.cfg.Projection.Origin
	path := []occupancy.Cell{
		origin,
		{Row: origin.Row - 8, Col: origin.Col},
		{Row: origin.Row - 16, Col: origin.Col},
		{Row: origin.Row - 24, Col: origin.Col},
		{Row: origin.Row - 32, Col: origin.Col},
	}
	parts.searcher.PlanFunc = func(
		ctx context.Context, start, goal occupancy.Cell, grid *occupancy.Grid,
	) ([]occupancy.Cell, error) {
		return path, nil
	}

	buffered := parts.planner.buffer.Len()
	_, err := parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)

	// A successful search consumes the global target, drops the two cells
	// nearest the goal, and queues the rest; the first was consumed this
	// tick.
	test.That(t, parts.planner.buffer.Len(), test.ShouldEqual, buffered-1)
	test.That(t, parts.planner.localTargets.Len(), test.ShouldEqual, 2)
	test.That(t, parts.tracked, test.ShouldNotBeNil)
	// The path starts at the sensor origin, which maps back to the
	// vehicle's own location.
	test.That(t, (*parts.tracked).Location().Norm(), test.ShouldAlmostEqual, 0, 1e-9)

	// The following tick consumes the next local target without replanning.
	parts.searcher.PlanFunc = func(
		ctx context.Context, start, goal occupancy.Cell, grid *occupancy.Grid,
	) ([]occupancy.Cell, error) {
		t.Fatal("unexpected replan while local targets remain")
		return nil, nil
	}
	_, err = parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parts.planner.localTargets.Len(), test.ShouldEqual, 1)
	// 8 pixels ahead at 4 px/m is 2 m ahead of the vehicle.
	test.That(t, (*parts.tracked).Location().Y, test.ShouldAlmostEqual, 2, 1e-9)
}

func TestRunStepResetVehicle(t *testing.T) {
	parts := newTestPlanner(t)
	parts.planner.SetGlobalPlan(routeEntries(10), true)

	parts.planner.ResetVehicle()
	_, err := parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeError, vehicle.ErrNoVehicle)
}

func TestRunStepTargetSpeed(t *testing.T) {
	parts := newTestPlanner(t)
	parts.planner.SetGlobalPlan(routeEntries(10), true)

	var sawSpeed float64
	parts.controller.RunStepFunc = func(
		ctx context.Context, targetSpeed float64, target waypoint.Waypoint, gains control.Gains,
	) (vehicle.Control, error) {
		sawSpeed = targetSpeed
		return vehicle.Control{}, nil
	}

	// With no request the planner tracks the speed limit.
	_, err := parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sawSpeed, test.ShouldEqual, 30)

	parts.planner.SetSpeed(72)
	_, err = parts.planner.RunStep(context.Background(), freeFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sawSpeed, test.ShouldEqual, 72)
}

func TestNewLocalPlannerValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	veh := &inject.Vehicle{}
	roadMap := &inject.Map{}
	searcher := &inject.Searcher{}
	controller := &inject.Controller{}

	_, err := NewLocalPlanner(Config{}, nil, roadMap, searcher, controller, logger)
	test.That(t, err, test.ShouldBeError, vehicle.ErrNoVehicle)

	_, err = NewLocalPlanner(Config{}, veh, nil, searcher, controller, logger)
	test.That(t, err, test.ShouldNotBeNil)

	bad := Config{MinDistance: -1}
	_, err = NewLocalPlanner(bad, veh, roadMap, searcher, controller, logger)
	test.That(t, err, test.ShouldNotBeNil)

	p, err := NewLocalPlanner(Config{}, veh, roadMap, searcher, controller, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.cfg.BufferSize, test.ShouldEqual, defaultBufferSize)
	test.That(t, p.cfg.SkipStride, test.ShouldEqual, defaultSkipStride)
	test.That(t, p.cfg.QueueCapacity, test.ShouldEqual, defaultQueueCapacity)
}
