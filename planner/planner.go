// Package planner implements local route following: it advances a bounded
// queue of global route waypoints, replans a collision-free local path over a
// perception-derived occupancy grid every time the previous one is used up,
// and feeds a tracking controller one target per control tick.
package planner

import (
	"context"
	"image"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/prarthanasigedar/CARLA-2/control"
	"github.com/prarthanasigedar/CARLA-2/occupancy"
	"github.com/prarthanasigedar/CARLA-2/search"
	"github.com/prarthanasigedar/CARLA-2/vehicle"
	"github.com/prarthanasigedar/CARLA-2/waypoint"
)

// LocalPlanner follows a global route while avoiding locally perceived
// obstacles. One RunStep call is one control tick; the mutex guarantees no
// tick overlaps another tick or a plan installation.
type LocalPlanner struct {
	mu         sync.Mutex
	cfg        Config
	vehicle    vehicle.Vehicle
	roadMap    waypoint.Map
	searcher   search.Searcher
	controller control.Controller
	logger     golog.Logger

	// queue holds the unconsumed global route, buffer the short lookahead
	// window into it, and localTargets the waypoints derived from the most
	// recent local path. Route order is never changed.
	queue        *deque[waypoint.PlanEntry]
	buffer       *deque[waypoint.PlanEntry]
	localTargets *deque[waypoint.Waypoint]

	hasPlan        bool
	requestedSpeed float64
}

// tickState carries everything one control tick computes. It is created at
// the top of RunStep and discarded at the end; nothing in it survives into
// the next tick.
type tickState struct {
	pose        vehicle.Pose
	targetSpeed float64
	goal        occupancy.Cell
	grid        *occupancy.Grid
	target      waypoint.Waypoint
}

// NewLocalPlanner wires a planner to its collaborators. Zero-valued config
// fields take their defaults.
func NewLocalPlanner(
	cfg Config,
	veh vehicle.Vehicle,
	roadMap waypoint.Map,
	searcher search.Searcher,
	controller control.Controller,
	logger golog.Logger,
) (*LocalPlanner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if veh == nil {
		return nil, vehicle.ErrNoVehicle
	}
	if roadMap == nil {
		return nil, errors.New("no map collaborator")
	}
	if searcher == nil {
		return nil, errors.New("no path searcher")
	}
	if controller == nil {
		return nil, errors.New("no tracking controller")
	}
	return &LocalPlanner{
		cfg:          cfg,
		vehicle:      veh,
		roadMap:      roadMap,
		searcher:     searcher,
		controller:   controller,
		logger:       logger,
		queue:        newDeque[waypoint.PlanEntry](cfg.QueueCapacity),
		buffer:       newDeque[waypoint.PlanEntry](cfg.BufferSize),
		localTargets: newDeque[waypoint.Waypoint](cfg.LocalTargetCapacity),
	}, nil
}

// SetGlobalPlan appends a route to the waypoint queue in order. With clean
// set, the lookahead buffer is rebuilt from the queue front and any local
// targets derived from the previous plan are discarded. Must not be called
// while a tick is in progress.
func (p *LocalPlanner) SetGlobalPlan(entries []waypoint.PlanEntry, clean bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range entries {
		p.queue.PushBack(e)
	}
	if clean {
		p.buffer.Clear()
		for p.buffer.Len() < p.cfg.BufferSize {
			e, ok := p.queue.PopFront()
			if !ok {
				break
			}
			p.buffer.PushBack(e)
		}
		p.localTargets.Clear()
	}
	p.hasPlan = true
	p.logger.Infow("global plan installed", "entries", len(entries), "clean", clean)
}

// HasGlobalPlan reports whether a global plan has been installed.
func (p *LocalPlanner) HasGlobalPlan() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.hasPlan
}

// SetSpeed requests a new cruise speed in km/h. Zero reverts to tracking the
// vehicle's current speed limit.
func (p *LocalPlanner) SetSpeed(speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requestedSpeed = speed
}

// ResetVehicle detaches the ego vehicle, e.g. after a simulator reset.
// Subsequent ticks fail with vehicle.ErrNoVehicle until the planner is
// rebuilt around a live vehicle.
func (p *LocalPlanner) ResetVehicle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vehicle = nil
	p.logger.Info("ego vehicle detached")
}

// IncomingWaypoint returns the plan entry the given number of steps ahead in
// the waypoint queue. When the queue is shorter than that, it degrades to the
// last queued entry; the second return is false only when the queue is empty,
// in which case the entry carries the Void road option.
func (p *LocalPlanner) IncomingWaypoint(steps int) (waypoint.PlanEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.queue.At(steps); ok {
		return e, true
	}
	if e, ok := p.queue.Back(); ok {
		return e, true
	}
	return waypoint.PlanEntry{Option: waypoint.Void}, false
}

// RunStep executes one control tick over the given perception frame and
// returns the actuation command for it. With no plan available it returns a
// full stop. A failed local path search degrades to tracking the global
// target waypoint directly; only collaborator failures surface as errors.
func (p *LocalPlanner) RunStep(ctx context.Context, frame image.Image) (vehicle.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.vehicle == nil {
		return vehicle.Control{}, vehicle.ErrNoVehicle
	}
	if p.queue.Len() == 0 && p.buffer.Len() == 0 {
		p.logger.Debug("no plan available, emitting full stop")
		return vehicle.FullStop(), nil
	}

	p.refillBuffer()

	var tick tickState
	pose, err := p.vehicle.Pose(ctx)
	if err != nil {
		return vehicle.Control{}, errors.Wrap(err, "reading vehicle pose")
	}
	tick.pose = pose

	tick.targetSpeed = p.requestedSpeed
	if tick.targetSpeed == 0 {
		tick.targetSpeed = p.cfg.TargetSpeed
	}
	if tick.targetSpeed == 0 {
		limit, err := p.vehicle.SpeedLimit(ctx)
		if err != nil {
			return vehicle.Control{}, errors.Wrap(err, "reading speed limit")
		}
		tick.targetSpeed = limit
	}

	globalTarget, ok := p.buffer.Front()
	if !ok {
		// The skip stride can exhaust a short queue without yielding a
		// buffered entry; that is the same as having no plan.
		p.logger.Debug("route exhausted during refill, emitting full stop")
		return vehicle.FullStop(), nil
	}
	tick.goal = p.cfg.Projection.GoalCell(
		tick.pose, globalTarget.Waypoint.Location(), globalTarget.Waypoint.Yaw())

	grid, err := occupancy.BuildGrid(frame, p.cfg.Palette)
	if err != nil {
		return vehicle.Control{}, errors.Wrap(err, "building occupancy grid")
	}
	tick.grid = grid

	if p.localTargets.Len() == 0 {
		if err := p.replan(ctx, &tick); err != nil {
			return vehicle.Control{}, err
		}
	}

	if next, ok := p.localTargets.PopFront(); ok {
		tick.target = next
	} else if entry, ok := p.buffer.Front(); ok {
		// Search failure fallback: track the global target directly.
		tick.target = entry.Waypoint
	} else {
		p.logger.Debug("nothing left to track, emitting full stop")
		return vehicle.FullStop(), nil
	}

	gains := p.cfg.Profiles.Select(tick.targetSpeed)
	command, err := p.controller.RunStep(ctx, tick.targetSpeed, tick.target, gains)
	if err != nil {
		return vehicle.Control{}, errors.Wrap(err, "tracking controller")
	}

	p.purgeConsumed(tick.pose)
	return command, nil
}

// replan searches a local path from the sensor origin to the tick's goal
// cell and refills the local target queue from it. A search failure leaves
// the local target queue empty; the caller falls back to the global target.
func (p *LocalPlanner) replan(ctx context.Context, tick *tickState) error {
	searchCtx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	path, err := p.searcher.Plan(searchCtx, p.cfg.Projection.Origin, tick.goal, tick.grid)
	switch {
	case errors.Is(err, search.ErrNoPath) || errors.Is(err, context.DeadlineExceeded):
		p.logger.Warnw("local path search failed, tracking global target directly",
			"goal", tick.goal, "error", err)
		return nil
	case err != nil:
		return errors.Wrap(err, "local path search")
	}

	// The global target is consumed by a successful search.
	p.buffer.PopFront()

	if len(path) <= p.cfg.DropTailCells {
		p.logger.Debugw("local path too short after trimming", "cells", len(path))
		return nil
	}
	// The last cells sit on top of the goal; tracking them causes
	// terminal-approach jitter.
	path = path[:len(path)-p.cfg.DropTailCells]

	for _, cell := range path {
		loc := p.cfg.Projection.CellToWorld(cell, tick.pose)
		wp, err := p.roadMap.WaypointAt(ctx, loc)
		if err != nil {
			return errors.Wrap(err, "resolving local path waypoint")
		}
		p.localTargets.PushBack(wp)
	}
	p.logger.Debugw("local path installed", "targets", p.localTargets.Len())
	return nil
}

// refillBuffer tops up the lookahead buffer from the queue front when it has
// run empty. Ahead of every pop a stride of entries is discarded, coarsening
// the lookahead granularity.
func (p *LocalPlanner) refillBuffer() {
	if p.buffer.Len() > 0 {
		return
	}
	for p.buffer.Len() < p.cfg.BufferSize && p.queue.Len() > 0 {
		for i := 0; i < p.cfg.SkipStride; i++ {
			if _, ok := p.queue.PopFront(); !ok {
				break
			}
		}
		e, ok := p.queue.PopFront()
		if !ok {
			break
		}
		p.buffer.PushBack(e)
	}
}

// purgeConsumed drops the buffered waypoints the vehicle has already passed:
// everything up to and including the furthest entry within MinDistance of
// the pose. The removed entries always form a prefix of the buffer.
func (p *LocalPlanner) purgeConsumed(pose vehicle.Pose) {
	maxIndex := -1
	for i := 0; i < p.buffer.Len(); i++ {
		e, _ := p.buffer.At(i)
		if e.Waypoint.DistanceTo(pose.Location) < p.cfg.MinDistance {
			maxIndex = i
		}
	}
	for i := 0; i <= maxIndex; i++ {
		p.buffer.PopFront()
	}
}
