// Package waypoint describes points on the road network and the topological
// annotations attached to a global route.
package waypoint

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
)

// RoadOption is the topological meaning of transitioning onto the next
// waypoint of a route.
type RoadOption uint8

// The set of known road options. Void is the sentinel for "no option
// available".
const (
	Void = RoadOption(iota)
	Left
	Right
	Straight
	LaneFollow
	ChangeLaneLeft
	ChangeLaneRight
)

func (o RoadOption) String() string {
	switch o {
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Straight:
		return "Straight"
	case LaneFollow:
		return "LaneFollow"
	case ChangeLaneLeft:
		return "ChangeLaneLeft"
	case ChangeLaneRight:
		return "ChangeLaneRight"
	default:
		return "Void"
	}
}

// Waypoint is a point on the road network. Waypoints are owned by the map
// collaborator; the planner only holds references and never mutates them.
type Waypoint interface {
	// Location returns the waypoint's world-frame location.
	Location() r3.Vector

	// Yaw returns the road heading at the waypoint in degrees.
	Yaw() float64

	// DistanceTo returns the Euclidean distance to a world location.
	DistanceTo(loc r3.Vector) float64
}

// PlanEntry pairs a waypoint with the road option for reaching it. A global
// plan is an ordered sequence of entries; order is route order and must be
// preserved.
type PlanEntry struct {
	Waypoint Waypoint
	Option   RoadOption
}

// Map resolves arbitrary world locations to waypoints on the road network.
type Map interface {
	WaypointAt(ctx context.Context, loc r3.Vector) (Waypoint, error)
}

type basicWaypoint struct {
	loc r3.Vector
	yaw float64
}

// New returns a waypoint at the given world location with the given heading
// in degrees.
func New(loc r3.Vector, yaw float64) Waypoint {
	return &basicWaypoint{loc: loc, yaw: yaw}
}

func (w *basicWaypoint) Location() r3.Vector {
	return w.loc
}

func (w *basicWaypoint) Yaw() float64 {
	return w.yaw
}

func (w *basicWaypoint) DistanceTo(loc r3.Vector) float64 {
	return w.loc.Sub(loc).Norm()
}

func (w *basicWaypoint) String() string {
	return fmt.Sprintf("waypoint(x: %.3f, y: %.3f, yaw: %.3f)", w.loc.X, w.loc.Y, w.yaw)
}
