// Package vehicle defines the ego vehicle collaborator and the actuation
// command the planner produces for it.
package vehicle

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNoVehicle is returned when the ego vehicle reference has been lost,
// e.g. after a simulator reset. The planner refuses further ticks until it
// is re-initialized with a live vehicle.
var ErrNoVehicle = errors.New("no vehicle attached")

// Pose is a world-frame position and heading. Yaw is in degrees, following
// the simulator's convention.
type Pose struct {
	Location r3.Vector
	Yaw      float64
}

// Control is a single low-level actuation command.
type Control struct {
	Steer           float64 `json:"steer"`             // [-1, 1]
	Throttle        float64 `json:"throttle"`          // [0, 1]
	Brake           float64 `json:"brake"`             // [0, 1]
	HandBrake       bool    `json:"hand_brake"`
	ManualGearShift bool    `json:"manual_gear_shift"`
}

// FullStop returns the command emitted when there is nothing to track.
func FullStop() Control {
	return Control{Steer: 0, Throttle: 0, Brake: 1}
}

// Vehicle is the ego vehicle. Pose and Speed are read once per control tick
// and treated as a snapshot for the whole tick.
type Vehicle interface {
	// Pose returns the vehicle's current world pose.
	Pose(ctx context.Context) (Pose, error)

	// Speed returns the vehicle's current forward speed in km/h.
	Speed(ctx context.Context) (float64, error)

	// SpeedLimit returns the speed limit at the vehicle's position in km/h.
	SpeedLimit(ctx context.Context) (float64, error)

	// ApplyControl hands one actuation command to the vehicle.
	ApplyControl(ctx context.Context, control Control) error
}
