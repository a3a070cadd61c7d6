package control

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/prarthanasigedar/CARLA-2/vehicle"
	"github.com/prarthanasigedar/CARLA-2/waypoint"
)

// Controller turns a tracking target into a low-level actuation command. The
// control law behind it is an implementation detail; the planner only relies
// on this contract.
type Controller interface {
	RunStep(
		ctx context.Context,
		targetSpeed float64,
		target waypoint.Waypoint,
		gains Gains,
	) (vehicle.Control, error)
}

// vehicleController runs one PID per control axis: the longitudinal loop
// tracks the target speed, the lateral loop drives the heading error to the
// target waypoint to zero.
type vehicleController struct {
	vehicle      vehicle.Vehicle
	lateral      pid
	longitudinal pid
	logger       golog.Logger
}

// NewVehicleController returns a dual-PID controller for the given vehicle.
func NewVehicleController(veh vehicle.Vehicle, logger golog.Logger) (Controller, error) {
	if veh == nil {
		return nil, errors.New("no vehicle to control")
	}
	return &vehicleController{vehicle: veh, logger: logger}, nil
}

func (c *vehicleController) RunStep(
	ctx context.Context,
	targetSpeed float64,
	target waypoint.Waypoint,
	gains Gains,
) (vehicle.Control, error) {
	if target == nil {
		return vehicle.Control{}, errors.New("no target waypoint")
	}
	pose, err := c.vehicle.Pose(ctx)
	if err != nil {
		return vehicle.Control{}, errors.Wrap(err, "reading vehicle pose")
	}
	speed, err := c.vehicle.Speed(ctx)
	if err != nil {
		return vehicle.Control{}, errors.Wrap(err, "reading vehicle speed")
	}

	c.lateral.Reconfigure(gains.Lateral)
	c.longitudinal.Reconfigure(gains.Longitudinal)

	steer := clamp(c.lateral.Next(headingError(pose, target)), -1, 1)

	var throttle, brake float64
	accel := c.longitudinal.Next(targetSpeed - speed)
	if accel >= 0 {
		throttle = clamp(accel, 0, 1)
	} else {
		brake = clamp(-accel, 0, 1)
	}

	return vehicle.Control{Steer: steer, Throttle: throttle, Brake: brake}, nil
}

// headingError is the signed angle in radians between the vehicle's heading
// and the bearing to the target, positive when the target lies to the right.
func headingError(pose vehicle.Pose, target waypoint.Waypoint) float64 {
	delta := target.Location().Sub(pose.Location)
	bearing := math.Atan2(delta.Y, delta.X)
	yaw := pose.Yaw * math.Pi / 180

	err := bearing - yaw
	for err > math.Pi {
		err -= 2 * math.Pi
	}
	for err < -math.Pi {
		err += 2 * math.Pi
	}
	return err
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
