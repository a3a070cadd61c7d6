// Package inject provides injectable collaborator doubles for testing the
// planner.
package inject

import (
	"context"

	"github.com/prarthanasigedar/CARLA-2/vehicle"
)

// Vehicle is an injectable vehicle.Vehicle.
type Vehicle struct {
	vehicle.Vehicle
	PoseFunc         func(ctx context.Context) (vehicle.Pose, error)
	SpeedFunc        func(ctx context.Context) (float64, error)
	SpeedLimitFunc   func(ctx context.Context) (float64, error)
	ApplyControlFunc func(ctx context.Context, control vehicle.Control) error
}

// Pose calls the injected Pose or the real version.
func (v *Vehicle) Pose(ctx context.Context) (vehicle.Pose, error) {
	if v.PoseFunc == nil {
		return v.Vehicle.Pose(ctx)
	}
	return v.PoseFunc(ctx)
}

// Speed calls the injected Speed or the real version.
func (v *Vehicle) Speed(ctx context.Context) (float64, error) {
	if v.SpeedFunc == nil {
		return v.Vehicle.Speed(ctx)
	}
	return v.SpeedFunc(ctx)
}

// SpeedLimit calls the injected SpeedLimit or the real version.
func (v *Vehicle) SpeedLimit(ctx context.Context) (float64, error) {
	if v.SpeedLimitFunc == nil {
		return v.Vehicle.SpeedLimit(ctx)
	}
	return v.SpeedLimitFunc(ctx)
}

// ApplyControl calls the injected ApplyControl or the real version.
func (v *Vehicle) ApplyControl(ctx context.Context, control vehicle.Control) error {
	if v.ApplyControlFunc == nil {
		return v.Vehicle.ApplyControl(ctx, control)
	}
	return v.ApplyControlFunc(ctx, control)
}
