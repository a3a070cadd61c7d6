package occupancy

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/prarthanasigedar/CARLA-2/vehicle"
)

const (
	defaultOriginCol      = 75
	defaultOriginRow      = 168
	defaultPixelsPerMetre = 4.0
)

// Projection fixes the geometry linking the perception grid to the world
// frame: the grid cell under the ego vehicle and the pixel scale.
type Projection struct {
	// Origin is the grid cell occupied by the ego vehicle.
	Origin Cell `json:"origin"`
	// PixelsPerMetre converts grid distances to metric distances.
	PixelsPerMetre float64 `json:"pixels_per_metre"`
}

// DefaultProjection returns the geometry of the stock bird's-eye-view sensor.
func DefaultProjection() Projection {
	return Projection{
		Origin:         Cell{Row: defaultOriginRow, Col: defaultOriginCol},
		PixelsPerMetre: defaultPixelsPerMetre,
	}
}

// Validate ensures all parts of the projection are valid.
func (p *Projection) Validate(path string) error {
	if p.PixelsPerMetre <= 0 {
		return utils.NewConfigValidationError(path, errors.New("pixels_per_metre must be positive"))
	}
	if p.Origin.Row < 0 || p.Origin.Col < 0 {
		return utils.NewConfigValidationError(path, errors.New("origin must be non-negative"))
	}
	return nil
}

// CellToWorld maps a grid cell back to a world location, anchored at the
// vehicle's current pose.
//
// The transform is a small-angle, locally-flat approximation: it is accurate
// only for cells reasonably close to the origin, and it is anchored at the
// pose at call time rather than at grid-capture time, so a vehicle that moved
// between capture and mapping introduces drift. This is a known approximation
// of the sensor geometry, not an oversight.
func (p Projection) CellToWorld(c Cell, pose vehicle.Pose) r3.Vector {
	dCol := float64(c.Col - p.Origin.Col)
	dRow := float64(c.Row - p.Origin.Row)
	d := math.Hypot(dCol, dRow)
	if d == 0 {
		// The cell is the origin itself: the target is the vehicle's own
		// position.
		return pose.Location
	}
	alpha := math.Asin(math.Abs(dCol) / d)
	gamma := radians(pose.Yaw) + alpha
	dMetric := d / p.PixelsPerMetre

	return r3.Vector{
		X: pose.Location.X + dMetric*math.Sin(gamma),
		Y: pose.Location.Y + dMetric*math.Cos(gamma),
	}
}

// GoalCell maps a world-frame target into grid space relative to the
// vehicle's current pose, producing the goal cell handed to the path
// searcher. targetYaw is the road heading at the target in degrees.
func (p Projection) GoalCell(pose vehicle.Pose, target r3.Vector, targetYaw float64) Cell {
	delta := target.Sub(pose.Location)
	dPixels := math.Hypot(delta.X, delta.Y) * p.PixelsPerMetre

	// Rotate the offset into the grid frame, which is aligned with the
	// vehicle's heading.
	alpha := radians(pose.Yaw - targetYaw)
	a := dPixels * math.Sin(alpha)
	b := dPixels * math.Cos(alpha)

	return Cell{
		Row: p.Origin.Row - int(b),
		Col: p.Origin.Col - int(a),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
