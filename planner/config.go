package planner

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/prarthanasigedar/CARLA-2/control"
	"github.com/prarthanasigedar/CARLA-2/occupancy"
)

const (
	defaultQueueCapacity       = 20000
	defaultBufferSize          = 5
	defaultSkipStride          = 4
	defaultLocalTargetCapacity = 10000
	defaultDropTailCells       = 2
	defaultMinDistance         = 3.0
	defaultFrequency           = 20.0
	defaultSearchTimeout       = 40 * time.Millisecond
)

// Config configures a LocalPlanner. Zero-valued fields take the defaults
// above.
type Config struct {
	// QueueCapacity bounds the waypoint queue holding the unconsumed global
	// route.
	QueueCapacity int `json:"queue_capacity"`

	// BufferSize bounds the lookahead window into the waypoint queue.
	BufferSize int `json:"buffer_size"`

	// SkipStride is the number of queue entries discarded ahead of each
	// buffer-filling pop, coarsening the lookahead granularity. Tuned
	// empirically against the stock sensor geometry; recalibrate when the
	// route sampling density changes.
	SkipStride int `json:"skip_stride"`

	// LocalTargetCapacity bounds the queue of waypoints derived from the
	// most recent local path.
	LocalTargetCapacity int `json:"local_target_capacity"`

	// DropTailCells is the number of cells dropped from the tail of every
	// found path to avoid terminal-approach jitter near the goal. Tuned
	// empirically alongside SkipStride.
	DropTailCells int `json:"drop_tail_cells"`

	// MinDistance is the distance in metres under which a buffered waypoint
	// counts as passed and is purged.
	MinDistance float64 `json:"min_distance_m"`

	// TargetSpeed is the cruise speed in km/h. Zero means track the
	// vehicle's current speed limit.
	TargetSpeed float64 `json:"target_speed_kmh"`

	// Frequency is the control rate in Hz the Loop runs the planner at.
	Frequency float64 `json:"frequency_hz"`

	// SearchTimeout bounds one local path search so an unbounded searcher
	// cannot blow the tick budget.
	SearchTimeout time.Duration `json:"search_timeout"`

	Palette    occupancy.Palette    `json:"palette"`
	Projection occupancy.Projection `json:"projection"`
	Profiles   control.Profiles     `json:"profiles"`
}

// DefaultConfig returns the planner configuration tuned for the stock
// bird's-eye-view sensor at a 20 Hz control rate.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:       defaultQueueCapacity,
		BufferSize:          defaultBufferSize,
		SkipStride:          defaultSkipStride,
		LocalTargetCapacity: defaultLocalTargetCapacity,
		DropTailCells:       defaultDropTailCells,
		MinDistance:         defaultMinDistance,
		Frequency:           defaultFrequency,
		SearchTimeout:       defaultSearchTimeout,
		Palette:             occupancy.DefaultPalette(),
		Projection:          occupancy.DefaultProjection(),
		Profiles:            control.DefaultProfiles(),
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.SkipStride == 0 {
		cfg.SkipStride = def.SkipStride
	}
	if cfg.LocalTargetCapacity == 0 {
		cfg.LocalTargetCapacity = def.LocalTargetCapacity
	}
	if cfg.DropTailCells == 0 {
		cfg.DropTailCells = def.DropTailCells
	}
	if cfg.MinDistance == 0 {
		cfg.MinDistance = def.MinDistance
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = def.Frequency
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if len(cfg.Palette.FreeValues) == 0 && cfg.Palette.EgoValue == 0 {
		cfg.Palette = def.Palette
	}
	if cfg.Projection.PixelsPerMetre == 0 {
		cfg.Projection = def.Projection
	}
	if cfg.Profiles.SpeedThreshold == 0 {
		cfg.Profiles = def.Profiles
	}
	return cfg
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.QueueCapacity <= 0 {
		return utils.NewConfigValidationError(path, errors.New("queue_capacity must be positive"))
	}
	if cfg.BufferSize <= 0 {
		return utils.NewConfigValidationError(path, errors.New("buffer_size must be positive"))
	}
	if cfg.SkipStride < 0 {
		return utils.NewConfigValidationError(path, errors.New("skip_stride must be non-negative"))
	}
	if cfg.LocalTargetCapacity <= 0 {
		return utils.NewConfigValidationError(path, errors.New("local_target_capacity must be positive"))
	}
	if cfg.DropTailCells < 0 {
		return utils.NewConfigValidationError(path, errors.New("drop_tail_cells must be non-negative"))
	}
	if cfg.MinDistance <= 0 {
		return utils.NewConfigValidationError(path, errors.New("min_distance_m must be positive"))
	}
	if cfg.Frequency <= 0 || cfg.Frequency > 200 {
		return utils.NewConfigValidationError(path, errors.New("frequency_hz must be in (0, 200]"))
	}
	if err := cfg.Palette.Validate(fmtPath(path, "palette")); err != nil {
		return err
	}
	if err := cfg.Projection.Validate(fmtPath(path, "projection")); err != nil {
		return err
	}
	if err := cfg.Profiles.Validate(fmtPath(path, "profiles")); err != nil {
		return err
	}
	return nil
}

func fmtPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
