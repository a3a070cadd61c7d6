// Package control selects gain profiles by speed regime and turns tracking
// targets into actuation commands.
package control

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Control rate the profile timesteps are tuned against.
const defaultFPS = 20

// DefaultSpeedThreshold is the target speed in km/h strictly above which the
// highway profiles apply.
const DefaultSpeedThreshold = 50.0

// GainProfile holds PID constants for one control axis under one speed
// regime.
type GainProfile struct {
	P  float64 `json:"kp"`
	I  float64 `json:"ki"`
	D  float64 `json:"kd"`
	DT float64 `json:"dt"`
}

// Gains pairs the lateral and longitudinal profiles selected for one control
// tick.
type Gains struct {
	Lateral      GainProfile
	Longitudinal GainProfile
}

// Profiles holds the four fixed gain profiles and the speed threshold that
// switches between them. Profiles are static configuration, constructed once
// at initialization.
type Profiles struct {
	LateralHighway      GainProfile `json:"lateral_highway"`
	LateralCity         GainProfile `json:"lateral_city"`
	LongitudinalHighway GainProfile `json:"longitudinal_highway"`
	LongitudinalCity    GainProfile `json:"longitudinal_city"`

	// SpeedThreshold is in km/h. Highway profiles apply strictly above it.
	SpeedThreshold float64 `json:"speed_threshold_kmh"`
}

// DefaultProfiles returns gain profiles tuned for the stock vehicle at a
// 20 Hz control rate.
func DefaultProfiles() Profiles {
	dt := 1.0 / defaultFPS
	return Profiles{
		LateralHighway:      GainProfile{P: 0.75, D: 0.02, I: 0.4, DT: dt},
		LateralCity:         GainProfile{P: 0.58, D: 0.02, I: 0.5, DT: dt},
		LongitudinalHighway: GainProfile{P: 0.37, D: 0.024, I: 0.032, DT: dt},
		LongitudinalCity:    GainProfile{P: 0.15, D: 0.05, I: 0.07, DT: dt},
		SpeedThreshold:      DefaultSpeedThreshold,
	}
}

// Validate ensures all parts of the profiles are valid.
func (p *Profiles) Validate(path string) error {
	if p.SpeedThreshold <= 0 {
		return utils.NewConfigValidationError(path, errors.New("speed_threshold_kmh must be positive"))
	}
	for _, prof := range []GainProfile{
		p.LateralHighway, p.LateralCity, p.LongitudinalHighway, p.LongitudinalCity,
	} {
		if prof.DT <= 0 {
			return utils.NewConfigValidationError(path, errors.New("profile dt must be positive"))
		}
	}
	return nil
}

// Select returns the gain pair for a requested target speed in km/h. The
// highway pair applies strictly above the threshold; at or below it the city
// pair applies.
func (p Profiles) Select(targetSpeed float64) Gains {
	if targetSpeed > p.SpeedThreshold {
		return Gains{Lateral: p.LateralHighway, Longitudinal: p.LongitudinalHighway}
	}
	return Gains{Lateral: p.LateralCity, Longitudinal: p.LongitudinalCity}
}
