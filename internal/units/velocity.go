// Package units converts pixel velocities and shifts. Velocity fields are
// stored in px/ms; event time stamps are in µs.
package units

import (
	"fmt"
	"strings"
)

// Velocity unit names accepted by the tools.
const (
	PxPerMs = "px/ms"
	PxPerUs = "px/us"
	PxPerS  = "px/s"
)

// ValidUnits lists the accepted units, storage unit first.
var ValidUnits = []string{PxPerMs, PxPerUs, PxPerS}

// perPxMs is the value of 1 px/ms in each unit.
var perPxMs = map[string]float64{
	PxPerMs: 1,
	PxPerUs: 1e-3,
	PxPerS:  1e3,
}

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	_, ok := perPxMs[unit]
	return ok
}

// GetValidUnitsString joins ValidUnits for error messages.
func GetValidUnitsString() string { return strings.Join(ValidUnits, ", ") }

// ConvertVelocity converts a stored px/ms velocity to unit.
func ConvertVelocity(pxPerMs float64, unit string) (float64, error) {
	f, ok := perPxMs[unit]
	if !ok {
		return 0, fmt.Errorf("unknown velocity unit %q (valid: %s)", unit, GetValidUnitsString())
	}
	return pxPerMs * f, nil
}

// MsToUs converts a velocity in px/ms to px/µs, the unit used when warping
// events whose time stamps are in µs.
func MsToUs(pxPerMs float64) float64 { return pxPerMs / 1000 }

// ShiftToVelocity converts a pixel shift observed over dtUs microseconds
// into px/ms.
func ShiftToVelocity(shiftPx float64, dtUs int64) float64 {
	if dtUs == 0 {
		return 0
	}
	return shiftPx / float64(dtUs) * 1000
}

// VelocityToShift converts a velocity in px/ms into the pixel shift it
// produces over dtUs microseconds.
func VelocityToShift(pxPerMs float64, dtUs int64) float64 {
	return pxPerMs * float64(dtUs) / 1000
}
