// Package units provides shared constants and validation for speed units
package units

import "fmt"

// Unit constants
const (
	MPH  = "mph"
	KPH  = "kph"
	KMPH = "kmph"
	MPS  = "mps"
	FPS  = "fps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPH, KPH, KMPH, MPS, FPS}

// Conversion factors from feet per second. The mph value is 3600/5280
// truncated to six places.
const (
	FeetPerSecondToMPH = 0.681818
	FeetPerSecondToKPH = 1.09728
	FeetPerSecondToMPS = 0.3048
)

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mph, kph, kmph, mps, fps"
}

// FactorFromFeetPerSecond returns the multiplier that turns feet per second
// into the target unit.
func FactorFromFeetPerSecond(unit string) (float64, error) {
	switch unit {
	case MPH:
		return FeetPerSecondToMPH, nil
	case KPH, KMPH:
		return FeetPerSecondToKPH, nil
	case MPS:
		return FeetPerSecondToMPS, nil
	case FPS:
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown speed unit %q (valid: %s)", unit, GetValidUnitsString())
	}
}

// ConvertSpeed converts a speed in feet per second to the target units.
// Unknown units leave the value in feet per second.
func ConvertSpeed(speedFPS float64, targetUnits string) float64 {
	factor, err := FactorFromFeetPerSecond(targetUnits)
	if err != nil {
		return speedFPS
	}
	return speedFPS * factor
}

// Label returns the short display label used on snapshots, e.g. "mph".
func Label(unit string) string {
	switch unit {
	case KPH, KMPH:
		return "km/h"
	case MPS:
		return "m/s"
	case FPS:
		return "ft/s"
	default:
		return unit
	}
}
