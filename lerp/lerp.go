// Package lerp implements the numeric blends used to reconstruct state between
// two snapshots. None of the functions clamp t, so callers may extrapolate.
package lerp

import "math"

const twoPi = 2 * math.Pi

// Linear blends a and b by t. t == 1 yields b exactly.
func Linear(a, b, t float64) float64 {
	if t == 1 {
		return b
	}
	return a + (b-a)*t
}

// Degrees blends two headings expressed in degrees along the shortest arc.
// Results that cross the 0/360 seam are folded back into [0, 360).
func Degrees(a, b, t float64) float64 {
	return wrapLerp(a, b, t, 180, 360)
}

// Radians is Degrees for angles expressed in radians.
func Radians(a, b, t float64) float64 {
	return wrapLerp(a, b, t, math.Pi, twoPi)
}

func wrapLerp(a, b, t, half, full float64) float64 {
	// Endpoints are returned untouched.
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	diff := b - a
	switch {
	case diff < -half:
		// travel upwards past full
		result := Linear(a, b+full, t)
		if result >= full {
			result -= full
		}
		return result
	case diff > half:
		// travel downwards past zero
		result := Linear(a, b-full, t)
		if result < 0 {
			result += full
		}
		return result
	default:
		return Linear(a, b, t)
	}
}
