package trackers

import "math"

// quaternionIdentityTolerance is the 1-|dot| tolerance under which a rotation counts as identity.
const quaternionIdentityTolerance = 1e-9

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitizeDelta maps negative and NaN deltas to zero
func sanitizeDelta(dt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	return dt
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
