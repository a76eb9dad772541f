package series

import (
	"math"

	"github.com/chrissnell/thermexposure/internal/types"
)

// SentinelThreshold is the magnitude above which the simulation reports a
// section that has not been filled yet
const SentinelThreshold = 1e30

// IsSentinel reports whether v encodes "no value". Large magnitudes of either
// sign are sentinels, and so are NaN and the infinities.
func IsSentinel(v float64) bool {
	return math.IsNaN(v) || math.Abs(v) > SentinelThreshold
}

// Normalize converts a raw provider value into a reading
func Normalize(v float64) types.Reading {
	if IsSentinel(v) {
		return types.None()
	}
	return types.Some(v)
}

func normalizeReading(r types.Reading) types.Reading {
	if !r.Valid {
		return r
	}
	return Normalize(r.Value)
}
