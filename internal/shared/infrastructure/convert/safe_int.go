// Package convert holds overflow-checked integer conversions for values
// read from configuration.
package convert

import (
	"fmt"
	"math"
)

// IntToInt32 converts v, failing when it does not fit.
func IntToInt32(v int) (int32, error) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("value %d overflows int32", v)
	}
	return int32(v), nil
}

// IntToInt32Clamped converts v, saturating at the int32 bounds.
func IntToInt32Clamped(v int) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

// IntToUint32 converts v, failing when it is negative or too large.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("value %d does not fit uint32", v)
	}
	return uint32(v), nil
}

// IntToUint32Clamped converts v, mapping negatives to zero and saturating
// at math.MaxUint32.
func IntToUint32Clamped(v int) uint32 {
	switch {
	case v < 0:
		return 0
	case uint64(v) > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
