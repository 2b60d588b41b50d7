package money

import "math"

// ToMinorUnits converts a decimal currency amount to integer minor units
// (cents for 2-decimal currencies), rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	scaled := amount * 100
	if scaled >= 0 {
		return int64(math.Floor(scaled + 0.5))
	}
	return int64(math.Ceil(scaled - 0.5))
}
