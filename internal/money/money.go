// Package money fixes the currency arithmetic conventions for the lending
// core: two decimal places, round half-up, residue absorbed at a single
// documented point (the last schedule row).
package money

import "github.com/shopspring/decimal"

// RateEpsilon is the threshold below which a monthly rate is treated as
// zero to keep the (1+r)^n - 1 denominator away from cancellation.
const RateEpsilon = 1e-9

// Round applies the storage/presentation rounding policy: half-up, 2dp.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float result (e.g. from math.Pow based EMI math)
// into a rounded currency amount.
func FromFloat(f float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(f))
}

// Equal2 compares two amounts at currency precision.
func Equal2(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}
