// Package credit defines the fungible reward credit used throughout the
// engine. Amounts are fixed-point integers in minor units (two decimal
// places) to avoid floating point errors anywhere in the bookkeeping.
package credit

import "fmt"

// Amount is a credit quantity in minor units.
type Amount int64

// Scale is the number of decimal places carried by an Amount.
const Scale = 2

// IsZero returns true if the amount is 0.
func (a Amount) IsZero() bool {
	return a == 0
}

// IsPositive returns true if the amount is > 0.
func (a Amount) IsPositive() bool {
	return a > 0
}

// IsNegative returns true if the amount is < 0.
func (a Amount) IsNegative() bool {
	return a < 0
}

// Percent returns p percent of a, truncating toward zero.
// Slashing arithmetic depends on the truncation.
func (a Amount) Percent(p int) Amount {
	return a * Amount(p) / 100
}

// String renders the amount in major units, e.g. "1250.00 CRD".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d CRD", sign, v/100, v%100)
}
