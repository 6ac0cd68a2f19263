// README: Common money value object used across modules.
package types

import (
	"fmt"
	"math"
)

// Money is an amount in the currency's minimum unit (e.g. cents).
type Money struct {
	Amount   int64
	Currency string
}

func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, a/100, a%100, m.Currency)
}

// RoundHalfUp rounds a monetary value to the nearest minor unit, ties away
// from zero. Never truncates.
func RoundHalfUp(x float64) int64 {
	if x < 0 {
		return -int64(math.Floor(-x + 0.5))
	}
	return int64(math.Floor(x + 0.5))
}
