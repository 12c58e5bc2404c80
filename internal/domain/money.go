package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAmount bounds every stored or computed amount. It stays well inside the
// BigQuery NUMERIC range and catches runaway projections.
var MaxAmount = decimal.New(1, 15)

// CheckAmount rejects amounts whose magnitude reaches MaxAmount.
func CheckAmount(field string, v decimal.Decimal) error {
	if v.Abs().GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("%s %s exceeds the supported range: %w", field, v.String(), ErrComputation)
	}
	return nil
}

// ParseAmount parses a decimal string. Non-numeric input such as "NaN" or
// "Inf" is rejected.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid(field, "must be a decimal number")
	}
	if err := CheckAmount(field, v); err != nil {
		return decimal.Zero, err
	}
	return v, nil
}

// RoundMoney rounds to two decimal places, halves away from zero.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
