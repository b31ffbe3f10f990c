// Package money validates and formats fixed-point amounts.
package money

import (
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/custody-ledger/internal"
)

const Scale = 2

// Max is the largest amount a NUMERIC(20,2) column holds.
var Max = decimal.New(1, 18).Sub(decimal.New(1, -Scale))

// Fits reports whether amount has at most two fractional digits and is within ±Max.
func Fits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(Scale)) && amount.Abs().LessThanOrEqual(Max)
}

// Validate accepts strictly positive amounts that fit the ledger columns.
func Validate(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.NewValidationFieldError(field, field+" must be greater than zero", errors.ErrCodeInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return errors.NewValidationFieldError(field, field+" must have at most two decimal places", errors.ErrCodeInvalidAmount)
	}
	if amount.GreaterThan(Max) {
		return errors.NewValidationFieldError(field, field+" must not exceed "+Format(Max), errors.ErrCodeInvalidAmount)
	}
	return nil
}

func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}
