package services

import "github.com/shopspring/decimal"

// maxMoney is the smallest magnitude a NUMERIC(14,2) column cannot hold.
var maxMoney = decimal.New(1, 12)

// checkMoney rejects values the store cannot keep exactly: more than two
// decimal places, or twelve or more integer digits.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return invalidArgument(field, "must have at most two decimal places")
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return invalidArgument(field, "must be less than 1000000000000")
	}
	return nil
}
