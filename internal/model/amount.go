package model

import "github.com/shopspring/decimal"

// MaxAmount is the largest amount a single transaction may carry.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidAmount reports whether d is a positive amount in whole cents no larger
// than MaxAmount. Money columns are numeric(20,2); anything finer would be
// rounded on write.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(2)) && d.LessThanOrEqual(MaxAmount)
}
