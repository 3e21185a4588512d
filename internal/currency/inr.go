// Package currency renders USD catalog prices for display.
package currency

import "github.com/shopspring/decimal"

// USDToINR is the fixed conversion rate applied to every displayed price.
var USDToINR = decimal.RequireFromString("83.50")

// FormatINR converts a USD amount to rupees and renders it with two decimal
// places, prefixed with the rupee sign.
func FormatINR(usd decimal.Decimal) string {
	return "₹" + usd.Mul(USDToINR).StringFixed(2)
}
