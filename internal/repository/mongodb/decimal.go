package mongodb

import "github.com/shopspring/decimal"

// Amounts are stored as canonical decimal strings so documents never carry
// binary floating point values.

func decimalToString(d decimal.Decimal) string {
	return d.String()
}

func stringToDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
