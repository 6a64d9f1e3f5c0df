package commerce

import "github.com/shopspring/decimal"

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func mulQty(price float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
}

// LineSubtotal is price × qty rounded to cents.
func LineSubtotal(price float64, qty int) float64 {
	return mulQty(price, qty).Round(2).InexactFloat64()
}
