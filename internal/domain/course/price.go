package course

import "math"

// DefaultDiscountPercent is the storefront-wide promotion applied to list prices.
const DefaultDiscountPercent = 20

// DiscountedPrice returns round(price - price*pct/100). Zero, negative and
// non-finite prices yield 0.
func DiscountedPrice(price, pct float64) int64 {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0
	}

	// JavaScript Math.round semantics: halves round up.
	return int64(math.Floor(price - price*pct/100 + 0.5))
}
