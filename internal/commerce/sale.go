package commerce

import (
	"fmt"
	"math"

	"storefront/internal/models"
)

type DiscountUpdate struct {
	Price         *float64
	DiscountPrice *float64
	// ClearDiscount removes the running discount.
	ClearDiscount bool
}

type DiscountResult struct {
	Price         float64
	DiscountPrice *float64
}

func IsOnSale(price float64, discountPrice *float64) bool {
	return discountPrice != nil && *discountPrice > 0 && *discountPrice < price
}

// UnitPrice is what a shopper pays for one unit right now.
func UnitPrice(p models.Product) float64 {
	if IsOnSale(p.Price, p.DiscountPrice) {
		return *p.DiscountPrice
	}
	return p.Price
}

// DiscountPercent is derived from price and discountPrice, rounded to a whole percent.
func DiscountPercent(price float64, discountPrice *float64) int {
	if !IsOnSale(price, discountPrice) {
		return 0
	}
	return int(math.Round((price - *discountPrice) / price * 100))
}

// Decorate fills the fields that are computed rather than stored.
func Decorate(p models.Product) models.Product {
	p.DiscountPercent = DiscountPercent(p.Price, p.DiscountPrice)
	p.InStock = p.Stock > 0
	if p.Thumbnail == "" && len(p.Images) > 0 {
		p.Thumbnail = p.Images[0].URL
	}
	return p
}

func ValidateDiscount(price float64, discountPrice *float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if discountPrice == nil {
		return nil
	}
	if *discountPrice <= 0 {
		return fmt.Errorf("discountPrice must be greater than 0")
	}
	if *discountPrice >= price {
		return fmt.Errorf("discountPrice must be less than price")
	}
	return nil
}

// ResolveDiscountUpdate merges a partial update onto the stored price pair and
// validates the outcome.
func ResolveDiscountUpdate(existingPrice float64, existingDiscount *float64, input DiscountUpdate) (DiscountResult, error) {
	result := DiscountResult{Price: existingPrice, DiscountPrice: existingDiscount}

	if input.Price != nil {
		result.Price = *input.Price
	}
	if input.ClearDiscount {
		result.DiscountPrice = nil
	}
	if input.DiscountPrice != nil {
		v := *input.DiscountPrice
		result.DiscountPrice = &v
	}

	if err := ValidateDiscount(result.Price, result.DiscountPrice); err != nil {
		return DiscountResult{}, err
	}
	return result, nil
}
