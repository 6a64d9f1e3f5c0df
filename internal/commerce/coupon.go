package commerce

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var (
	ErrCouponInactive      = errors.New("coupon is not active")
	ErrCouponNotStarted    = errors.New("coupon is not valid yet")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponExhausted     = errors.New("coupon usage limit reached")
	ErrCouponUserLimit     = errors.New("you have already used this coupon the maximum number of times")
	ErrCouponNotApplicable = errors.New("coupon is not applicable to this cart")
)

// MinCartValueError is returned when the subtotal is below the coupon minimum.
type MinCartValueError struct {
	Required float64
	Subtotal float64
}

func (e MinCartValueError) Error() string {
	return fmt.Sprintf("minimum cart value of %.2f required for this coupon", e.Required)
}

type CouponEvaluation struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
	Subtotal float64 `json:"subtotal"`
}

// EvaluateCoupon decides whether coupon can be redeemed against subtotal by a
// user who has already used it priorUses times, and what it takes off. It
// reads nothing but its arguments.
func EvaluateCoupon(coupon models.Coupon, subtotal float64, priorUses int, now time.Time) (CouponEvaluation, error) {
	if !coupon.IsActive {
		return CouponEvaluation{}, ErrCouponInactive
	}
	if now.Before(coupon.StartDate) {
		return CouponEvaluation{}, ErrCouponNotStarted
	}
	if now.After(coupon.ExpiryDate) {
		return CouponEvaluation{}, ErrCouponExpired
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return CouponEvaluation{}, ErrCouponExhausted
	}
	if coupon.PerUserLimit != nil && priorUses >= *coupon.PerUserLimit {
		return CouponEvaluation{}, ErrCouponUserLimit
	}
	if subtotal < coupon.MinCartValue {
		return CouponEvaluation{}, MinCartValueError{Required: coupon.MinCartValue, Subtotal: subtotal}
	}

	discount := CouponDiscount(coupon, subtotal)
	if discount <= 0 {
		return CouponEvaluation{}, ErrCouponNotApplicable
	}
	return CouponEvaluation{Code: coupon.Code, Discount: discount, Subtotal: subtotal}, nil
}

// CouponDiscount computes the raw discount clamped to [0, subtotal].
func CouponDiscount(coupon models.Coupon, subtotal float64) float64 {
	sub := decimal.NewFromFloat(subtotal)

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountFlat:
		discount = decimal.NewFromFloat(coupon.DiscountValue)
	case models.DiscountPercent:
		discount = sub.Mul(decimal.NewFromFloat(coupon.DiscountValue)).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount != nil {
			discount = decimal.Min(discount, decimal.NewFromFloat(*coupon.MaxDiscount))
		}
	default:
		return 0
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(sub) {
		discount = sub
	}
	return discount.Round(2).InexactFloat64()
}

type RankedCoupon struct {
	Coupon   models.Coupon `json:"coupon"`
	Discount float64       `json:"discount"`
}

// RankCoupons returns the coupons redeemable for subtotal, best discount first;
// ties go to the coupon with the lower minimum cart value.
func RankCoupons(coupons []models.Coupon, subtotal float64, usesByCode map[string]int, now time.Time) []RankedCoupon {
	ranked := make([]RankedCoupon, 0, len(coupons))
	for _, c := range coupons {
		eval, err := EvaluateCoupon(c, subtotal, usesByCode[c.Code], now)
		if err != nil {
			continue
		}
		ranked = append(ranked, RankedCoupon{Coupon: c, Discount: eval.Discount})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Discount != ranked[j].Discount {
			return ranked[i].Discount > ranked[j].Discount
		}
		return ranked[i].Coupon.MinCartValue < ranked[j].Coupon.MinCartValue
	})
	return ranked
}

// ValidateCoupon checks an admin-supplied coupon definition.
func ValidateCoupon(c models.Coupon) error {
	switch c.DiscountType {
	case models.DiscountFlat, models.DiscountPercent:
	default:
		return fmt.Errorf("discountType must be percent or flat")
	}
	if c.DiscountValue <= 0 {
		return fmt.Errorf("discountValue must be greater than 0")
	}
	if c.DiscountType == models.DiscountPercent && c.DiscountValue > 100 {
		return fmt.Errorf("percent discount cannot exceed 100")
	}
	if c.MinCartValue < 0 {
		return fmt.Errorf("minCartValue cannot be negative")
	}
	if c.MaxDiscount != nil && *c.MaxDiscount <= 0 {
		return fmt.Errorf("maxDiscount must be greater than 0")
	}
	if !c.ExpiryDate.After(c.StartDate) {
		return fmt.Errorf("expiryDate must be after startDate")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		return fmt.Errorf("usageLimit must be at least 1")
	}
	if c.PerUserLimit != nil && *c.PerUserLimit < 1 {
		return fmt.Errorf("perUserLimit must be at least 1")
	}
	return nil
}
