package commerce

import (
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func activeCoupon(code, kind string, value float64) models.Coupon {
	now := time.Now()
	return models.Coupon{
		Code:          code,
		DiscountType:  kind,
		DiscountValue: value,
		StartDate:     now.Add(-24 * time.Hour),
		ExpiryDate:    now.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func TestEvaluateCouponPercent(t *testing.T) {
	c := activeCoupon("WELCOME10", models.DiscountPercent, 10)
	c.MinCartValue = 500

	eval, err := EvaluateCoupon(c, 1200, 0, time.Now())
	if err != nil {
		t.Fatalf("EvaluateCoupon returned error: %v", err)
	}
	if eval.Discount != 120 {
		t.Fatalf("expected discount 120, got %v", eval.Discount)
	}
}

func TestEvaluateCouponIsRepeatable(t *testing.T) {
	c := activeCoupon("SAVE", models.DiscountPercent, 15)
	now := time.Now()
	first, err := EvaluateCoupon(c, 873.5, 0, now)
	if err != nil {
		t.Fatalf("EvaluateCoupon returned error: %v", err)
	}
	second, err := EvaluateCoupon(c, 873.5, 0, now)
	if err != nil {
		t.Fatalf("EvaluateCoupon returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical evaluations, got %+v and %+v", first, second)
	}
	if c.UsageCount != 0 {
		t.Fatalf("evaluation must not count as usage")
	}
}

func TestEvaluateCouponMaxDiscountCap(t *testing.T) {
	c := activeCoupon("BIG", models.DiscountPercent, 50)
	c.MaxDiscount = floatPtr(200)

	eval, err := EvaluateCoupon(c, 1000, 0, time.Now())
	if err != nil {
		t.Fatalf("EvaluateCoupon returned error: %v", err)
	}
	if eval.Discount != 200 {
		t.Fatalf("expected capped discount 200, got %v", eval.Discount)
	}
}

func TestEvaluateCouponFlatNeverExceedsSubtotal(t *testing.T) {
	c := activeCoupon("FLAT500", models.DiscountFlat, 500)
	eval, err := EvaluateCoupon(c, 300, 0, time.Now())
	if err != nil {
		t.Fatalf("EvaluateCoupon returned error: %v", err)
	}
	if eval.Discount != 300 {
		t.Fatalf("expected discount clamped to 300, got %v", eval.Discount)
	}
}

func TestEvaluateCouponRejections(t *testing.T) {
	now := time.Now()

	inactive := activeCoupon("OFF", models.DiscountFlat, 10)
	inactive.IsActive = false

	future := activeCoupon("SOON", models.DiscountFlat, 10)
	future.StartDate = now.Add(time.Hour)
	future.ExpiryDate = now.Add(2 * time.Hour)

	expired := activeCoupon("OLD", models.DiscountFlat, 10)
	expired.StartDate = now.Add(-2 * time.Hour)
	expired.ExpiryDate = now.Add(-time.Hour)

	exhausted := activeCoupon("GONE", models.DiscountFlat, 10)
	exhausted.UsageLimit = intPtr(5)
	exhausted.UsageCount = 5

	perUser := activeCoupon("ONCE", models.DiscountFlat, 10)
	perUser.PerUserLimit = intPtr(1)

	tests := []struct {
		name   string
		coupon models.Coupon
		uses   int
		want   error
	}{
		{"inactive", inactive, 0, ErrCouponInactive},
		{"not started", future, 0, ErrCouponNotStarted},
		{"expired", expired, 0, ErrCouponExpired},
		{"exhausted", exhausted, 0, ErrCouponExhausted},
		{"per user", perUser, 1, ErrCouponUserLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EvaluateCoupon(tt.coupon, 1000, tt.uses, now); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEvaluateCouponMinCartValue(t *testing.T) {
	c := activeCoupon("MIN", models.DiscountFlat, 50)
	c.MinCartValue = 500

	_, err := EvaluateCoupon(c, 499.99, 0, time.Now())
	var minErr MinCartValueError
	if !errors.As(err, &minErr) {
		t.Fatalf("expected MinCartValueError, got %v", err)
	}
	if minErr.Required != 500 {
		t.Fatalf("expected required 500, got %v", minErr.Required)
	}
}

func TestRankCouponsOrdersByDiscountThenMinCartValue(t *testing.T) {
	a := activeCoupon("A", models.DiscountFlat, 100)
	a.MinCartValue = 800
	b := activeCoupon("B", models.DiscountPercent, 20)
	c := activeCoupon("C", models.DiscountFlat, 100)
	c.MinCartValue = 100
	d := activeCoupon("D", models.DiscountFlat, 10)
	d.MinCartValue = 5000

	ranked := RankCoupons([]models.Coupon{a, b, c, d}, 1000, nil, time.Now())
	if len(ranked) != 3 {
		t.Fatalf("expected 3 applicable coupons, got %d", len(ranked))
	}
	got := []string{ranked[0].Coupon.Code, ranked[1].Coupon.Code, ranked[2].Coupon.Code}
	want := []string{"B", "C", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRankCouponsSkipsUserLimitedCoupons(t *testing.T) {
	c := activeCoupon("ONCE", models.DiscountFlat, 10)
	c.PerUserLimit = intPtr(1)
	ranked := RankCoupons([]models.Coupon{c}, 100, map[string]int{"ONCE": 1}, time.Now())
	if len(ranked) != 0 {
		t.Fatalf("expected no coupons, got %d", len(ranked))
	}
}

func TestValidateCoupon(t *testing.T) {
	ok := activeCoupon("OK", models.DiscountPercent, 10)
	if err := ValidateCoupon(ok); err != nil {
		t.Fatalf("expected valid coupon, got %v", err)
	}

	bad := activeCoupon("BAD", models.DiscountPercent, 120)
	if err := ValidateCoupon(bad); err == nil {
		t.Fatal("expected error for percent above 100")
	}

	backwards := activeCoupon("BACK", models.DiscountFlat, 10)
	backwards.ExpiryDate = backwards.StartDate.Add(-time.Hour)
	if err := ValidateCoupon(backwards); err == nil {
		t.Fatal("expected error when expiryDate precedes startDate")
	}

	unknown := activeCoupon("X", "bogus", 10)
	if err := ValidateCoupon(unknown); err == nil {
		t.Fatal("expected error for unknown discount type")
	}
}
