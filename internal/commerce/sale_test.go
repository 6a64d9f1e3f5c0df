package commerce

import (
	"testing"

	"storefront/internal/models"
)

func TestValidateDiscountRejectsDiscountAtOrAbovePrice(t *testing.T) {
	for _, dp := range []float64{100, 120} {
		v := dp
		if err := ValidateDiscount(100, &v); err == nil {
			t.Fatalf("expected validation error for discountPrice=%v", dp)
		}
	}
}

func TestResolveDiscountUpdateClearsDiscount(t *testing.T) {
	existing := 80.0
	result, err := ResolveDiscountUpdate(100, &existing, DiscountUpdate{ClearDiscount: true})
	if err != nil {
		t.Fatalf("ResolveDiscountUpdate returned error: %v", err)
	}
	if result.DiscountPrice != nil {
		t.Fatalf("expected discount to be cleared, got %v", *result.DiscountPrice)
	}
}

func TestResolveDiscountUpdateValidatesAgainstNewPrice(t *testing.T) {
	existing := 80.0
	newPrice := 70.0
	if _, err := ResolveDiscountUpdate(100, &existing, DiscountUpdate{Price: &newPrice}); err == nil {
		t.Fatal("expected error when lowering price below the running discount")
	}
}

func TestUnitPriceUsesDiscountWhenOnSale(t *testing.T) {
	dp := 75.0
	if got := UnitPrice(models.Product{Price: 100, DiscountPrice: &dp}); got != 75 {
		t.Fatalf("expected sale price 75, got %v", got)
	}
	if got := UnitPrice(models.Product{Price: 100}); got != 100 {
		t.Fatalf("expected regular price 100, got %v", got)
	}
}

func TestDecorateDerivesDiscountPercentAndStock(t *testing.T) {
	dp := 66.0
	p := Decorate(models.Product{
		Price:         99,
		DiscountPrice: &dp,
		Stock:         0,
		Images:        []models.ProductImage{{URL: "a.jpg"}, {URL: "b.jpg"}},
	})
	if p.DiscountPercent != 33 {
		t.Fatalf("expected 33%%, got %d", p.DiscountPercent)
	}
	if p.InStock {
		t.Fatal("expected inStock=false with zero stock")
	}
	if p.Thumbnail != "a.jpg" {
		t.Fatalf("expected first image as thumbnail, got %q", p.Thumbnail)
	}
}
