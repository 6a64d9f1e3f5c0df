package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"storefront/internal/models"
)

func floatRef(v float64) *float64 { return &v }

func TestBuildProductUpdate_RemovesDiscount(t *testing.T) {
	existing := models.Product{Price: 1000, DiscountPrice: floatRef(800)}

	set, unset, err := buildProductUpdate(existing, ProductUpdateRequest{RemoveDiscount: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set["price"] != 1000.0 {
		t.Fatalf("expected price to stay 1000, got %v", set["price"])
	}
	if _, ok := unset["discountPrice"]; !ok {
		t.Fatalf("expected discountPrice to be unset, got %v", unset)
	}
}

func TestBuildProductUpdate_RejectsDiscountAbovePrice(t *testing.T) {
	existing := models.Product{Price: 1000, DiscountPrice: floatRef(800)}

	_, _, err := buildProductUpdate(existing, ProductUpdateRequest{Price: floatRef(700)})
	if err == nil {
		t.Fatalf("expected lowering price under the running discount to fail")
	}
}

func TestBuildProductUpdate_LeavesPricingUntouched(t *testing.T) {
	existing := models.Product{Price: 1000}
	stock := 4
	tags := []string{" Cotton ", "cotton", "Summer"}

	set, unset, err := buildProductUpdate(existing, ProductUpdateRequest{Stock: &stock, Tags: tags})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := set["price"]; ok {
		t.Fatalf("price should not be part of the update: %v", set)
	}
	if len(unset) != 0 {
		t.Fatalf("expected no unset fields, got %v", unset)
	}
	if set["stock"] != 4 {
		t.Fatalf("expected stock 4, got %v", set["stock"])
	}
	got := set["tags"].(models.StringList)
	if len(got) != 2 || got[0] != "cotton" || got[1] != "summer" {
		t.Fatalf("unexpected tags %v", got)
	}
}

func TestBuildProductUpdate_EmptySKUUnsets(t *testing.T) {
	empty := "  "
	_, unset, err := buildProductUpdate(models.Product{Price: 10}, ProductUpdateRequest{SKU: &empty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := unset["sku"]; !ok {
		t.Fatalf("expected sku to be unset, got %v", bson.M(unset))
	}
}

func TestCleanSpecifications_DropsBlankKeys(t *testing.T) {
	got := cleanSpecifications(map[string]string{" Material ": " Cotton ", "  ": "x"})
	if len(got) != 1 || got["Material"] != "Cotton" {
		t.Fatalf("unexpected specifications %v", got)
	}
}
