package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeProductDocument_CoercesImportedFields(t *testing.T) {
	cat := primitive.NewObjectID()
	raw := bson.M{
		"_id":           primitive.NewObjectID(),
		"name":          "Linen Shirt",
		"price":         1000.0,
		"discountPrice": 750.0,
		"stock":         float64(4),
		"sold":          int32(2),
		"category":      cat.Hex(),
		"tags":          "Linen, summer ,linen",
		"images":        bson.A{bson.M{"url": "https://cdn/x.jpg", "key": "products/x.jpg"}},
		"isActive":      true,
	}

	p, err := normalizeProductDocument(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 4 || p.Sold != 2 || p.NumReviews != 0 {
		t.Fatalf("unexpected counters stock=%d sold=%d reviews=%d", p.Stock, p.Sold, p.NumReviews)
	}
	if p.Category != cat {
		t.Fatalf("expected category %s, got %s", cat.Hex(), p.Category.Hex())
	}
	if len(p.Tags) != 2 || p.Tags[0] != "linen" || p.Tags[1] != "summer" {
		t.Fatalf("unexpected tags %v", p.Tags)
	}
	if p.DiscountPercent != 25 || !p.InStock {
		t.Fatalf("expected derived fields, got percent=%d inStock=%v", p.DiscountPercent, p.InStock)
	}
	if p.Thumbnail != "https://cdn/x.jpg" {
		t.Fatalf("expected thumbnail from first image, got %q", p.Thumbnail)
	}
}

func TestNormalizeProductDocument_DropsInvalidCategory(t *testing.T) {
	p, err := normalizeProductDocument(bson.M{"name": "x", "category": "not-an-id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Category.IsZero() {
		t.Fatalf("expected zero category, got %s", p.Category.Hex())
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Men's Running Shoes":  "men-s-running-shoes",
		"  Kitchen & Dining  ": "kitchen-dining",
		"---":                  "",
		"Tee 2.0":              "tee-2-0",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIDOrSlugFilter(t *testing.T) {
	id := primitive.NewObjectID()
	if f := idOrSlugFilter(id.Hex()); f["_id"] != id {
		t.Fatalf("expected id filter, got %v", f)
	}
	if f := idOrSlugFilter(" Summer-Sale "); f["slug"] != "summer-sale" {
		t.Fatalf("expected slug filter, got %v", f)
	}
}
