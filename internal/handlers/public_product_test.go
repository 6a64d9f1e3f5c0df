package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func queryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/products?"+rawQuery, nil)
	return c
}

func TestParseProductQuery_Defaults(t *testing.T) {
	q, err := parseProductQuery(queryContext(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Sort != "newest" || q.MinPrice != nil || q.InStock {
		t.Fatalf("unexpected defaults %+v", q)
	}
}

func TestParseProductQuery_RejectsBadInput(t *testing.T) {
	for _, raw := range []string{"sort=cheapest", "minPrice=-1", "minPrice=abc", "minPrice=500&maxPrice=100"} {
		if _, err := parseProductQuery(queryContext(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestBuildProductFilter_CombinesCriteria(t *testing.T) {
	q, err := parseProductQuery(queryContext("search=Shirt&brand=Acme+Co&minPrice=100&maxPrice=900&minRating=4&inStock=true&featured=true"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cat := primitive.NewObjectID()

	filter := buildProductFilter(q, []primitive.ObjectID{cat})

	if filter["isActive"] != true {
		t.Fatalf("expected active products only")
	}
	if or, ok := filter["$or"].(bson.A); !ok || len(or) != 3 {
		t.Fatalf("expected three search clauses, got %v", filter["$or"])
	}
	brand := filter["brand"].(bson.M)
	if brand["$regex"] != `^Acme Co$` || brand["$options"] != "i" {
		t.Fatalf("unexpected brand filter %v", brand)
	}
	price := filter["price"].(bson.M)
	if price["$gte"] != 100.0 || price["$lte"] != 900.0 {
		t.Fatalf("unexpected price filter %v", price)
	}
	if filter["rating"].(bson.M)["$gte"] != 4.0 {
		t.Fatalf("unexpected rating filter %v", filter["rating"])
	}
	if filter["stock"].(bson.M)["$gt"] != 0 {
		t.Fatalf("unexpected stock filter %v", filter["stock"])
	}
	if filter["isFeatured"] != true {
		t.Fatalf("expected featured flag")
	}
	in := filter["category"].(bson.M)["$in"].([]primitive.ObjectID)
	if len(in) != 1 || in[0] != cat {
		t.Fatalf("unexpected category filter %v", in)
	}
}

func TestBuildProductFilter_EscapesBrand(t *testing.T) {
	filter := buildProductFilter(productQuery{Brand: "A.B*"}, nil)
	if got := filter["brand"].(bson.M)["$regex"]; got != `^A\.B\*$` {
		t.Fatalf("expected escaped brand regex, got %v", got)
	}
	if _, ok := filter["category"]; ok {
		t.Fatalf("expected no category filter")
	}
}

func TestProductSorts_PriceAscending(t *testing.T) {
	sort := productSorts["price_asc"]
	if sort[0].Key != "price" || sort[0].Value != 1 {
		t.Fatalf("unexpected price_asc sort %v", sort)
	}
}
