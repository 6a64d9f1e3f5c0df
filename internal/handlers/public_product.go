package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/response"
)

const (
	defaultProductLimit = 12
	relatedProductLimit = 8
)

var productSorts = map[string]bson.D{
	"newest":     {{Key: "createdAt", Value: -1}},
	"price_asc":  {{Key: "price", Value: 1}, {Key: "_id", Value: 1}},
	"price_desc": {{Key: "price", Value: -1}, {Key: "_id", Value: 1}},
	"rating":     {{Key: "rating", Value: -1}, {Key: "numReviews", Value: -1}},
	"popular":    {{Key: "sold", Value: -1}, {Key: "_id", Value: 1}},
	"name":       {{Key: "name", Value: 1}},
}

type productQuery struct {
	Search    string
	Brand     string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	InStock   bool
	Featured  bool
	New       bool
	Trending  bool
	Sort      string
}

func parseProductQuery(c *gin.Context) (productQuery, error) {
	q := productQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Brand:  strings.TrimSpace(c.Query("brand")),
		Sort:   strings.TrimSpace(c.DefaultQuery("sort", "newest")),
	}
	if _, ok := productSorts[q.Sort]; !ok {
		return q, fmt.Errorf("sort must be one of newest, price_asc, price_desc, rating, popular, name")
	}

	for key, dst := range map[string]**float64{
		"minPrice":  &q.MinPrice,
		"maxPrice":  &q.MaxPrice,
		"minRating": &q.MinRating,
	} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return q, fmt.Errorf("%s must be a non-negative number", key)
		}
		*dst = &v
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, fmt.Errorf("minPrice cannot exceed maxPrice")
	}

	q.InStock = c.Query("inStock") == "true"
	q.Featured = c.Query("featured") == "true"
	q.New = c.Query("new") == "true"
	q.Trending = c.Query("trending") == "true"
	return q, nil
}

// buildProductFilter turns the query into a Mongo filter over active products.
func buildProductFilter(q productQuery, categoryIDs []primitive.ObjectID) bson.M {
	filter := bson.M{"isActive": true}

	if len(categoryIDs) > 0 {
		filter["category"] = bson.M{"$in": categoryIDs}
	}
	if q.Search != "" {
		filter["$or"] = bson.A{
			bson.M{"name": containsFilter(q.Search)},
			bson.M{"brand": containsFilter(q.Search)},
			bson.M{"tags": strings.ToLower(q.Search)},
		}
	}
	if q.Brand != "" {
		filter["brand"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q.Brand) + "$", "$options": "i"}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.MinRating != nil {
		filter["rating"] = bson.M{"$gte": *q.MinRating}
	}
	if q.InStock {
		filter["stock"] = bson.M{"$gt": 0}
	}
	if q.Featured {
		filter["isFeatured"] = true
	}
	if q.New {
		filter["isNew"] = true
	}
	if q.Trending {
		filter["isTrending"] = true
	}
	return filter
}

// resolveCategoryIDs maps an id or slug to the category and its direct children.
func resolveCategoryIDs(ctx context.Context, db *mongo.Database, value string) ([]primitive.ObjectID, error) {
	var category models.Category
	err := db.Collection("categories").FindOne(ctx, idOrSlugFilter(value)).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, response.NotFound("category not found")
	}
	if err != nil {
		return nil, err
	}

	ids := []primitive.ObjectID{category.ID}
	cursor, err := db.Collection("categories").Find(ctx, bson.M{"parentCategory": category.ID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var children []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &children); err != nil {
		return nil, err
	}
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	return ids, nil
}

func ListProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), defaultProductLimit)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}
		q, err := parseProductQuery(c)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var categoryIDs []primitive.ObjectID
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			categoryIDs, err = resolveCategoryIDs(ctx, db, category)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
		}

		filter := buildProductFilter(q, categoryIDs)
		products, total, err := findProductsPage(ctx, db, filter, productSorts[q.Sort], page, limit)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		log.Printf("[%s] returning %d of %d products", route, len(products), total)
		response.Paginated(c, products, response.NewMeta(page, limit, total))
	}
}

func findProductsPage(ctx context.Context, db *mongo.Database, filter bson.M, sort bson.D, page, limit int64) ([]models.Product, int64, error) {
	total, err := db.Collection("products").CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := db.Collection("products").Find(ctx, filter, pageOptions(page, limit).SetSort(sort))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := idOrSlugFilter(c.Param("id"))
		filter["isActive"] = true

		product, err := decodeProduct(db.Collection("products").FindOne(ctx, filter))
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("product not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		var category models.Category
		if err := db.Collection("categories").FindOne(ctx, bson.M{"_id": product.Category}).Decode(&category); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "", gin.H{
			"product":  product,
			"category": gin.H{"id": category.ID, "name": category.Name, "slug": category.Slug},
		})
	}
}

func RelatedProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id/related"

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := idOrSlugFilter(c.Param("id"))
		filter["isActive"] = true

		product, err := decodeProduct(db.Collection("products").FindOne(ctx, filter))
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("product not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		cursor, err := db.Collection("products").Find(ctx,
			bson.M{"category": product.Category, "isActive": true, "_id": bson.M{"$ne": product.ID}},
			options.Find().SetLimit(relatedProductLimit).SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "sold", Value: -1}}),
		)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		related, err := decodeProducts(ctx, cursor)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "", related)
	}
}
