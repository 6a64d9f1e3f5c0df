package handlers

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/response"
)

// normalizeProductDocument tolerates catalog rows written by bulk imports:
// numeric stock stored as double or int32, category stored as a hex string.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if cat, ok := raw["category"].(string); ok {
		if id, err := primitive.ObjectIDFromHex(cat); err == nil {
			raw["category"] = id
		} else {
			delete(raw, "category")
		}
	}

	for _, key := range []string{"stock", "sold", "numReviews"} {
		switch typed := raw[key].(type) {
		case int32:
			raw[key] = int(typed)
		case int64:
			raw[key] = int(typed)
		case float64:
			raw[key] = int(typed)
		case int:
		default:
			raw[key] = 0
		}
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	return commerce.Decorate(p), nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func decodeProduct(res *mongo.SingleResult) (models.Product, error) {
	var raw bson.M
	if err := res.Decode(&raw); err != nil {
		return models.Product{}, err
	}
	return normalizeProductDocument(raw)
}

// findActiveProduct returns a 404 AppError for missing or inactive products.
func findActiveProduct(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.Product, error) {
	product, err := decodeProduct(db.Collection("products").FindOne(ctx, bson.M{"_id": id, "isActive": true}))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, response.NotFound("product not found")
	}
	return product, err
}

// idOrSlugFilter matches a document either by ObjectID or by slug.
func idOrSlugFilter(value string) bson.M {
	value = strings.TrimSpace(value)
	if id, err := primitive.ObjectIDFromHex(value); err == nil {
		return bson.M{"_id": id}
	}
	return bson.M{"slug": strings.ToLower(value)}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(value string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	return strings.Trim(slug, "-")
}

// uniqueSlug derives a slug from name, suffixing it when the collection
// already holds one.
func uniqueSlug(ctx context.Context, db *mongo.Database, collection, name string, exclude primitive.ObjectID) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "item"
	}

	filter := bson.M{"slug": base}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	count, err := db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return base, nil
	}
	return base + "-" + strings.Split(uuid.NewString(), "-")[0], nil
}

func containsFilter(value string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(value)), "$options": "i"}
}
