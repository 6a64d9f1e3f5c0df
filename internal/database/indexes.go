package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func collectionIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		},
		"products": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetName("slug_unique").SetUnique(true)},
			{
				Keys: bson.D{{Key: "sku", Value: 1}},
				Options: options.Index().
					SetName("sku_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"sku": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "isActive", Value: 1}}, Options: options.Index().SetName("category_active")},
			{
				Keys: bson.D{
					{Key: "name", Value: "text"},
					{Key: "description", Value: "text"},
					{Key: "brand", Value: "text"},
				},
				Options: options.Index().SetName("product_text"),
			},
		},
		"categories": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetName("slug_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "parentCategory", Value: 1}}, Options: options.Index().SetName("parent_index")},
		},
		"carts": {
			{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetName("user_unique").SetUnique(true)},
		},
		"orders": {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetName("orderNumber_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_createdAt")},
			{Keys: bson.D{{Key: "gateway.orderId", Value: 1}}, Options: options.Index().SetName("gateway_order_index")},
		},
		"coupons": {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetName("code_unique").SetUnique(true)},
		},
		"reviews": {
			{Keys: bson.D{{Key: "product", Value: 1}, {Key: "user", Value: 1}}, Options: options.Index().SetName("product_user_unique").SetUnique(true)},
		},
		"addresses": {
			{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetName("user_index")},
		},
	}
}

// EnsureIndexes creates every index the API relies on. Unique indexes back
// the duplicate checks in the handlers, so a failure here is fatal.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for name, models := range collectionIndexes() {
		log.Printf("[DB] [INFO] ensuring %d index(es) on %s", len(models), name)
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			log.Printf("[DB] [ERROR] %s index error: %v", name, err)
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return nil
}
