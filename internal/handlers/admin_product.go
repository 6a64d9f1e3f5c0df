package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/response"
)

type ProductCreateRequest struct {
	Name           string            `json:"name" binding:"required,max=200"`
	SKU            string            `json:"sku" binding:"omitempty,max=64"`
	Description    string            `json:"description" binding:"required"`
	Brand          string            `json:"brand"`
	Price          float64           `json:"price" binding:"required,gt=0"`
	DiscountPrice  *float64          `json:"discountPrice" binding:"omitempty,gt=0"`
	Stock          int               `json:"stock" binding:"min=0"`
	Category       string            `json:"category" binding:"required"`
	Tags           []string          `json:"tags"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     bool              `json:"isFeatured"`
	IsNew          bool              `json:"isNew"`
	IsTrending     bool              `json:"isTrending"`
	IsActive       *bool             `json:"isActive"`
}

type ProductUpdateRequest struct {
	Name           *string           `json:"name" binding:"omitempty,min=1,max=200"`
	SKU            *string           `json:"sku" binding:"omitempty,max=64"`
	Description    *string           `json:"description"`
	Brand          *string           `json:"brand"`
	Price          *float64          `json:"price" binding:"omitempty,gt=0"`
	DiscountPrice  *float64          `json:"discountPrice" binding:"omitempty,gt=0"`
	RemoveDiscount bool              `json:"removeDiscount"`
	Stock          *int              `json:"stock" binding:"omitempty,min=0"`
	Category       *string           `json:"category"`
	Tags           []string          `json:"tags"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     *bool             `json:"isFeatured"`
	IsNew          *bool             `json:"isNew"`
	IsTrending     *bool             `json:"isTrending"`
	IsActive       *bool             `json:"isActive"`
}

func sanitizeLogValue(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if max <= 0 {
		max = 80
	}
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}

func cleanSpecifications(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func requireCategory(ctx context.Context, db *mongo.Database, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, response.BadRequest("invalid category")
	}
	count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return primitive.NilObjectID, err
	}
	if count == 0 {
		return primitive.NilObjectID, response.BadRequest("category does not exist")
	}
	return id, nil
}

// AdminListProducts lists every product, including inactive ones.
func AdminListProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/products"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 20)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		filter := bson.M{}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["$or"] = bson.A{
				bson.M{"name": containsFilter(search)},
				bson.M{"brand": containsFilter(search)},
				bson.M{"sku": containsFilter(search)},
			}
		}
		if isActive := strings.TrimSpace(c.Query("isActive")); isActive != "" {
			filter["isActive"] = strings.EqualFold(isActive, "true")
		}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			if id, err := primitive.ObjectIDFromHex(category); err == nil {
				filter["category"] = id
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, total, err := findProductsPage(ctx, db, filter, productSorts["newest"], page, limit)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.Paginated(c, products, response.NewMeta(page, limit, total))
	}
}

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products"

		var req ProductCreateRequest
		if !bindJSON(c, route, &req) {
			return
		}
		if err := commerce.ValidateDiscount(req.Price, req.DiscountPrice); err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		categoryID, err := requireCategory(ctx, db, req.Category)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		slug, err := uniqueSlug(ctx, db, "products", name, primitive.NilObjectID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		now := time.Now()
		product := models.Product{
			Name:           name,
			Slug:           slug,
			SKU:            strings.ToUpper(strings.TrimSpace(req.SKU)),
			Description:    strings.TrimSpace(req.Description),
			Brand:          strings.TrimSpace(req.Brand),
			Price:          req.Price,
			DiscountPrice:  req.DiscountPrice,
			Stock:          req.Stock,
			Category:       categoryID,
			Images:         []models.ProductImage{},
			Tags:           models.NewStringList(req.Tags),
			Specifications: cleanSpecifications(req.Specifications),
			IsFeatured:     req.IsFeatured,
			IsNew:          req.IsNew,
			IsTrending:     req.IsTrending,
			IsActive:       isActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				response.Fail(c, route, response.Conflict("a product with this sku or slug already exists"))
				return
			}
			response.Fail(c, route, err)
			return
		}
		product.ID = res.InsertedID.(primitive.ObjectID)

		log.Printf("[%s] created product %s name=%q", route, product.ID.Hex(), sanitizeLogValue(name, 80))
		response.Created(c, "product created", commerce.Decorate(product))
	}
}

// buildProductUpdate computes the $set/$unset documents for a partial update.
func buildProductUpdate(existing models.Product, req ProductUpdateRequest) (bson.M, bson.M, error) {
	set := bson.M{}
	unset := bson.M{}

	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.SKU != nil {
		if sku := strings.ToUpper(strings.TrimSpace(*req.SKU)); sku == "" {
			unset["sku"] = ""
		} else {
			set["sku"] = sku
		}
	}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Brand != nil {
		set["brand"] = strings.TrimSpace(*req.Brand)
	}
	if req.Stock != nil {
		set["stock"] = *req.Stock
	}
	if req.Tags != nil {
		set["tags"] = models.NewStringList(req.Tags)
	}
	if req.Specifications != nil {
		set["specifications"] = cleanSpecifications(req.Specifications)
	}
	if req.IsFeatured != nil {
		set["isFeatured"] = *req.IsFeatured
	}
	if req.IsNew != nil {
		set["isNew"] = *req.IsNew
	}
	if req.IsTrending != nil {
		set["isTrending"] = *req.IsTrending
	}
	if req.IsActive != nil {
		set["isActive"] = *req.IsActive
	}

	if req.Price != nil || req.DiscountPrice != nil || req.RemoveDiscount {
		resolved, err := commerce.ResolveDiscountUpdate(existing.Price, existing.DiscountPrice, commerce.DiscountUpdate{
			Price:         req.Price,
			DiscountPrice: req.DiscountPrice,
			ClearDiscount: req.RemoveDiscount,
		})
		if err != nil {
			return nil, nil, err
		}
		set["price"] = resolved.Price
		if resolved.DiscountPrice == nil {
			unset["discountPrice"] = ""
		} else {
			set["discountPrice"] = *resolved.DiscountPrice
		}
	}

	return set, unset, nil
}

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /products/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req ProductUpdateRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := decodeProduct(db.Collection("products").FindOne(ctx, bson.M{"_id": id}))
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("product not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		set, unset, err := buildProductUpdate(existing, req)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		if req.Category != nil {
			categoryID, err := requireCategory(ctx, db, *req.Category)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			set["category"] = categoryID
		}
		if name, ok := set["name"].(string); ok && name != existing.Name {
			slug, err := uniqueSlug(ctx, db, "products", name, id)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			set["slug"] = slug
		}

		if len(set) == 0 && len(unset) == 0 {
			response.Fail(c, route, response.BadRequest("no fields to update"))
			return
		}
		set["updatedAt"] = time.Now()

		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		updated, err := decodeProduct(db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		))
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				response.Fail(c, route, response.Conflict("a product with this sku already exists"))
				return
			}
			response.Fail(c, route, err)
			return
		}

		log.Printf("[%s] updated product %s fields=%d", route, id.Hex(), len(set)+len(unset))
		response.OK(c, "product updated", updated)
	}
}

// DeleteProduct removes the product and its stored images. Orders keep their
// snapshots; carts drop the line the next time they are read.
func DeleteProduct(db *mongo.Database, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var existing models.Product
		err := db.Collection("products").FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("product not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		for _, img := range existing.Images {
			if err := images.Delete(ctx, img.Key); err != nil {
				log.Printf("[%s] image delete failed key=%s: %v", route, img.Key, err)
			}
		}
		if _, err := db.Collection("users").UpdateMany(ctx,
			bson.M{"wishlist": id},
			bson.M{"$pull": bson.M{"wishlist": id}},
		); err != nil {
			log.Printf("[%s] wishlist cleanup failed: %v", route, err)
		}

		response.OK(c, fmt.Sprintf("product %s deleted", existing.Name), nil)
	}
}
