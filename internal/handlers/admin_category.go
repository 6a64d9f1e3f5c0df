package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/response"
)

type CategoryCreateRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	Description    string `json:"description"`
	Image          string `json:"image"`
	ParentCategory string `json:"parentCategory"`
	IsActive       *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description    *string `json:"description"`
	Image          *string `json:"image"`
	ParentCategory *string `json:"parentCategory"`
	IsActive       *bool   `json:"isActive"`
}

// resolveParent returns nil for an empty value. A category may not be its own parent.
func resolveParent(ctx context.Context, db *mongo.Database, raw string, self primitive.ObjectID) (*primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parentID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, response.BadRequest("invalid parentCategory")
	}
	if !self.IsZero() && parentID == self {
		return nil, response.BadRequest("a category cannot be its own parent")
	}
	count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": parentID})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, response.BadRequest("parent category does not exist")
	}
	return &parentID, nil
}

func AdminListCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/categories"

		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		categories, err := findCategories(ctx, db, filter)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "categories", categories)
	}
}

func CreateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /categories"

		var req CategoryCreateRequest
		if !bindJSON(c, route, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			response.Fail(c, route, response.BadRequest("name is required"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"name": name})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if count > 0 {
			response.Fail(c, route, response.Conflict("category already exists"))
			return
		}

		parent, err := resolveParent(ctx, db, req.ParentCategory, primitive.NilObjectID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		slug, err := uniqueSlug(ctx, db, "categories", name, primitive.NilObjectID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		now := time.Now()
		category := models.Category{
			Name:           name,
			Slug:           slug,
			Description:    strings.TrimSpace(req.Description),
			Image:          strings.TrimSpace(req.Image),
			ParentCategory: parent,
			IsActive:       isActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		result, err := db.Collection("categories").InsertOne(ctx, category)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		category.ID = result.InsertedID.(primitive.ObjectID)

		response.Created(c, "category created", category)
	}
}

func UpdateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /categories/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req CategoryUpdateRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		set := bson.M{}
		unset := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				response.Fail(c, route, response.BadRequest("name cannot be empty"))
				return
			}
			count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"name": name, "_id": bson.M{"$ne": id}})
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			if count > 0 {
				response.Fail(c, route, response.Conflict("category already exists"))
				return
			}
			slug, err := uniqueSlug(ctx, db, "categories", name, id)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			set["name"] = name
			set["slug"] = slug
		}
		if req.Description != nil {
			set["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Image != nil {
			set["image"] = strings.TrimSpace(*req.Image)
		}
		if req.ParentCategory != nil {
			parent, err := resolveParent(ctx, db, *req.ParentCategory, id)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			if parent == nil {
				unset["parentCategory"] = ""
			} else {
				set["parentCategory"] = *parent
			}
		}
		if req.IsActive != nil {
			set["isActive"] = *req.IsActive
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

		var updated models.Category
		err := db.Collection("categories").FindOneAndUpdate(ctx,
			bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("category not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "category updated", updated)
	}
}

// DeleteCategory refuses while products or subcategories still reference the category.
func DeleteCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /categories/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := db.Collection("products").CountDocuments(ctx, bson.M{"category": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if products > 0 {
			response.Fail(c, route, response.Conflict("category still has products"))
			return
		}
		children, err := db.Collection("categories").CountDocuments(ctx, bson.M{"parentCategory": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if children > 0 {
			response.Fail(c, route, response.Conflict("category still has subcategories"))
			return
		}

		result, err := db.Collection("categories").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if result.DeletedCount == 0 {
			response.Fail(c, route, response.NotFound("category not found"))
			return
		}

		response.OK(c, "category deleted", nil)
	}
}
