package handlers

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/response"
)

// buildCategoryTree nests categories under their parents. Categories whose
// parent is absent from the input become roots. Siblings are ordered by name.
func buildCategoryTree(categories []models.Category) []models.Category {
	present := make(map[string]bool, len(categories))
	for _, cat := range categories {
		present[cat.ID.Hex()] = true
	}

	children := make(map[string][]models.Category)
	roots := make([]models.Category, 0)
	for _, cat := range categories {
		if cat.ParentCategory != nil && present[cat.ParentCategory.Hex()] && *cat.ParentCategory != cat.ID {
			key := cat.ParentCategory.Hex()
			children[key] = append(children[key], cat)
			continue
		}
		roots = append(roots, cat)
	}

	var attach func(nodes []models.Category, depth int) []models.Category
	attach = func(nodes []models.Category, depth int) []models.Category {
		sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
		if depth > len(categories) {
			return nodes
		}
		for i := range nodes {
			if kids, ok := children[nodes[i].ID.Hex()]; ok {
				nodes[i].Children = attach(kids, depth+1)
			}
		}
		return nodes
	}
	return attach(roots, 0)
}

func findCategories(ctx context.Context, db *mongo.Database, filter bson.M) ([]models.Category, error) {
	cursor, err := db.Collection("categories").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	categories := make([]models.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func ListCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"

		ctx, cancel := requestContext(c)
		defer cancel()

		categories, err := findCategories(ctx, db, bson.M{"isActive": true})
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		if strings.EqualFold(c.Query("tree"), "true") {
			response.OK(c, "categories", buildCategoryTree(categories))
			return
		}
		response.OK(c, "categories", categories)
	}
}

func GetCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:idOrSlug"

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := idOrSlugFilter(c.Param("idOrSlug"))
		filter["isActive"] = true

		var category models.Category
		err := db.Collection("categories").FindOne(ctx, filter).Decode(&category)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("category not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		children, err := findCategories(ctx, db, bson.M{"parentCategory": category.ID, "isActive": true})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		category.Children = children

		response.OK(c, "category", category)
	}
}
