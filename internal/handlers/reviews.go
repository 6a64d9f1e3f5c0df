package handlers

import (
	"context"
	"errors"
	"math"
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

const defaultReviewLimit = 10

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,gte=1,lte=5"`
	Title   string `json:"title" binding:"max=120"`
	Comment string `json:"comment" binding:"required,max=2000"`
}

// refreshProductRating recomputes rating and numReviews from the reviews collection.
func refreshProductRating(ctx context.Context, db *mongo.Database, productID primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$product",
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := db.Collection("reviews").Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return err
	}

	rating, count := 0.0, 0
	if len(rows) > 0 {
		rating = math.Round(rows[0].Avg*10) / 10
		count = rows[0].Count
	}

	_, err = db.Collection("products").UpdateByID(ctx, productID, bson.M{"$set": bson.M{
		"rating":     rating,
		"numReviews": count,
	}})
	return err
}

// hasDeliveredPurchase reports whether the user has a delivered order containing the product.
func hasDeliveredPurchase(ctx context.Context, db *mongo.Database, userID, productID primitive.ObjectID) (bool, error) {
	count, err := db.Collection("orders").CountDocuments(ctx, bson.M{
		"user":          userID,
		"orderStatus":   models.OrderStatusDelivered,
		"items.product": productID,
	}, options.Count().SetLimit(1))
	return count > 0, err
}

func ListReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id/reviews"

		productID, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), defaultReviewLimit)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := bson.M{"product": productID}
		total, err := db.Collection("reviews").CountDocuments(ctx, filter)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		opts := pageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("reviews").Find(ctx, filter, opts)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		reviews := make([]models.Review, 0)
		if err := cursor.All(ctx, &reviews); err != nil {
			response.Fail(c, route, err)
			return
		}

		response.Paginated(c, reviews, response.NewMeta(page, limit, total))
	}
}

func CreateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/reviews"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		productID, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req reviewRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := findActiveProduct(ctx, db, productID); err != nil {
			response.Fail(c, route, err)
			return
		}

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			response.Fail(c, route, err)
			return
		}

		verified, err := hasDeliveredPurchase(ctx, db, userID, productID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		now := time.Now()
		review := models.Review{
			Product:            productID,
			User:               userID,
			UserName:           user.Name,
			Rating:             req.Rating,
			Title:              strings.TrimSpace(req.Title),
			Comment:            strings.TrimSpace(req.Comment),
			IsVerifiedPurchase: verified,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		res, err := db.Collection("reviews").InsertOne(ctx, review)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				response.Fail(c, route, response.Conflict("you have already reviewed this product"))
				return
			}
			response.Fail(c, route, err)
			return
		}
		review.ID = res.InsertedID.(primitive.ObjectID)

		if err := refreshProductRating(ctx, db, productID); err != nil {
			response.Fail(c, route, err)
			return
		}

		response.Created(c, "review added", review)
	}
}

// DeleteReview is allowed for the author and for admins.
func DeleteReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var review models.Review
		err := db.Collection("reviews").FindOne(ctx, bson.M{"_id": id}).Decode(&review)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("review not found"))
			return
		}
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if review.User != userID && !isAdmin(c) {
			response.Fail(c, route, response.Forbidden("not allowed to delete this review"))
			return
		}

		if _, err := db.Collection("reviews").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			response.Fail(c, route, err)
			return
		}
		if err := refreshProductRating(ctx, db, review.Product); err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "review deleted", nil)
	}
}
