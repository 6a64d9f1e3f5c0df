package handlers

import (
	"errors"
	"log"
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

type profileRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=2,max=50"`
	Phone  *string `json:"phone" binding:"omitempty,max=20"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "AUTH")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			log.Println("[AUTH] [ERROR] get me failed:", err)
			response.Fail(c, "AUTH", response.NotFound("user not found"))
			return
		}

		response.OK(c, "", user)
	}
}

func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "PROFILE")
		if !ok {
			return
		}
		var req profileRequest
		if !bindJSON(c, "PROFILE", &req) {
			return
		}

		update := bson.M{}
		if req.Name != nil {
			update["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			update["phone"] = strings.TrimSpace(*req.Phone)
		}
		if req.Avatar != nil {
			update["avatar"] = strings.TrimSpace(*req.Avatar)
		}
		if len(update) == 0 {
			response.Fail(c, "PROFILE", response.BadRequest("no fields to update"))
			return
		}
		update["updatedAt"] = time.Now()

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOneAndUpdate(ctx,
			bson.M{"_id": userID},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, "PROFILE", response.NotFound("user not found"))
			return
		}
		if err != nil {
			response.Fail(c, "PROFILE", err)
			return
		}

		response.OK(c, "profile updated", user)
	}
}

func GetWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "WISHLIST")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			log.Println("[WISHLIST] [ERROR] get wishlist failed:", err)
			response.Fail(c, "WISHLIST", response.NotFound("user not found"))
			return
		}

		if len(user.Wishlist) == 0 {
			response.OK(c, "", []models.Product{})
			return
		}

		cursor, err := db.Collection("products").Find(ctx, bson.M{
			"_id":      bson.M{"$in": user.Wishlist},
			"isActive": true,
		})
		if err != nil {
			response.Fail(c, "WISHLIST", err)
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			response.Fail(c, "WISHLIST", err)
			return
		}

		productByID := make(map[primitive.ObjectID]models.Product, len(products))
		for _, product := range products {
			productByID[product.ID] = product
		}

		ordered := make([]models.Product, 0, len(products))
		for _, id := range user.Wishlist {
			if product, exists := productByID[id]; exists {
				ordered = append(ordered, product)
			}
		}

		response.OK(c, "", ordered)
	}
}

func AddToWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "WISHLIST")
		if !ok {
			return
		}
		var req wishlistRequest
		if !bindJSON(c, "WISHLIST", &req) {
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			response.Fail(c, "WISHLIST", response.BadRequest("invalid productId"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := findActiveProduct(ctx, db, productID); err != nil {
			response.Fail(c, "WISHLIST", err)
			return
		}

		if _, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$addToSet": bson.M{"wishlist": productID},
			"$set":      bson.M{"updatedAt": time.Now()},
		}); err != nil {
			response.Fail(c, "WISHLIST", err)
			return
		}

		response.OK(c, "added to wishlist", gin.H{"productId": productID.Hex()})
	}
}

func RemoveFromWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "WISHLIST")
		if !ok {
			return
		}
		productID, ok := pathObjectID(c, "WISHLIST", "productId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$pull": bson.M{"wishlist": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		}); err != nil {
			response.Fail(c, "WISHLIST", err)
			return
		}

		response.OK(c, "removed from wishlist", gin.H{"productId": productID.Hex()})
	}
}

