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

type addressRequest struct {
	FullName     string `json:"fullName" binding:"required,max=100"`
	Phone        string `json:"phone" binding:"required,max=20"`
	AddressLine1 string `json:"addressLine1" binding:"required"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state" binding:"required"`
	PostalCode   string `json:"postalCode" binding:"required"`
	Country      string `json:"country"`
	AddressType  string `json:"addressType" binding:"omitempty,oneof=home work other"`
	IsDefault    bool   `json:"isDefault"`
}

func (r addressRequest) fields() bson.M {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		country = "India"
	}
	addressType := r.AddressType
	if addressType == "" {
		addressType = "home"
	}
	return bson.M{
		"fullName":     strings.TrimSpace(r.FullName),
		"phone":        strings.TrimSpace(r.Phone),
		"addressLine1": strings.TrimSpace(r.AddressLine1),
		"addressLine2": strings.TrimSpace(r.AddressLine2),
		"city":         strings.TrimSpace(r.City),
		"state":        strings.TrimSpace(r.State),
		"postalCode":   strings.TrimSpace(r.PostalCode),
		"country":      country,
		"addressType":  addressType,
	}
}

func ListAddresses(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "ADDRESS")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cursor, err := db.Collection("addresses").Find(ctx, bson.M{"user": userID},
			options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "createdAt", Value: -1}}))
		if err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}
		defer cursor.Close(ctx)

		addresses := make([]models.Address, 0)
		if err := cursor.All(ctx, &addresses); err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		response.OK(c, "", addresses)
	}
}

func CreateAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "ADDRESS")
		if !ok {
			return
		}
		var req addressRequest
		if !bindJSON(c, "ADDRESS", &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		count, err := db.Collection("addresses").CountDocuments(ctx, bson.M{"user": userID})
		if err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}
		isDefault := req.IsDefault || count == 0
		if isDefault {
			if err := clearDefaultAddress(ctx, db, userID); err != nil {
				response.Fail(c, "ADDRESS", err)
				return
			}
		}

		now := time.Now()
		doc := req.fields()
		doc["user"] = userID
		doc["isDefault"] = isDefault
		doc["createdAt"] = now
		doc["updatedAt"] = now

		res, err := db.Collection("addresses").InsertOne(ctx, doc)
		if err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		var address models.Address
		if err := db.Collection("addresses").FindOne(ctx, bson.M{"_id": res.InsertedID}).Decode(&address); err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}
		response.Created(c, "address added", address)
	}
}

func UpdateAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "ADDRESS")
		if !ok {
			return
		}
		addressID, ok := pathObjectID(c, "ADDRESS", "id")
		if !ok {
			return
		}
		var req addressRequest
		if !bindJSON(c, "ADDRESS", &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if req.IsDefault {
			if err := clearDefaultAddress(ctx, db, userID); err != nil {
				response.Fail(c, "ADDRESS", err)
				return
			}
		}

		set := req.fields()
		set["updatedAt"] = time.Now()
		if req.IsDefault {
			set["isDefault"] = true
		}

		var address models.Address
		err := db.Collection("addresses").FindOneAndUpdate(ctx,
			bson.M{"_id": addressID, "user": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&address)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, "ADDRESS", response.NotFound("address not found"))
			return
		}
		if err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		response.OK(c, "address updated", address)
	}
}

// DeleteAddress promotes the most recently added remaining address when the
// default one is removed.
func DeleteAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "ADDRESS")
		if !ok {
			return
		}
		addressID, ok := pathObjectID(c, "ADDRESS", "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var removed models.Address
		err := db.Collection("addresses").FindOneAndDelete(ctx, bson.M{"_id": addressID, "user": userID}).Decode(&removed)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, "ADDRESS", response.NotFound("address not found"))
			return
		}
		if err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		if removed.IsDefault {
			var next models.Address
			err := db.Collection("addresses").FindOne(ctx,
				bson.M{"user": userID},
				options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
			).Decode(&next)
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				response.Fail(c, "ADDRESS", err)
				return
			}
			if err == nil {
				if _, err := db.Collection("addresses").UpdateByID(ctx, next.ID, bson.M{
					"$set": bson.M{"isDefault": true, "updatedAt": time.Now()},
				}); err != nil {
					response.Fail(c, "ADDRESS", err)
					return
				}
			}
		}

		response.OK(c, "address deleted", nil)
	}
}

func SetDefaultAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "ADDRESS")
		if !ok {
			return
		}
		addressID, ok := pathObjectID(c, "ADDRESS", "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := db.Collection("addresses").FindOne(ctx, bson.M{"_id": addressID, "user": userID}).Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				response.Fail(c, "ADDRESS", response.NotFound("address not found"))
				return
			}
			response.Fail(c, "ADDRESS", err)
			return
		}

		if err := clearDefaultAddress(ctx, db, userID); err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		var address models.Address
		if err := db.Collection("addresses").FindOneAndUpdate(ctx,
			bson.M{"_id": addressID},
			bson.M{"$set": bson.M{"isDefault": true, "updatedAt": time.Now()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&address); err != nil {
			response.Fail(c, "ADDRESS", err)
			return
		}

		response.OK(c, "default address updated", address)
	}
}

func clearDefaultAddress(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) error {
	_, err := db.Collection("addresses").UpdateMany(ctx,
		bson.M{"user": userID, "isDefault": true},
		bson.M{"$set": bson.M{"isDefault": false}},
	)
	return err
}
