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

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/response"
)

type validateCouponRequest struct {
	Code     string   `json:"code" binding:"required"`
	Subtotal *float64 `json:"subtotal" binding:"omitempty,gte=0"`
}

type couponPreview struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Discount    float64         `json:"discount"`
	Totals      commerce.Totals `json:"totals"`
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// couponUses counts the user's orders that redeemed code, ignoring cancelled ones.
func couponUses(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, code string) (int, error) {
	count, err := db.Collection("orders").CountDocuments(ctx, bson.M{
		"user":        userID,
		"couponCode":  code,
		"orderStatus": bson.M{"$ne": models.OrderStatusCancelled},
	})
	return int(count), err
}

func couponUsesByCode(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user":        userID,
			"couponCode":  bson.M{"$exists": true, "$ne": ""},
			"orderStatus": bson.M{"$ne": models.OrderStatusCancelled},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$couponCode", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Code  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	uses := make(map[string]int, len(rows))
	for _, row := range rows {
		uses[row.Code] = row.Count
	}
	return uses, nil
}

// evaluateCouponFor loads code and evaluates it for the user against subtotal.
func evaluateCouponFor(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, code string, subtotal float64) (models.Coupon, commerce.CouponEvaluation, error) {
	var coupon models.Coupon
	err := db.Collection("coupons").FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Coupon{}, commerce.CouponEvaluation{}, response.NotFound("invalid coupon code")
	}
	if err != nil {
		return models.Coupon{}, commerce.CouponEvaluation{}, err
	}

	uses, err := couponUses(ctx, db, userID, code)
	if err != nil {
		return models.Coupon{}, commerce.CouponEvaluation{}, err
	}

	eval, err := commerce.EvaluateCoupon(coupon, subtotal, uses, time.Now())
	if err != nil {
		return models.Coupon{}, commerce.CouponEvaluation{}, commerceError(err)
	}
	return coupon, eval, nil
}

func ValidateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupons/validate"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req validateCouponRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		subtotal := 0.0
		if req.Subtotal != nil {
			subtotal = *req.Subtotal
		} else {
			cart, err := loadCart(ctx, db, userID)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			subtotal = cart.TotalAmount
		}

		coupon, eval, err := evaluateCouponFor(ctx, db, userID, normalizeCouponCode(req.Code), subtotal)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "coupon applied", couponPreview{
			Code:        coupon.Code,
			Description: coupon.Description,
			Discount:    eval.Discount,
			Totals:      commerce.ComputeTotals(subtotal, eval.Discount),
		})
	}
}

// AvailableCoupons lists the coupons the user could redeem against the current cart.
func AvailableCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /coupons/available"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		now := time.Now()
		cursor, err := db.Collection("coupons").Find(ctx, bson.M{
			"isActive":   true,
			"startDate":  bson.M{"$lte": now},
			"expiryDate": bson.M{"$gte": now},
		})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		coupons := make([]models.Coupon, 0)
		if err := cursor.All(ctx, &coupons); err != nil {
			response.Fail(c, route, err)
			return
		}

		uses, err := couponUsesByCode(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "available coupons", commerce.RankCoupons(coupons, cart.TotalAmount, uses, now))
	}
}
