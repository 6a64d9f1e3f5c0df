package handlers

import (
	"errors"
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

type couponRequest struct {
	Code          string    `json:"code" binding:"required,max=32"`
	Description   string    `json:"description"`
	DiscountType  string    `json:"discountType" binding:"required,oneof=percent flat"`
	DiscountValue float64   `json:"discountValue" binding:"required,gt=0"`
	MinCartValue  float64   `json:"minCartValue" binding:"gte=0"`
	MaxDiscount   *float64  `json:"maxDiscount"`
	StartDate     time.Time `json:"startDate"`
	ExpiryDate    time.Time `json:"expiryDate" binding:"required"`
	UsageLimit    *int      `json:"usageLimit"`
	PerUserLimit  *int      `json:"perUserLimit"`
	IsActive      *bool     `json:"isActive"`
}

func (r couponRequest) coupon(now time.Time) models.Coupon {
	start := r.StartDate
	if start.IsZero() {
		start = now
	}
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}
	return models.Coupon{
		Code:          normalizeCouponCode(r.Code),
		Description:   strings.TrimSpace(r.Description),
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		MinCartValue:  r.MinCartValue,
		MaxDiscount:   r.MaxDiscount,
		StartDate:     start,
		ExpiryDate:    r.ExpiryDate,
		UsageLimit:    r.UsageLimit,
		PerUserLimit:  r.PerUserLimit,
		IsActive:      isActive,
	}
}

func AdminListCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/coupons"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 20)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["code"] = containsFilter(search)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		total, err := db.Collection("coupons").CountDocuments(ctx, filter)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		cursor, err := db.Collection("coupons").Find(ctx, filter,
			pageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}}))
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
		response.Paginated(c, coupons, response.NewMeta(page, limit, total))
	}
}

func CreateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/coupons"

		var req couponRequest
		if !bindJSON(c, route, &req) {
			return
		}

		now := time.Now()
		coupon := req.coupon(now)
		if err := commerce.ValidateCoupon(coupon); err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}
		coupon.CreatedAt = now
		coupon.UpdatedAt = now

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("coupons").InsertOne(ctx, coupon)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				response.Fail(c, route, response.Conflict("coupon code already exists"))
				return
			}
			response.Fail(c, route, err)
			return
		}
		coupon.ID = res.InsertedID.(primitive.ObjectID)

		response.Created(c, "coupon created", coupon)
	}
}

// UpdateCoupon replaces the coupon definition. usageCount is preserved.
func UpdateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/coupons/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req couponRequest
		if !bindJSON(c, route, &req) {
			return
		}

		now := time.Now()
		coupon := req.coupon(now)
		if err := commerce.ValidateCoupon(coupon); err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		set := bson.M{
			"code":          coupon.Code,
			"description":   coupon.Description,
			"discountType":  coupon.DiscountType,
			"discountValue": coupon.DiscountValue,
			"minCartValue":  coupon.MinCartValue,
			"startDate":     coupon.StartDate,
			"expiryDate":    coupon.ExpiryDate,
			"isActive":      coupon.IsActive,
			"updatedAt":     now,
		}
		unset := bson.M{}
		optional := map[string]interface{}{
			"maxDiscount":  coupon.MaxDiscount,
			"usageLimit":   coupon.UsageLimit,
			"perUserLimit": coupon.PerUserLimit,
		}
		for field, value := range optional {
			switch v := value.(type) {
			case *float64:
				if v == nil {
					unset[field] = ""
				} else {
					set[field] = *v
				}
			case *int:
				if v == nil {
					unset[field] = ""
				} else {
					set[field] = *v
				}
			}
		}

		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Coupon
		err := db.Collection("coupons").FindOneAndUpdate(ctx,
			bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Fail(c, route, response.NotFound("coupon not found"))
			return
		}
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				response.Fail(c, route, response.Conflict("coupon code already exists"))
				return
			}
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "coupon updated", updated)
	}
}

func DeleteCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/coupons/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("coupons").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if res.DeletedCount == 0 {
			response.Fail(c, route, response.NotFound("coupon not found"))
			return
		}
		response.OK(c, "coupon deleted", nil)
	}
}
