package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercent = "percent"
	DiscountFlat    = "flat"
)

type Coupon struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code          string             `bson:"code" json:"code"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType  string             `bson:"discountType" json:"discountType"`
	DiscountValue float64            `bson:"discountValue" json:"discountValue"`
	MinCartValue  float64            `bson:"minCartValue" json:"minCartValue"`
	MaxDiscount   *float64           `bson:"maxDiscount,omitempty" json:"maxDiscount,omitempty"`
	StartDate     time.Time          `bson:"startDate" json:"startDate"`
	ExpiryDate    time.Time          `bson:"expiryDate" json:"expiryDate"`
	UsageLimit    *int               `bson:"usageLimit,omitempty" json:"usageLimit,omitempty"`
	UsageCount    int                `bson:"usageCount" json:"usageCount"`
	PerUserLimit  *int               `bson:"perUserLimit,omitempty" json:"perUserLimit,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
