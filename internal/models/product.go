package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductImage points at an object in image storage.
type ProductImage struct {
	URL string `bson:"url" json:"url"`
	Key string `bson:"key" json:"key"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	SKU         string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Description string             `bson:"description" json:"description"`
	Brand       string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	// DiscountPrice is the selling price while a discount runs; nil means none.
	DiscountPrice   *float64           `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	DiscountPercent int                `bson:"-" json:"discountPercent"`
	Stock           int                `bson:"stock" json:"stock"`
	InStock         bool               `bson:"-" json:"inStock"`
	Sold            int                `bson:"sold" json:"sold"`
	Category        primitive.ObjectID `bson:"category" json:"category"`
	Images          []ProductImage     `bson:"images" json:"images"`
	Thumbnail       string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Tags            StringList         `bson:"tags" json:"tags"`
	// Specifications maps a label such as "Material" to its display value.
	Specifications map[string]string `bson:"specifications,omitempty" json:"specifications,omitempty"`
	Rating         float64           `bson:"rating" json:"rating"`
	NumReviews     int               `bson:"numReviews" json:"numReviews"`
	IsFeatured     bool              `bson:"isFeatured" json:"isFeatured"`
	IsNew          bool              `bson:"isNew" json:"isNew"`
	IsTrending     bool              `bson:"isTrending" json:"isTrending"`
	IsActive       bool              `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt" json:"updatedAt"`
}
