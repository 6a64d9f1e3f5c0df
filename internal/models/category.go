package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"name" json:"name"`
	Slug           string              `bson:"slug" json:"slug"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	Image          string              `bson:"image,omitempty" json:"image,omitempty"`
	ParentCategory *primitive.ObjectID `bson:"parentCategory,omitempty" json:"parentCategory,omitempty"`
	IsActive       bool                `bson:"isActive" json:"isActive"`
	Children       []Category          `bson:"-" json:"children,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}
