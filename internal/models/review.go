package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Product            primitive.ObjectID `bson:"product" json:"product"`
	User               primitive.ObjectID `bson:"user" json:"user"`
	UserName           string             `bson:"userName" json:"userName"`
	Rating             int                `bson:"rating" json:"rating"`
	Title              string             `bson:"title,omitempty" json:"title,omitempty"`
	Comment            string             `bson:"comment" json:"comment"`
	IsVerifiedPurchase bool               `bson:"isVerifiedPurchase" json:"isVerifiedPurchase"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
