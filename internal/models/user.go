package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a storefront account. Token fields hold sha256 hashes, never
// the plain values handed to the client.
type User struct {
	ID                       primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name                     string               `bson:"name" json:"name"`
	Email                    string               `bson:"email" json:"email"`
	PasswordHash             string               `bson:"passwordHash" json:"-"`
	Phone                    string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Avatar                   string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role                     string               `bson:"role" json:"role"`
	IsActive                 bool                 `bson:"isActive" json:"isActive"`
	IsEmailVerified          bool                 `bson:"isEmailVerified" json:"isEmailVerified"`
	EmailVerificationToken   string               `bson:"emailVerificationToken,omitempty" json:"-"`
	EmailVerificationExpires *time.Time           `bson:"emailVerificationExpires,omitempty" json:"-"`
	PasswordResetToken       string               `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires     *time.Time           `bson:"passwordResetExpires,omitempty" json:"-"`
	RefreshTokenHash         string               `bson:"refreshTokenHash,omitempty" json:"-"`
	Wishlist                 []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	LastLoginAt              *time.Time           `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt                time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt                time.Time            `bson:"updatedAt" json:"updatedAt"`
}
