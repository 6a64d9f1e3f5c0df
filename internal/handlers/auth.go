package handlers

import (
	"context"
	"crypto/hmac"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
	"storefront/internal/response"
	"storefront/internal/token"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type authPayload struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Register(db *mongo.Database, issuer *token.Issuer, cookie RefreshCookie, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, "AUTH", &req) {
			return
		}

		email := normalizeEmail(req.Email)
		ctx, cancel := requestContext(c)
		defer cancel()

		count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		if count > 0 {
			log.Println("[AUTH] [ERROR] register email exists:", email)
			response.Fail(c, "AUTH", response.Conflict("email already registered"))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		rawVerify, err := token.NewOpaque()
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		now := time.Now()
		verifyExpires := now.Add(verificationTTL)
		user := models.User{
			Name:                     strings.TrimSpace(req.Name),
			Email:                    email,
			PasswordHash:             string(hash),
			Phone:                    strings.TrimSpace(req.Phone),
			Role:                     models.RoleUser,
			IsActive:                 true,
			EmailVerificationToken:   token.Hash(rawVerify),
			EmailVerificationExpires: &verifyExpires,
			Wishlist:                 []primitive.ObjectID{},
			CreatedAt:                now,
			UpdatedAt:                now,
		}

		res, err := db.Collection("users").InsertOne(ctx, user)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		user.ID = res.InsertedID.(primitive.ObjectID)

		accessToken, err := startSession(ctx, c, db, issuer, cookie, user)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		if notifier != nil {
			if err := notifier.SendVerification(user.Name, user.Email, rawVerify); err != nil {
				log.Println("[AUTH] [ERROR] verification email failed:", err)
			}
		}

		log.Println("[AUTH] [INFO] user registered:", email)
		response.Created(c, "registration successful", authPayload{
			User:        user,
			AccessToken: accessToken,
			ExpiresIn:   int64(issuer.AccessTTL().Seconds()),
		})
	}
}

func Login(db *mongo.Database, issuer *token.Issuer, cookie RefreshCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, "AUTH", &req) {
			return
		}

		email := normalizeEmail(req.Email)
		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Println("[AUTH] [ERROR] login unknown email")
			response.Fail(c, "AUTH", response.Unauthorized("invalid email or password"))
			return
		}
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials for user")
			response.Fail(c, "AUTH", response.Unauthorized("invalid email or password"))
			return
		}

		if !user.IsActive {
			log.Println("[AUTH] [ERROR] user inactive:", email)
			response.Fail(c, "AUTH", response.Forbidden("account is deactivated"))
			return
		}

		accessToken, err := startSession(ctx, c, db, issuer, cookie, user)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		log.Println("[AUTH] [INFO] user login succeeded:", user.Email)
		response.OK(c, "login successful", authPayload{
			User:        user,
			AccessToken: accessToken,
			ExpiresIn:   int64(issuer.AccessTTL().Seconds()),
		})
	}
}

// Refresh rotates the refresh token. The presented token must match the hash
// stored on the user, so a replayed token fails once it has been rotated.
func Refresh(db *mongo.Database, issuer *token.Issuer, cookie RefreshCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		plain, ok := cookie.Read(c)
		if !ok {
			var req refreshRequest
			_ = c.ShouldBindJSON(&req)
			plain = strings.TrimSpace(req.RefreshToken)
		}
		if plain == "" {
			response.Fail(c, "AUTH", response.Unauthorized("refresh token is required"))
			return
		}

		claims, err := issuer.ParseRefresh(plain)
		if err != nil {
			cookie.Clear(c)
			response.Fail(c, "AUTH", response.Unauthorized("invalid refresh token"))
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			response.Fail(c, "AUTH", response.Unauthorized("invalid refresh token"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			response.Fail(c, "AUTH", response.Unauthorized("invalid refresh token"))
			return
		}

		presented := token.Hash(plain)
		if user.RefreshTokenHash == "" || !hmac.Equal([]byte(presented), []byte(user.RefreshTokenHash)) {
			log.Println("[AUTH] [ERROR] refresh token does not match stored session:", user.Email)
			cookie.Clear(c)
			response.Fail(c, "AUTH", response.Unauthorized("invalid refresh token"))
			return
		}
		if !user.IsActive {
			response.Fail(c, "AUTH", response.Forbidden("account is deactivated"))
			return
		}

		accessToken, refreshToken, err := issuePair(issuer, user)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"_id": user.ID, "refreshTokenHash": presented},
			bson.M{"$set": bson.M{"refreshTokenHash": token.Hash(refreshToken), "updatedAt": time.Now()}},
		)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		if res.MatchedCount == 0 {
			response.Fail(c, "AUTH", response.Unauthorized("invalid refresh token"))
			return
		}

		cookie.Set(c, refreshToken)
		response.OK(c, "token refreshed", gin.H{
			"accessToken": accessToken,
			"expiresIn":   int64(issuer.AccessTTL().Seconds()),
		})
	}
}

func Logout(db *mongo.Database, cookie RefreshCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "AUTH")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$unset": bson.M{"refreshTokenHash": ""},
			"$set":   bson.M{"updatedAt": time.Now()},
		}); err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		cookie.Clear(c)
		response.OK(c, "logged out", nil)
	}
}

func ChangePassword(db *mongo.Database, issuer *token.Issuer, cookie RefreshCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c, "AUTH")
		if !ok {
			return
		}
		var req changePasswordRequest
		if !bindJSON(c, "AUTH", &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			response.Fail(c, "AUTH", response.NotFound("user not found"))
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			response.Fail(c, "AUTH", response.Unauthorized("current password is incorrect"))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		if _, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$set": bson.M{"passwordHash": string(hash), "updatedAt": time.Now()},
		}); err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		accessToken, err := startSession(ctx, c, db, issuer, cookie, user)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		log.Println("[AUTH] [INFO] password changed:", user.Email)
		response.OK(c, "password changed", gin.H{"accessToken": accessToken})
	}
}

// ForgotPassword answers the same way whether or not the email is known.
func ForgotPassword(db *mongo.Database, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req forgotPasswordRequest
		if !bindJSON(c, "AUTH", &req) {
			return
		}

		const reply = "if that email is registered, a reset link has been sent"
		email := normalizeEmail(req.Email)

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"email": email, "isActive": true}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.OK(c, reply, nil)
			return
		}
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		raw, err := token.NewOpaque()
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		expires := time.Now().Add(resetTTL)
		if _, err := db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
			"$set": bson.M{
				"passwordResetToken":   token.Hash(raw),
				"passwordResetExpires": expires,
				"updatedAt":            time.Now(),
			},
		}); err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		if notifier != nil {
			if err := notifier.SendPasswordReset(user.Name, user.Email, raw); err != nil {
				log.Println("[AUTH] [ERROR] reset email failed:", err)
			}
		}
		response.OK(c, reply, nil)
	}
}

func ResetPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("token"))
		var req resetPasswordRequest
		if !bindJSON(c, "AUTH", &req) {
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{
				"passwordResetToken":   token.Hash(raw),
				"passwordResetExpires": bson.M{"$gt": now},
			},
			bson.M{
				"$set":   bson.M{"passwordHash": string(hash), "updatedAt": now},
				"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": "", "refreshTokenHash": ""},
			},
		)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		if res.MatchedCount == 0 {
			response.Fail(c, "AUTH", response.BadRequest("reset token is invalid or has expired"))
			return
		}

		response.OK(c, "password has been reset", nil)
	}
}

func VerifyEmail(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("token"))

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{
				"emailVerificationToken":   token.Hash(raw),
				"emailVerificationExpires": bson.M{"$gt": now},
			},
			bson.M{
				"$set":   bson.M{"isEmailVerified": true, "updatedAt": now},
				"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpires": ""},
			},
		)
		if err != nil {
			response.Fail(c, "AUTH", err)
			return
		}
		if res.MatchedCount == 0 {
			response.Fail(c, "AUTH", response.BadRequest("verification token is invalid or has expired"))
			return
		}

		response.OK(c, "email verified", nil)
	}
}

func issuePair(issuer *token.Issuer, user models.User) (string, string, error) {
	accessToken, err := issuer.IssueAccess(user.ID.Hex(), user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := issuer.IssueRefresh(user.ID.Hex(), user.Role)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// startSession issues a fresh token pair, stores the refresh hash and sets the cookie.
func startSession(ctx context.Context, c *gin.Context, db *mongo.Database, issuer *token.Issuer, cookie RefreshCookie, user models.User) (string, error) {
	accessToken, refreshToken, err := issuePair(issuer, user)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if _, err := db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
		"$set": bson.M{
			"refreshTokenHash": token.Hash(refreshToken),
			"lastLoginAt":      now,
			"updatedAt":        now,
		},
	}); err != nil {
		return "", err
	}

	cookie.Set(c, refreshToken)
	return accessToken, nil
}
