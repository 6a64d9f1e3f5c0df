package middleware

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/response"
	"storefront/internal/token"
)

const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

// AuthGuard requires a valid bearer access token. When roles are given the
// token's role must be one of them.
func AuthGuard(issuer *token.Issuer, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			response.Fail(c, "AUTH", response.Unauthorized("missing token"))
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			log.Println("[AUTH] [ERROR] invalid token format")
			response.Fail(c, "AUTH", response.Unauthorized("invalid token"))
			return
		}

		claims, err := issuer.ParseAccess(parts[1])
		if err != nil {
			response.Fail(c, "AUTH", response.Unauthorized("unauthorized"))
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			log.Println("[AUTH] [ERROR] invalid subject claim")
			response.Fail(c, "AUTH", response.Unauthorized("unauthorized"))
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if claims.Role == r {
					match = true
					break
				}
			}
			if !match {
				response.Fail(c, "AUTH", response.Forbidden("forbidden"))
				return
			}
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(ctxRole)
}
