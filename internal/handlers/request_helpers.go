package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/middleware"
	"storefront/internal/response"
)

const requestTimeout = 5 * time.Second

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// bindJSON binds the body into dst and answers 400 with field messages on failure.
func bindJSON(c *gin.Context, area string, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Fail(c, area, response.Validation(err))
		return false
	}
	return true
}

func currentUser(c *gin.Context, area string) (primitive.ObjectID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, area, response.Unauthorized("unauthorized"))
		return primitive.NilObjectID, false
	}
	return userID, true
}

func isAdmin(c *gin.Context) bool {
	return middleware.Role(c) == "admin"
}

func pathObjectID(c *gin.Context, area, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(param)))
	if err != nil {
		response.Fail(c, area, response.BadRequest("invalid "+param))
		return primitive.NilObjectID, false
	}
	return id, true
}
