package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/response"
)

type updateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

type updateStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func AdminListUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/users"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 20)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		filter := bson.M{}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["$or"] = bson.A{
				bson.M{"name": containsFilter(search)},
				bson.M{"email": containsFilter(search)},
			}
		}
		if role := strings.TrimSpace(c.Query("role")); role != "" {
			filter["role"] = role
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		total, err := db.Collection("users").CountDocuments(ctx, filter)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		cursor, err := db.Collection("users").Find(ctx, filter,
			pageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		users := make([]models.User, 0)
		if err := cursor.All(ctx, &users); err != nil {
			response.Fail(c, route, err)
			return
		}
		response.Paginated(c, users, response.NewMeta(page, limit, total))
	}
}

func updateUser(c *gin.Context, db *mongo.Database, route string, set bson.M, unset bson.M) {
	id, ok := pathObjectID(c, route, "id")
	if !ok {
		return
	}
	if self, ok := middleware.UserID(c); ok && self == id {
		response.Fail(c, route, response.BadRequest("you cannot change your own account here"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	set["updatedAt"] = time.Now()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.User
	err := db.Collection("users").FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		response.Fail(c, route, response.NotFound("user not found"))
		return
	}
	if err != nil {
		response.Fail(c, route, err)
		return
	}
	response.OK(c, "user updated", updated)
}

func UpdateUserRole(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/users/:id/role"

		var req updateRoleRequest
		if !bindJSON(c, route, &req) {
			return
		}
		updateUser(c, db, route, bson.M{"role": req.Role}, nil)
	}
}

// UpdateUserStatus activates or deactivates an account. Deactivation also
// revokes the stored refresh token.
func UpdateUserStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/users/:id/status"

		var req updateStatusRequest
		if !bindJSON(c, route, &req) {
			return
		}
		var unset bson.M
		if !*req.IsActive {
			unset = bson.M{"refreshTokenHash": ""}
		}
		updateUser(c, db, route, bson.M{"isActive": *req.IsActive}, unset)
	}
}
