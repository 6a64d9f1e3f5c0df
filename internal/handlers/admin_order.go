package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/commerce"
	"storefront/internal/database"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/response"
)

type updateOrderStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	Note           string `json:"note" binding:"max=500"`
	TrackingNumber string `json:"trackingNumber" binding:"max=100"`
}

func adminOrderFilter(c *gin.Context) (bson.M, error) {
	filter := bson.M{}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		if !commerce.ValidOrderStatus(status) {
			return nil, response.BadRequest("invalid status")
		}
		filter["orderStatus"] = status
	}
	if ps := strings.TrimSpace(c.Query("paymentStatus")); ps != "" {
		filter["paymentStatus"] = ps
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter["$or"] = bson.A{
			bson.M{"orderNumber": containsFilter(search)},
			bson.M{"shippingAddress.fullName": containsFilter(search)},
			bson.M{"shippingAddress.phone": containsFilter(search)},
		}
	}
	return filter, nil
}

func AdminListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/orders"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 20)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}
		filter, err := adminOrderFilter(c)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		orders, total, err := findOrdersPage(ctx, db, filter, page, limit)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.Paginated(c, orders, response.NewMeta(page, limit, total))
	}
}

// UpdateOrderStatus accepts any of the six statuses. Stock goes back on the
// shelf at most once per release and is taken again if the order is revived.
func UpdateOrderStatus(db *mongo.Database, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/orders/:id/status"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req updateOrderStatusRequest
		if !bindJSON(c, route, &req) {
			return
		}
		if !commerce.ValidOrderStatus(req.Status) {
			response.Fail(c, route, response.BadRequest("invalid status"))
			return
		}
		next := models.OrderStatus(req.Status)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		var previous models.OrderStatus
		var updated models.Order
		err := database.WithTransaction(ctx, db, func(sc mongo.SessionContext) error {
			order, err := findOrder(sc, db, bson.M{"_id": id})
			if err != nil {
				return err
			}
			previous = order.OrderStatus

			extra := bson.M{}
			if tn := strings.TrimSpace(req.TrackingNumber); tn != "" {
				extra["trackingNumber"] = tn
			}
			if next == models.OrderStatusCancelled && strings.TrimSpace(req.Note) != "" {
				extra["cancelReason"] = strings.TrimSpace(req.Note)
			}

			change := commerce.ApplyStatus(order, next, strings.TrimSpace(req.Note), time.Now())
			updated, err = saveStatusChange(sc, db, order, change, extra)
			return err
		})
		if err != nil {
			response.Fail(c, route, commerceError(err))
			return
		}

		if m != nil && next == models.OrderStatusCancelled && previous != models.OrderStatusCancelled {
			m.OrdersCancelled.Inc()
		}
		log.Printf("[%s] order %s %s -> %s", route, updated.OrderNumber, previous, next)
		response.OK(c, "order status updated", updated)
	}
}

func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/orders/:id"

		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := db.Collection("orders").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if result.DeletedCount == 0 {
			response.Fail(c, route, response.NotFound("order not found"))
			return
		}

		response.OK(c, "order deleted", nil)
	}
}
