package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/commerce"
	"storefront/internal/database"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/response"
)

const orderNumberAttempts = 3

type orderLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=100"`
}

type placeOrderRequest struct {
	Items             []orderLineRequest      `json:"items" binding:"omitempty,dive"`
	ShippingAddress   *models.ShippingAddress `json:"shippingAddress"`
	ShippingAddressID string                  `json:"shippingAddressId"`
	BillingAddress    *models.ShippingAddress `json:"billingAddress"`
	PaymentMethod     string                  `json:"paymentMethod" binding:"required,oneof=cod online"`
	CouponCode        string                  `json:"couponCode"`
	Notes             string                  `json:"notes" binding:"max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

var errOrderNumberTaken = errors.New("order number already taken")

func withDefaultCountry(a models.ShippingAddress) models.ShippingAddress {
	if strings.TrimSpace(a.Country) == "" {
		a.Country = "India"
	}
	return a
}

// orderLines turns the request items into merged lines. Without items the
// saved cart is used.
func orderLines(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, items []orderLineRequest) ([]commerce.LineRequest, error) {
	lines := make([]commerce.LineRequest, 0, len(items))
	if len(items) == 0 {
		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			return nil, err
		}
		for _, item := range cart.Items {
			lines = append(lines, commerce.LineRequest{ProductID: item.Product, Quantity: item.Quantity})
		}
		if len(lines) == 0 {
			return nil, response.BadRequest("cart is empty")
		}
	}
	for _, item := range items {
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, response.BadRequest("invalid productId")
		}
		lines = append(lines, commerce.LineRequest{ProductID: id, Quantity: item.Quantity})
	}
	return commerce.MergeLines(lines)
}

func resolveShippingAddress(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, req placeOrderRequest) (models.ShippingAddress, error) {
	if id := strings.TrimSpace(req.ShippingAddressID); id != "" {
		addressID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return models.ShippingAddress{}, response.BadRequest("invalid shippingAddressId")
		}
		var address models.Address
		err = db.Collection("addresses").FindOne(ctx, bson.M{"_id": addressID, "user": userID}).Decode(&address)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ShippingAddress{}, response.NotFound("address not found")
		}
		if err != nil {
			return models.ShippingAddress{}, err
		}
		return address.Snapshot(), nil
	}
	if req.ShippingAddress == nil {
		return models.ShippingAddress{}, response.BadRequest("shippingAddress or shippingAddressId is required")
	}
	return withDefaultCountry(*req.ShippingAddress), nil
}

// placeOrder runs the checkout in one transaction: snapshot the lines, price
// them, take the stock, insert the order, count the coupon and empty the cart.
func placeOrder(ctx context.Context, db *mongo.Database, order models.Order, lines []commerce.LineRequest) (models.Order, error) {
	err := database.WithTransaction(ctx, db, func(sc mongo.SessionContext) error {
		ids := make([]primitive.ObjectID, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		products, err := productsByID(sc, db, ids)
		if err != nil {
			return err
		}

		items, subtotal, err := commerce.SnapshotItems(lines, products)
		if err != nil {
			return err
		}

		discount := 0.0
		var coupon models.Coupon
		if order.CouponCode != "" {
			var eval commerce.CouponEvaluation
			coupon, eval, err = evaluateCouponFor(sc, db, order.User, order.CouponCode, subtotal)
			if err != nil {
				return err
			}
			discount = eval.Discount
		}

		totals := commerce.ComputeTotals(subtotal, discount)
		order.Items = items
		order.Subtotal = totals.Subtotal
		order.DiscountAmount = totals.Discount
		order.TaxAmount = totals.Tax
		order.ShippingCharges = totals.Shipping
		order.TotalAmount = totals.Total

		if err := applyStockAdjustments(sc, db, commerce.PlacementAdjustments(items)); err != nil {
			return namedStockError(err, products[stockErrorProduct(err)].Name)
		}

		if order.OrderNumber, err = commerce.NewOrderNumber(nil); err != nil {
			return err
		}
		res, err := db.Collection("orders").InsertOne(sc, order)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errOrderNumberTaken
			}
			return err
		}
		order.ID = res.InsertedID.(primitive.ObjectID)

		if order.CouponCode != "" {
			if err := claimCoupon(sc, db, bson.M{"_id": coupon.ID}); err != nil {
				return err
			}
		}

		_, err = db.Collection("carts").UpdateOne(sc,
			bson.M{"user": order.User},
			bson.M{"$set": bson.M{"items": bson.A{}, "totalItems": 0, "totalAmount": 0, "updatedAt": order.CreatedAt}},
		)
		return err
	})
	return order, err
}

func stockErrorProduct(err error) primitive.ObjectID {
	var stock commerce.InsufficientStockError
	if errors.As(err, &stock) {
		return stock.ProductID
	}
	return primitive.NilObjectID
}

func PlaceOrder(db *mongo.Database, notifier Notifier, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req placeOrderRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		shipping, err := resolveShippingAddress(ctx, db, userID, req)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		lines, err := orderLines(ctx, db, userID, req.Items)
		if err != nil {
			response.Fail(c, route, commerceError(err))
			return
		}

		now := time.Now()
		draft := models.Order{
			User:            userID,
			ShippingAddress: shipping,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   models.PaymentStatusPending,
			OrderStatus:     models.OrderStatusPending,
			StatusHistory:   commerce.AppendStatus(nil, models.OrderStatusPending, "Order placed", now),
			CouponCode:      normalizeCouponCode(req.CouponCode),
			Notes:           strings.TrimSpace(req.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if req.BillingAddress != nil {
			billing := withDefaultCountry(*req.BillingAddress)
			draft.BillingAddress = &billing
		}

		var order models.Order
		for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
			order, err = placeOrder(ctx, db, draft, lines)
			if !errors.Is(err, errOrderNumberTaken) {
				break
			}
			log.Printf("[%s] order number collision, attempt %d", route, attempt)
		}
		if err != nil {
			if errors.Is(err, errOrderNumberTaken) {
				err = response.Conflict("could not allocate an order number, please retry")
			}
			response.Fail(c, route, commerceError(err))
			return
		}

		if m != nil {
			m.OrdersPlaced.WithLabelValues(order.PaymentMethod).Inc()
		}
		log.Printf("[%s] order %s placed user=%s total=%.2f", route, order.OrderNumber, userID.Hex(), order.TotalAmount)
		sendOrderConfirmation(db, notifier, m, userID, order)

		response.Created(c, "order placed", order)
	}
}

func ListMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			response.Fail(c, route, response.BadRequest(err.Error()))
			return
		}

		filter := bson.M{"user": userID}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !commerce.ValidOrderStatus(status) {
				response.Fail(c, route, response.BadRequest("invalid status"))
				return
			}
			filter["orderStatus"] = status
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

func findOrdersPage(ctx context.Context, db *mongo.Database, filter bson.M, page, limit int64) ([]models.Order, int64, error) {
	total, err := db.Collection("orders").CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := db.Collection("orders").Find(ctx, filter,
		pageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetOrder returns an order to its owner or to an admin.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := findOrder(ctx, db, bson.M{"_id": id})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if order.User != userID && !isAdmin(c) {
			response.Fail(c, route, response.Forbidden("not allowed to view this order"))
			return
		}
		response.OK(c, "order", order)
	}
}

func CancelOrder(db *mongo.Database, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := pathObjectID(c, route, "id")
		if !ok {
			return
		}
		var req cancelOrderRequest
		if !bindJSON(c, route, &req) {
			return
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Cancelled by customer"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		var updated models.Order
		err := database.WithTransaction(ctx, db, func(sc mongo.SessionContext) error {
			order, err := findOrder(sc, db, bson.M{"_id": id, "user": userID})
			if err != nil {
				return err
			}
			if !commerce.CanCancel(order.OrderStatus) {
				return response.BadRequest("order can no longer be cancelled")
			}
			change := commerce.ApplyStatus(order, models.OrderStatusCancelled, reason, time.Now())
			updated, err = saveStatusChange(sc, db, order, change, bson.M{"cancelReason": reason})
			return err
		})
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		if m != nil {
			m.OrdersCancelled.Inc()
		}
		log.Printf("[%s] order %s cancelled by owner", route, updated.OrderNumber)
		response.OK(c, "order cancelled", updated)
	}
}
