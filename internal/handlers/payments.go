package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/response"
)

const maxWebhookBody = 1 << 20

// PaymentSecrets are the shared secrets used to check gateway signatures.
type PaymentSecrets struct {
	KeySecret     string
	WebhookSecret string
}

type createPaymentRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type verifyPaymentRequest struct {
	OrderID          string `json:"orderId" binding:"required"`
	GatewayOrderID   string `json:"gatewayOrderId" binding:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

type paymentOrderView struct {
	KeyID          string  `json:"keyId"`
	GatewayOrderID string  `json:"gatewayOrderId"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	OrderNumber    string  `json:"orderNumber"`
	TotalAmount    float64 `json:"totalAmount"`
}

var releasedOrderStatuses = bson.A{models.OrderStatusCancelled, models.OrderStatusReturned}

// markPaid flips an unpaid order to paid. It matches nothing when the order
// is already paid or no longer holds stock, which keeps repeated and late
// callbacks harmless.
func markPaid(ctx context.Context, db *mongo.Database, filter bson.M, paymentID, signature, note string) (bool, error) {
	now := time.Now()
	filter["paymentStatus"] = bson.M{"$ne": models.PaymentStatusPaid}
	filter["orderStatus"] = bson.M{"$nin": releasedOrderStatuses}

	set := bson.M{
		"paymentStatus":     models.PaymentStatusPaid,
		"paidAt":            now,
		"gateway.paymentId": paymentID,
		"updatedAt":         now,
	}
	if signature != "" {
		set["gateway.signature"] = signature
	}

	// pending orders advance to processing; later statuses keep theirs.
	update := mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: bson.M{
			"statusHistory": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$orderStatus", models.OrderStatusPending}},
				bson.M{"$concatArrays": bson.A{
					bson.M{"$ifNull": bson.A{"$statusHistory", bson.A{}}},
					bson.A{bson.M{"status": models.OrderStatusProcessing, "timestamp": now, "note": note}},
				}},
				"$statusHistory",
			}},
			"orderStatus": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$orderStatus", models.OrderStatusPending}},
				models.OrderStatusProcessing,
				"$orderStatus",
			}},
		}}},
	}

	res, err := db.Collection("orders").UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// recordLateCapture stores the payment id on a cancelled or returned order so
// the capture can be refunded. It reports whether such an order was found.
func recordLateCapture(ctx context.Context, db *mongo.Database, filter bson.M, paymentID string) (bool, error) {
	filter["paymentStatus"] = bson.M{"$ne": models.PaymentStatusPaid}
	filter["orderStatus"] = bson.M{"$in": releasedOrderStatuses}
	res, err := db.Collection("orders").UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"gateway.paymentId": paymentID,
		"updatedAt":         time.Now(),
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func CreatePaymentOrder(db *mongo.Database, gateway PaymentGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/create-order"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req createPaymentRequest
		if !bindJSON(c, route, &req) {
			return
		}
		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			response.Fail(c, route, response.BadRequest("invalid orderId"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		order, err := findOrder(ctx, db, bson.M{"_id": orderID, "user": userID})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if order.PaymentMethod != models.PaymentMethodOnline {
			response.Fail(c, route, response.BadRequest("order is not an online payment order"))
			return
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			response.Fail(c, route, response.BadRequest("order is already paid"))
			return
		}
		if order.OrderStatus == models.OrderStatusCancelled {
			response.Fail(c, route, response.BadRequest("order is cancelled"))
			return
		}

		gwOrder, err := gateway.CreateOrder(ctx, order.TotalAmount, order.OrderNumber, map[string]string{
			"orderId": order.ID.Hex(),
		})
		if err != nil {
			log.Printf("[%s] gateway create failed for %s: %v", route, order.OrderNumber, err)
			response.Fail(c, route, response.New(http.StatusBadGateway, "payment gateway unavailable"))
			return
		}

		if _, err := db.Collection("orders").UpdateByID(ctx, order.ID, bson.M{"$set": bson.M{
			"gateway.orderId": gwOrder.ID,
			"updatedAt":       time.Now(),
		}}); err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "payment order created", paymentOrderView{
			KeyID:          gateway.KeyID(),
			GatewayOrderID: gwOrder.ID,
			Amount:         gwOrder.Amount,
			Currency:       gwOrder.Currency,
			OrderNumber:    order.OrderNumber,
			TotalAmount:    order.TotalAmount,
		})
	}
}

func VerifyPayment(db *mongo.Database, secrets PaymentSecrets, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/verify"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req verifyPaymentRequest
		if !bindJSON(c, route, &req) {
			return
		}
		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			response.Fail(c, route, response.BadRequest("invalid orderId"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := findOrder(ctx, db, bson.M{"_id": orderID, "user": userID})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			response.OK(c, "payment already verified", order)
			return
		}
		if order.Gateway.OrderID == "" || order.Gateway.OrderID != req.GatewayOrderID {
			observePayment(m, "verify", "mismatch")
			response.Fail(c, route, response.BadRequest("gateway order does not match"))
			return
		}
		if !payment.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature, secrets.KeySecret) {
			observePayment(m, "verify", "bad_signature")
			response.Fail(c, route, response.BadRequest("payment verification failed"))
			return
		}

		if order.OrderStatus == models.OrderStatusCancelled || order.OrderStatus == models.OrderStatusReturned {
			if _, err := recordLateCapture(ctx, db, bson.M{"_id": order.ID}, req.GatewayPaymentID); err != nil {
				response.Fail(c, route, err)
				return
			}
			observePayment(m, "verify", "late_capture")
			log.Printf("[%s] [WARN] payment %s for %s order %s needs a refund", route, req.GatewayPaymentID, order.OrderStatus, order.OrderNumber)
			response.Fail(c, route, response.Conflict("order is "+string(order.OrderStatus)+", the payment will be refunded"))
			return
		}

		if _, err := markPaid(ctx, db, bson.M{"_id": order.ID}, req.GatewayPaymentID, req.Signature, "Payment verified"); err != nil {
			response.Fail(c, route, err)
			return
		}
		observePayment(m, "verify", "paid")

		updated, err := findOrder(ctx, db, bson.M{"_id": order.ID})
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		log.Printf("[%s] order %s paid payment=%s", route, updated.OrderNumber, req.GatewayPaymentID)
		response.OK(c, "payment verified", updated)
	}
}

// PaymentWebhook reads the raw body so the signature is checked over the
// exact bytes the gateway sent.
func PaymentWebhook(db *mongo.Database, secrets PaymentSecrets, m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/webhook"

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			response.Fail(c, route, response.BadRequest("unreadable body"))
			return
		}
		if !payment.VerifyWebhookSignature(body, c.GetHeader(payment.WebhookSignatureHeader), secrets.WebhookSecret) {
			observePayment(m, "webhook", "bad_signature")
			response.Fail(c, route, response.BadRequest("invalid webhook signature"))
			return
		}

		event, err := payment.ParseWebhook(body)
		if err != nil {
			response.Fail(c, route, response.BadRequest("invalid webhook payload"))
			return
		}

		gatewayOrderID := event.GatewayOrderID()
		if gatewayOrderID == "" {
			response.OK(c, "ignored", nil)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		switch event.Event {
		case payment.EventPaymentCaptured, payment.EventOrderPaid:
			changed, err := markPaid(ctx, db, bson.M{"gateway.orderId": gatewayOrderID}, event.PaymentID(), "", "Payment captured")
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			if changed {
				observePayment(m, "webhook", "paid")
				break
			}
			late, err := recordLateCapture(ctx, db, bson.M{"gateway.orderId": gatewayOrderID}, event.PaymentID())
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			if late {
				observePayment(m, "webhook", "late_capture")
				log.Printf("[%s] [WARN] payment %s captured for released gateway order %s, refund required", route, event.PaymentID(), gatewayOrderID)
			}
		case payment.EventPaymentFailed:
			_, err := db.Collection("orders").UpdateOne(ctx,
				bson.M{"gateway.orderId": gatewayOrderID, "paymentStatus": models.PaymentStatusPending},
				bson.M{"$set": bson.M{
					"paymentStatus":     models.PaymentStatusFailed,
					"gateway.paymentId": event.PaymentID(),
					"updatedAt":         time.Now(),
				}},
			)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			observePayment(m, "webhook", "failed")
		default:
			log.Printf("[%s] unhandled event %q", route, event.Event)
		}

		response.OK(c, "received", nil)
	}
}

func PaymentKey(gateway PaymentGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, "payment key", gin.H{"keyId": gateway.KeyID()})
	}
}

func observePayment(m *metrics.Registry, source, result string) {
	if m != nil {
		m.Payments.WithLabelValues(source, result).Inc()
	}
}

