package handlers

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/commerce"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/response"
)

var errOrderChanged = response.Conflict("order was modified concurrently, please retry")

// applyStockAdjustments applies the counters one product at a time. A
// decrement only matches while enough stock remains.
func applyStockAdjustments(ctx context.Context, db *mongo.Database, adjustments []commerce.StockAdjustment) error {
	products := db.Collection("products")
	for _, adj := range adjustments {
		filter := bson.M{"_id": adj.Product}
		if adj.Stock < 0 {
			filter["stock"] = bson.M{"$gte": -adj.Stock}
		}
		res, err := products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": adj.Stock, "sold": adj.Sold}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 && adj.Stock < 0 {
			return commerce.InsufficientStockError{ProductID: adj.Product, Requested: -adj.Stock}
		}
	}
	return nil
}

// claimCoupon counts one more use of the coupon matched by match while its
// usage limit allows it.
func claimCoupon(ctx context.Context, db *mongo.Database, match bson.M) error {
	filter := bson.M{"$or": bson.A{
		bson.M{"usageLimit": bson.M{"$exists": false}},
		bson.M{"$expr": bson.M{"$lt": bson.A{"$usageCount", "$usageLimit"}}},
	}}
	for k, v := range match {
		filter[k] = v
	}
	res, err := db.Collection("coupons").UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usageCount": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return commerce.ErrCouponExhausted
	}
	return nil
}

// saveStatusChange writes change onto the order, provided its status is still
// the one the change was computed from.
func saveStatusChange(ctx context.Context, db *mongo.Database, order models.Order, change commerce.StatusChange, extra bson.M) (models.Order, error) {
	set := bson.M{
		"orderStatus":   change.Status,
		"statusHistory": change.History,
		"paymentStatus": change.PaymentStatus,
		"stockReleased": change.StockReleased,
		"updatedAt":     change.History[len(change.History)-1].Timestamp,
	}
	if change.PaidAt != nil {
		set["paidAt"] = *change.PaidAt
	}
	if change.DeliveredAt != nil {
		set["deliveredAt"] = *change.DeliveredAt
	}
	if change.CancelledAt != nil {
		set["cancelledAt"] = *change.CancelledAt
	}
	for k, v := range extra {
		set[k] = v
	}

	res, err := db.Collection("orders").UpdateOne(ctx,
		bson.M{"_id": order.ID, "orderStatus": order.OrderStatus},
		bson.M{"$set": set},
	)
	if err != nil {
		return models.Order{}, err
	}
	if res.MatchedCount == 0 {
		return models.Order{}, errOrderChanged
	}

	switch {
	case change.RestoreStock:
		if err := applyStockAdjustments(ctx, db, commerce.RestoreAdjustments(order.Items)); err != nil {
			return models.Order{}, err
		}
		if order.CouponCode != "" {
			if _, err := db.Collection("coupons").UpdateOne(ctx,
				bson.M{"code": order.CouponCode, "usageCount": bson.M{"$gt": 0}},
				bson.M{"$inc": bson.M{"usageCount": -1}},
			); err != nil {
				return models.Order{}, err
			}
		}
	case change.ReclaimStock:
		if err := applyStockAdjustments(ctx, db, commerce.PlacementAdjustments(order.Items)); err != nil {
			return models.Order{}, err
		}
		if order.CouponCode != "" {
			if err := claimCoupon(ctx, db, bson.M{"code": order.CouponCode}); err != nil {
				return models.Order{}, err
			}
		}
	}

	var updated models.Order
	err = db.Collection("orders").FindOne(ctx, bson.M{"_id": order.ID}).Decode(&updated)
	return updated, err
}

func findOrder(ctx context.Context, db *mongo.Database, filter bson.M) (models.Order, error) {
	var order models.Order
	err := db.Collection("orders").FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, response.NotFound("order not found")
	}
	return order, err
}

// sendOrderConfirmation runs after the order is committed; failures never
// reach the shopper.
func sendOrderConfirmation(db *mongo.Database, notifier Notifier, m *metrics.Registry, userID primitive.ObjectID, order models.Order) {
	if notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			log.Printf("[ORDER] [WARN] confirmation skipped for %s: %v", order.OrderNumber, err)
			return
		}
		if err := notifier.SendOrderConfirmation(user.Name, user.Email, order); err != nil {
			log.Printf("[ORDER] [WARN] confirmation email failed for %s: %v", order.OrderNumber, err)
			if m != nil {
				m.MailFailures.Inc()
			}
		}
	}()
}
