package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront/internal/commerce"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/token"
)

var handlerIssuer = token.NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)

func newMockMongo(t *testing.T) *mtest.T {
	gin.SetMode(gin.TestMode)
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func mockCursor(mt *mtest.T, coll string, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, mt.DB.Name()+"."+coll, mtest.FirstBatch, docs...)
}

// mockCount answers the aggregate that CountDocuments runs.
func mockCount(mt *mtest.T, coll string, n int32) bson.D {
	if n == 0 {
		return mockCursor(mt, coll)
	}
	return mockCursor(mt, coll, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: n}})
}

func mockWrite(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func mockDuplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"})
}

func commandsNamed(mt *mtest.T, name string) []*event.CommandStartedEvent {
	var out []*event.CommandStartedEvent
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == name {
			out = append(out, evt)
		}
	}
	return out
}

func lookupInt(t *testing.T, raw bson.Raw, path ...string) int64 {
	t.Helper()
	v, err := raw.LookupErr(path...)
	if err != nil {
		t.Fatalf("missing %v in %s", path, raw)
	}
	n, ok := v.AsInt64OK()
	if !ok {
		t.Fatalf("%v is not a number in %s", path, raw)
	}
	return n
}

func bearerRequest(t *testing.T, method, path string, userID primitive.ObjectID, body string) *http.Request {
	t.Helper()
	access, err := handlerIssuer.IssueAccess(userID.Hex(), models.RoleUser)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)
	return req
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var body envelopeBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return body
}

func orderDocument(id, userID, productID primitive.ObjectID, status models.OrderStatus, released bool) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "orderNumber", Value: "ORD-0000000042"},
		{Key: "user", Value: userID},
		{Key: "items", Value: bson.A{bson.D{
			{Key: "product", Value: productID},
			{Key: "name", Value: "Desk Lamp"},
			{Key: "price", Value: 49.0},
			{Key: "quantity", Value: int32(2)},
			{Key: "subtotal", Value: 98.0},
		}}},
		{Key: "paymentMethod", Value: models.PaymentMethodOnline},
		{Key: "paymentStatus", Value: string(models.PaymentStatusPending)},
		{Key: "orderStatus", Value: string(status)},
		{Key: "couponCode", Value: "SAVE10"},
		{Key: "gateway", Value: bson.D{{Key: "orderId", Value: "order_abc"}}},
		{Key: "statusHistory", Value: bson.A{bson.D{
			{Key: "status", Value: string(models.OrderStatusPending)},
			{Key: "timestamp", Value: time.Now()},
		}}},
		{Key: "stockReleased", Value: released},
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mt := newMockMongo(t)
	body := `{"name":"Asha","email":"Asha@Example.COM","password":"correct-horse"}`
	register := func(mt *mtest.T) *httptest.ResponseRecorder {
		r := gin.New()
		r.POST("/auth/register", Register(mt.DB, handlerIssuer, NewRefreshCookie("cookie-secret", false, time.Hour), nil))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	mt.Run("existing email in another case", func(mt *mtest.T) {
		mt.AddMockResponses(mockCount(mt, "users", 1))

		w := register(mt)

		if w.Code != http.StatusConflict {
			mt.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
		}
		started := mt.GetAllStartedEvents()
		if len(started) != 1 || started[0].CommandName != "aggregate" {
			mt.Fatalf("expected a single count, got %d commands", len(started))
		}
		if !strings.Contains(started[0].Command.String(), `"asha@example.com"`) {
			mt.Fatalf("email was not normalised before lookup: %s", started[0].Command)
		}
	})

	mt.Run("concurrent insert hits unique index", func(mt *mtest.T) {
		mt.AddMockResponses(mockCount(mt, "users", 0), mockDuplicateKey())

		w := register(mt)

		if w.Code != http.StatusConflict {
			mt.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
		}
		if n := len(commandsNamed(mt, "update")); n != 0 {
			mt.Fatalf("existing user must not be touched, saw %d updates", n)
		}
	})
}

func TestCreateReview_VerificationAndDuplicates(t *testing.T) {
	mt := newMockMongo(t)
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	product := bson.D{
		{Key: "_id", Value: productID},
		{Key: "name", Value: "Desk Lamp"},
		{Key: "price", Value: 49.0},
		{Key: "stock", Value: int32(4)},
		{Key: "isActive", Value: true},
	}
	user := bson.D{{Key: "_id", Value: userID}, {Key: "name", Value: "Ravi"}}
	review := func(mt *mtest.T) *httptest.ResponseRecorder {
		r := gin.New()
		r.POST("/products/:id/reviews", middleware.AuthGuard(handlerIssuer), CreateReview(mt.DB))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, bearerRequest(mt.T, http.MethodPost, "/products/"+productID.Hex()+"/reviews", userID,
			`{"rating":4,"comment":"Bright and sturdy"}`))
		return w
	}

	mt.Run("no delivered purchase", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "products", product),
			mockCursor(mt, "users", user),
			mockCount(mt, "orders", 0),
			mockWrite(1),
			mockCursor(mt, "reviews", bson.D{{Key: "_id", Value: productID}, {Key: "avg", Value: 4.0}, {Key: "count", Value: int32(1)}}),
			mockWrite(1),
		)

		w := review(mt)

		if w.Code != http.StatusCreated {
			mt.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		var created models.Review
		if err := json.Unmarshal(decodeEnvelope(mt.T, w).Data, &created); err != nil {
			mt.Fatalf("invalid review: %v", err)
		}
		if created.IsVerifiedPurchase {
			mt.Fatalf("review without a delivered order must not be verified")
		}
		if created.UserName != "Ravi" || created.Rating != 4 {
			mt.Fatalf("unexpected review %+v", created)
		}

		counts := commandsNamed(mt, "aggregate")
		if len(counts) == 0 || !strings.Contains(counts[0].Command.String(), `"delivered"`) {
			mt.Fatalf("purchase check must only count delivered orders")
		}
		updates := commandsNamed(mt, "update")
		if len(updates) != 1 || lookupInt(mt.T, updates[0].Command, "updates", "0", "u", "$set", "numReviews") != 1 {
			mt.Fatalf("expected the product rating to be refreshed once")
		}
	})

	mt.Run("second review on the same product", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "products", product),
			mockCursor(mt, "users", user),
			mockCount(mt, "orders", 0),
			mockDuplicateKey(),
		)

		w := review(mt)

		if w.Code != http.StatusConflict {
			mt.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
		}
		if n := len(commandsNamed(mt, "update")); n != 0 {
			mt.Fatalf("rating must not be recomputed for a rejected review, saw %d updates", n)
		}
	})
}

func TestCancelOrder_ReleasesStockAndCoupon(t *testing.T) {
	mt := newMockMongo(t)
	orderID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()

	mt.Run("pending order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "orders", orderDocument(orderID, userID, productID, models.OrderStatusPending, false)),
			mockWrite(1),
			mockWrite(1),
			mockWrite(1),
			mockCursor(mt, "orders", orderDocument(orderID, userID, productID, models.OrderStatusCancelled, true)),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.PUT("/orders/:id/cancel", middleware.AuthGuard(handlerIssuer), CancelOrder(mt.DB, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, bearerRequest(mt.T, http.MethodPut, "/orders/"+orderID.Hex()+"/cancel", userID, `{"reason":"Changed my mind"}`))

		if w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		updates := commandsNamed(mt, "update")
		if len(updates) != 3 {
			mt.Fatalf("expected order, product and coupon updates, got %d", len(updates))
		}

		orderUpdate := updates[0].Command
		if orderUpdate.Lookup("update").StringValue() != "orders" {
			mt.Fatalf("first write should target orders: %s", orderUpdate)
		}
		if orderUpdate.Lookup("updates", "0", "q", "orderStatus").StringValue() != string(models.OrderStatusPending) {
			mt.Fatalf("status write must be conditional on the status read: %s", orderUpdate)
		}
		if !orderUpdate.Lookup("updates", "0", "u", "$set", "stockReleased").Boolean() {
			mt.Fatalf("cancelled order must be marked released: %s", orderUpdate)
		}
		if orderUpdate.Lookup("updates", "0", "u", "$set", "cancelReason").StringValue() != "Changed my mind" {
			mt.Fatalf("cancel reason not stored: %s", orderUpdate)
		}

		stock := updates[1].Command
		if stock.Lookup("update").StringValue() != "products" {
			mt.Fatalf("second write should target products: %s", stock)
		}
		if got := lookupInt(mt.T, stock, "updates", "0", "u", "$inc", "stock"); got != 2 {
			mt.Fatalf("expected stock +2, got %d", got)
		}
		if got := lookupInt(mt.T, stock, "updates", "0", "u", "$inc", "sold"); got != -2 {
			mt.Fatalf("expected sold -2, got %d", got)
		}

		coupon := updates[2].Command
		if coupon.Lookup("updates", "0", "q", "code").StringValue() != "SAVE10" {
			mt.Fatalf("coupon release should match the order's code: %s", coupon)
		}
		if got := lookupInt(mt.T, coupon, "updates", "0", "u", "$inc", "usageCount"); got != -1 {
			mt.Fatalf("expected usageCount -1, got %d", got)
		}

		if len(commandsNamed(mt, "commitTransaction")) != 1 {
			mt.Fatalf("cancellation must commit one transaction")
		}
	})

	mt.Run("shipped order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "orders", orderDocument(orderID, userID, productID, models.OrderStatusShipped, false)),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.PUT("/orders/:id/cancel", middleware.AuthGuard(handlerIssuer), CancelOrder(mt.DB, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, bearerRequest(mt.T, http.MethodPut, "/orders/"+orderID.Hex()+"/cancel", userID, `{}`))

		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
		if n := len(commandsNamed(mt, "update")); n != 0 {
			mt.Fatalf("shipped order must not be written, saw %d updates", n)
		}
	})
}

func TestPlaceOrder_TakesStockInsideTransaction(t *testing.T) {
	mt := newMockMongo(t)
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	product := bson.D{
		{Key: "_id", Value: productID},
		{Key: "name", Value: "Desk Lamp"},
		{Key: "price", Value: 49.0},
		{Key: "stock", Value: int32(4)},
		{Key: "isActive", Value: true},
	}
	newOrder := func() models.Order {
		now := time.Now()
		return models.Order{
			User:          userID,
			PaymentMethod: models.PaymentMethodCOD,
			PaymentStatus: models.PaymentStatusPending,
			OrderStatus:   models.OrderStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	lines := []commerce.LineRequest{{ProductID: productID, Quantity: 2}}

	mt.Run("stock available", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "products", product),
			mockWrite(1),
			mockWrite(1),
			mockWrite(1),
			mtest.CreateSuccessResponse(),
		)

		order, err := placeOrder(context.Background(), mt.DB, newOrder(), lines)
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if order.ID.IsZero() || !strings.HasPrefix(order.OrderNumber, "ORD-") {
			mt.Fatalf("order not stored: %+v", order)
		}
		if order.Subtotal != 98 || len(order.Items) != 1 || order.Items[0].Name != "Desk Lamp" {
			mt.Fatalf("unexpected snapshot %+v", order)
		}

		updates := commandsNamed(mt, "update")
		if len(updates) != 2 {
			mt.Fatalf("expected stock and cart updates, got %d", len(updates))
		}
		if got := lookupInt(mt.T, updates[0].Command, "updates", "0", "q", "stock", "$gte"); got != 2 {
			mt.Fatalf("stock decrement must require 2 units, got %d", got)
		}
		if got := lookupInt(mt.T, updates[0].Command, "updates", "0", "u", "$inc", "stock"); got != -2 {
			mt.Fatalf("expected stock -2, got %d", got)
		}
		if updates[1].Command.Lookup("update").StringValue() != "carts" {
			mt.Fatalf("checkout must clear the cart: %s", updates[1].Command)
		}
	})

	mt.Run("stock taken by a concurrent order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "products", product),
			mockWrite(0),
			mtest.CreateSuccessResponse(),
		)

		_, err := placeOrder(context.Background(), mt.DB, newOrder(), lines)
		var stockErr commerce.InsufficientStockError
		if !errors.As(err, &stockErr) || stockErr.ProductID != productID {
			mt.Fatalf("expected insufficient stock for %s, got %v", productID.Hex(), err)
		}
		if n := len(commandsNamed(mt, "insert")); n != 0 {
			mt.Fatalf("order must not be inserted, saw %d inserts", n)
		}
		if len(commandsNamed(mt, "commitTransaction")) != 0 {
			mt.Fatalf("failed checkout must not commit")
		}
	})
}

func TestMarkPaid_SkipsPaidAndReleasedOrders(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("filter", func(mt *mtest.T) {
		mt.AddMockResponses(mockWrite(0))

		changed, err := markPaid(context.Background(), mt.DB, bson.M{"gateway.orderId": "order_abc"}, "pay_1", "", "Payment captured")
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if changed {
			mt.Fatalf("nothing matched, nothing should change")
		}

		updates := commandsNamed(mt, "update")
		if len(updates) != 1 {
			mt.Fatalf("expected one update, got %d", len(updates))
		}
		q := updates[0].Command.Lookup("updates", "0", "q").Document()
		if q.Lookup("paymentStatus", "$ne").StringValue() != string(models.PaymentStatusPaid) {
			mt.Fatalf("paid orders must be excluded: %s", q)
		}
		statuses, err := q.Lookup("orderStatus", "$nin").Array().Values()
		if err != nil || len(statuses) != 2 {
			mt.Fatalf("released statuses must be excluded: %s", q)
		}
		for i, want := range []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusReturned} {
			if statuses[i].StringValue() != string(want) {
				mt.Fatalf("expected %s excluded, got %s", want, statuses[i])
			}
		}
	})
}

func TestVerifyPayment_CancelledOrderIsNotMarkedPaid(t *testing.T) {
	mt := newMockMongo(t)
	orderID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	mt.Run("late capture", func(mt *mtest.T) {
		mt.AddMockResponses(
			mockCursor(mt, "orders", orderDocument(orderID, userID, primitive.NewObjectID(), models.OrderStatusCancelled, true)),
			mockWrite(1),
		)

		r := gin.New()
		r.POST("/payments/verify", middleware.AuthGuard(handlerIssuer), VerifyPayment(mt.DB, PaymentSecrets{KeySecret: "key-secret"}, nil))
		body := `{"orderId":"` + orderID.Hex() + `","gatewayOrderId":"order_abc","gatewayPaymentId":"pay_1","signature":"` +
			payment.Sign([]byte("order_abc|pay_1"), "key-secret") + `"}`
		w := httptest.NewRecorder()
		r.ServeHTTP(w, bearerRequest(mt.T, http.MethodPost, "/payments/verify", userID, body))

		if w.Code != http.StatusConflict {
			mt.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
		}
		updates := commandsNamed(mt, "update")
		if len(updates) != 1 {
			mt.Fatalf("expected only the refund bookkeeping update, got %d", len(updates))
		}
		set := updates[0].Command.Lookup("updates", "0", "u", "$set").Document()
		if _, err := set.LookupErr("paymentStatus"); err == nil {
			mt.Fatalf("cancelled order must not change payment status: %s", set)
		}
		if set.Lookup("gateway.paymentId").StringValue() != "pay_1" {
			mt.Fatalf("payment id should be kept for the refund: %s", set)
		}
	})
}
