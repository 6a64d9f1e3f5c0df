package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/response"
)

const (
	lowStockThreshold  = 10
	recentOrdersLimit  = 5
	lowStockListLimit  = 10
	defaultSalesMonths = 12
	maxSalesMonths     = 36
	defaultTopProducts = 10
)

// paidRevenueMatch selects orders that count towards revenue.
var paidRevenueMatch = bson.M{"paymentStatus": models.PaymentStatusPaid}

type dashboardCounts struct {
	Users         int64 `json:"users"`
	Products      int64 `json:"products"`
	Orders        int64 `json:"orders"`
	PendingOrders int64 `json:"pendingOrders"`
}

type dashboardView struct {
	Totals           dashboardCounts  `json:"totals"`
	Revenue          float64          `json:"revenue"`
	RecentOrders     []models.Order   `json:"recentOrders"`
	LowStockProducts []models.Product `json:"lowStockProducts"`
	OrdersByStatus   map[string]int64 `json:"ordersByStatus"`
}

type salesPoint struct {
	Year    int     `bson:"year" json:"year"`
	Month   int     `bson:"month" json:"month"`
	Revenue float64 `bson:"revenue" json:"revenue"`
	Orders  int64   `bson:"orders" json:"orders"`
}

type productSales struct {
	Product primitive.ObjectID `bson:"_id" json:"product"`
	Name    string             `bson:"name" json:"name"`
	Image   string             `bson:"image" json:"image,omitempty"`
	Units   int64              `bson:"units" json:"unitsSold"`
	Revenue float64            `bson:"revenue" json:"revenue"`
	Orders  int64              `bson:"orders" json:"orders"`
}

func aggregateAll(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func totalRevenue(ctx context.Context, db *mongo.Database) (float64, error) {
	var rows []struct {
		Total float64 `bson:"total"`
	}
	err := aggregateAll(ctx, db.Collection("orders"), mongo.Pipeline{
		{{Key: "$match", Value: paidRevenueMatch}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalAmount"}}}},
	}, &rows)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Total, nil
}

func ordersByStatus(ctx context.Context, db *mongo.Database) (map[string]int64, error) {
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	err := aggregateAll(ctx, db.Collection("orders"), mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$orderStatus", "count": bson.M{"$sum": 1}}}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func Dashboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/dashboard"

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		var view dashboardView
		var err error

		if view.Totals.Users, err = db.Collection("users").CountDocuments(ctx, bson.M{"role": models.RoleUser}); err != nil {
			response.Fail(c, route, err)
			return
		}
		if view.Totals.Products, err = db.Collection("products").CountDocuments(ctx, bson.M{}); err != nil {
			response.Fail(c, route, err)
			return
		}
		if view.Totals.Orders, err = db.Collection("orders").CountDocuments(ctx, bson.M{}); err != nil {
			response.Fail(c, route, err)
			return
		}
		if view.Totals.PendingOrders, err = db.Collection("orders").CountDocuments(ctx, bson.M{"orderStatus": models.OrderStatusPending}); err != nil {
			response.Fail(c, route, err)
			return
		}
		if view.Revenue, err = totalRevenue(ctx, db); err != nil {
			response.Fail(c, route, err)
			return
		}
		if view.OrdersByStatus, err = ordersByStatus(ctx, db); err != nil {
			response.Fail(c, route, err)
			return
		}

		recent, err := db.Collection("orders").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(recentOrdersLimit))
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer recent.Close(ctx)
		view.RecentOrders = make([]models.Order, 0, recentOrdersLimit)
		if err := recent.All(ctx, &view.RecentOrders); err != nil {
			response.Fail(c, route, err)
			return
		}

		low, err := db.Collection("products").Find(ctx,
			bson.M{"isActive": true, "stock": bson.M{"$lte": lowStockThreshold}},
			options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}).SetLimit(lowStockListLimit))
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		defer low.Close(ctx)
		if view.LowStockProducts, err = decodeProducts(ctx, low); err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "dashboard", view)
	}
}

// parseBoundedInt reads a positive integer query value, clamping it to max.
func parseBoundedInt(raw string, fallback, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, response.BadRequest("must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// salesWindowStart is the first day of the month months-1 before now.
func salesWindowStart(now time.Time, months int) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -(months - 1), 0)
}

func SalesAnalytics(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/analytics/sales"

		months, err := parseBoundedInt(c.Query("months"), defaultSalesMonths, maxSalesMonths)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		match := bson.M{"createdAt": bson.M{"$gte": salesWindowStart(time.Now(), months)}}
		for k, v := range paidRevenueMatch {
			match[k] = v
		}

		points := make([]salesPoint, 0, months)
		err = aggregateAll(ctx, db.Collection("orders"), mongo.Pipeline{
			{{Key: "$match", Value: match}},
			{{Key: "$group", Value: bson.M{
				"_id":     bson.M{"year": bson.M{"$year": "$createdAt"}, "month": bson.M{"$month": "$createdAt"}},
				"revenue": bson.M{"$sum": "$totalAmount"},
				"orders":  bson.M{"$sum": 1},
			}}},
			{{Key: "$project", Value: bson.M{
				"_id":     0,
				"year":    "$_id.year",
				"month":   "$_id.month",
				"revenue": bson.M{"$round": bson.A{"$revenue", 2}},
				"orders":  1,
			}}},
			{{Key: "$sort", Value: bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}}},
		}, &points)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "sales analytics", points)
	}
}

func ProductAnalytics(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/analytics/products"

		limit, err := parseBoundedInt(c.Query("limit"), defaultTopProducts, maxPageLimit)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		rows := make([]productSales, 0, limit)
		err = aggregateAll(ctx, db.Collection("orders"), mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"orderStatus": bson.M{"$nin": bson.A{models.OrderStatusCancelled, models.OrderStatusReturned}}}}},
			{{Key: "$unwind", Value: "$items"}},
			{{Key: "$group", Value: bson.M{
				"_id":     "$items.product",
				"name":    bson.M{"$last": "$items.name"},
				"image":   bson.M{"$last": "$items.image"},
				"units":   bson.M{"$sum": "$items.quantity"},
				"revenue": bson.M{"$sum": "$items.subtotal"},
				"orders":  bson.M{"$sum": 1},
			}}},
			{{Key: "$sort", Value: bson.D{{Key: "units", Value: -1}, {Key: "revenue", Value: -1}}}},
			{{Key: "$limit", Value: limit}},
		}, &rows)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		response.OK(c, "product analytics", rows)
	}
}
