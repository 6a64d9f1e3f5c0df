package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/response"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=100"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=100"`
}

type cartLine struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Price    float64        `json:"price"`
	Subtotal float64        `json:"subtotal"`
}

type cartView struct {
	Items       []cartLine `json:"items"`
	TotalItems  int        `json:"totalItems"`
	TotalAmount float64    `json:"totalAmount"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func loadCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Cart, error) {
	var cart models.Cart
	err := db.Collection("carts").FindOne(ctx, bson.M{"user": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{User: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return models.Cart{}, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func saveCart(ctx context.Context, db *mongo.Database, cart models.Cart) (models.Cart, error) {
	cart = commerce.Recalculate(cart)
	cart.UpdatedAt = time.Now()
	_, err := db.Collection("carts").UpdateOne(ctx,
		bson.M{"user": cart.User},
		bson.M{
			"$set": bson.M{
				"items":       cart.Items,
				"totalItems":  cart.TotalItems,
				"totalAmount": cart.TotalAmount,
				"updatedAt":   cart.UpdatedAt,
			},
			"$setOnInsert": bson.M{"createdAt": cart.UpdatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return cart, err
}

// productsByID loads the given products, active or not.
func productsByID(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// pruneCart drops lines whose product was deleted or deactivated. changed
// reports whether anything was removed.
func pruneCart(cart models.Cart, products map[primitive.ObjectID]models.Product) (models.Cart, bool) {
	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if p, ok := products[item.Product]; ok && p.IsActive {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(cart.Items) {
		return cart, false
	}
	cart.Items = kept
	return commerce.Recalculate(cart), true
}

func cartLines(cart models.Cart, products map[primitive.ObjectID]models.Product) []cartLine {
	lines := make([]cartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, cartLine{
			Product:  products[item.Product],
			Quantity: item.Quantity,
			Price:    item.Price,
			Subtotal: commerce.LineSubtotal(item.Price, item.Quantity),
		})
	}
	return lines
}

// cartResponse prunes stale lines, persists the cleanup and returns the populated view.
func cartResponse(ctx context.Context, db *mongo.Database, cart models.Cart) (cartView, error) {
	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.Product)
	}
	products, err := productsByID(ctx, db, ids)
	if err != nil {
		return cartView{}, err
	}

	cart, changed := pruneCart(cart, products)
	if changed {
		if cart, err = saveCart(ctx, db, cart); err != nil {
			return cartView{}, err
		}
	}

	return cartView{
		Items:       cartLines(cart, products),
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount,
		UpdatedAt:   cart.UpdatedAt,
	}, nil
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		view, err := cartResponse(ctx, db, cart)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "cart", view)
	}
}

func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/items"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req addToCartRequest
		if !bindJSON(c, route, &req) {
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			response.Fail(c, route, response.BadRequest("invalid productId"))
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := findActiveProduct(ctx, db, productID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		cart, err = commerce.AddItem(cart, productID, req.Quantity, commerce.UnitPrice(product), product.Stock)
		if err != nil {
			response.Fail(c, route, commerceError(namedStockError(err, product.Name)))
			return
		}
		if cart, err = saveCart(ctx, db, cart); err != nil {
			response.Fail(c, route, err)
			return
		}

		view, err := cartResponse(ctx, db, cart)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "item added to cart", view)
	}
}

func UpdateCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/items/:productId"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		productID, ok := pathObjectID(c, route, "productId")
		if !ok {
			return
		}
		var req updateCartItemRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}

		stock := 0
		name := ""
		if *req.Quantity > 0 {
			product, err := findActiveProduct(ctx, db, productID)
			if err != nil {
				response.Fail(c, route, err)
				return
			}
			stock, name = product.Stock, product.Name
		}

		cart, err = commerce.SetQuantity(cart, productID, *req.Quantity, stock)
		if err != nil {
			response.Fail(c, route, commerceError(namedStockError(err, name)))
			return
		}
		if cart, err = saveCart(ctx, db, cart); err != nil {
			response.Fail(c, route, err)
			return
		}

		view, err := cartResponse(ctx, db, cart)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "cart updated", view)
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/items/:productId"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		productID, ok := pathObjectID(c, route, "productId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		cart, err = commerce.RemoveItem(cart, productID)
		if err != nil {
			response.Fail(c, route, commerceError(err))
			return
		}
		if cart, err = saveCart(ctx, db, cart); err != nil {
			response.Fail(c, route, err)
			return
		}

		view, err := cartResponse(ctx, db, cart)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "item removed from cart", view)
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			response.Fail(c, route, err)
			return
		}
		if _, err := saveCart(ctx, db, commerce.Clear(cart)); err != nil {
			response.Fail(c, route, err)
			return
		}
		response.OK(c, "cart cleared", cartView{Items: []cartLine{}})
	}
}

func namedStockError(err error, name string) error {
	var stock commerce.InsufficientStockError
	if errors.As(err, &stock) && stock.Name == "" {
		stock.Name = name
		return stock
	}
	return err
}
