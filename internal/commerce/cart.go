package commerce

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("item not found in cart")
)

// InsufficientStockError reports a line that asks for more than is on hand.
type InsufficientStockError struct {
	ProductID primitive.ObjectID
	Name      string
	Available int
	Requested int
}

func (e InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("only %d unit(s) of %s available", e.Available, e.Name)
	}
	return fmt.Sprintf("only %d unit(s) available", e.Available)
}

// Recalculate derives totalItems and totalAmount from the lines.
func Recalculate(cart models.Cart) models.Cart {
	items := 0
	amount := decimal.Zero
	for _, item := range cart.Items {
		items += item.Quantity
		amount = amount.Add(mulQty(item.Price, item.Quantity))
	}
	cart.TotalItems = items
	cart.TotalAmount = amount.Round(2).InexactFloat64()
	return cart
}

// AddItem merges qty into the cart at unitPrice. The resulting line quantity
// may not exceed stock.
func AddItem(cart models.Cart, productID primitive.ObjectID, qty int, unitPrice float64, stock int) (models.Cart, error) {
	if qty < 1 {
		return cart, ErrInvalidQuantity
	}

	items := cloneItems(cart.Items)
	for i := range items {
		if items[i].Product != productID {
			continue
		}
		next := items[i].Quantity + qty
		if next > stock {
			return cart, InsufficientStockError{ProductID: productID, Available: stock, Requested: next}
		}
		items[i].Quantity = next
		items[i].Price = unitPrice
		cart.Items = items
		return Recalculate(cart), nil
	}

	if qty > stock {
		return cart, InsufficientStockError{ProductID: productID, Available: stock, Requested: qty}
	}
	cart.Items = append(items, models.CartItem{Product: productID, Quantity: qty, Price: unitPrice})
	return Recalculate(cart), nil
}

// SetQuantity replaces a line's quantity. qty <= 0 removes the line.
func SetQuantity(cart models.Cart, productID primitive.ObjectID, qty int, stock int) (models.Cart, error) {
	if qty <= 0 {
		return RemoveItem(cart, productID)
	}

	items := cloneItems(cart.Items)
	for i := range items {
		if items[i].Product != productID {
			continue
		}
		if qty > stock {
			return cart, InsufficientStockError{ProductID: productID, Available: stock, Requested: qty}
		}
		items[i].Quantity = qty
		cart.Items = items
		return Recalculate(cart), nil
	}
	return cart, ErrItemNotInCart
}

func RemoveItem(cart models.Cart, productID primitive.ObjectID) (models.Cart, error) {
	items := make([]models.CartItem, 0, len(cart.Items))
	found := false
	for _, item := range cart.Items {
		if item.Product == productID {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return cart, ErrItemNotInCart
	}
	cart.Items = items
	return Recalculate(cart), nil
}

func Clear(cart models.Cart) models.Cart {
	cart.Items = []models.CartItem{}
	return Recalculate(cart)
}

func cloneItems(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(items), len(items)+1)
	copy(out, items)
	return out
}
